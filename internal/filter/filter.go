package filter

import (
	"errors"
	"math/rand/v2"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"

	"moviedb/internal/domain"
)

// ErrNoMatch is returned by Pick when no movie satisfies the criteria.
var ErrNoMatch = errors.New("no movies match the current filters")

// Criteria selects and orders a subset of the collection.
type Criteria struct {
	Tab       domain.WatchStatus `json:"tab"`
	Search    string             `json:"search,omitempty"`
	Genres    []string           `json:"genres,omitempty"`
	Country   string             `json:"country,omitempty"`
	Decades   []int              `json:"decades,omitempty"`
	MinRating float64            `json:"min_rating,omitempty"`
	Sort      SortKey            `json:"sort"`
}

func (c Criteria) withDefaults() Criteria {
	if c.Tab == "" {
		c.Tab = domain.StatusWatched
	}
	if c.Sort == "" {
		c.Sort = SortDateWatched
	}
	return c
}

// Apply returns the movies that satisfy c, ordered by c.Sort.
func Apply(movies []*domain.Movie, c Criteria) []*domain.Movie {
	c = c.withDefaults()
	term := strings.ToLower(strings.TrimSpace(c.Search))

	out := make([]*domain.Movie, 0, len(movies))
	for _, m := range movies {
		if m == nil || m.Status != c.Tab {
			continue
		}
		if term != "" && !matchesSearch(m, term) {
			continue
		}
		if len(c.Genres) > 0 && !hasAnyGenre(m, c.Genres) {
			continue
		}
		if c.Country != "" && m.Country != c.Country {
			continue
		}
		if len(c.Decades) > 0 && (m.Year == nil || !slices.Contains(c.Decades, decadeOf(*m.Year))) {
			continue
		}
		if c.MinRating > 0 && m.EffectiveRating() < c.MinRating {
			continue
		}
		out = append(out, m)
	}
	return Sort(out, c.Sort)
}

func matchesSearch(m *domain.Movie, term string) bool {
	if strings.Contains(strings.ToLower(m.Title), term) {
		return true
	}
	for _, g := range m.Genres {
		if strings.Contains(strings.ToLower(g), term) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(m.Country), term)
}

func hasAnyGenre(m *domain.Movie, selected []string) bool {
	for _, g := range m.Genres {
		if slices.Contains(selected, g) {
			return true
		}
	}
	return false
}

func decadeOf(year int) int {
	d := year / 10 * 10
	if year < 0 && year%10 != 0 {
		d -= 10
	}
	return d
}

// Pick returns a random movie among those matching c.
func Pick(movies []*domain.Movie, c Criteria, rng *rand.Rand) (*domain.Movie, error) {
	matched := Apply(movies, c)
	if len(matched) == 0 {
		return nil, ErrNoMatch
	}
	if rng == nil {
		return matched[rand.IntN(len(matched))], nil
	}
	return matched[rng.IntN(len(matched))], nil
}

// ParseCriteria reads criteria from a query string. Unknown or malformed
// values are ignored rather than rejected.
func ParseCriteria(q url.Values) Criteria {
	c := Criteria{
		Tab:     domain.WatchStatus(strings.TrimSpace(q.Get("tab"))),
		Search:  q.Get("search"),
		Country: strings.TrimSpace(q.Get("country")),
		Sort:    SortKey(strings.TrimSpace(q.Get("sort"))),
	}
	if !c.Tab.Valid() {
		c.Tab = ""
	}
	c.Genres = splitList(q["genres"])
	for _, raw := range splitList(q["decades"]) {
		d, err := strconv.Atoi(strings.TrimSuffix(raw, "s"))
		if err != nil {
			continue
		}
		c.Decades = append(c.Decades, d)
	}
	if raw := q.Get("min_rating"); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil && f > 0 {
			c.MinRating = f
		}
	}
	return c.withDefaults()
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Genres lists every genre present in movies, sorted.
func Genres(movies []*domain.Movie) []string {
	set := make(map[string]struct{})
	for _, m := range movies {
		for _, g := range m.Genres {
			if g != "" {
				set[g] = struct{}{}
			}
		}
	}
	return sortedKeys(set)
}

// Countries lists every known country present in movies, sorted.
func Countries(movies []*domain.Movie) []string {
	set := make(map[string]struct{})
	for _, m := range movies {
		if m.Country != "" && m.Country != domain.UnknownCountry {
			set[m.Country] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Decades lists the decades of every dated movie, newest first.
func Decades(movies []*domain.Movie) []int {
	set := make(map[int]struct{})
	for _, m := range movies {
		if m.Year != nil {
			set[decadeOf(*m.Year)] = struct{}{}
		}
	}
	out := make([]int, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// Facets bundles the option lists a client needs to render its filter panel.
type Facets struct {
	Genres    []string `json:"genres"`
	Countries []string `json:"countries"`
	Decades   []int    `json:"decades"`
}

// BuildFacets computes all option lists in one call.
func BuildFacets(movies []*domain.Movie) Facets {
	return Facets{
		Genres:    Genres(movies),
		Countries: Countries(movies),
		Decades:   Decades(movies),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
