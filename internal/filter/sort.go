package filter

import (
	"slices"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"moviedb/internal/domain"
)

// SortKey names one of the supported orderings.
type SortKey string

const (
	SortDateWatched SortKey = "date_watched"
	SortAdminRating SortKey = "admin_rating"
	SortIMDbRating  SortKey = "imdb_rating"
	SortDateAdded   SortKey = "date_added"
	SortTitle       SortKey = "title"
	SortYear        SortKey = "year"
)

// Valid reports whether k is a known sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortDateWatched, SortAdminRating, SortIMDbRating, SortDateAdded, SortTitle, SortYear:
		return true
	}
	return false
}

// Sort returns a sorted copy of movies. Ties keep their input order and an
// unknown key returns the copy unchanged.
func Sort(movies []*domain.Movie, key SortKey) []*domain.Movie {
	out := slices.Clone(movies)
	if out == nil {
		out = []*domain.Movie{}
	}

	switch key {
	case SortDateWatched:
		slices.SortStableFunc(out, func(a, b *domain.Movie) int {
			return watchedAt(b).Compare(watchedAt(a))
		})
	case SortAdminRating:
		slices.SortStableFunc(out, func(a, b *domain.Movie) int {
			return compareFloat(adminRating(b), adminRating(a))
		})
	case SortIMDbRating:
		slices.SortStableFunc(out, func(a, b *domain.Movie) int {
			return compareFloat(imdbRating(b), imdbRating(a))
		})
	case SortDateAdded:
		slices.SortStableFunc(out, func(a, b *domain.Movie) int {
			return b.DateAdded.Compare(a.DateAdded)
		})
	case SortTitle:
		// Collators keep scratch buffers and are not safe for concurrent use.
		col := collate.New(language.Und, collate.Loose)
		slices.SortStableFunc(out, func(a, b *domain.Movie) int {
			return col.CompareString(a.Title, b.Title)
		})
	case SortYear:
		slices.SortStableFunc(out, func(a, b *domain.Movie) int {
			return yearOf(b) - yearOf(a)
		})
	}
	return out
}

func watchedAt(m *domain.Movie) time.Time {
	if m.DateWatched == nil {
		return time.Unix(0, 0).UTC()
	}
	t, err := time.Parse(domain.DateLayout, *m.DateWatched)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return t
}

func adminRating(m *domain.Movie) float64 {
	if m.AdminRating == nil {
		return 0
	}
	return *m.AdminRating
}

func imdbRating(m *domain.Movie) float64 {
	if m.IMDbRating == nil {
		return 0
	}
	return float64(*m.IMDbRating)
}

func yearOf(m *domain.Movie) int {
	if m.Year == nil {
		return 0
	}
	return *m.Year
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
