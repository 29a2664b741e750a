package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lib/pq"

	"moviedb/internal/domain"
)

// PlaceholderPoster is shown for search hits without artwork.
const PlaceholderPoster = "https://via.placeholder.com/500x750/241a30/ab9db9?text=No+Poster"

const (
	// MinQueryLength is the shortest query, in runes, that reaches TMDb.
	MinQueryLength = 2

	notAvailable = "N/A"
	noOverview   = "No overview available"
)

// SearchResult is a search hit ready for display.
type SearchResult struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Year     string `json:"year"`
	Poster   string `json:"poster"`
	Overview string `json:"overview"`
	Rating   string `json:"rating"`
}

// Service combines both providers into collection records.
type Service struct {
	tmdb        *TMDbClient
	omdb        *OMDbClient
	imageBase   string
	posterSize  string
	searchLimit int
	logger      *slog.Logger
}

// NewService wires the two clients. Poster URLs are built as
// {imageBase}/{posterSize}{poster_path}.
func NewService(tmdb *TMDbClient, omdb *OMDbClient, imageBase, posterSize string, searchLimit int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if searchLimit <= 0 {
		searchLimit = 12
	}
	return &Service{
		tmdb:        tmdb,
		omdb:        omdb,
		imageBase:   strings.TrimRight(imageBase, "/"),
		posterSize:  posterSize,
		searchLimit: searchLimit,
		logger:      logger,
	}
}

// TMDb exposes the raw TMDb client for the proxy endpoint.
func (s *Service) TMDb() *TMDbClient { return s.tmdb }

// OMDb exposes the raw OMDb client for the proxy endpoint.
func (s *Service) OMDb() *OMDbClient { return s.omdb }

// FullMovieData builds a watchlist record for tmdbID from TMDb details and,
// when TMDb knows the IMDb id, the OMDb rating. A failed rating lookup leaves
// the rating empty.
func (s *Service) FullMovieData(ctx context.Context, tmdbID int64) (*domain.Movie, error) {
	details, err := s.tmdb.Details(ctx, tmdbID)
	if err != nil {
		return nil, fmt.Errorf("fetch details for %d: %w", tmdbID, err)
	}

	var rating *domain.Rating
	if details.IMDbID != "" {
		rating, err = s.omdb.IMDbRating(ctx, details.IMDbID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				s.logger.WarnContext(ctx, "imdb rating lookup failed",
					slog.String("imdb_id", details.IMDbID),
					slog.String("error", err.Error()))
			}
			rating = nil
		}
	}

	m := &domain.Movie{
		TMDbID:     details.ID,
		Title:      details.Title,
		Year:       releaseYear(details.ReleaseDate),
		Genres:     make(pq.StringArray, 0, len(details.Genres)),
		Country:    domain.UnknownCountry,
		IMDbRating: rating,
		Plot:       details.Overview,
		Status:     domain.StatusWatchlist,
	}
	if details.PosterPath != "" {
		p := s.posterURL(details.PosterPath)
		m.PosterPath = &p
	}
	for _, g := range details.Genres {
		m.Genres = append(m.Genres, g.Name)
	}
	if len(details.ProductionCountries) > 0 && details.ProductionCountries[0].Name != "" {
		m.Country = details.ProductionCountries[0].Name
	}
	if details.Runtime > 0 {
		rt := details.Runtime
		m.Runtime = &rt
	}
	return m, nil
}

// Search returns at most the configured number of formatted hits. Queries
// shorter than MinQueryLength return nothing without calling TMDb.
func (s *Service) Search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return []SearchResult{}, nil
	}
	hits, err := s.tmdb.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(hits) > s.searchLimit {
		hits = hits[:s.searchLimit]
	}
	out := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, s.FormatSearchResult(h))
	}
	return out, nil
}

// FormatSearchResult prepares a TMDb search hit for display.
func (s *Service) FormatSearchResult(h TMDbSearchResult) SearchResult {
	r := SearchResult{
		ID:       h.ID,
		Title:    h.Title,
		Year:     notAvailable,
		Poster:   PlaceholderPoster,
		Overview: h.Overview,
		Rating:   notAvailable,
	}
	if y := releaseYear(h.ReleaseDate); y != nil {
		r.Year = strconv.Itoa(*y)
	}
	if h.PosterPath != "" {
		r.Poster = s.posterURL(h.PosterPath)
	}
	if r.Overview == "" {
		r.Overview = noOverview
	}
	if h.VoteAverage != 0 {
		r.Rating = strconv.FormatFloat(h.VoteAverage, 'f', 1, 64)
	}
	return r
}

func (s *Service) posterURL(path string) string {
	return s.imageBase + "/" + s.posterSize + path
}

// releaseYear reads the year of a YYYY-MM-DD date, nil when absent.
func releaseYear(date string) *int {
	if len(date) < 4 {
		return nil
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil || y <= 0 {
		return nil
	}
	return &y
}
