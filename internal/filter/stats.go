package filter

import (
	"math"
	"time"

	"moviedb/internal/domain"
)

// Stats summarises the collection for the header counters.
type Stats struct {
	Watched          int     `json:"watched"`
	Watchlist        int     `json:"watchlist"`
	AverageRating    float64 `json:"average_rating"`
	WatchedThisMonth int     `json:"watched_this_month"`
}

// ComputeStats counts both tabs, averages the admin ratings of watched movies
// and counts the movies watched in now's calendar month.
func ComputeStats(movies []*domain.Movie, now time.Time) Stats {
	var (
		s     Stats
		sum   float64
		rated int
	)
	for _, m := range movies {
		switch m.Status {
		case domain.StatusWatchlist:
			s.Watchlist++
		case domain.StatusWatched:
			s.Watched++
			if m.AdminRating != nil && *m.AdminRating > 0 {
				sum += *m.AdminRating
				rated++
			}
			if m.DateWatched != nil {
				if d, err := time.Parse(domain.DateLayout, *m.DateWatched); err == nil &&
					d.Year() == now.Year() && d.Month() == now.Month() {
					s.WatchedThisMonth++
				}
			}
		}
	}
	if rated > 0 {
		s.AverageRating = math.Round(sum/float64(rated)*10) / 10
	}
	return s
}
