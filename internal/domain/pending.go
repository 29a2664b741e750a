package domain

import (
	"time"

	"github.com/lib/pq"
)

// SuggestionStatus is the moderation state of a public suggestion.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionApproved SuggestionStatus = "approved"
	SuggestionRejected SuggestionStatus = "rejected"
)

// PendingMovie is a movie suggested by a visitor, waiting for the admin.
type PendingMovie struct {
	ID               string           `json:"id" db:"id" bson:"_id"`
	TMDbID           int64            `json:"tmdb_id" db:"tmdb_id" bson:"tmdb_id"`
	Title            string           `json:"title" db:"title" bson:"title"`
	Year             *int             `json:"year" db:"year" bson:"year"`
	PosterPath       *string          `json:"poster_path" db:"poster_path" bson:"poster_path"`
	Genres           pq.StringArray   `json:"genres" db:"genres" bson:"genres"`
	Country          string           `json:"country" db:"country" bson:"country"`
	IMDbRating       *Rating          `json:"imdb_rating" db:"imdb_rating" bson:"imdb_rating"`
	Plot             string           `json:"plot" db:"plot" bson:"plot"`
	Runtime          *int             `json:"runtime" db:"runtime" bson:"runtime"`
	AdminRating      *float64         `json:"admin_rating" db:"admin_rating" bson:"admin_rating"`
	LetterboxdRating *string          `json:"letterboxd_rating" db:"letterboxd_rating" bson:"letterboxd_rating"`
	Notes            string           `json:"notes" db:"notes" bson:"notes"`
	DateWatched      *string          `json:"date_watched" db:"date_watched" bson:"date_watched"`
	RequestedStatus  WatchStatus      `json:"requested_status" db:"requested_status" bson:"requested_status"`
	Status           SuggestionStatus `json:"status" db:"status" bson:"status"`
	DateSuggested    time.Time        `json:"date_suggested" db:"date_suggested" bson:"date_suggested"`
	ApprovedAt       *time.Time       `json:"approved_at,omitempty" db:"approved_at" bson:"approved_at,omitempty"`
	RejectedAt       *time.Time       `json:"rejected_at,omitempty" db:"rejected_at" bson:"rejected_at,omitempty"`
}

// NewPendingFromMovie wraps the content of m into a fresh pending suggestion.
// The caller assigns ID and DateSuggested.
func NewPendingFromMovie(m *Movie) *PendingMovie {
	c := m.Clone()
	return &PendingMovie{
		TMDbID:           c.TMDbID,
		Title:            c.Title,
		Year:             c.Year,
		PosterPath:       c.PosterPath,
		Genres:           c.Genres,
		Country:          c.Country,
		IMDbRating:       c.IMDbRating,
		Plot:             c.Plot,
		Runtime:          c.Runtime,
		AdminRating:      c.AdminRating,
		LetterboxdRating: c.LetterboxdRating,
		Notes:            c.Notes,
		DateWatched:      c.DateWatched,
		RequestedStatus:  c.Status,
		Status:           SuggestionPending,
	}
}

// ToMovie copies the content fields into a new collection record.
// ID and timestamps are left for the store to assign.
func (p *PendingMovie) ToMovie() *Movie {
	m := &Movie{
		TMDbID:           p.TMDbID,
		Title:            p.Title,
		Year:             p.Year,
		PosterPath:       p.PosterPath,
		Genres:           p.Genres,
		Country:          p.Country,
		IMDbRating:       p.IMDbRating,
		Plot:             p.Plot,
		Runtime:          p.Runtime,
		AdminRating:      p.AdminRating,
		LetterboxdRating: p.LetterboxdRating,
		Notes:            p.Notes,
		DateWatched:      p.DateWatched,
		Status:           p.RequestedStatus,
	}
	if !m.Status.Valid() {
		m.Status = StatusWatchlist
	}
	return m.Clone()
}

// Clone returns a deep copy of p.
func (p *PendingMovie) Clone() *PendingMovie {
	if p == nil {
		return nil
	}
	c := *p
	inner := p.ToMovie()
	c.Year, c.PosterPath, c.Genres = inner.Year, inner.PosterPath, inner.Genres
	c.IMDbRating, c.Runtime, c.AdminRating = inner.IMDbRating, inner.Runtime, inner.AdminRating
	c.LetterboxdRating, c.DateWatched = inner.LetterboxdRating, inner.DateWatched
	if p.ApprovedAt != nil {
		t := *p.ApprovedAt
		c.ApprovedAt = &t
	}
	if p.RejectedAt != nil {
		t := *p.RejectedAt
		c.RejectedAt = &t
	}
	return &c
}
