package domain

import (
	"time"

	"github.com/lib/pq"
)

// WatchStatus is the tab a movie lives in.
type WatchStatus string

const (
	StatusWatchlist WatchStatus = "watchlist"
	StatusWatched   WatchStatus = "watched"
)

// Valid reports whether s is one of the known watch statuses.
func (s WatchStatus) Valid() bool {
	return s == StatusWatchlist || s == StatusWatched
}

// UnknownCountry is stored when TMDb has no production country for a title.
const UnknownCountry = "Unknown"

// DateLayout is the layout of date_watched values.
const DateLayout = "2006-01-02"

// Movie is a record of the main collection. The validate tags cover
// records that arrive whole, such as imports; an empty status defaults to
// watchlist when stored.
type Movie struct {
	ID               string         `json:"id" db:"id" bson:"_id"`
	TMDbID           int64          `json:"tmdb_id" db:"tmdb_id" bson:"tmdb_id"`
	Title            string         `json:"title" db:"title" bson:"title" validate:"required"`
	Year             *int           `json:"year" db:"year" bson:"year" validate:"omitempty,gte=1888,lte=2100"`
	PosterPath       *string        `json:"poster_path" db:"poster_path" bson:"poster_path"`
	Genres           pq.StringArray `json:"genres" db:"genres" bson:"genres"`
	Country          string         `json:"country" db:"country" bson:"country"`
	IMDbRating       *Rating        `json:"imdb_rating" db:"imdb_rating" bson:"imdb_rating"`
	Plot             string         `json:"plot" db:"plot" bson:"plot"`
	Runtime          *int           `json:"runtime" db:"runtime" bson:"runtime" validate:"omitempty,gte=0"`
	AdminRating      *float64       `json:"admin_rating" db:"admin_rating" bson:"admin_rating" validate:"omitempty,gte=0,lte=10,halfstep"`
	LetterboxdRating *string        `json:"letterboxd_rating" db:"letterboxd_rating" bson:"letterboxd_rating"`
	Notes            string         `json:"notes" db:"notes" bson:"notes"`
	DateWatched      *string        `json:"date_watched" db:"date_watched" bson:"date_watched" validate:"omitempty,datetime=2006-01-02"`
	Status           WatchStatus    `json:"status" db:"status" bson:"status" validate:"omitempty,oneof=watchlist watched"`
	DateAdded        time.Time      `json:"date_added" db:"date_added" bson:"date_added"`
	LastModified     time.Time      `json:"last_modified" db:"last_modified" bson:"last_modified"`
}

// Clone returns a deep copy so callers can't mutate stored state through shared pointers.
func (m *Movie) Clone() *Movie {
	if m == nil {
		return nil
	}
	c := *m
	if m.Genres != nil {
		c.Genres = append(pq.StringArray(nil), m.Genres...)
	}
	c.Year = cloneInt(m.Year)
	c.Runtime = cloneInt(m.Runtime)
	c.PosterPath = cloneString(m.PosterPath)
	c.LetterboxdRating = cloneString(m.LetterboxdRating)
	c.DateWatched = cloneString(m.DateWatched)
	if m.AdminRating != nil {
		v := *m.AdminRating
		c.AdminRating = &v
	}
	if m.IMDbRating != nil {
		v := *m.IMDbRating
		c.IMDbRating = &v
	}
	return &c
}

// EffectiveRating is the admin rating when one was given, otherwise the external rating.
func (m *Movie) EffectiveRating() float64 {
	if m.AdminRating != nil && *m.AdminRating > 0 {
		return *m.AdminRating
	}
	if m.IMDbRating != nil {
		return float64(*m.IMDbRating)
	}
	return 0
}

// MovieUpdate holds the admin-editable fields. Nil pointers are left untouched.
type MovieUpdate struct {
	AdminRating      *float64     `json:"admin_rating,omitempty" validate:"omitempty,gte=0,lte=10,halfstep"`
	LetterboxdRating *string      `json:"letterboxd_rating,omitempty" validate:"omitempty,max=20"`
	Status           *WatchStatus `json:"status,omitempty" validate:"omitempty,oneof=watchlist watched"`
	DateWatched      *string      `json:"date_watched,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes            *string      `json:"notes,omitempty" validate:"omitempty,max=5000"`
	// ClearAdminRating and ClearDateWatched null the field out; JSON null can't be told apart from absence.
	ClearAdminRating bool `json:"clear_admin_rating,omitempty"`
	ClearDateWatched bool `json:"clear_date_watched,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u MovieUpdate) Empty() bool {
	return u.AdminRating == nil && u.LetterboxdRating == nil && u.Status == nil &&
		u.DateWatched == nil && u.Notes == nil && !u.ClearAdminRating && !u.ClearDateWatched
}

// ApplyTo writes the update onto m.
func (u MovieUpdate) ApplyTo(m *Movie) {
	if u.ClearAdminRating {
		m.AdminRating = nil
	} else if u.AdminRating != nil {
		v := *u.AdminRating
		m.AdminRating = &v
	}
	if u.LetterboxdRating != nil {
		m.LetterboxdRating = cloneString(u.LetterboxdRating)
		if *u.LetterboxdRating == "" {
			m.LetterboxdRating = nil
		}
	}
	if u.Status != nil {
		m.Status = *u.Status
	}
	if u.ClearDateWatched {
		m.DateWatched = nil
	} else if u.DateWatched != nil {
		m.DateWatched = cloneString(u.DateWatched)
	}
	if u.Notes != nil {
		m.Notes = *u.Notes
	}
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
