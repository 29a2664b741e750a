package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"moviedb/internal/domain"
)

var (
	ErrMovieNotFound      = errors.New("movie not found")
	ErrMovieAlreadyExists = errors.New("movie is already in the collection")
	ErrPendingNotFound    = errors.New("pending movie not found")
	ErrAlreadyReviewed    = errors.New("suggestion has already been reviewed")
	ErrAlreadySuggested   = errors.New("movie has already been suggested")
	ErrSettingNotFound    = errors.New("setting not found")
)

// MovieStore persists the main collection.
type MovieStore interface {
	Create(ctx context.Context, movie *domain.Movie) error
	GetByID(ctx context.Context, id string) (*domain.Movie, error)
	GetByTMDbID(ctx context.Context, tmdbID int64) (*domain.Movie, error)
	// List returns every movie, newest first by date_added.
	List(ctx context.Context) ([]*domain.Movie, error)
	Update(ctx context.Context, id string, update domain.MovieUpdate) (*domain.Movie, error)
	Delete(ctx context.Context, id string) error
	BatchDelete(ctx context.Context, ids []string) (int, error)
	BatchUpdate(ctx context.Context, ids []string, update domain.MovieUpdate) (int, error)
	Import(ctx context.Context, movies []*domain.Movie) (int, error)
	Clear(ctx context.Context) (int, error)
}

// PendingStore persists visitor suggestions.
type PendingStore interface {
	CreatePending(ctx context.Context, pending *domain.PendingMovie) error
	GetPending(ctx context.Context, id string) (*domain.PendingMovie, error)
	// ListPending filters by status; an empty status lists everything.
	ListPending(ctx context.Context, status domain.SuggestionStatus) ([]*domain.PendingMovie, error)
	// PendingByTMDbID finds a suggestion that is still waiting for review.
	PendingByTMDbID(ctx context.Context, tmdbID int64) (*domain.PendingMovie, error)
	CountPending(ctx context.Context) (int, error)
	Approve(ctx context.Context, id string) (*domain.Movie, error)
	Reject(ctx context.Context, id string) (*domain.PendingMovie, error)
	DeletePending(ctx context.Context, id string) error
}

// SettingsStore holds singleton application settings.
type SettingsStore interface {
	AdminPasswordHash(ctx context.Context) (string, error)
	SetAdminPasswordHash(ctx context.Context, hash string) error
}

// Store is everything the service needs from a backend.
type Store interface {
	MovieStore
	PendingStore
	SettingsStore
	Ping(ctx context.Context) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

const adminPasswordKey = "admin_password_hash"

func newID() string {
	return uuid.NewString()
}

func now() time.Time {
	return time.Now().UTC()
}

// prepareMovie assigns a fresh ID and stamps both timestamps.
func prepareMovie(m *domain.Movie, at time.Time) {
	m.ID = newID()
	m.DateAdded = at
	m.LastModified = at
	if m.Genres == nil {
		m.Genres = []string{}
	}
	if m.Country == "" {
		m.Country = domain.UnknownCountry
	}
	if !m.Status.Valid() {
		m.Status = domain.StatusWatchlist
	}
}

// prepareImported assigns a fresh ID but keeps the file's timestamps when present.
func prepareImported(m *domain.Movie, at time.Time) {
	added, modified := m.DateAdded, m.LastModified
	prepareMovie(m, at)
	if !added.IsZero() {
		m.DateAdded = added.UTC()
	}
	if !modified.IsZero() {
		m.LastModified = modified.UTC()
	}
}

func approvedMovie(p *domain.PendingMovie, at time.Time) *domain.Movie {
	m := p.ToMovie()
	prepareMovie(m, at)
	return m
}
