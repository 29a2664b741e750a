package store

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"moviedb/internal/domain"
)

// MemoryStore keeps everything in maps guarded by one mutex. Every read
// returns copies so callers never alias stored records.
type MemoryStore struct {
	mu       sync.RWMutex
	movies   map[string]*domain.Movie
	pending  map[string]*domain.PendingMovie
	settings map[string]string
	logger   *slog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MemoryStore{
		movies:   make(map[string]*domain.Movie),
		pending:  make(map[string]*domain.PendingMovie),
		settings: make(map[string]string),
		logger:   logger,
	}
}

func (s *MemoryStore) findByTMDbID(tmdbID int64) *domain.Movie {
	for _, m := range s.movies {
		if m.TMDbID == tmdbID {
			return m
		}
	}
	return nil
}

func (s *MemoryStore) Create(ctx context.Context, movie *domain.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findByTMDbID(movie.TMDbID) != nil {
		s.logger.WarnContext(ctx, "Movie already in collection", slog.Int64("tmdbID", movie.TMDbID))
		return ErrMovieAlreadyExists
	}
	prepareMovie(movie, now())
	s.movies[movie.ID] = movie.Clone()
	s.logger.DebugContext(ctx, "Movie created", slog.String("movieID", movie.ID), slog.String("title", movie.Title))
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*domain.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.movies[id]
	if !ok {
		return nil, ErrMovieNotFound
	}
	return m.Clone(), nil
}

func (s *MemoryStore) GetByTMDbID(_ context.Context, tmdbID int64) (*domain.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m := s.findByTMDbID(tmdbID); m != nil {
		return m.Clone(), nil
	}
	return nil, ErrMovieNotFound
}

func (s *MemoryStore) List(_ context.Context) ([]*domain.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Movie, 0, len(s.movies))
	for _, m := range s.movies {
		out = append(out, m.Clone())
	}
	slices.SortStableFunc(out, func(a, b *domain.Movie) int {
		if c := b.DateAdded.Compare(a.DateAdded); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, update domain.MovieUpdate) (*domain.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.movies[id]
	if !ok {
		return nil, ErrMovieNotFound
	}
	update.ApplyTo(m)
	m.LastModified = now()
	s.logger.DebugContext(ctx, "Movie updated", slog.String("movieID", id))
	return m.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.movies[id]; !ok {
		return ErrMovieNotFound
	}
	delete(s.movies, id)
	s.logger.DebugContext(ctx, "Movie deleted", slog.String("movieID", id))
	return nil
}

func (s *MemoryStore) BatchDelete(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids = uniqueIDs(ids)
	for _, id := range ids {
		if _, ok := s.movies[id]; !ok {
			return 0, ErrMovieNotFound
		}
	}
	for _, id := range ids {
		delete(s.movies, id)
	}
	return len(ids), nil
}

func (s *MemoryStore) BatchUpdate(_ context.Context, ids []string, update domain.MovieUpdate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids = uniqueIDs(ids)
	for _, id := range ids {
		if _, ok := s.movies[id]; !ok {
			return 0, ErrMovieNotFound
		}
	}
	at := now()
	for _, id := range ids {
		m := s.movies[id]
		update.ApplyTo(m)
		m.LastModified = at
	}
	return len(ids), nil
}

func (s *MemoryStore) Import(ctx context.Context, movies []*domain.Movie) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := now()
	for _, in := range movies {
		m := in.Clone()
		prepareImported(m, at)
		s.movies[m.ID] = m
	}
	s.logger.InfoContext(ctx, "Movies imported", slog.Int("count", len(movies)))
	return len(movies), nil
}

func (s *MemoryStore) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.movies)
	s.movies = make(map[string]*domain.Movie)
	s.logger.WarnContext(ctx, "Collection cleared", slog.Int("count", n))
	return n, nil
}

func (s *MemoryStore) CreatePending(ctx context.Context, pending *domain.PendingMovie) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findByTMDbID(pending.TMDbID) != nil {
		return ErrMovieAlreadyExists
	}
	for _, p := range s.pending {
		if p.TMDbID == pending.TMDbID && p.Status == domain.SuggestionPending {
			return ErrAlreadySuggested
		}
	}
	pending.ID = newID()
	pending.Status = domain.SuggestionPending
	pending.DateSuggested = now()
	pending.ApprovedAt, pending.RejectedAt = nil, nil
	if pending.Genres == nil {
		pending.Genres = []string{}
	}
	s.pending[pending.ID] = pending.Clone()
	s.logger.DebugContext(ctx, "Suggestion stored", slog.String("pendingID", pending.ID), slog.String("title", pending.Title))
	return nil
}

func (s *MemoryStore) GetPending(_ context.Context, id string) (*domain.PendingMovie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pending[id]
	if !ok {
		return nil, ErrPendingNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) ListPending(_ context.Context, status domain.SuggestionStatus) ([]*domain.PendingMovie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.PendingMovie, 0)
	for _, p := range s.pending {
		if status == "" || p.Status == status {
			out = append(out, p.Clone())
		}
	}
	slices.SortStableFunc(out, func(a, b *domain.PendingMovie) int {
		if c := b.DateSuggested.Compare(a.DateSuggested); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) PendingByTMDbID(_ context.Context, tmdbID int64) (*domain.PendingMovie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.pending {
		if p.TMDbID == tmdbID && p.Status == domain.SuggestionPending {
			return p.Clone(), nil
		}
	}
	return nil, ErrPendingNotFound
}

func (s *MemoryStore) CountPending(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, p := range s.pending {
		if p.Status == domain.SuggestionPending {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Approve(ctx context.Context, id string) (*domain.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[id]
	if !ok {
		return nil, ErrPendingNotFound
	}
	if p.Status != domain.SuggestionPending {
		return nil, ErrAlreadyReviewed
	}
	if s.findByTMDbID(p.TMDbID) != nil {
		return nil, ErrMovieAlreadyExists
	}

	at := now()
	m := approvedMovie(p, at)
	s.movies[m.ID] = m
	p.Status = domain.SuggestionApproved
	p.ApprovedAt = &at
	s.logger.InfoContext(ctx, "Suggestion approved", slog.String("pendingID", id), slog.String("movieID", m.ID))
	return m.Clone(), nil
}

func (s *MemoryStore) Reject(ctx context.Context, id string) (*domain.PendingMovie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[id]
	if !ok {
		return nil, ErrPendingNotFound
	}
	if p.Status != domain.SuggestionPending {
		return nil, ErrAlreadyReviewed
	}
	at := now()
	p.Status = domain.SuggestionRejected
	p.RejectedAt = &at
	s.logger.InfoContext(ctx, "Suggestion rejected", slog.String("pendingID", id))
	return p.Clone(), nil
}

func (s *MemoryStore) DeletePending(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[id]; !ok {
		return ErrPendingNotFound
	}
	delete(s.pending, id)
	return nil
}

func (s *MemoryStore) AdminPasswordHash(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.settings[adminPasswordKey]
	if !ok {
		return "", ErrSettingNotFound
	}
	return h, nil
}

func (s *MemoryStore) SetAdminPasswordHash(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[adminPasswordKey] = hash
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

