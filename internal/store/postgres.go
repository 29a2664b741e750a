package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"moviedb/internal/domain"
)

const movieColumns = `id, tmdb_id, title, year, poster_path, genres, country, imdb_rating, plot, runtime,
	admin_rating, letterboxd_rating, notes, date_watched, status, date_added, last_modified`

const pendingColumns = `id, tmdb_id, title, year, poster_path, genres, country, imdb_rating, plot, runtime,
	admin_rating, letterboxd_rating, notes, date_watched, requested_status, status, date_suggested,
	approved_at, rejected_at`

const insertMovieQuery = `INSERT INTO movies (` + movieColumns + `)
	VALUES (:id, :tmdb_id, :title, :year, :poster_path, :genres, :country, :imdb_rating, :plot, :runtime,
	:admin_rating, :letterboxd_rating, :notes, :date_watched, :status, :date_added, :last_modified)`

const updateMovieQuery = `UPDATE movies SET admin_rating = :admin_rating, letterboxd_rating = :letterboxd_rating,
	status = :status, date_watched = :date_watched, notes = :notes, last_modified = :last_modified
	WHERE id = :id`

const schema = `
CREATE TABLE IF NOT EXISTS movies (
	id                TEXT PRIMARY KEY,
	tmdb_id           BIGINT NOT NULL,
	title             TEXT NOT NULL,
	year              INTEGER,
	poster_path       TEXT,
	genres            TEXT[] NOT NULL DEFAULT '{}',
	country           TEXT NOT NULL DEFAULT 'Unknown',
	imdb_rating       DOUBLE PRECISION,
	plot              TEXT NOT NULL DEFAULT '',
	runtime           INTEGER,
	admin_rating      DOUBLE PRECISION,
	letterboxd_rating TEXT,
	notes             TEXT NOT NULL DEFAULT '',
	date_watched      TEXT,
	status            TEXT NOT NULL,
	date_added        TIMESTAMPTZ NOT NULL,
	last_modified     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS movies_tmdb_id_idx ON movies (tmdb_id);
CREATE INDEX IF NOT EXISTS movies_date_added_idx ON movies (date_added DESC);

CREATE TABLE IF NOT EXISTS pending_movies (
	id                TEXT PRIMARY KEY,
	tmdb_id           BIGINT NOT NULL,
	title             TEXT NOT NULL,
	year              INTEGER,
	poster_path       TEXT,
	genres            TEXT[] NOT NULL DEFAULT '{}',
	country           TEXT NOT NULL DEFAULT 'Unknown',
	imdb_rating       DOUBLE PRECISION,
	plot              TEXT NOT NULL DEFAULT '',
	runtime           INTEGER,
	admin_rating      DOUBLE PRECISION,
	letterboxd_rating TEXT,
	notes             TEXT NOT NULL DEFAULT '',
	date_watched      TEXT,
	requested_status  TEXT NOT NULL,
	status            TEXT NOT NULL,
	date_suggested    TIMESTAMPTZ NOT NULL,
	approved_at       TIMESTAMPTZ,
	rejected_at       TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS pending_movies_open_tmdb_id_idx ON pending_movies (tmdb_id) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore wraps an open connection pool.
func NewPostgresStore(db *sqlx.DB, logger *slog.Logger) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("database connection (db) cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

// Migrate creates the tables and indexes when they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		s.logger.ErrorContext(ctx, "Failed to apply schema", slog.String("error", err.Error()))
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.logger.InfoContext(ctx, "Database schema is up to date")
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction and commits when fn returns nil.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// lockTMDbID serialises writers that check and insert the same catalog id.
func lockTMDbID(ctx context.Context, tx *sqlx.Tx, tmdbID int64) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, tmdbID); err != nil {
		return fmt.Errorf("failed to lock tmdb id %d: %w", tmdbID, err)
	}
	return nil
}

func movieExists(ctx context.Context, tx *sqlx.Tx, tmdbID int64) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM movies WHERE tmdb_id = $1)`, tmdbID)
	if err != nil {
		return false, fmt.Errorf("failed to check tmdb id %d: %w", tmdbID, err)
	}
	return exists, nil
}

func (s *PostgresStore) Create(ctx context.Context, movie *domain.Movie) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockTMDbID(ctx, tx, movie.TMDbID); err != nil {
			return err
		}
		exists, err := movieExists(ctx, tx, movie.TMDbID)
		if err != nil {
			return err
		}
		if exists {
			return ErrMovieAlreadyExists
		}
		prepareMovie(movie, now())
		_, err = tx.NamedExecContext(ctx, insertMovieQuery, movie)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrMovieAlreadyExists) {
			s.logger.WarnContext(ctx, "Movie already in collection", slog.Int64("tmdbID", movie.TMDbID))
			return err
		}
		s.logger.ErrorContext(ctx, "Failed to create movie in DB", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create movie: %w", err)
	}
	s.logger.InfoContext(ctx, "Movie created successfully in DB", slog.String("movieID", movie.ID))
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	var movie domain.Movie
	err := s.db.GetContext(ctx, &movie, `SELECT `+movieColumns+` FROM movies WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to get movie by ID from DB", slog.String("movieID", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get movie by ID: %w", err)
	}
	return &movie, nil
}

func (s *PostgresStore) GetByTMDbID(ctx context.Context, tmdbID int64) (*domain.Movie, error) {
	var movie domain.Movie
	query := `SELECT ` + movieColumns + ` FROM movies WHERE tmdb_id = $1 ORDER BY date_added LIMIT 1`
	if err := s.db.GetContext(ctx, &movie, query, tmdbID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, fmt.Errorf("failed to get movie by tmdb id: %w", err)
	}
	return &movie, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*domain.Movie, error) {
	movies := []*domain.Movie{}
	query := `SELECT ` + movieColumns + ` FROM movies ORDER BY date_added DESC, id`
	if err := s.db.SelectContext(ctx, &movies, query); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list movies from DB", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	return movies, nil
}

// lockMovies loads the given rows FOR UPDATE and fails unless every id exists.
func lockMovies(ctx context.Context, tx *sqlx.Tx, ids []string) ([]*domain.Movie, error) {
	movies := []*domain.Movie{}
	query := `SELECT ` + movieColumns + ` FROM movies WHERE id = ANY($1) FOR UPDATE`
	if err := tx.SelectContext(ctx, &movies, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to load movies: %w", err)
	}
	if len(movies) != len(ids) {
		return nil, ErrMovieNotFound
	}
	return movies, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, update domain.MovieUpdate) (*domain.Movie, error) {
	var updated *domain.Movie
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		movies, err := lockMovies(ctx, tx, []string{id})
		if err != nil {
			return err
		}
		updated = movies[0]
		update.ApplyTo(updated)
		updated.LastModified = now()
		_, err = tx.NamedExecContext(ctx, updateMovieQuery, updated)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrMovieNotFound) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Failed to update movie in DB", slog.String("movieID", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to update movie: %w", err)
	}
	s.logger.InfoContext(ctx, "Movie updated successfully in DB", slog.String("movieID", id))
	return updated, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM movies WHERE id = $1`, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete movie in DB", slog.String("movieID", id), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete movie: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrMovieNotFound
	}
	s.logger.InfoContext(ctx, "Movie deleted from DB", slog.String("movieID", id))
	return nil
}

func (s *PostgresStore) BatchDelete(ctx context.Context, ids []string) (int, error) {
	ids = uniqueIDs(ids)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM movies WHERE id = ANY($1)`, pq.Array(ids))
		if err != nil {
			return err
		}
		if n, _ := result.RowsAffected(); int(n) != len(ids) {
			return ErrMovieNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrMovieNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to batch delete movies: %w", err)
	}
	s.logger.InfoContext(ctx, "Movies deleted from DB", slog.Int("count", len(ids)))
	return len(ids), nil
}

func (s *PostgresStore) BatchUpdate(ctx context.Context, ids []string, update domain.MovieUpdate) (int, error) {
	ids = uniqueIDs(ids)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		movies, err := lockMovies(ctx, tx, ids)
		if err != nil {
			return err
		}
		at := now()
		for _, m := range movies {
			update.ApplyTo(m)
			m.LastModified = at
			if _, err := tx.NamedExecContext(ctx, updateMovieQuery, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrMovieNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to batch update movies: %w", err)
	}
	s.logger.InfoContext(ctx, "Movies updated in DB", slog.Int("count", len(ids)))
	return len(ids), nil
}

func (s *PostgresStore) Import(ctx context.Context, movies []*domain.Movie) (int, error) {
	at := now()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, insertMovieQuery)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, in := range movies {
			m := in.Clone()
			prepareImported(m, at)
			if _, err := stmt.ExecContext(ctx, m); err != nil {
				return fmt.Errorf("insert %q: %w", m.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to import movies", slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to import movies: %w", err)
	}
	s.logger.InfoContext(ctx, "Movies imported into DB", slog.Int("count", len(movies)))
	return len(movies), nil
}

func (s *PostgresStore) Clear(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM movies`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear movies: %w", err)
	}
	n, _ := result.RowsAffected()
	s.logger.WarnContext(ctx, "Collection cleared", slog.Int64("count", n))
	return int(n), nil
}

func (s *PostgresStore) CreatePending(ctx context.Context, pending *domain.PendingMovie) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockTMDbID(ctx, tx, pending.TMDbID); err != nil {
			return err
		}
		exists, err := movieExists(ctx, tx, pending.TMDbID)
		if err != nil {
			return err
		}
		if exists {
			return ErrMovieAlreadyExists
		}
		pending.ID = newID()
		pending.Status = domain.SuggestionPending
		pending.DateSuggested = now()
		pending.ApprovedAt, pending.RejectedAt = nil, nil
		if pending.Genres == nil {
			pending.Genres = []string{}
		}
		_, err = tx.NamedExecContext(ctx, `INSERT INTO pending_movies (`+pendingColumns+`)
			VALUES (:id, :tmdb_id, :title, :year, :poster_path, :genres, :country, :imdb_rating, :plot, :runtime,
			:admin_rating, :letterboxd_rating, :notes, :date_watched, :requested_status, :status, :date_suggested,
			:approved_at, :rejected_at)`, pending)
		return err
	})
	if err != nil {
		var pqErr *pq.Error
		switch {
		case errors.As(err, &pqErr) && pqErr.Code == "23505":
			s.logger.WarnContext(ctx, "Suggestion already pending (unique constraint violation in DB)",
				slog.Int64("tmdbID", pending.TMDbID), slog.String("constraint", pqErr.Constraint))
			return ErrAlreadySuggested
		case errors.Is(err, ErrMovieAlreadyExists):
			return err
		}
		s.logger.ErrorContext(ctx, "Failed to create suggestion in DB", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create suggestion: %w", err)
	}
	s.logger.InfoContext(ctx, "Suggestion stored in DB", slog.String("pendingID", pending.ID))
	return nil
}

func (s *PostgresStore) GetPending(ctx context.Context, id string) (*domain.PendingMovie, error) {
	var p domain.PendingMovie
	if err := s.db.GetContext(ctx, &p, `SELECT `+pendingColumns+` FROM pending_movies WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPendingNotFound
		}
		return nil, fmt.Errorf("failed to get suggestion: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) ListPending(ctx context.Context, status domain.SuggestionStatus) ([]*domain.PendingMovie, error) {
	pending := []*domain.PendingMovie{}
	var (
		conditions []string
		args       []interface{}
	)
	if status != "" {
		conditions = append(conditions, "status = $1")
		args = append(args, status)
	}
	query := `SELECT ` + pendingColumns + ` FROM pending_movies`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date_suggested DESC, id"

	if err := s.db.SelectContext(ctx, &pending, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list suggestions from DB", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	return pending, nil
}

func (s *PostgresStore) PendingByTMDbID(ctx context.Context, tmdbID int64) (*domain.PendingMovie, error) {
	var p domain.PendingMovie
	query := `SELECT ` + pendingColumns + ` FROM pending_movies WHERE tmdb_id = $1 AND status = $2`
	if err := s.db.GetContext(ctx, &p, query, tmdbID, domain.SuggestionPending); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPendingNotFound
		}
		return nil, fmt.Errorf("failed to get suggestion by tmdb id: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM pending_movies WHERE status = $1`, domain.SuggestionPending); err != nil {
		return 0, fmt.Errorf("failed to count suggestions: %w", err)
	}
	return n, nil
}

func lockPending(ctx context.Context, tx *sqlx.Tx, id string) (*domain.PendingMovie, error) {
	var p domain.PendingMovie
	if err := tx.GetContext(ctx, &p, `SELECT `+pendingColumns+` FROM pending_movies WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPendingNotFound
		}
		return nil, err
	}
	if p.Status != domain.SuggestionPending {
		return nil, ErrAlreadyReviewed
	}
	return &p, nil
}

func isReviewError(err error) bool {
	return errors.Is(err, ErrPendingNotFound) || errors.Is(err, ErrAlreadyReviewed) || errors.Is(err, ErrMovieAlreadyExists)
}

func (s *PostgresStore) Approve(ctx context.Context, id string) (*domain.Movie, error) {
	var movie *domain.Movie
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		p, err := lockPending(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := lockTMDbID(ctx, tx, p.TMDbID); err != nil {
			return err
		}
		exists, err := movieExists(ctx, tx, p.TMDbID)
		if err != nil {
			return err
		}
		if exists {
			return ErrMovieAlreadyExists
		}

		at := now()
		movie = approvedMovie(p, at)
		if _, err := tx.NamedExecContext(ctx, insertMovieQuery, movie); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE pending_movies SET status = $1, approved_at = $2 WHERE id = $3`,
			domain.SuggestionApproved, at, id)
		return err
	})
	if err != nil {
		if isReviewError(err) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Failed to approve suggestion", slog.String("pendingID", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to approve suggestion: %w", err)
	}
	s.logger.InfoContext(ctx, "Suggestion approved", slog.String("pendingID", id), slog.String("movieID", movie.ID))
	return movie, nil
}

func (s *PostgresStore) Reject(ctx context.Context, id string) (*domain.PendingMovie, error) {
	var rejected *domain.PendingMovie
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		p, err := lockPending(ctx, tx, id)
		if err != nil {
			return err
		}
		at := now()
		p.Status = domain.SuggestionRejected
		p.RejectedAt = &at
		rejected = p
		_, err = tx.ExecContext(ctx, `UPDATE pending_movies SET status = $1, rejected_at = $2 WHERE id = $3`,
			domain.SuggestionRejected, at, id)
		return err
	})
	if err != nil {
		if isReviewError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to reject suggestion: %w", err)
	}
	s.logger.InfoContext(ctx, "Suggestion rejected", slog.String("pendingID", id))
	return rejected, nil
}

func (s *PostgresStore) DeletePending(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM pending_movies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete suggestion: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrPendingNotFound
	}
	return nil
}

func (s *PostgresStore) AdminPasswordHash(ctx context.Context) (string, error) {
	var hash string
	if err := s.db.GetContext(ctx, &hash, `SELECT value FROM settings WHERE key = $1`, adminPasswordKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSettingNotFound
		}
		return "", fmt.Errorf("failed to read admin password hash: %w", err)
	}
	return hash, nil
}

func (s *PostgresStore) SetAdminPasswordHash(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		adminPasswordKey, hash, now())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to store admin password hash", slog.String("error", err.Error()))
		return fmt.Errorf("failed to store admin password hash: %w", err)
	}
	s.logger.InfoContext(ctx, "Admin password hash updated")
	return nil
}
