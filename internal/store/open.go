package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/jmoiron/sqlx"

	"moviedb/internal/config"
)

// Open connects the backend named by cfg.Driver and prepares its schema.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		logger.Info("Using in-memory store; data is lost on restart")
		return NewMemoryStore(logger), nil

	case DriverPostgres:
		logger.Info("Connecting to PostgreSQL", slog.String("dsn", redactDSN(cfg.DatabaseURL)))
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		s, err := NewPostgresStore(db, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil

	case DriverMongo:
		logger.Info("Connecting to MongoDB", slog.String("uri", redactDSN(cfg.MongoURI)),
			slog.String("database", cfg.MongoDatabase))
		client, err := ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		s, err := NewMongoStore(client, cfg.MongoDatabase, logger)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// redactDSN hides the password of a connection URL for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
