package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.HTTPPort))
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("GRPC_PORT must be between 0 and 65535, got %d", c.Server.GRPCPort))
	}
	if c.Server.GRPCPort != 0 && c.Server.GRPCPort == c.Server.HTTPPort {
		errs = append(errs, errors.New("GRPC_PORT must differ from HTTP_PORT"))
	}

	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	case "mongo":
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORE_DRIVER=mongo"))
		}
		if c.Store.MongoDatabase == "" {
			errs = append(errs, errors.New("MONGO_DATABASE is required when STORE_DRIVER=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be one of memory, postgres, mongo; got %q", c.Store.Driver))
	}

	for name, raw := range map[string]string{"TMDB_BASE_URL": c.TMDb.BaseURL, "OMDB_BASE_URL": c.OMDb.BaseURL, "IMAGE_BASE_URL": c.UI.ImageBaseURL} {
		if err := validateHTTPURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s is invalid: %w", name, err))
		}
	}

	if c.Metadata.CacheTTL < 0 {
		errs = append(errs, errors.New("METADATA_CACHE_TTL cannot be negative"))
	}
	if c.Metadata.SearchLimit < 1 {
		errs = append(errs, errors.New("SEARCH_LIMIT must be at least 1"))
	}
	if c.Auth.SessionTimeout <= 0 {
		errs = append(errs, errors.New("SESSION_TIMEOUT must be positive"))
	}
	if !c.Security.RateLimitDisabled && (c.Security.RateLimitRequests < 1 || c.Security.RateLimitWindow <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive unless DISABLE_RATE_LIMIT=true"))
	}
	if c.UI.MoviesPerPage < 1 || c.UI.MoviesPerPage > 100 {
		errs = append(errs, fmt.Errorf("MOVIES_PER_PAGE must be between 1 and 100, got %d", c.UI.MoviesPerPage))
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Logging.Format); f != "json" && f != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Warnings lists settings that degrade the service without preventing startup.
func (c *Config) Warnings() []string {
	var w []string
	if c.TMDb.APIKey == "" {
		w = append(w, "TMDB_API_KEY is not set; search, lookup and /api/tmdb will fail")
	}
	if c.OMDb.APIKey == "" {
		w = append(w, "OMDB_API_KEY is not set; IMDb ratings and /api/omdb will be unavailable")
	}
	if c.Auth.AdminPasswordHash == "" {
		w = append(w, "ADMIN_PASSWORD_HASH is not set; admin login only works once a hash is stored")
	}
	if c.Auth.JWTSecret == "" {
		w = append(w, "JWT_SECRET_KEY is not set; a random key is used and sessions end on restart")
	} else if len(c.Auth.JWTSecret) < 32 {
		w = append(w, "JWT_SECRET_KEY is shorter than 32 bytes")
	}
	return w
}

// ParseLevel converts a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", level)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is missing")
	}
	return nil
}
