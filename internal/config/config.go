// Package config loads service settings from defaults, an optional YAML file
// and environment variables, in that order of precedence.
package config

import "time"

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	TMDb     ProviderConfig `koanf:"tmdb"`
	OMDb     ProviderConfig `koanf:"omdb"`
	Metadata MetadataConfig `koanf:"metadata"`
	Cache    CacheConfig    `koanf:"cache"`
	Auth     AuthConfig     `koanf:"auth"`
	Security SecurityConfig `koanf:"security"`
	UI       UIConfig       `koanf:"ui"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	HTTPPort        int           `koanf:"http_port"`
	GRPCPort        int           `koanf:"grpc_port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// StaticDir, when set, is served at / for the browser client.
	StaticDir string `koanf:"static_dir"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver        string `koanf:"driver"`
	DatabaseURL   string `koanf:"database_url"`
	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`
}

// ProviderConfig configures one upstream metadata API.
type ProviderConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// MetadataConfig tunes caching and circuit breaking of upstream calls.
type MetadataConfig struct {
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
	SearchLimit     int           `koanf:"search_limit"`
}

// CacheConfig selects Redis when an address is set.
type CacheConfig struct {
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	Prefix        string `koanf:"prefix"`
}

// AuthConfig configures the admin session.
type AuthConfig struct {
	AdminPasswordHash string        `koanf:"admin_password_hash"`
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionSecret     string        `koanf:"session_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	CookieSecure      bool          `koanf:"cookie_secure"`
}

// SecurityConfig holds CORS and rate limiting.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// UIConfig is handed to the browser client through GET /api/config.
type UIConfig struct {
	ImageBaseURL       string `koanf:"image_base_url" json:"image_base_url"`
	PosterSize         string `koanf:"poster_size" json:"poster_size"`
	ToastDurationMS    int    `koanf:"toast_duration_ms" json:"toast_duration_ms"`
	MoviesPerPage      int    `koanf:"movies_per_page" json:"movies_per_page"`
	SearchDebounceMS   int    `koanf:"search_debounce_ms" json:"search_debounce_ms"`
	LogoClicksForAdmin int    `koanf:"logo_clicks_for_admin" json:"logo_clicks_for_admin"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			HTTPPort:        8080,
			GRPCPort:        9092,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver:        "memory",
			MongoDatabase: "moviedb",
		},
		TMDb: ProviderConfig{
			BaseURL: "https://api.themoviedb.org/3",
			Timeout: 10 * time.Second,
		},
		OMDb: ProviderConfig{
			BaseURL: "https://www.omdbapi.com",
			Timeout: 10 * time.Second,
		},
		Metadata: MetadataConfig{
			CacheTTL:        time.Hour,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
			SearchLimit:     12,
		},
		Cache: CacheConfig{
			Prefix: "moviedb:",
		},
		Auth: AuthConfig{
			SessionTimeout: 24 * time.Hour,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
		},
		UI: UIConfig{
			ImageBaseURL:       "https://image.tmdb.org/t/p",
			PosterSize:         "w500",
			ToastDurationMS:    3000,
			MoviesPerPage:      50,
			SearchDebounceMS:   300,
			LogoClicksForAdmin: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
