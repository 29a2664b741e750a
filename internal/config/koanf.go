package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/moviedb/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma separated env values into lists.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"http_host":        "server.host",
	"http_port":        "server.http_port",
	"grpc_port":        "server.grpc_port",
	"read_timeout":     "server.read_timeout",
	"write_timeout":    "server.write_timeout",
	"idle_timeout":     "server.idle_timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"static_dir":       "server.static_dir",

	"store_driver":   "store.driver",
	"database_url":   "store.database_url",
	"mongo_uri":      "store.mongo_uri",
	"mongo_database": "store.mongo_database",

	"tmdb_api_key":  "tmdb.api_key",
	"tmdb_base_url": "tmdb.base_url",
	"tmdb_timeout":  "tmdb.timeout",
	"omdb_api_key":  "omdb.api_key",
	"omdb_base_url": "omdb.base_url",
	"omdb_timeout":  "omdb.timeout",

	"metadata_cache_ttl":        "metadata.cache_ttl",
	"metadata_breaker_failures": "metadata.breaker_failures",
	"metadata_breaker_timeout":  "metadata.breaker_timeout",
	"search_limit":              "metadata.search_limit",

	"redis_addr":     "cache.redis_addr",
	"redis_password": "cache.redis_password",
	"redis_db":       "cache.redis_db",
	"cache_prefix":   "cache.prefix",

	"admin_password_hash": "auth.admin_password_hash",
	"jwt_secret_key":      "auth.jwt_secret",
	"jwt_secret":          "auth.jwt_secret",
	"session_secret":      "auth.session_secret",
	"session_timeout":     "auth.session_timeout",
	"cookie_secure":       "auth.cookie_secure",

	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"image_base_url":        "ui.image_base_url",
	"poster_size":           "ui.poster_size",
	"toast_duration_ms":     "ui.toast_duration_ms",
	"movies_per_page":       "ui.movies_per_page",
	"search_debounce_ms":    "ui.search_debounce_ms",
	"logo_clicks_for_admin": "ui.logo_clicks_for_admin",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

// envTransformFunc maps known environment variables to config paths and
// drops everything else so unrelated variables never leak into the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
