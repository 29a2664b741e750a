package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPPort != 8080 || cfg.Server.GRPCPort != 9092 {
		t.Errorf("ports = %d/%d", cfg.Server.HTTPPort, cfg.Server.GRPCPort)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Store.Driver = %q, want memory", cfg.Store.Driver)
	}
	if cfg.Auth.SessionTimeout != 24*time.Hour {
		t.Errorf("SessionTimeout = %s, want 24h", cfg.Auth.SessionTimeout)
	}
	if cfg.UI.PosterSize != "w500" || cfg.UI.MoviesPerPage != 50 || cfg.UI.LogoClicksForAdmin != 5 {
		t.Errorf("UI defaults = %+v", cfg.UI)
	}
	if len(cfg.Warnings()) == 0 {
		t.Error("expected warnings for missing API keys")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  http_port: 9000
store:
  driver: postgres
  database_url: postgres://file/db
tmdb:
  api_key: from-file
auth:
  session_timeout: 2h
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("TMDB_API_KEY", "from-env")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SESSION_TIMEOUT", "30m")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPPort != 9000 {
		t.Errorf("HTTPPort = %d, want 9000 from file", cfg.Server.HTTPPort)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.DatabaseURL != "postgres://file/db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.TMDb.APIKey != "from-env" {
		t.Errorf("TMDb.APIKey = %q, env must win over file", cfg.TMDb.APIKey)
	}
	if cfg.Auth.SessionTimeout != 30*time.Minute {
		t.Errorf("SessionTimeout = %s, want 30m", cfg.Auth.SessionTimeout)
	}
	if want := []string{"https://a.example", "https://b.example"}; !slices.Equal(cfg.Security.CORSOrigins, want) {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.Store.Driver = "postgres"
	cfg.Logging.Level = "loud"
	cfg.TMDb.BaseURL = "ftp://example.com"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, fragment := range []string{"HTTP_PORT", "DATABASE_URL", "LOG_LEVEL", "TMDB_BASE_URL"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("Validate() error %q does not mention %s", err, fragment)
		}
	}
}

func TestValidateStoreDrivers(t *testing.T) {
	tests := []struct {
		name    string
		store   StoreConfig
		wantErr bool
	}{
		{"memory", StoreConfig{Driver: "memory"}, false},
		{"postgres", StoreConfig{Driver: "postgres", DatabaseURL: "postgres://x"}, false},
		{"mongo", StoreConfig{Driver: "mongo", MongoURI: "mongodb://x", MongoDatabase: "moviedb"}, false},
		{"mongo without uri", StoreConfig{Driver: "mongo", MongoDatabase: "moviedb"}, true},
		{"unknown", StoreConfig{Driver: "sqlite"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Store = tt.store
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
