package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Service.Name != "movieship" {
		t.Errorf("expected service name movieship, got %s", cfg.Service.Name)
	}
	if cfg.Database.URL != "mongodb://localhost:27017" || cfg.Database.DatabaseName != "movieship" {
		t.Errorf("unexpected database defaults %+v", cfg.Database)
	}
	if cfg.Database.OperationTimeout != 5*time.Second {
		t.Errorf("expected operation timeout 5s, got %v", cfg.Database.OperationTimeout)
	}
	if cfg.Observability.LogLevel != "info" || cfg.Observability.LogFormat != "json" {
		t.Errorf("unexpected observability defaults %+v", cfg.Observability)
	}
	if cfg.Posters.Enabled {
		t.Error("expected posters to be disabled by default")
	}
	if cfg.Posters.PlaceholderURL != "https://placehold.co/332x249" {
		t.Errorf("unexpected placeholder %s", cfg.Posters.PlaceholderURL)
	}
	if err := NewViperLoader("", "TEST").Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestViperLoader_Load_Defaults(t *testing.T) {
	cfg, err := NewViperLoader("", "MOVIESHIP_DEFAULTS_TEST").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.ConnectTimeout != 10*time.Second {
		t.Errorf("expected connect timeout 10s, got %v", cfg.Database.ConnectTimeout)
	}
	if cfg.Posters.MaxFailures != 5 {
		t.Errorf("expected max failures 5, got %d", cfg.Posters.MaxFailures)
	}
}

func TestViperLoader_Load_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
service:
  environment: staging
database:
  url: mongodb://db:27017
  database_name: films
  operation_timeout: 2s
observability:
  log_level: debug
posters:
  enabled: true
  api_key: from-file
  rate_per_second: 2.5
`)

	t.Setenv("MOVIESHIP_DB_DATABASE_NAME", "films_env")
	t.Setenv("MOVIESHIP_OMDB_API_KEY", "from-env")

	cfg, err := NewViperLoader(path, "MOVIESHIP").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Service.Environment != "staging" {
		t.Errorf("expected environment from file, got %s", cfg.Service.Environment)
	}
	if cfg.Database.URL != "mongodb://db:27017" {
		t.Errorf("expected url from file, got %s", cfg.Database.URL)
	}
	if cfg.Database.DatabaseName != "films_env" {
		t.Errorf("expected env to override file, got %s", cfg.Database.DatabaseName)
	}
	if cfg.Database.OperationTimeout != 2*time.Second {
		t.Errorf("expected 2s operation timeout, got %v", cfg.Database.OperationTimeout)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected debug log level, got %s", cfg.Observability.LogLevel)
	}
	if cfg.Posters.APIKey != "from-env" || cfg.Posters.RatePerSecond != 2.5 {
		t.Errorf("unexpected posters %+v", cfg.Posters)
	}
	if cfg.Database.ConnectTimeout != 10*time.Second {
		t.Errorf("expected default connect timeout to survive, got %v", cfg.Database.ConnectTimeout)
	}
}

func TestViperLoader_Load_MissingFile(t *testing.T) {
	_, err := NewViperLoader(filepath.Join(t.TempDir(), "absent.yaml"), "MOVIESHIP").Load()
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestViperLoader_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing url", mutate: func(c *Config) { c.Database.URL = "" }, wantErr: "database.url is required"},
		{name: "wrong scheme", mutate: func(c *Config) { c.Database.URL = "postgres://x" }, wantErr: "mongodb or mongodb+srv"},
		{name: "srv scheme", mutate: func(c *Config) { c.Database.URL = "mongodb+srv://cluster.example" }},
		{name: "missing database", mutate: func(c *Config) { c.Database.DatabaseName = "" }, wantErr: "database.database_name is required"},
		{name: "log level", mutate: func(c *Config) { c.Observability.LogLevel = "trace" }, wantErr: "invalid observability.log_level"},
		{name: "log format", mutate: func(c *Config) { c.Observability.LogFormat = "xml" }, wantErr: "invalid observability.log_format"},
		{name: "sample rate", mutate: func(c *Config) { c.Observability.TracingSampleRate = 2 }, wantErr: "tracing_sample_rate"},
		{name: "tracing endpoint", mutate: func(c *Config) { c.Observability.TracingEnabled = true }, wantErr: "tracing_endpoint is required"},
		{name: "posters api key", mutate: func(c *Config) { c.Posters.Enabled = true }, wantErr: "posters.api_key is required"},
		{name: "posters url", mutate: func(c *Config) {
			c.Posters.Enabled = true
			c.Posters.APIKey = "k"
			c.Posters.BaseURL = "not a url"
		}, wantErr: "posters.base_url"},
		{name: "cache scheme", mutate: func(c *Config) {
			c.Posters.Enabled = true
			c.Posters.APIKey = "k"
			c.Posters.CacheURL = "memcached://localhost:11211"
		}, wantErr: "posters.cache_url"},
		{name: "cache ttl", mutate: func(c *Config) {
			c.Posters.Enabled = true
			c.Posters.APIKey = "k"
			c.Posters.CacheURL = "redis://localhost:6379/0"
			c.Posters.CacheTTL = 0
		}, wantErr: "posters.cache_ttl"},
		{name: "posters disabled ignores key", mutate: func(c *Config) { c.Posters.BaseURL = "" }},
		{name: "issuer without secret", mutate: func(c *Config) { c.Auth.Issuer = "movieship" }, wantErr: "require auth.hmac_secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := NewViperLoader("", "TEST").Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestViperLoader_Validate_JoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.URL = ""
	cfg.Observability.LogLevel = "loud"

	err := NewViperLoader("", "TEST").Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"database.url", "log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

// Property: an environment value always wins over the file value for the same key.
func TestProperty_EnvOverridesFile(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "database:\n  database_name: from_file\n")

	properties.Property("env database name wins", prop.ForAll(
		func(name string) bool {
			os.Setenv("MOVIESHIP_PROP_DB_DATABASE_NAME", name)
			defer os.Unsetenv("MOVIESHIP_PROP_DB_DATABASE_NAME")

			cfg, err := NewViperLoader(path, "MOVIESHIP_PROP").Load()
			return err == nil && cfg.Database.DatabaseName == name
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
