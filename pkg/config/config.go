package config

import "time"

// Config is the root configuration of the movieship command.
type Config struct {
	Service       ServiceConfig       `mapstructure:"service" yaml:"service"`
	Database      DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
	Posters       PostersConfig       `mapstructure:"posters" yaml:"posters"`
	Auth          AuthConfig          `mapstructure:"auth" yaml:"auth"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// DatabaseConfig configures the MongoDB connection.
type DatabaseConfig struct {
	URL              string        `mapstructure:"url" yaml:"url" secret:"true"`
	DatabaseName     string        `mapstructure:"database_name" yaml:"database_name"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
}

// ObservabilityConfig configures logging, metrics, and tracing
type ObservabilityConfig struct {
	LogLevel          string  `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string  `mapstructure:"log_format" yaml:"log_format"` // json, text
	MetricsEnabled    bool    `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint" yaml:"tracing_endpoint"`
}

// PostersConfig configures the OMDb poster backfill of movie listings.
type PostersConfig struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key" secret:"true"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PlaceholderURL string        `mapstructure:"placeholder_url" yaml:"placeholder_url"`
	RatePerSecond  float64       `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	MaxFailures    int           `mapstructure:"max_failures" yaml:"max_failures"`
	ResetTimeout   time.Duration `mapstructure:"reset_timeout" yaml:"reset_timeout"`
	// CacheURL is a redis:// URL. Empty disables the lookup cache.
	CacheURL string        `mapstructure:"cache_url" yaml:"cache_url" secret:"true"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// AuthConfig configures how the subject of a bearer token is read.
// An empty HMACSecret reads claims without verifying the signature.
type AuthConfig struct {
	HMACSecret string `mapstructure:"hmac_secret" yaml:"hmac_secret" secret:"true"`
	Issuer     string `mapstructure:"issuer" yaml:"issuer"`
	Audience   string `mapstructure:"audience" yaml:"audience"`
}

// DefaultConfig returns the configuration used when neither file nor environment set a key.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "movieship",
			Environment: "production",
		},
		Database: DatabaseConfig{
			URL:              "mongodb://localhost:27017",
			DatabaseName:     "movieship",
			ConnectTimeout:   10 * time.Second,
			OperationTimeout: 5 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			TracingSampleRate: 0.1,
		},
		Posters: PostersConfig{
			BaseURL:        "https://www.omdbapi.com/",
			Timeout:        5 * time.Second,
			PlaceholderURL: "https://placehold.co/332x249",
			RatePerSecond:  10,
			MaxFailures:    5,
			ResetTimeout:   30 * time.Second,
			CacheTTL:       24 * time.Hour,
		},
	}
}
