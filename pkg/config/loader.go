package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile string
	envPrefix  string
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "MOVIESHIP")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// Load loads configuration with precedence: ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v, err := l.newViper()
	if err != nil {
		return nil, err
	}
	return l.unmarshal(v)
}

func (l *ViperLoader) newViper() (*viper.Viper, error) {
	v := viper.New()
	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified but couldn't be read
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}
	return v, nil
}

func (l *ViperLoader) unmarshal(v *viper.Viper) (*Config, error) {
	// Environment variables override file config through explicit bindings.
	v.SetEnvPrefix(l.envPrefix)
	l.bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	// Database
	v.BindEnv("database.url", l.prefixedEnv("DB_URL"), l.prefixedEnv("DATABASE_URL"))
	v.BindEnv("database.database_name", l.prefixedEnv("DB_DATABASE_NAME"), l.prefixedEnv("DATABASE_DATABASE_NAME"))
	v.BindEnv("database.connect_timeout", l.prefixedEnv("DB_CONNECT_TIMEOUT"))
	v.BindEnv("database.operation_timeout", l.prefixedEnv("DB_OPERATION_TIMEOUT"))

	// Observability
	v.BindEnv("observability.log_level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("observability.log_format", l.prefixedEnv("LOG_FORMAT"))
	v.BindEnv("observability.metrics_enabled", l.prefixedEnv("METRICS_ENABLED"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("TRACING_ENABLED"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("TRACING_SAMPLE_RATE"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("TRACING_ENDPOINT"))

	// Posters
	v.BindEnv("posters.enabled", l.prefixedEnv("POSTERS_ENABLED"))
	v.BindEnv("posters.base_url", l.prefixedEnv("POSTERS_BASE_URL"))
	v.BindEnv("posters.api_key", l.prefixedEnv("POSTERS_API_KEY"), l.prefixedEnv("OMDB_API_KEY"))
	v.BindEnv("posters.timeout", l.prefixedEnv("POSTERS_TIMEOUT"))
	v.BindEnv("posters.placeholder_url", l.prefixedEnv("POSTERS_PLACEHOLDER_URL"))
	v.BindEnv("posters.rate_per_second", l.prefixedEnv("POSTERS_RATE_PER_SECOND"))
	v.BindEnv("posters.max_failures", l.prefixedEnv("POSTERS_MAX_FAILURES"))
	v.BindEnv("posters.reset_timeout", l.prefixedEnv("POSTERS_RESET_TIMEOUT"))
	v.BindEnv("posters.cache_url", l.prefixedEnv("POSTERS_CACHE_URL"), l.prefixedEnv("REDIS_URL"))
	v.BindEnv("posters.cache_ttl", l.prefixedEnv("POSTERS_CACHE_TTL"))

	// Auth
	v.BindEnv("auth.hmac_secret", l.prefixedEnv("AUTH_HMAC_SECRET"))
	v.BindEnv("auth.issuer", l.prefixedEnv("AUTH_ISSUER"))
	v.BindEnv("auth.audience", l.prefixedEnv("AUTH_AUDIENCE"))
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = "APP"
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", cfg.Service.Name)
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("database.url", cfg.Database.URL)
	v.SetDefault("database.database_name", cfg.Database.DatabaseName)
	v.SetDefault("database.connect_timeout", cfg.Database.ConnectTimeout)
	v.SetDefault("database.operation_timeout", cfg.Database.OperationTimeout)

	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.metrics_enabled", cfg.Observability.MetricsEnabled)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)

	v.SetDefault("posters.enabled", cfg.Posters.Enabled)
	v.SetDefault("posters.base_url", cfg.Posters.BaseURL)
	v.SetDefault("posters.api_key", cfg.Posters.APIKey)
	v.SetDefault("posters.timeout", cfg.Posters.Timeout)
	v.SetDefault("posters.placeholder_url", cfg.Posters.PlaceholderURL)
	v.SetDefault("posters.rate_per_second", cfg.Posters.RatePerSecond)
	v.SetDefault("posters.max_failures", cfg.Posters.MaxFailures)
	v.SetDefault("posters.reset_timeout", cfg.Posters.ResetTimeout)
	v.SetDefault("posters.cache_url", cfg.Posters.CacheURL)
	v.SetDefault("posters.cache_ttl", cfg.Posters.CacheTTL)

	v.SetDefault("auth.hmac_secret", cfg.Auth.HMACSecret)
	v.SetDefault("auth.issuer", cfg.Auth.Issuer)
	v.SetDefault("auth.audience", cfg.Auth.Audience)
}

// Validate validates the configuration and returns every problem found, joined.
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.Service.Name) == "" {
		errs = append(errs, errors.New("service.name is required"))
	}

	if cfg.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	} else if !strings.HasPrefix(cfg.Database.URL, "mongodb://") && !strings.HasPrefix(cfg.Database.URL, "mongodb+srv://") {
		errs = append(errs, fmt.Errorf("database.url must use the mongodb or mongodb+srv scheme"))
	}
	if cfg.Database.DatabaseName == "" {
		errs = append(errs, errors.New("database.database_name is required"))
	}
	if cfg.Database.ConnectTimeout < 0 || cfg.Database.OperationTimeout < 0 {
		errs = append(errs, errors.New("database timeouts must not be negative"))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, strings.ToLower(cfg.Observability.LogLevel)) {
		errs = append(errs, fmt.Errorf("invalid observability.log_level: %s (must be one of: %v)", cfg.Observability.LogLevel, validLevels))
	}
	validFormats := []string{"json", "text"}
	if !contains(validFormats, strings.ToLower(cfg.Observability.LogFormat)) {
		errs = append(errs, fmt.Errorf("invalid observability.log_format: %s (must be one of: %v)", cfg.Observability.LogFormat, validFormats))
	}
	if cfg.Observability.TracingSampleRate < 0 || cfg.Observability.TracingSampleRate > 1 {
		errs = append(errs, errors.New("observability.tracing_sample_rate must be between 0 and 1"))
	}
	if cfg.Observability.TracingEnabled && cfg.Observability.TracingEndpoint == "" {
		errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
	}

	if cfg.Posters.Enabled {
		if cfg.Posters.APIKey == "" {
			errs = append(errs, errors.New("posters.api_key is required when posters are enabled"))
		}
		if u, err := url.Parse(cfg.Posters.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("posters.base_url is not a valid URL: %q", cfg.Posters.BaseURL))
		}
		if cfg.Posters.RatePerSecond < 0 {
			errs = append(errs, errors.New("posters.rate_per_second must not be negative"))
		}
		if cfg.Posters.MaxFailures < 1 {
			errs = append(errs, errors.New("posters.max_failures must be at least 1"))
		}
		if cfg.Posters.CacheURL != "" {
			if u, err := url.Parse(cfg.Posters.CacheURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
				errs = append(errs, errors.New("posters.cache_url must use the redis:// or rediss:// scheme"))
			}
			if cfg.Posters.CacheTTL <= 0 {
				errs = append(errs, errors.New("posters.cache_ttl must be positive when the cache is enabled"))
			}
		}
	}

	if (cfg.Auth.Issuer != "" || cfg.Auth.Audience != "") && cfg.Auth.HMACSecret == "" {
		errs = append(errs, errors.New("auth.issuer and auth.audience require auth.hmac_secret"))
	}

	return errors.Join(errs...)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
