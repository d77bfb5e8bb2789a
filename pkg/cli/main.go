// Package cli builds the movieship command line: catalog listing and lookup, the user-scoped
// profile, review and watchlist operations, and the operational commands (indexes, healthcheck,
// config, version).
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nimburion/movieship/pkg/config"
	"github.com/nimburion/movieship/pkg/observability/logger"
	"github.com/nimburion/movieship/pkg/observability/metrics"
	"github.com/spf13/cobra"
)

// Options customize the root command. Zero values select the production defaults.
type Options struct {
	Name        string
	Description string
	ConfigPath  string
	EnvPrefix   string

	// Out receives command results, Err receives logs and metric dumps.
	Out io.Writer
	Err io.Writer

	// OpenStore connects the document store. Defaults to OpenMongoStore.
	OpenStore StoreOpener
}

// globals holds the persistent flag values shared by every subcommand.
type globals struct {
	opts                Options
	cfgPath             string
	secretFilePath      string
	serviceNameOverride string
	dumpMetrics         bool
	metrics             *metrics.Registry
}

// NewRootCommand creates the movieship command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "movieship"
	}
	if opts.Description == "" {
		opts.Description = "Browse the movie catalog and manage profiles, reviews and watchlists"
	}
	opts.EnvPrefix = resolveEnvPrefix(opts.EnvPrefix)
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.OpenStore == nil {
		opts.OpenStore = OpenMongoStore
	}

	g := &globals{opts: opts, metrics: metrics.NewRegistry()}

	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !g.dumpMetrics {
				return nil
			}
			return g.metrics.WriteText(opts.Err)
		},
	}
	rootCmd.SetOut(opts.Out)
	rootCmd.SetErr(opts.Err)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&g.cfgPath, "config-file", "c", opts.ConfigPath, "config file path")
	flags.StringVar(&g.secretFilePath, "secret-file", "", fmt.Sprintf("path to secrets file (sets %s_SECRETS_FILE)", opts.EnvPrefix))
	flags.StringVar(&g.serviceNameOverride, "service-name", "", "service name override")
	flags.BoolVar(&g.dumpMetrics, "dump-metrics", false, "write collected metrics in Prometheus text format to stderr after the command")

	rootCmd.AddCommand(
		newVersionCommand(g),
		newConfigCommand(g),
		newHealthcheckCommand(g),
		newIndexesCommand(g),
		newListCommand(g),
		newGetCommand(g),
		newProfileCommand(g),
		newReviewCommand(g),
		newWatchlistCommand(g),
	)
	return rootCmd
}

// loadConfig resolves configuration and a logger for the running command.
func (g *globals) loadConfig() (*config.Config, *config.Config, logger.Logger, error) {
	return LoadConfigAndLogger(g.cfgPath, g.opts.EnvPrefix, g.secretFilePath, g.opts.Name, g.serviceNameOverride, g.opts.Err)
}

// LoadConfigAndLogger loads configuration (ENV > secrets file > config file > defaults) and
// builds the logger it describes. The second return value is what the secrets file set.
func LoadConfigAndLogger(
	cfgPath,
	envPrefix,
	secretFilePath,
	defaultServiceName,
	serviceNameOverride string,
	logOutput io.Writer,
) (*config.Config, *config.Config, logger.Logger, error) {
	envPrefix = resolveEnvPrefix(envPrefix)
	if err := applySecretFileFlag(envPrefix, secretFilePath); err != nil {
		return nil, nil, nil, err
	}

	cfg, secrets, err := config.NewViperLoader(cfgPath, envPrefix).LoadWithSecrets()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Name = resolveServiceNameValue(cfg.Service.Name, defaultServiceName, serviceNameOverride)

	log, err := logger.NewZapLogger(logger.Config{
		Level:  logger.LogLevel(cfg.Observability.LogLevel),
		Format: logger.LogFormat(cfg.Observability.LogFormat),
		Output: logOutput,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, secrets, log, nil
}

// withCorrelationID tags ctx with a fresh correlation ID for the command's log lines.
func withCorrelationID(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return logger.ContextWithCorrelationID(ctx, uuid.NewString())
}

func applySecretFileFlag(envPrefix, secretFilePath string) error {
	if secretFilePath == "" {
		return nil
	}
	info, err := os.Stat(secretFilePath)
	if err != nil {
		return fmt.Errorf("secret file %s is not accessible: %w", secretFilePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("secret file %s must not be a directory", secretFilePath)
	}
	return os.Setenv(resolveEnvPrefix(envPrefix)+"_SECRETS_FILE", filepath.Clean(secretFilePath))
}

func resolveEnvPrefix(prefix string) string {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		return "MOVIESHIP"
	}
	return strings.ToUpper(trimmed)
}

func resolveServiceNameValue(currentConfigName, defaultServiceName, serviceNameOverride string) string {
	if override := strings.TrimSpace(serviceNameOverride); override != "" {
		return override
	}
	if configured := strings.TrimSpace(currentConfigName); configured != "" {
		return configured
	}
	if fallback := strings.TrimSpace(defaultServiceName); fallback != "" {
		return fallback
	}
	return "movieship"
}

// Execute runs the command and exits with the code its error carries.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		var exit *ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
