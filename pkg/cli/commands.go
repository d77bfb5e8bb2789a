package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nimburion/movieship/pkg/catalog"
	"github.com/nimburion/movieship/pkg/configschema"
	"github.com/nimburion/movieship/pkg/health"
	"github.com/nimburion/movieship/pkg/resilience"
	"github.com/nimburion/movieship/pkg/version"
	"github.com/spf13/cobra"
)

// defaultProbeID is looked up by the poster health check.
const defaultProbeID = "tt0111161"

func newVersionCommand(g *globals) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Current(g.opts.Name)
			out := cmd.OutOrStdout()
			switch output {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			case "yaml":
				return writeYAML(out, info)
			default:
				fmt.Fprintf(out, "Service:    %s\n", info.Service)
				fmt.Fprintf(out, "Version:    %s\n", info.Version)
				fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
				fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
				fmt.Fprintf(out, "Go:         %s\n", info.GoVersion)
				return nil
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func newConfigCommand(g *globals) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	var showSecrets bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, secrets, _, err := g.loadConfig()
			if err != nil {
				return err
			}
			if !showSecrets {
				cfg = cfg.Redacted(secrets)
			}
			return writeYAML(cmd.OutOrStdout(), cfg)
		},
	}
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show secret values")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, _, err := g.loadConfig(); err != nil {
				return err
			}
			if err := validateConfigFile(g.cfgPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := configschema.BuildSchema(nil)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(schema)
		},
	}

	configCmd.AddCommand(showCmd, validateCmd, schemaCmd)
	return configCmd
}

// validateConfigFile checks a YAML or JSON config file for unknown keys and mistyped values.
// Other formats are left to the loader.
func validateConfigFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	schema, err := configschema.BuildSchema(nil)
	if err != nil {
		return err
	}
	if err := configschema.ValidateDocument(schema, raw); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func newHealthcheckCommand(g *globals) *cobra.Command {
	var (
		timeout time.Duration
		probeID string
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check connectivity to MongoDB and, when enabled, the poster provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withCorrelationID(cmd.Context())
			s, err := g.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			registry := health.NewRegistry()
			registry.Register(health.NewAdapterChecker("mongodb", s.store, timeout))
			if s.posters != nil {
				registry.Register(posterChecker(s.posters, probeID, timeout))
			}
			switch {
			case s.cache != nil:
				registry.Register(health.NewAdapterChecker("poster-cache", s.cache, timeout))
			case s.cacheErr != nil:
				registry.Register(health.NewStaticChecker("poster-cache", health.StatusDegraded, "unreachable", s.cacheErr))
			}

			result := registry.Check(ctx)
			s.log.WithContext(ctx).Info("health check completed", "status", result.Status, "checks", len(result.Checks))
			if err := writeYAML(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.IsHealthy() {
				return &ExitError{Code: 1, Status: 503}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "timeout of each check")
	cmd.Flags().StringVar(&probeID, "probe-id", defaultProbeID, "IMDb id looked up to probe the poster provider")
	return cmd
}

// posterChecker probes the poster provider. A title-level "not found" answer still proves the
// provider reachable.
func posterChecker(source catalog.PosterSource, probeID string, timeout time.Duration) health.Checker {
	probe := func(ctx context.Context) error {
		_, err := source.Poster(ctx, probeID)
		if errors.Is(err, catalog.ErrPosterUnavailable) {
			return nil
		}
		return err
	}
	return health.NewProbeChecker("posters", probe, timeout, func(err error) (health.Status, string) {
		switch {
		case err == nil:
			return health.StatusHealthy, "OK"
		case errors.Is(err, resilience.ErrCircuitBreakerOpen):
			return health.StatusDegraded, "circuit open"
		default:
			return health.StatusDegraded, "lookup failed"
		}
	})
}

func newIndexesCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the unique indexes the catalog relies on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withCorrelationID(cmd.Context())
			s, err := g.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			specs := catalog.Indexes()
			if err := s.store.EnsureIndexes(ctx, specs); err != nil {
				return fmt.Errorf("ensure indexes: %w", err)
			}
			for _, spec := range specs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s.%s\n", spec.Collection, spec.Name)
			}
			s.log.WithContext(ctx).Info("indexes ensured", "count", len(specs))
			return nil
		},
	}
}

// searchFlags collects listing parameters from --query and repeated --param flags.
type searchFlags struct {
	query  string
	params []string
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.query, "query", "q", "", `raw listing query, e.g. "sl=primaryTitle:matrix&od=startYear&l=10"`)
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "listing parameter key=value (repeatable), e.g. p=<cursor>")
}

func (f *searchFlags) values() (url.Values, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(f.query, "?"))
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", catalog.ErrInvalidInput, err)
	}
	for _, param := range f.params {
		key, value, ok := strings.Cut(param, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: parameter %q must be key=value", catalog.ErrInvalidInput, param)
		}
		values.Set(key, value)
	}
	return values, nil
}

func newListCommand(g *globals) *cobra.Command {
	var search searchFlags
	cmd := &cobra.Command{
		Use:       "list <resource>",
		Short:     "List one page of a resource",
		Long:      "List one page of movies, profiles, reviews or watchlists. Pass the returned cursor as --param p=<next> to continue.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{catalog.ResourceMovies, catalog.ResourceProfiles, catalog.ResourceReviews, catalog.ResourceWatchlists},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withCorrelationID(cmd.Context())
			s, err := g.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			values, err := search.values()
			if err != nil {
				return render(cmd.OutOrStdout(), nil, err)
			}
			page, err := s.catalog.List(ctx, args[0], values)
			return render(cmd.OutOrStdout(), page, err)
		},
	}
	search.register(cmd)
	return cmd
}

func newGetCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get <resource> <id>",
		Short: "Fetch one document of a resource by its identifier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withCorrelationID(cmd.Context())
			s, err := g.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			doc, err := s.catalog.Get(ctx, args[0], args[1])
			return render(cmd.OutOrStdout(), doc, err)
		},
	}
}
