package cli

import (
	"context"
	"fmt"

	"github.com/nimburion/movieship/pkg/auth"
	"github.com/nimburion/movieship/pkg/catalog"
	"github.com/nimburion/movieship/pkg/config"
	"github.com/nimburion/movieship/pkg/observability/logger"
	"github.com/nimburion/movieship/pkg/observability/tracing"
	"github.com/nimburion/movieship/pkg/repository/document"
	mongostore "github.com/nimburion/movieship/pkg/store/mongodb"
	redisstore "github.com/nimburion/movieship/pkg/store/redis"
	"github.com/nimburion/movieship/pkg/version"
)

// Store is the document store a command runs against.
type Store interface {
	document.Executor
	HealthCheck(ctx context.Context) error
	EnsureIndexes(ctx context.Context, specs []mongostore.IndexSpec) error
	Close() error
}

// StoreOpener connects a Store.
type StoreOpener func(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (Store, error)

type mongoStore struct {
	*document.MongoDBExecutor
	adapter *mongostore.Adapter
}

func (s *mongoStore) HealthCheck(ctx context.Context) error { return s.adapter.HealthCheck(ctx) }

func (s *mongoStore) EnsureIndexes(ctx context.Context, specs []mongostore.IndexSpec) error {
	return s.adapter.EnsureIndexes(ctx, specs)
}

func (s *mongoStore) Close() error { return s.adapter.Close() }

// OpenMongoStore connects to MongoDB with the database section of the configuration.
func OpenMongoStore(_ context.Context, cfg config.DatabaseConfig, log logger.Logger) (Store, error) {
	adapter, err := mongostore.NewAdapter(mongostore.Config{
		URL:              cfg.URL,
		Database:         cfg.DatabaseName,
		ConnectTimeout:   cfg.ConnectTimeout,
		OperationTimeout: cfg.OperationTimeout,
	}, log)
	if err != nil {
		return nil, err
	}
	executor, err := document.NewMongoDBExecutor(adapter)
	if err != nil {
		_ = adapter.Close()
		return nil, err
	}
	return &mongoStore{MongoDBExecutor: executor, adapter: adapter}, nil
}

// session is everything one command invocation needs, opened from configuration.
type session struct {
	cfg     *config.Config
	secrets *config.Config
	log     logger.Logger
	store   Store
	catalog *catalog.Catalog
	posters *catalog.OMDbClient
	// cache is nil when no cache is configured or it could not be reached.
	cache    *redisstore.Adapter
	cacheErr error
	tracer   *tracing.TracerProvider
}

// openSession loads configuration, starts tracing and connects the store.
func (g *globals) openSession(ctx context.Context) (*session, error) {
	cfg, secrets, log, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	info := version.Current(cfg.Service.Name)

	tracer, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: info.Version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Enabled:        cfg.Observability.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	s := &session{cfg: cfg, secrets: secrets, log: log, tracer: tracer}

	store, err := g.opts.OpenStore(ctx, cfg.Database, log)
	if err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("open store: %w", err)
	}
	s.store = store

	catalogOpts := []catalog.Option{catalog.WithLogger(log)}
	if cfg.Posters.Enabled {
		posters, err := catalog.NewOMDbClient(catalog.OMDbConfig{
			BaseURL:       cfg.Posters.BaseURL,
			APIKey:        cfg.Posters.APIKey,
			Timeout:       cfg.Posters.Timeout,
			RatePerSecond: cfg.Posters.RatePerSecond,
			MaxFailures:   cfg.Posters.MaxFailures,
			ResetTimeout:  cfg.Posters.ResetTimeout,
			UserAgent:     info.UserAgent(),
		}, log)
		if err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("create poster client: %w", err)
		}
		s.posters = posters

		var source catalog.PosterSource = posters
		if cfg.Posters.CacheURL != "" {
			cache, err := redisstore.NewAdapter(redisstore.Config{
				URL:              cfg.Posters.CacheURL,
				OperationTimeout: cfg.Posters.Timeout,
				KeyPrefix:        cfg.Service.Name + ":poster:",
			}, log)
			if err != nil {
				log.Warn("poster cache unavailable, looking posters up directly", "error", err)
				s.cacheErr = err
			} else {
				s.cache = cache
				source = catalog.NewCachedPosterSource(posters, cache, cfg.Posters.CacheTTL, log)
			}
		}
		catalogOpts = append(catalogOpts, catalog.WithPosterSource(source, cfg.Posters.PlaceholderURL))
	}
	s.catalog = catalog.New(store, catalogOpts...)
	return s, nil
}

// subject resolves the caller's identity from a bearer token.
func (s *session) subject(ctx context.Context, token string) (string, error) {
	raw, err := auth.ParseBearer(token)
	if err != nil {
		return "", err
	}
	extractor := auth.NewSubjectExtractor(auth.Config{
		HMACSecret: s.cfg.Auth.HMACSecret,
		Issuer:     s.cfg.Auth.Issuer,
		Audience:   s.cfg.Auth.Audience,
	}, s.log)
	return auth.Subject(ctx, extractor, raw)
}

// Close releases the store and the cache, then flushes pending spans.
func (s *session) Close(ctx context.Context) {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.log.Warn("failed to close poster cache", "error", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Warn("failed to close store", "error", err)
		}
	}
	if s.tracer != nil {
		if err := s.tracer.Shutdown(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("failed to shut down tracer", "error", err)
		}
	}
}
