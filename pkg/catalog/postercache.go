package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/nimburion/movieship/pkg/observability/logger"
	"github.com/nimburion/movieship/pkg/observability/metrics"
	redisstore "github.com/nimburion/movieship/pkg/store/redis"
)

// cachedUnavailable marks a title the provider answered with an error for.
const cachedUnavailable = "\x00unavailable"

// PosterCache is the key-value store behind a CachedPosterSource.
type PosterCache interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
}

// CachedPosterSource remembers provider answers for ttl. Found posters, "no poster" answers and
// provider errors for a title are cached; transport failures and breaker rejections are not.
// A failing cache degrades to direct lookups.
type CachedPosterSource struct {
	source PosterSource
	cache  PosterCache
	ttl    time.Duration
	logger logger.Logger
}

// NewCachedPosterSource wraps source with cache.
func NewCachedPosterSource(source PosterSource, cache PosterCache, ttl time.Duration, log logger.Logger) *CachedPosterSource {
	if log == nil {
		log = logger.NewNop()
	}
	return &CachedPosterSource{source: source, cache: cache, ttl: ttl, logger: log}
}

func (c *CachedPosterSource) Poster(ctx context.Context, imdbID string) (string, error) {
	cached, err := c.cache.Get(ctx, imdbID)
	switch {
	case err == nil:
		metrics.RecordPosterCache("hit")
		if cached == cachedUnavailable {
			return "", ErrPosterUnavailable
		}
		return cached, nil
	case errors.Is(err, redisstore.ErrCacheMiss):
		metrics.RecordPosterCache("miss")
	default:
		metrics.RecordPosterCache("error")
		c.logger.WithContext(ctx).Warn("poster cache read failed", "imdb_id", imdbID, "error", err)
	}

	poster, err := c.source.Poster(ctx, imdbID)
	value := poster
	switch {
	case errors.Is(err, ErrPosterUnavailable):
		value = cachedUnavailable
	case err != nil:
		return "", err
	}
	if setErr := c.cache.SetWithTTL(ctx, imdbID, value, c.ttl); setErr != nil {
		c.logger.WithContext(ctx).Warn("poster cache write failed", "imdb_id", imdbID, "error", setErr)
	}
	return poster, err
}
