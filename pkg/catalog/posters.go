package catalog

import (
	"context"
	"errors"

	"github.com/nimburion/movieship/pkg/observability/logger"
	"github.com/nimburion/movieship/pkg/observability/metrics"
	"github.com/nimburion/movieship/pkg/repository/document"
	"github.com/nimburion/movieship/pkg/resilience"
	"go.mongodb.org/mongo-driver/bson"
)

// PlaceholderPoster is stored for titles the poster provider knows but has no artwork for.
const PlaceholderPoster = "https://placehold.co/332x249"

// posterMissing is the provider's marker for "no poster".
const posterMissing = "N/A"

// Poster lookup outcomes, as recorded in metrics.
const (
	lookupFound       = "found"
	lookupMissing     = "missing"
	lookupUnavailable = "unavailable"
	lookupError       = "error"
	lookupRejected    = "rejected"
)

// ErrPosterUnavailable is returned by a PosterSource whose provider answered with an error for the title.
var ErrPosterUnavailable = errors.New("poster unavailable")

// PosterSource looks up the poster URL of a title. An empty result or "N/A" means the provider
// has the title but no poster.
type PosterSource interface {
	Poster(ctx context.Context, imdbID string) (string, error)
}

// PosterEnhancer backfills missing movie posters from a PosterSource and writes what it finds
// back to the store, so each title is looked up at most once.
//
// Lookups and the write-back are best effort: failures are logged and counted, the batch is
// returned regardless.
type PosterEnhancer struct {
	source      PosterSource
	placeholder string
	collection  string
	logger      logger.Logger
}

// NewPosterEnhancer creates a PosterEnhancer writing back to the movies collection.
// An empty placeholder selects PlaceholderPoster.
func NewPosterEnhancer(source PosterSource, placeholder string, log logger.Logger) *PosterEnhancer {
	if placeholder == "" {
		placeholder = PlaceholderPoster
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &PosterEnhancer{
		source:      source,
		placeholder: placeholder,
		collection:  MoviesCollection,
		logger:      log,
	}
}

// Enhance fills the poster of every movie in docs that lacks one and persists the found posters in
// one bulk write. Lookup and write-back failures are logged and leave the batch as served.
func (p *PosterEnhancer) Enhance(ctx context.Context, store document.Executor, docs []document.Document) ([]document.Document, error) {
	log := p.logger.WithContext(ctx)

	var writes []document.SetOperation
	for _, movie := range docs {
		if !needsPoster(movie["poster"]) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		imdbID, _ := movie["imdb_id"].(string)
		poster, ok := p.lookup(ctx, log, imdbID)
		if !ok {
			continue
		}

		movie["poster"] = poster
		if id, hasID := movie["_id"]; hasID {
			writes = append(writes, document.SetOperation{
				Filter: bson.D{{Key: "_id", Value: id}},
				Set:    bson.M{"poster": poster},
			})
		}
	}

	if len(writes) == 0 {
		return docs, nil
	}
	modified, err := store.BulkSet(ctx, p.collection, writes)
	if err != nil {
		log.Warn("poster write-back failed", "collection", p.collection, "operations", len(writes), "error", err)
		return docs, nil
	}
	metrics.RecordWriteBacks(p.collection, modified)
	return docs, nil
}

// lookup resolves the poster of one title. ok is false when nothing should be stored.
func (p *PosterEnhancer) lookup(ctx context.Context, log logger.Logger, imdbID string) (string, bool) {
	poster, err := p.source.Poster(ctx, imdbID)
	switch {
	case err == nil && needsPoster(poster):
		metrics.RecordPosterLookup(lookupMissing)
		return p.placeholder, true
	case err == nil:
		metrics.RecordPosterLookup(lookupFound)
		return poster, true
	case errors.Is(err, ErrPosterUnavailable):
		metrics.RecordPosterLookup(lookupUnavailable)
		log.Debug("poster unavailable", "imdb_id", imdbID, "error", err)
	case errors.Is(err, resilience.ErrCircuitBreakerOpen):
		metrics.RecordPosterLookup(lookupRejected)
	default:
		metrics.RecordPosterLookup(lookupError)
		log.Warn("poster lookup failed", "imdb_id", imdbID, "error", err)
	}
	return "", false
}

func needsPoster(v any) bool {
	switch poster := v.(type) {
	case nil:
		return true
	case string:
		return poster == "" || poster == posterMissing
	default:
		return false
	}
}
