// Package resource implements the generic fetch, list and mutation operations shared by every
// catalog resource.
//
// An Engine binds a Descriptor to an Enhancer. The document store handle is passed into each
// operation, so one Engine serves any number of stores and requests concurrently. Listing is
// keyset-paginated: a full page carries a cursor that resumes right after its last row.
package resource

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/nimburion/movieship/pkg/keyset"
	"github.com/nimburion/movieship/pkg/observability/logger"
	"github.com/nimburion/movieship/pkg/observability/metrics"
	"github.com/nimburion/movieship/pkg/observability/tracing"
	"github.com/nimburion/movieship/pkg/query"
	"github.com/nimburion/movieship/pkg/repository/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Engine runs resource operations against a document store.
type Engine struct {
	descriptor *Descriptor
	enhancer   Enhancer
	logger     logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine. A nil enhancer behaves like Passthrough.
func New(descriptor *Descriptor, enhancer Enhancer, opts ...Option) *Engine {
	if enhancer == nil {
		enhancer = Passthrough
	}
	e := &Engine{
		descriptor: descriptor,
		enhancer:   enhancer,
		logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("resource", descriptor.Name())
	return e
}

// Descriptor returns the resource declaration the engine runs against.
func (e *Engine) Descriptor() *Descriptor {
	return e.descriptor
}

// SearchSpec derives a listing request from raw query parameters.
func (e *Engine) SearchSpec(values url.Values) (query.SearchSpec, error) {
	return query.ParseSearch(values, e.descriptor.Policy())
}

// FetchOne returns the document whose identifier field equals id.
func (e *Engine) FetchOne(ctx context.Context, store document.Executor, id any) (doc document.Document, err error) {
	ctx, span := tracing.StartResourceSpan(ctx, tracing.SpanOperationResourceFetch, e.descriptor.Name())
	defer func() { tracing.End(span, err) }()

	match, err := e.descriptor.identifierMatch(id)
	if err != nil {
		return nil, err
	}
	doc, err = e.fetchSingle(ctx, store, match)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, e.descriptor.IdentifierField(), id)
	}
	return doc, err
}

// FetchOneByExpression returns the first document matching a caller-built predicate on storage paths.
func (e *Engine) FetchOneByExpression(ctx context.Context, store document.Executor, match bson.D) (doc document.Document, err error) {
	ctx, span := tracing.StartResourceSpan(ctx, tracing.SpanOperationResourceFetch, e.descriptor.Name())
	defer func() { tracing.End(span, err) }()

	return e.fetchSingle(ctx, store, match)
}

func (e *Engine) fetchSingle(ctx context.Context, store document.Executor, match bson.D) (document.Document, error) {
	pipeline := e.descriptor.shapeDetail(mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$limit", Value: 1}},
	})

	docs, err := e.run(ctx, store, pipeline)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// FetchList returns one page of the listing described by spec. A nil spec lists with the
// resource defaults. A cursor is attached iff the page holds exactly spec.Limit documents and
// its last row carries a primary key value.
func (e *Engine) FetchList(ctx context.Context, store document.Executor, spec *query.SearchSpec) (page *Page, err error) {
	ctx, span := tracing.StartResourceSpan(ctx, tracing.SpanOperationResourceList, e.descriptor.Name())
	defer func() { tracing.End(span, err) }()

	s := e.normalize(spec)
	mapping := e.descriptor.Mapping()

	pipeline, err := query.Digest(s, mapping)
	if err != nil {
		return nil, err
	}
	resume, err := keyset.ResumeStage(s.Position, s.Orders, mapping)
	if err != nil {
		return nil, err
	}
	if resume != nil {
		pipeline = append(pipeline, resume)
	}
	pipeline = append(pipeline, bson.D{{Key: "$limit", Value: s.Limit}})
	pipeline = e.descriptor.shape(pipeline)

	docs, err := e.run(ctx, store, pipeline)
	if err != nil {
		return nil, err
	}

	page = &Page{Items: docs}
	if len(docs) == s.Limit {
		next, err := keyset.Next(docs[len(docs)-1], s.Orders)
		switch {
		case errors.Is(err, keyset.ErrUnresumable):
			e.logger.Debug("page ends on a null primary key, listing stops here", "field", s.Orders[0].Field)
		case err != nil:
			return nil, err
		default:
			page.Cursor = keyset.NewCursor(next)
		}
	}
	metrics.RecordPage(e.descriptor.Name(), page.HasMore())
	return page, nil
}

// normalize fills in what a programmatic spec may leave out: the identity order and a limit
// within the page size.
func (e *Engine) normalize(spec *query.SearchSpec) query.SearchSpec {
	if spec == nil {
		return query.DefaultSearch(e.descriptor.Policy())
	}
	s := *spec
	if len(s.Orders) == 0 {
		s.Orders = []query.Order{e.descriptor.IdentityOrder()}
	}
	if s.Limit <= 0 || s.Limit > e.descriptor.PageSize() {
		s.Limit = e.descriptor.PageSize()
	}
	return s
}

// Create inserts doc and returns it re-read by its store-assigned _id, in the projected shape.
func (e *Engine) Create(ctx context.Context, store document.Executor, doc document.Document) (created document.Document, err error) {
	ctx, span := tracing.StartResourceSpan(ctx, tracing.SpanOperationResourceCreate, e.descriptor.Name())
	defer func() { tracing.End(span, err) }()

	id, err := store.InsertOne(ctx, e.descriptor.Collection(), doc)
	if err != nil {
		return nil, e.writeError("create", err)
	}
	return e.fetchSingle(ctx, store, bson.D{{Key: "_id", Value: bson.D{{Key: "$eq", Value: id}}}})
}

// CreateWithIdentity inserts doc and returns it re-read by identity, a client-supplied value of
// the identifier field.
func (e *Engine) CreateWithIdentity(ctx context.Context, store document.Executor, doc document.Document, identity any) (created document.Document, err error) {
	ctx, span := tracing.StartResourceSpan(ctx, tracing.SpanOperationResourceCreate, e.descriptor.Name())
	defer func() { tracing.End(span, err) }()

	if _, err := store.InsertOne(ctx, e.descriptor.Collection(), doc); err != nil {
		return nil, e.writeError("create", err)
	}
	match, err := e.descriptor.identifierMatch(identity)
	if err != nil {
		return nil, err
	}
	return e.fetchSingle(ctx, store, match)
}

// Update merges partial into the document whose identifier equals id and returns the re-read
// document. An update that matches nothing surfaces as ErrNotFound from the re-read.
func (e *Engine) Update(ctx context.Context, store document.Executor, id any, partial bson.M) (updated document.Document, err error) {
	match, err := e.descriptor.identifierMatch(id)
	if err != nil {
		return nil, err
	}
	return e.UpdateWhere(ctx, store, match, partial)
}

// UpdateWhere is Update with a caller-built predicate.
func (e *Engine) UpdateWhere(ctx context.Context, store document.Executor, match bson.D, partial bson.M) (updated document.Document, err error) {
	ctx, span := tracing.StartResourceSpan(ctx, tracing.SpanOperationResourceUpdate, e.descriptor.Name())
	defer func() { tracing.End(span, err) }()

	if _, err := store.UpdateOne(ctx, e.descriptor.Collection(), match, bson.M{"$set": partial}); err != nil {
		return nil, e.writeError("update", err)
	}
	return e.fetchSingle(ctx, store, match)
}

// Delete removes the first document matching match and returns it as it was before deletion.
// Nothing is deleted when the preceding fetch finds no document.
func (e *Engine) Delete(ctx context.Context, store document.Executor, match bson.D) (snapshot document.Document, err error) {
	ctx, span := tracing.StartResourceSpan(ctx, tracing.SpanOperationResourceDelete, e.descriptor.Name())
	defer func() { tracing.End(span, err) }()

	snapshot, err = e.fetchSingle(ctx, store, match)
	if err != nil {
		return nil, err
	}
	if _, err := store.DeleteOne(ctx, e.descriptor.Collection(), match); err != nil {
		return nil, fmt.Errorf("delete %s: %w", e.descriptor.Name(), err)
	}
	return snapshot, nil
}

// run executes pipeline and passes the batch through the enhancer.
func (e *Engine) run(ctx context.Context, store document.Executor, pipeline mongo.Pipeline) ([]document.Document, error) {
	log := e.logger.WithContext(ctx)
	log.Debug("running pipeline", "collection", e.descriptor.Collection(), "stages", len(pipeline))

	docs, err := store.Aggregate(ctx, e.descriptor.Collection(), pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", e.descriptor.Collection(), err)
	}
	if len(docs) == 0 {
		return docs, nil
	}

	enhanced, err := e.enhancer.Enhance(ctx, store, docs)
	if err != nil {
		return nil, fmt.Errorf("enhance %s: %w", e.descriptor.Name(), err)
	}
	if len(enhanced) != len(docs) {
		log.Error("enhancer changed batch size", "in", len(docs), "out", len(enhanced))
		return nil, fmt.Errorf("%w: %d in, %d out", ErrEnhancerCardinality, len(docs), len(enhanced))
	}
	return enhanced, nil
}

func (e *Engine) writeError(op string, err error) error {
	if errors.Is(err, ErrDuplicateKey) {
		return err
	}
	return fmt.Errorf("%s %s: %w", op, e.descriptor.Name(), err)
}
