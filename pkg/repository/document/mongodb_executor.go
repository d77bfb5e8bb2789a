package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimburion/movieship/pkg/observability/metrics"
	"github.com/nimburion/movieship/pkg/observability/tracing"
	mongostore "github.com/nimburion/movieship/pkg/store/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrDuplicateKey is returned when a write violates a unique index.
var ErrDuplicateKey = errors.New("duplicate key")

// mongoStore is the subset of the store adapter the executor relies on.
type mongoStore interface {
	Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error)
	InsertOne(ctx context.Context, collection string, doc interface{}) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, collection string, filter, update interface{}) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, collection string, filter interface{}) (*mongo.DeleteResult, error)
	BulkSet(ctx context.Context, collection string, ops []mongostore.SetOperation) (int64, error)
}

// MongoDBExecutor adapts the store/mongodb adapter to the Executor contract.
// Every call is traced and recorded in the store metrics.
type MongoDBExecutor struct {
	adapter mongoStore
}

var _ Executor = (*MongoDBExecutor)(nil)

// NewMongoDBExecutor creates a new MongoDBExecutor instance.
func NewMongoDBExecutor(adapter *mongostore.Adapter) (*MongoDBExecutor, error) {
	if adapter == nil {
		return nil, fmt.Errorf("mongodb adapter is required")
	}
	return &MongoDBExecutor{adapter: adapter}, nil
}

func (e *MongoDBExecutor) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) (docs []Document, err error) {
	ctx, done := observe(ctx, collection, "aggregate", tracing.SpanOperationDBAggregate,
		tracing.WithDBStageCount(len(pipeline)))
	defer func() { done(err) }()

	return e.adapter.Aggregate(ctx, collection, pipeline)
}

func (e *MongoDBExecutor) InsertOne(ctx context.Context, collection string, doc Document) (id interface{}, err error) {
	ctx, done := observe(ctx, collection, "insert", tracing.SpanOperationDBInsert)
	defer func() { done(err) }()

	result, err := e.adapter.InsertOne(ctx, collection, doc)
	if err != nil {
		return nil, translate(err)
	}
	return result.InsertedID, nil
}

func (e *MongoDBExecutor) UpdateOne(ctx context.Context, collection string, filter Filter, update bson.M) (matched int64, err error) {
	ctx, done := observe(ctx, collection, "update", tracing.SpanOperationDBUpdate)
	defer func() { done(err) }()

	result, err := e.adapter.UpdateOne(ctx, collection, filter, update)
	if err != nil {
		return 0, translate(err)
	}
	return result.MatchedCount, nil
}

func (e *MongoDBExecutor) DeleteOne(ctx context.Context, collection string, filter Filter) (deleted int64, err error) {
	ctx, done := observe(ctx, collection, "delete", tracing.SpanOperationDBDelete)
	defer func() { done(err) }()

	result, err := e.adapter.DeleteOne(ctx, collection, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (e *MongoDBExecutor) BulkSet(ctx context.Context, collection string, ops []SetOperation) (modified int64, err error) {
	ctx, done := observe(ctx, collection, "bulk_set", tracing.SpanOperationDBBulkWrite)
	defer func() { done(err) }()

	converted := make([]mongostore.SetOperation, len(ops))
	for i, op := range ops {
		converted[i] = mongostore.SetOperation{Filter: op.Filter, Set: op.Set}
	}
	return e.adapter.BulkSet(ctx, collection, converted)
}

func observe(ctx context.Context, collection, operation string, spanOp tracing.SpanOperation, opts ...tracing.DatabaseSpanOption) (context.Context, func(error)) {
	started := time.Now()
	opts = append(opts, tracing.WithDBCollection(collection))
	ctx, span := tracing.StartDatabaseSpan(ctx, spanOp, opts...)
	return ctx, func(err error) {
		metrics.RecordStoreOperation(collection, operation, err, time.Since(started))
		tracing.End(span, err)
	}
}

func translate(err error) error {
	if mongostore.IsDuplicateKey(err) {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}
