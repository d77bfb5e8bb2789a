// Package document defines the document execution contract the resource engine runs against,
// and its MongoDB implementation.
package document

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Document is a single stored or projected document.
type Document = bson.M

// Filter selects documents by field equality or operator expressions.
type Filter = bson.D

// SetOperation is one entry of a bulk {$set} write.
type SetOperation struct {
	Filter Filter
	Set    bson.M
}

// Reader runs aggregation pipelines.
type Reader interface {
	Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]Document, error)
}

// Writer performs single-document writes and bulk field updates.
type Writer interface {
	// InsertOne stores doc and returns the generated or supplied _id.
	InsertOne(ctx context.Context, collection string, doc Document) (interface{}, error)
	// UpdateOne applies update to the first document matching filter and returns the matched count.
	UpdateOne(ctx context.Context, collection string, filter Filter, update bson.M) (int64, error)
	// DeleteOne removes the first document matching filter and returns the deleted count.
	DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error)
	// BulkSet applies every operation and returns the number of modified documents.
	BulkSet(ctx context.Context, collection string, ops []SetOperation) (int64, error)
}

// Executor is the store handle passed to every resource engine operation.
type Executor interface {
	Reader
	Writer
}
