package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanOperation represents a traced operation type.
type SpanOperation string

const (
	SpanOperationDBAggregate SpanOperation = "db.aggregate"
	SpanOperationDBInsert    SpanOperation = "db.insert"
	SpanOperationDBUpdate    SpanOperation = "db.update"
	SpanOperationDBDelete    SpanOperation = "db.delete"
	SpanOperationDBBulkWrite SpanOperation = "db.bulk_write"

	SpanOperationResourceFetch  SpanOperation = "resource.fetch"
	SpanOperationResourceList   SpanOperation = "resource.list"
	SpanOperationResourceCreate SpanOperation = "resource.create"
	SpanOperationResourceUpdate SpanOperation = "resource.update"
	SpanOperationResourceDelete SpanOperation = "resource.delete"

	SpanOperationHTTPGet SpanOperation = "http.get"
)

// StartDatabaseSpan creates a client span for a document store round trip.
func StartDatabaseSpan(ctx context.Context, operation SpanOperation, opts ...DatabaseSpanOption) (context.Context, trace.Span) {
	tracer := otel.Tracer("database")

	spanOpts := &databaseSpanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("db.system", "mongodb"),
			attribute.String("db.operation", string(operation)),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	spanName := fmt.Sprintf("DB %s", operation)
	if spanOpts.collection != "" {
		spanName = fmt.Sprintf("DB %s %s", operation, spanOpts.collection)
	}

	ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// DatabaseSpanOption configures a database span.
type DatabaseSpanOption func(*databaseSpanOptions)

type databaseSpanOptions struct {
	collection string
	attributes []attribute.KeyValue
}

// WithDBCollection sets the collection name for the span.
func WithDBCollection(collection string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.collection = collection
		opts.attributes = append(opts.attributes, attribute.String("db.mongodb.collection", collection))
	}
}

// WithDBName sets the database name.
func WithDBName(name string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.name", name))
	}
}

// WithDBStageCount records how many aggregation stages were sent.
func WithDBStageCount(stages int) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.Int("db.mongodb.pipeline_stages", stages))
	}
}

// StartResourceSpan creates an internal span around a resource engine operation.
func StartResourceSpan(ctx context.Context, operation SpanOperation, resource string) (context.Context, trace.Span) {
	tracer := otel.Tracer("resource")
	ctx, span := tracer.Start(ctx, fmt.Sprintf("%s %s", resource, operation), trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String("resource.name", resource),
		attribute.String("resource.operation", string(operation)),
	)
	return ctx, span
}

// StartHTTPClientSpan creates a client span for an outbound HTTP call to host.
func StartHTTPClientSpan(ctx context.Context, operation SpanOperation, host string) (context.Context, trace.Span) {
	tracer := otel.Tracer("http")
	ctx, span := tracer.Start(ctx, fmt.Sprintf("HTTP %s %s", operation, host), trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.method", "GET"),
		attribute.String("server.address", host),
	)
	return ctx, span
}

// RecordError records err on the span and sets the span status to error.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess sets the span status to OK.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// End records err (if any) or success, then ends the span.
func End(span trace.Span, err error) {
	if err != nil {
		RecordError(span, err)
	} else {
		RecordSuccess(span)
	}
	span.End()
}
