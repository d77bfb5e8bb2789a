package resource

import (
	"context"

	"github.com/nimburion/movieship/pkg/repository/document"
)

// Enhancer post-processes every fetched batch; single-document fetches are a one-element batch.
// It may mutate documents and write derived values back through store, but it must return
// exactly one document per input document, in the same order.
type Enhancer interface {
	Enhance(ctx context.Context, store document.Executor, docs []document.Document) ([]document.Document, error)
}

// EnhancerFunc adapts a function to Enhancer.
type EnhancerFunc func(ctx context.Context, store document.Executor, docs []document.Document) ([]document.Document, error)

// Enhance calls f.
func (f EnhancerFunc) Enhance(ctx context.Context, store document.Executor, docs []document.Document) ([]document.Document, error) {
	return f(ctx, store, docs)
}

// Passthrough returns documents unchanged.
var Passthrough Enhancer = EnhancerFunc(func(_ context.Context, _ document.Executor, docs []document.Document) ([]document.Document, error) {
	return docs, nil
})

// Chain runs enhancers in order, feeding each the previous output.
func Chain(enhancers ...Enhancer) Enhancer {
	return EnhancerFunc(func(ctx context.Context, store document.Executor, docs []document.Document) ([]document.Document, error) {
		var err error
		for _, e := range enhancers {
			docs, err = e.Enhance(ctx, store, docs)
			if err != nil {
				return nil, err
			}
		}
		return docs, nil
	})
}
