package resource

import (
	"errors"

	"github.com/nimburion/movieship/pkg/repository/document"
)

var (
	// ErrNotFound is returned when a fetch, or the fetch preceding a delete, matches no document.
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicateKey is returned when a create or update violates a unique index.
	ErrDuplicateKey = document.ErrDuplicateKey

	// ErrEnhancerCardinality is returned when an enhancer adds or drops documents.
	ErrEnhancerCardinality = errors.New("enhancer changed the number of documents")
)
