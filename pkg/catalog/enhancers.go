package catalog

import (
	"context"

	"github.com/nimburion/movieship/pkg/repository/document"
	"github.com/nimburion/movieship/pkg/resource"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StringifyIDs renders ObjectID _id values as hex strings, on every document and on the
// documents held by the embedded array fields.
func StringifyIDs(embedded ...string) resource.Enhancer {
	return resource.EnhancerFunc(func(_ context.Context, _ document.Executor, docs []document.Document) ([]document.Document, error) {
		for _, doc := range docs {
			stringifyID(doc)
			for _, field := range embedded {
				for _, nested := range embeddedDocuments(doc[field]) {
					stringifyID(nested)
				}
			}
		}
		return docs, nil
	})
}

func stringifyID(doc bson.M) {
	if oid, ok := doc["_id"].(primitive.ObjectID); ok {
		doc["_id"] = oid.Hex()
	}
}

func embeddedDocuments(v any) []bson.M {
	var items []any
	switch arr := v.(type) {
	case bson.A:
		items = arr
	case []any:
		items = arr
	case []bson.M:
		return arr
	default:
		return nil
	}

	out := make([]bson.M, 0, len(items))
	for _, item := range items {
		if doc, ok := item.(bson.M); ok {
			out = append(out, doc)
		}
	}
	return out
}
