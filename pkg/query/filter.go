package query

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FilterMode selects how a filter value is compared against the stored field.
type FilterMode int

const (
	// Equal matches the coerced value exactly.
	Equal FilterMode = iota
	// Contains matches the value as an unanchored, case-sensitive regular expression.
	Contains
	// ContainsCaseInsensitive is Contains with case folding.
	ContainsCaseInsensitive
)

// String returns the query parameter key for the mode.
func (m FilterMode) String() string {
	switch m {
	case Equal:
		return ParamEqual
	case Contains:
		return ParamContains
	case ContainsCaseInsensitive:
		return ParamContainsFold
	default:
		return "unknown"
	}
}

// Filter is one filter condition on a logical field. Value is the raw wire string.
type Filter struct {
	Field string
	Value string
	Mode  FilterMode
}

// Predicate translates the filter into a {path: condition} element of a $match document.
// Contains patterns are passed through unescaped, so regex metacharacters in the value are significant.
func (f Filter) Predicate(mapping *FieldMapping) (bson.E, error) {
	path, err := mapping.Resolve(f.Field)
	if err != nil {
		return bson.E{}, err
	}

	value := CoerceField(mapping, f.Field, f.Value)
	switch f.Mode {
	case Equal:
		return bson.E{Key: path, Value: bson.D{{Key: "$eq", Value: value}}}, nil
	case Contains:
		return bson.E{Key: path, Value: bson.D{{Key: "$regex", Value: primitive.Regex{Pattern: patternOf(value)}}}}, nil
	case ContainsCaseInsensitive:
		return bson.E{Key: path, Value: bson.D{{Key: "$regex", Value: primitive.Regex{Pattern: patternOf(value), Options: "i"}}}}, nil
	default:
		return bson.E{}, fmt.Errorf("unknown filter mode %d", f.Mode)
	}
}

func patternOf(value any) string {
	if oid, ok := value.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(value)
}
