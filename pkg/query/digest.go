package query

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Digest translates a SearchSpec into an ordered $match/$sort pipeline.
//
// The sort document lists keys in declared priority, primary first. When two orders resolve to
// the same storage path, the first-declared order's direction is kept. Every order that does not
// allow nulls contributes a {path: {$ne: null}} predicate, since null sort keys cannot be compared
// by the cursor operators. Zero predicates emit no $match stage, one emits it bare, more are joined
// with $and.
func Digest(spec SearchSpec, mapping *FieldMapping) (mongo.Pipeline, error) {
	sortDoc := make(bson.D, 0, len(spec.Orders))
	sorted := make(map[string]struct{}, len(spec.Orders))
	nonNull := make(map[string]struct{}, len(spec.Orders))
	var predicates []bson.D

	for _, order := range spec.Orders {
		key, err := order.SortKey(mapping)
		if err != nil {
			return nil, err
		}
		if _, dup := sorted[key.Key]; !dup {
			sorted[key.Key] = struct{}{}
			sortDoc = append(sortDoc, key)
		}
		if order.AllowNulls {
			continue
		}
		if _, dup := nonNull[key.Key]; !dup {
			nonNull[key.Key] = struct{}{}
			predicates = append(predicates, bson.D{{Key: key.Key, Value: bson.D{{Key: "$ne", Value: nil}}}})
		}
	}

	for _, filter := range spec.Filters {
		predicate, err := filter.Predicate(mapping)
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, bson.D{predicate})
	}

	pipeline := mongo.Pipeline{}
	if match := Conjunction(predicates...); match != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}
	if len(sortDoc) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sortDoc}})
	}
	return pipeline, nil
}

// Conjunction combines predicates: nil for none, the predicate itself for one, $and otherwise.
func Conjunction(predicates ...bson.D) bson.D {
	switch len(predicates) {
	case 0:
		return nil
	case 1:
		return predicates[0]
	default:
		all := make(bson.A, 0, len(predicates))
		for _, p := range predicates {
			all = append(all, p)
		}
		return bson.D{{Key: "$and", Value: all}}
	}
}
