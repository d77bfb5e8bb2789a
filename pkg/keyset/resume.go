package keyset

import (
	"github.com/nimburion/movieship/pkg/query"
	"go.mongodb.org/mongo-driver/bson"
)

// ResumeStage builds the $match stage that resumes a listing after pos. It returns nil when pos is nil.
//
// The cursor must carry a primary value and field, and its keys must line up with the active
// orders: the primary field with Orders[0] and, when a secondary pair is present, the secondary
// field with Orders[1]. A cursor carrying one key while two orders are active (or the reverse)
// was produced for a different ordering and is rejected.
func ResumeStage(pos *query.Position, orders []query.Order, mapping *query.FieldMapping) (bson.D, error) {
	if pos == nil {
		return nil, nil
	}
	if pos.Primary == "" || pos.PrimaryField == "" {
		return nil, query.InvalidPagination("expected both a position and a position field")
	}
	if len(orders) == 0 {
		return nil, query.InvalidPagination("expected an order field")
	}

	primary, err := boundaryFor(orders[0], pos.PrimaryField, pos.Primary, mapping)
	if err != nil {
		return nil, err
	}

	if !pos.HasSecondary() {
		if len(orders) > 1 {
			return nil, query.InvalidPagination("cursor has no secondary position but %d orders are active", len(orders))
		}
		return match(bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "$or", Value: bson.A{primary.inclusive()}}},
			bson.D{{Key: "$and", Value: bson.A{primary.notEqual()}}},
		}}}), nil
	}

	if len(orders) < 2 {
		return nil, query.InvalidPagination("cursor has a secondary position but only one order is active")
	}
	secondary, err := boundaryFor(orders[1], pos.SecondaryField, pos.Secondary, mapping)
	if err != nil {
		return nil, err
	}

	// Rows tying the primary boundary must be past the secondary boundary;
	// rows past the primary boundary qualify regardless of the secondary key.
	return match(bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "$and", Value: bson.A{primary.equal(), secondary.inclusive(), secondary.notEqual()}}},
		bson.D{{Key: "$and", Value: bson.A{primary.inclusive(), primary.notEqual()}}},
	}}}), nil
}

type boundary struct {
	path       string
	comparator string
	value      any
}

func boundaryFor(order query.Order, field, raw string, mapping *query.FieldMapping) (boundary, error) {
	if order.Field != field {
		return boundary{}, query.InvalidPagination("cursor field %q does not match order field %q", field, order.Field)
	}
	path, err := mapping.Resolve(field)
	if err != nil {
		return boundary{}, err
	}
	return boundary{
		path:       path,
		comparator: order.Direction.Comparator(),
		value:      query.CoerceField(mapping, field, raw),
	}, nil
}

func (b boundary) inclusive() bson.D {
	return bson.D{{Key: b.path, Value: bson.D{{Key: b.comparator, Value: b.value}}}}
}

func (b boundary) notEqual() bson.D {
	return bson.D{{Key: b.path, Value: bson.D{{Key: "$ne", Value: b.value}}}}
}

func (b boundary) equal() bson.D {
	return bson.D{{Key: b.path, Value: bson.D{{Key: "$eq", Value: b.value}}}}
}

func match(expr bson.D) bson.D {
	return bson.D{{Key: "$match", Value: expr}}
}
