package query

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Direction is the sort direction of an order clause.
type Direction int

const (
	// Ascending sorts from low to high.
	Ascending Direction = iota
	// Descending sorts from high to low.
	Descending
)

// Sign returns the $sort value for the direction.
func (d Direction) Sign() int {
	switch d {
	case Descending:
		return -1
	default:
		return 1
	}
}

// Comparator returns the inclusive operator a row must satisfy to sit at or past a boundary value.
func (d Direction) Comparator() string {
	switch d {
	case Descending:
		return "$lte"
	default:
		return "$gte"
	}
}

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Order is one ordering clause on a logical field.
type Order struct {
	Field      string
	Direction  Direction
	AllowNulls bool
}

// Asc is shorthand for an ascending order that excludes nulls.
func Asc(field string) Order {
	return Order{Field: field, Direction: Ascending}
}

// Desc is shorthand for a descending order that excludes nulls.
func Desc(field string) Order {
	return Order{Field: field, Direction: Descending}
}

// SortKey translates the order into a {path: ±1} element of a $sort document.
func (o Order) SortKey(mapping *FieldMapping) (bson.E, error) {
	path, err := mapping.Resolve(o.Field)
	if err != nil {
		return bson.E{}, err
	}
	return bson.E{Key: path, Value: o.Direction.Sign()}, nil
}
