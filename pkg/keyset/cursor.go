package keyset

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/nimburion/movieship/pkg/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PreviousMarker is the constant backward marker carried by every cursor. Backward paging is not supported.
const PreviousMarker = "prev"

// Cursor is returned with a full page.
type Cursor struct {
	Next     string `json:"next"`
	Previous string `json:"previous"`
}

// NewCursor wraps a forward token.
func NewCursor(next string) *Cursor {
	return &Cursor{Next: next, Previous: PreviousMarker}
}

// ErrUnresumable is returned by Next when the row ending a page has no primary key value. That only
// happens under orders admitting nulls, and no boundary predicate can resume past such a row.
var ErrUnresumable = errors.New("page ends on a row without a primary key value")

// Next encodes the resume token for the row that ends a page. The row is keyed by logical field
// names. The secondary key is only carried when a second order is active.
func Next(last bson.M, orders []query.Order) (string, error) {
	if len(orders) == 0 {
		return "", errors.New("cannot encode a cursor without an order")
	}
	if last[orders[0].Field] == nil {
		return "", ErrUnresumable
	}

	pos := query.Position{
		Primary:      stringify(last[orders[0].Field]),
		PrimaryField: orders[0].Field,
	}
	if len(orders) > 1 {
		pos.Secondary = stringify(last[orders[1].Field])
		pos.SecondaryField = orders[1].Field
	}
	return query.EncodePosition(pos), nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case primitive.ObjectID:
		return val.Hex()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
