package query

import (
	"net/url"
	"strconv"
	"strings"
)

// Query parameter keys understood by ParseSearch.
const (
	ParamEqual        = "se"
	ParamContains     = "sl"
	ParamContainsFold = "sil"
	ParamAsc          = "oa"
	ParamAscNulls     = "oan"
	ParamDesc         = "od"
	ParamDescNulls    = "odn"
	ParamLimit        = "l"
	ParamPosition     = "p"
)

const (
	listSeparator = ","
	pairSeparator = ":"
)

var filterParams = []struct {
	key  string
	mode FilterMode
}{
	{ParamEqual, Equal},
	{ParamContains, Contains},
	{ParamContainsFold, ContainsCaseInsensitive},
}

var orderParams = []struct {
	key        string
	direction  Direction
	allowNulls bool
}{
	{ParamAsc, Ascending, false},
	{ParamAscNulls, Ascending, true},
	{ParamDesc, Descending, false},
	{ParamDescNulls, Descending, true},
}

// ParseSearch turns raw query parameters into a SearchSpec.
//
// Filter and order fields outside the policy's allowed sets are dropped without error. When no
// usable order remains, the identity order is used. The requested limit is capped at the page size.
// Only a malformed cursor token is an error.
func ParseSearch(values url.Values, policy Policy) (SearchSpec, error) {
	spec := SearchSpec{Limit: policy.PageSize}

	for _, param := range filterParams {
		raw := values.Get(param.key)
		if raw == "" {
			continue
		}
		spec.Filters = append(spec.Filters, parseFilters(raw, param.mode, policy.FilterFields)...)
	}

	for _, param := range orderParams {
		raw := values.Get(param.key)
		if raw == "" {
			continue
		}
		spec.Orders = append(spec.Orders, parseOrders(raw, param.direction, param.allowNulls, policy.OrderFields)...)
	}
	if len(spec.Orders) == 0 {
		spec.Orders = []Order{policy.IdentityOrder}
	}

	if raw := values.Get(ParamLimit); raw != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 && (spec.Limit <= 0 || n < spec.Limit) {
			spec.Limit = n
		}
	}

	if token := values.Get(ParamPosition); token != "" {
		pos, err := DecodePosition(token)
		if err != nil {
			return SearchSpec{}, err
		}
		spec.Position = pos
	}

	return spec, nil
}

func parseFilters(raw string, mode FilterMode, allowed FieldSet) []Filter {
	var filters []Filter
	for _, pair := range strings.Split(raw, listSeparator) {
		field, value, ok := strings.Cut(pair, pairSeparator)
		if !ok || !allowed.Contains(field) {
			continue
		}
		filters = append(filters, Filter{Field: field, Value: value, Mode: mode})
	}
	return filters
}

func parseOrders(raw string, direction Direction, allowNulls bool, allowed FieldSet) []Order {
	var orders []Order
	for _, field := range strings.Split(raw, listSeparator) {
		if !allowed.Contains(field) {
			continue
		}
		orders = append(orders, Order{Field: field, Direction: direction, AllowNulls: allowNulls})
	}
	return orders
}
