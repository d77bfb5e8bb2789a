package query

// SearchSpec is the typed form of a listing request. Orders[0] is the primary sort key.
type SearchSpec struct {
	Filters  []Filter
	Orders   []Order
	Limit    int
	Position *Position
}

// WithFilter returns a copy of the spec with an extra filter appended. Callers use it to scope
// listings server-side (for example to the authenticated owner); the field is not checked
// against the resource's allowed filter fields.
func (s SearchSpec) WithFilter(f Filter) SearchSpec {
	filters := make([]Filter, 0, len(s.Filters)+1)
	filters = append(filters, s.Filters...)
	s.Filters = append(filters, f)
	return s
}

// FieldSet is an immutable set of logical field names.
type FieldSet map[string]struct{}

// NewFieldSet builds a FieldSet.
func NewFieldSet(fields ...string) FieldSet {
	set := make(FieldSet, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Contains reports whether field is in the set.
func (s FieldSet) Contains(field string) bool {
	_, ok := s[field]
	return ok
}

// Slice returns the members of the set in no particular order.
func (s FieldSet) Slice() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	return out
}

// Policy is the part of a resource declaration that governs request parsing.
type Policy struct {
	IdentityOrder Order
	FilterFields  FieldSet
	OrderFields   FieldSet
	PageSize      int
}

// DefaultSearch returns the spec used when a request carries no parameters.
func DefaultSearch(p Policy) SearchSpec {
	return SearchSpec{
		Orders: []Order{p.IdentityOrder},
		Limit:  p.PageSize,
	}
}
