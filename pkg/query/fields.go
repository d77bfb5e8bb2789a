package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// projectionSigil marks a storage path as a field reference inside a $project stage.
const projectionSigil = "$"

// FieldKind is the stored type of a logical field. It decides how wire strings are coerced before
// they reach a predicate.
type FieldKind int

const (
	// KindInferred applies the Coerce rules: digits become integers, anything else stays a string.
	KindInferred FieldKind = iota
	// KindString keeps wire values verbatim.
	KindString
	// KindNumber parses wire values as int64, then float64, and keeps them verbatim otherwise.
	KindNumber
	// KindObjectID turns 24-digit hex strings into ObjectIDs.
	KindObjectID
)

// FieldMapping resolves logical field names to storage paths.
// It is built once per resource and never mutated, so it can be shared across requests.
type FieldMapping struct {
	paths   map[string]string
	logical []string
	kinds   map[string]FieldKind
}

// NewFieldMapping builds a mapping from logical names to storage paths. Storage paths may carry the
// leading "$" projection sigil; it is stripped once here. identifierFields lists the logical fields
// whose stored values are ObjectIDs.
func NewFieldMapping(fields map[string]string, identifierFields ...string) (*FieldMapping, error) {
	if len(fields) == 0 {
		return nil, errors.New("field mapping cannot be empty")
	}

	m := &FieldMapping{
		paths:   make(map[string]string, len(fields)),
		logical: make([]string, 0, len(fields)),
		kinds:   make(map[string]FieldKind, len(identifierFields)),
	}
	for logical, storage := range fields {
		name := strings.TrimSpace(logical)
		path := strings.TrimPrefix(strings.TrimSpace(storage), projectionSigil)
		if name == "" || path == "" {
			return nil, fmt.Errorf("invalid field mapping entry %q -> %q", logical, storage)
		}
		m.paths[name] = path
		m.logical = append(m.logical, name)
	}
	sort.Strings(m.logical)

	if err := m.setKind(KindObjectID, identifierFields); err != nil {
		return nil, err
	}
	return m, nil
}

// WithKinds returns a copy of the mapping with fields declared as kind. The receiver is unchanged.
func (m *FieldMapping) WithKinds(kind FieldKind, fields ...string) (*FieldMapping, error) {
	out := &FieldMapping{
		paths:   m.paths,
		logical: m.logical,
		kinds:   make(map[string]FieldKind, len(m.kinds)+len(fields)),
	}
	for field, k := range m.kinds {
		out.kinds[field] = k
	}
	if err := out.setKind(kind, fields); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *FieldMapping) setKind(kind FieldKind, fields []string) error {
	for _, field := range fields {
		if _, ok := m.paths[field]; !ok {
			return &UnmappedFieldError{Field: field}
		}
		if prev, ok := m.kinds[field]; ok && prev != kind {
			return fmt.Errorf("field %q declared with two kinds", field)
		}
		m.kinds[field] = kind
	}
	return nil
}

// MustFieldMapping is NewFieldMapping for package-level resource declarations; it panics on error.
func MustFieldMapping(fields map[string]string, identifierFields ...string) *FieldMapping {
	m, err := NewFieldMapping(fields, identifierFields...)
	if err != nil {
		panic(err)
	}
	return m
}

// Resolve returns the storage path of a logical field.
func (m *FieldMapping) Resolve(field string) (string, error) {
	path, ok := m.paths[field]
	if !ok {
		return "", &UnmappedFieldError{Field: field}
	}
	return path, nil
}

// Has reports whether the logical field is mapped.
func (m *FieldMapping) Has(field string) bool {
	_, ok := m.paths[field]
	return ok
}

// Kind returns the declared kind of a field, KindInferred when none was declared.
func (m *FieldMapping) Kind(field string) FieldKind {
	return m.kinds[field]
}

// IsIdentifier reports whether the field stores ObjectIDs.
func (m *FieldMapping) IsIdentifier(field string) bool {
	return m.Kind(field) == KindObjectID
}

// Fields returns the logical field names in lexical order.
func (m *FieldMapping) Fields() []string {
	out := make([]string, len(m.logical))
	copy(out, m.logical)
	return out
}

// Validate checks that every given field is mapped and reports all the ones that are not.
func (m *FieldMapping) Validate(fields ...string) error {
	var errs []error
	for _, field := range fields {
		if !m.Has(field) {
			errs = append(errs, &UnmappedFieldError{Field: field})
		}
	}
	return errors.Join(errs...)
}

// Projection builds the $project document that reshapes stored documents into logical fields.
func (m *FieldMapping) Projection() bson.D {
	projection := make(bson.D, 0, len(m.logical))
	for _, field := range m.logical {
		projection = append(projection, bson.E{Key: field, Value: projectionSigil + m.paths[field]})
	}
	return projection
}
