package query

import (
	"errors"
	"fmt"
)

// ErrInvalidPagination is returned when a cursor is malformed or does not match the active orders.
var ErrInvalidPagination = errors.New("invalid pagination")

// ErrUnmappedField is matched by every UnmappedFieldError.
var ErrUnmappedField = errors.New("unmapped field")

// UnmappedFieldError reports a logical field that has no storage path in a field mapping.
type UnmappedFieldError struct {
	Field string
}

// Error implements the error interface.
func (e *UnmappedFieldError) Error() string {
	return fmt.Sprintf("unmapped field %q", e.Field)
}

// Is makes errors.Is(err, ErrUnmappedField) hold for any UnmappedFieldError.
func (e *UnmappedFieldError) Is(target error) bool {
	return target == ErrUnmappedField
}

// InvalidPagination builds an error matching ErrInvalidPagination with a detail message.
func InvalidPagination(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPagination, fmt.Sprintf(format, args...))
}
