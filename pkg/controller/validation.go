package controller

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/nimburion/movieship/pkg/catalog"
)

// Validator is an interface that inputs can implement to provide custom validation logic
type Validator interface {
	Validate() error
}

// ValidateInput checks an input before it reaches the catalog. Inputs implementing Validator
// are validated by it; structs are checked for exported fields tagged validate:"required".
// Every failure matches catalog.ErrInvalidInput.
func ValidateInput(input any) error {
	v := reflect.ValueOf(input)
	if input == nil || (v.Kind() == reflect.Ptr && v.IsNil()) {
		return fmt.Errorf("%w: input cannot be nil", catalog.ErrInvalidInput)
	}

	if validator, ok := input.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("%w: %v", catalog.ErrInvalidInput, err)
		}
		return nil
	}
	return validateStruct(v)
}

func validateStruct(v reflect.Value) error {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	var missing []string
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if strings.Contains(field.Tag.Get("validate"), "required") && v.Field(i).IsZero() {
			missing = append(missing, fieldName(field))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", catalog.ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// fieldName prefers the JSON name, the one callers see.
func fieldName(f reflect.StructField) string {
	if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
		return name
	}
	return f.Name
}
