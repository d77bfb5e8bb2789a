package config

import "reflect"

const redactedValue = "***"

// Redacted returns a copy of c with secret values masked. A string field is masked when it is
// tagged secret:"true" or when secrets, the values loaded from the secrets file, sets it.
// Empty values stay empty so that a missing secret remains visible.
func (c *Config) Redacted(secrets *Config) *Config {
	out := *c
	var mask reflect.Value
	if secrets != nil {
		mask = reflect.ValueOf(secrets).Elem()
	}
	redactStruct(reflect.ValueOf(&out).Elem(), mask)
	return &out
}

func redactStruct(v, mask reflect.Value) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)
		if !value.CanSet() {
			continue
		}

		var maskValue reflect.Value
		if mask.IsValid() {
			maskValue = mask.Field(i)
		}

		switch value.Kind() {
		case reflect.Struct:
			redactStruct(value, maskValue)
		case reflect.String:
			if value.String() == "" {
				continue
			}
			if field.Tag.Get("secret") == "true" || shouldRedact(maskValue) {
				value.SetString(redactedValue)
			}
		}
	}
}

func shouldRedact(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}

	switch v.Kind() {
	case reflect.String:
		return v.String() != ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() != 0
	case reflect.Float32, reflect.Float64:
		return v.Float() != 0
	case reflect.Bool:
		return v.Bool()
	default:
		return false
	}
}
