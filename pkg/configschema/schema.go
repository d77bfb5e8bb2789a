// Package configschema derives a JSON Schema from the movieship configuration structs and checks
// configuration files against it.
package configschema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/nimburion/movieship/pkg/config"
	"gopkg.in/yaml.v3"
)

const draft202012 = "https://json-schema.org/draft/2020-12/schema"

var durationType = reflect.TypeOf(time.Duration(0))

// ErrInvalidDocument is returned by ValidateDocument when a file does not match the schema.
var ErrInvalidDocument = errors.New("configuration file does not match schema")

// enums lists the closed value sets of string keys, by dotted path.
var enums = map[string][]any{
	"observability.log_level":  {"debug", "info", "warn", "error"},
	"observability.log_format": {"json", "text"},
}

// BuildSchema returns the schema of config.Config with defaults taken from defaults.
// A nil defaults uses config.DefaultConfig(). Keys tagged secret are marked writeOnly.
func BuildSchema(defaults *config.Config) (*jsonschema.Schema, error) {
	if defaults == nil {
		defaults = config.DefaultConfig()
	}
	t := reflect.TypeOf(config.Config{})
	schema, err := jsonschema.ForType(t, &jsonschema.ForOptions{
		IgnoreInvalidTypes: true,
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			durationType: {Type: "string", Pattern: `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build config schema: %w", err)
	}

	applyFieldNames(schema, t, "")
	injectDefaults(schema, reflect.ValueOf(defaults))
	pruneRequired(schema)

	name := strings.TrimSpace(defaults.Service.Name)
	if name == "" {
		name = "movieship"
	}
	schema.Title = name + " Configuration"
	schema.Description = "Schema for " + name + " configuration."
	schema.Schema = draft202012
	return schema, nil
}

// ValidateDocument checks a YAML or JSON configuration document against schema. Unknown keys
// are reported. Every error wraps ErrInvalidDocument.
func ValidateDocument(schema *jsonschema.Schema, raw []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc == nil {
		return nil
	}
	// Round trip through JSON so numbers and maps take the shapes the validator expects.
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	var instance map[string]any
	if err := json.Unmarshal(payload, &instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve config schema: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

// applyFieldNames renames properties from Go field names to configuration keys and annotates
// secrets and enums.
func applyFieldNames(schema *jsonschema.Schema, t reflect.Type, path string) {
	if schema == nil || t.Kind() != reflect.Struct || len(schema.Properties) == 0 {
		return
	}
	names := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonName := jsonFieldName(field)
		key := fieldKeyName(field)
		names[jsonName] = key

		prop, ok := schema.Properties[jsonName]
		if !ok {
			continue
		}
		delete(schema.Properties, jsonName)
		schema.Properties[key] = prop

		full := key
		if path != "" {
			full = path + "." + key
		}
		if field.Tag.Get("secret") == "true" {
			prop.WriteOnly = true
		}
		if values, ok := enums[full]; ok {
			prop.Enum = values
		}
		applyFieldNames(prop, field.Type, full)
	}
	schema.Required = rename(schema.Required, names)
	schema.PropertyOrder = rename(schema.PropertyOrder, names)
}

func rename(values []string, names map[string]string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if mapped, ok := names[v]; ok {
			v = mapped
		}
		out = append(out, v)
	}
	return out
}

// injectDefaults copies leaf values of value into the matching property defaults.
func injectDefaults(schema *jsonschema.Schema, value reflect.Value) {
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return
		}
		value = value.Elem()
	}
	if schema == nil || value.Kind() != reflect.Struct {
		return
	}
	t := value.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		prop, ok := schema.Properties[fieldKeyName(field)]
		if !ok {
			continue
		}
		fieldVal := value.Field(i)
		if fieldVal.Kind() == reflect.Struct && fieldVal.Type() != durationType {
			injectDefaults(prop, fieldVal)
			continue
		}
		if prop.Default == nil {
			if raw, ok := marshalDefault(fieldVal); ok {
				prop.Default = raw
			}
		}
	}
}

// pruneRequired drops required keys that have a default, and sections whose keys all do.
func pruneRequired(schema *jsonschema.Schema) {
	if schema == nil {
		return
	}
	for _, prop := range schema.Properties {
		pruneRequired(prop)
	}
	if len(schema.Required) == 0 {
		return
	}
	kept := make([]string, 0, len(schema.Required))
	for _, name := range schema.Required {
		prop := schema.Properties[name]
		optional := prop != nil && (prop.Default != nil || (prop.Type == "object" && len(prop.Required) == 0))
		if !optional {
			kept = append(kept, name)
		}
	}
	schema.Required = kept
}

func marshalDefault(value reflect.Value) (json.RawMessage, bool) {
	if !value.IsValid() {
		return nil, false
	}
	var v any = value.Interface()
	if value.Type() == durationType {
		v = value.Interface().(time.Duration).String()
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return payload, true
}

func fieldKeyName(field reflect.StructField) string {
	for _, tag := range []string{"mapstructure", "yaml"} {
		if name, _, _ := strings.Cut(field.Tag.Get(tag), ","); name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(field.Name)
}

func jsonFieldName(field reflect.StructField) string {
	if name, _, _ := strings.Cut(field.Tag.Get("json"), ","); name != "" && name != "-" {
		return name
	}
	return field.Name
}
