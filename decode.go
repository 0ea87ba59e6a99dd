package chatloop

import (
	"encoding/json"
	"maps"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
)

// Decoder provides JSON Schema generation and validated argument parsing for
// type T without binding to the Function interface. Use it in custom
// orchestrators that need schema export and validated decoding but not the
// standard Call pipeline.
type Decoder[T any] struct {
	schemaMap map[string]any
	resolved  *jsonschema.Resolved
}

// NewDecoder creates a Decoder for argument type T. When strict is true, the
// generated schema has additionalProperties: false for all objects and all
// properties required (OpenAI Structured Outputs).
func NewDecoder[T any](strict bool) (*Decoder[T], error) {
	schemaMap, resolved, err := generateSchema[T](strict)
	if err != nil {
		return nil, err
	}
	return &Decoder[T]{
		schemaMap: schemaMap,
		resolved:  resolved,
	}, nil
}

// Schema returns a shallow copy of the JSON Schema (top-level keys only).
// Nested maps are shared; callers must not mutate them.
func (d *Decoder[T]) Schema() map[string]any {
	return maps.Clone(d.schemaMap)
}

// Decode deserializes argsJSON into T, runs schema validation and then
// Validatable.Validate() if T implements it. Returns ClientError for invalid
// JSON or validation failures so the orchestration loop can feed the message
// back to the model for self-correction.
func (d *Decoder[T]) Decode(argsJSON []byte) (T, error) {
	var zero T
	var v any
	if err := json.Unmarshal(argsJSON, &v); err != nil {
		return zero, wrapJSONParseError(err)
	}
	if err := validateAgainstSchema(d.resolved, v); err != nil {
		return zero, err
	}
	var args T
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return zero, wrapJSONParseError(err)
	}
	if err := runCustomValidation(args); err != nil {
		if IsClientError(err) {
			return zero, err
		}
		return zero, &ClientError{Reason: err.Error(), Err: ErrValidation}
	}
	return args, nil
}

// runCustomValidation runs Validatable.Validate() on args; if args does not
// implement Validatable, it tries &args for value types (pointer receiver).
// Never calls Validate twice for the same receiver.
func runCustomValidation[T any](args T) error {
	if err := validateCustom(any(args)); err != nil {
		return err
	}
	if _, ok := any(args).(Validatable); ok {
		return nil
	}
	typ := reflect.TypeOf(args)
	if typ == nil || typ.Kind() == reflect.Pointer {
		return nil
	}
	return validateCustom(any(&args))
}
