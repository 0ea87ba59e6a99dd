package chatloop

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"time"
)

// Valid function identifiers: what the OpenAI API accepts for function names.
var functionNameRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// function is the internal implementation of Function built by NewFunction or NewRawFunction.
type function struct {
	name        string
	description string
	schema      map[string]any
	call        func(context.Context, []byte) ([]byte, error)
	opts        functionOptions
}

// NewFunction builds a Function from a typed callable. The parameter schema
// is derived from the argument struct T at build time; required vs optional
// mirrors the struct declaration (omitempty and pointer fields are optional).
// Call decodes and validates the payload, runs fn, and marshals the result.
// Returns SchemaError if the name is not a valid identifier, the description
// is empty, or T cannot be described as JSON Schema.
func NewFunction[T any, R any](
	name, description string,
	fn func(ctx context.Context, args T) (R, error),
	opts ...FunctionOption,
) (Function, error) {
	var o functionOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := checkNameAndDescription(name, description); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, &SchemaError{Function: name, Reason: "callable must not be nil"}
	}
	dec, err := NewDecoder[T](o.strict)
	if err != nil {
		return nil, &SchemaError{Function: name, Reason: "schema generation failed: " + err.Error(), Err: err}
	}
	call := func(ctx context.Context, argsJSON []byte) ([]byte, error) {
		args, err := dec.Decode(argsJSON)
		if err != nil {
			return nil, err
		}
		res, err := fn(ctx, args)
		if err != nil {
			return nil, wrapCallableError(name, err)
		}
		b, err := json.Marshal(res)
		if err != nil {
			return nil, &SerializationError{Function: name, Err: err}
		}
		return b, nil
	}
	return &function{
		name:        name,
		description: description,
		schema:      dec.Schema(),
		call:        call,
		opts:        o,
	}, nil
}

// NewRawFunction creates a Function from a raw JSON Schema map (e.g. built
// with ObjectSchema) and a callable that receives the validated raw payload.
// Useful when no argument struct exists at compile time. The provided
// schemaMap is not mutated; a defensive copy is made before any modifications.
func NewRawFunction(
	name, description string,
	schemaMap map[string]any,
	fn func(ctx context.Context, argsJSON []byte) ([]byte, error),
	opts ...FunctionOption,
) (Function, error) {
	var o functionOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := checkNameAndDescription(name, description); err != nil {
		return nil, err
	}
	if schemaMap == nil {
		return nil, &SchemaError{Function: name, Reason: "schema map must not be nil"}
	}
	if fn == nil {
		return nil, &SchemaError{Function: name, Reason: "callable must not be nil"}
	}
	// Deep copy before any modifications so the caller's map is never mutated.
	data, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, &SchemaError{Function: name, Reason: "failed to copy schema map", Err: err}
	}
	var schemaCopy map[string]any
	if err := json.Unmarshal(data, &schemaCopy); err != nil {
		return nil, &SchemaError{Function: name, Reason: "failed to copy schema map", Err: err}
	}
	if o.strict {
		applyStrictMode(schemaCopy)
	}
	stripSchemaIDs(schemaCopy)
	compiled, err := compileRawSchema(schemaCopy)
	if err != nil {
		return nil, &SchemaError{Function: name, Reason: "failed to compile schema", Err: err}
	}
	call := func(ctx context.Context, argsJSON []byte) ([]byte, error) {
		var v any
		if err := json.Unmarshal(argsJSON, &v); err != nil {
			return nil, wrapJSONParseError(err)
		}
		if err := validateAgainstSchema(compiled, v); err != nil {
			return nil, err
		}
		res, err := fn(ctx, argsJSON)
		if err != nil {
			return nil, wrapCallableError(name, err)
		}
		return res, nil
	}
	return &function{
		name:        name,
		description: description,
		schema:      schemaCopy,
		call:        call,
		opts:        o,
	}, nil
}

func checkNameAndDescription(name, description string) error {
	if !functionNameRE.MatchString(name) {
		return &SchemaError{Function: name, Reason: fmt.Sprintf("name must match %s", functionNameRE)}
	}
	if description == "" {
		return &SchemaError{Function: name, Reason: "description must not be empty"}
	}
	return nil
}

func (f *function) Name() string        { return f.name }
func (f *function) Description() string { return f.description }

// Parameters returns a shallow copy of the JSON Schema (top-level keys only).
// Nested maps (e.g. under "properties") are shared; callers must not mutate them.
func (f *function) Parameters() map[string]any { return maps.Clone(f.schema) }

func (f *function) Call(ctx context.Context, argsJSON []byte) ([]byte, error) {
	return f.call(ctx, argsJSON)
}

func (f *function) Timeout() time.Duration { return f.opts.timeout }

// wrapCallableError passes through ClientError; wraps other errors as ExecutionError
// so the original message survives to the failed function-result message.
func wrapCallableError(name string, err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) {
		return err
	}
	return &ExecutionError{Function: name, Err: err}
}

var (
	_ Function         = (*function)(nil)
	_ FunctionMetadata = (*function)(nil)
)
