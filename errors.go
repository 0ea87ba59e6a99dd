package chatloop

import (
	"errors"
	"fmt"
)

// Sentinel errors for chatloop. Use errors.Is to check.
var (
	ErrFunctionNotFound   = errors.New("function not found")
	ErrValidation         = errors.New("validation failed")
	ErrMalformedArguments = errors.New("malformed function arguments")
	ErrMaxIterations      = errors.New("max iterations exceeded")
	ErrTimeout            = errors.New("function invocation timeout")
)

// SchemaError reports a registration failure: missing description, invalid
// function name, or an argument type that cannot be described as JSON Schema.
// Registration errors are programmer mistakes and are never fed to the model.
type SchemaError struct {
	Function string
	Reason   string
	Err      error // wrapped cause, may be nil
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid function %q: %s", e.Function, e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ClientError is an error caused by the model's own output (invalid JSON,
// schema validation failure, bad enum value). It is fed back to the model as
// a failed function result so the model can self-correct.
// Err optionally wraps a sentinel (e.g. ErrValidation, ErrMalformedArguments)
// for errors.Is/errors.As.
type ClientError struct {
	Reason string
	Err    error // wrapped sentinel for errors.Is/errors.As
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("invalid function arguments: %s", e.Reason)
}

// Unwrap supports errors.Is/errors.As on wrapped chains (e.g. errors.Is(err, ErrValidation)).
func (e *ClientError) Unwrap() error { return e.Err }

// ExecutionError reports that a registered function returned an error or
// panicked. The original message is preserved so the model can react to the
// failure instead of the process crashing.
type ExecutionError struct {
	Function string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("function %q failed: %v", e.Function, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// SerializationError reports a function return value that could not be
// encoded as JSON for the model.
type SerializationError struct {
	Function string
	Err      error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("function %q returned a non-serializable value: %v", e.Function, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// StreamError reports that the model response stream terminated early or
// errored mid-delivery. Fatal to the Submit call; the message log is left in
// its last consistent state.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream interrupted: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// IsClientError returns true if err is or wraps a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsRecoverable reports whether an invocation error should be converted into
// a failed function-result message and fed back to the model rather than
// surfaced to the caller. Errors in the model's own output and failures of
// the registered function recover; transport and configuration errors do not.
func IsRecoverable(err error) bool {
	if IsClientError(err) {
		return true
	}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return true
	}
	var se *SerializationError
	return errors.As(err, &se)
}

// wrapJSONParseError returns a ClientError for JSON unmarshal failures.
// Used by Decoder.Decode and the raw function path so parse errors are consistent.
func wrapJSONParseError(err error) error {
	return &ClientError{Reason: "json parse error: " + err.Error(), Err: ErrMalformedArguments}
}

// panicError wraps a recovered panic value; used by Registry and WithRecovery middleware.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
