package chatloop

import (
	"context"
	"time"
)

// functionOptions hold optional per-function settings.
type functionOptions struct {
	strict  bool
	timeout time.Duration
}

// FunctionOption configures a function built with NewFunction or NewRawFunction.
type FunctionOption func(*functionOptions)

// WithStrict sets strict mode for the derived schema: additionalProperties:
// false for all objects, and all properties become required. Use for OpenAI
// Structured Outputs compatibility.
func WithStrict() FunctionOption {
	return func(o *functionOptions) {
		o.strict = true
	}
}

// WithTimeout sets a per-function invocation timeout, overriding the registry default.
func WithTimeout(d time.Duration) FunctionOption {
	return func(o *functionOptions) {
		o.timeout = d
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	timeout       time.Duration
	recoverPanics bool
	onBefore      func(ctx context.Context, name string, argsJSON []byte)
	onAfter       func(ctx context.Context, name string, result []byte, err error, d time.Duration)
}

// WithDefaultTimeout sets the default invocation timeout for registered
// functions. Pass 0 to disable.
func WithDefaultTimeout(d time.Duration) RegistryOption {
	return func(o *registryOptions) {
		o.timeout = d
	}
}

// WithRecoverPanics enables panic recovery in Invoke (reported as ExecutionError).
func WithRecoverPanics(enable bool) RegistryOption {
	return func(o *registryOptions) {
		o.recoverPanics = enable
	}
}

// WithOnBeforeInvoke sets a hook called before each function invocation.
func WithOnBeforeInvoke(fn func(ctx context.Context, name string, argsJSON []byte)) RegistryOption {
	return func(o *registryOptions) {
		o.onBefore = fn
	}
}

// WithOnAfterInvoke sets a hook called after each function invocation
// (success or error) with the marshaled result and duration.
func WithOnAfterInvoke(fn func(ctx context.Context, name string, result []byte, err error, d time.Duration)) RegistryOption {
	return func(o *registryOptions) {
		o.onAfter = fn
	}
}
