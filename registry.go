package chatloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Registry maps function names to registered functions and dispatches model
// calls to them with validation, timeout, and optional panic recovery.
// Insertion order is preserved so the schema list presented to the model is
// deterministic. Safe for concurrent use.
type Registry struct {
	mu          sync.Mutex
	order       []string
	funcs       map[string]Function // wrapped with middlewares, used by Invoke
	rawFuncs    map[string]Function // unwrapped, used by Use() to re-apply middlewares from scratch
	opts        registryOptions
	middlewares []Middleware
}

// NewRegistry creates a Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{
		timeout:       30 * time.Second,
		recoverPanics: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		funcs:    make(map[string]Function),
		rawFuncs: make(map[string]Function),
		opts:     o,
	}
}

// Register adds a function. Stored middlewares (see Use) are applied before
// registration. Re-registering a name replaces the prior function and keeps
// its position in the advertised schema order. Side effect: subsequent model
// requests advertise this function.
func (r *Registry) Register(f Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := f.Name()
	if _, exists := r.rawFuncs[name]; !exists {
		r.order = append(r.order, name)
	}
	r.rawFuncs[name] = f
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		f = r.middlewares[i](f)
	}
	r.funcs[name] = f
}

// Unregister removes the function with the given name.
// Returns ErrFunctionNotFound if it was never registered.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rawFuncs[name]; !ok {
		return fmt.Errorf("unregister %q: %w", name, ErrFunctionNotFound)
	}
	delete(r.rawFuncs, name)
	delete(r.funcs, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the function with the given name (after middlewares are applied),
// or (nil, false) if not found.
func (r *Registry) Get(name string) (Function, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.funcs[name]
	return f, ok
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rawFuncs)
}

// Definitions returns the model-facing descriptions of all registered
// functions in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		f := r.funcs[name]
		out = append(out, Definition{
			Name:        f.Name(),
			Description: f.Description(),
			Parameters:  f.Parameters(),
		})
	}
	return out
}

// Invoke looks up the named function, validates and decodes the raw argument
// payload, and runs the bound callable. Errors from the payload come back as
// ClientError, failures of the callable as ExecutionError; both are meant to
// be fed back to the model as failed function results. ErrFunctionNotFound
// is returned for unknown names.
func (r *Registry) Invoke(ctx context.Context, name string, argsJSON []byte) (result []byte, err error) {
	r.mu.Lock()
	f, ok := r.funcs[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("invoke %q: %w", name, ErrFunctionNotFound)
	}

	timeout := r.opts.timeout
	if fm, ok := f.(FunctionMetadata); ok && fm.Timeout() > 0 {
		timeout = fm.Timeout()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	if r.opts.onAfter != nil {
		// Registered before the recover defer so the hook sees the final
		// error even when the callable panics.
		defer func() {
			r.opts.onAfter(ctx, name, result, err, time.Since(start))
		}()
	}
	if r.opts.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				result = nil
				err = &ExecutionError{Function: name, Err: &panicError{p: p}}
			}
		}()
	}

	if r.opts.onBefore != nil {
		r.opts.onBefore(ctx, name, argsJSON)
	}

	result, err = f.Call(ctx, argsJSON)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		// A slow callable is an execution failure: feed it back to the model.
		err = &ExecutionError{Function: name, Err: ErrTimeout}
	}
	return result, err
}
