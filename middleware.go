package chatloop

import (
	"context"
	"log/slog"
	"time"
)

// Middleware wraps a Function with cross-cutting behavior (logging, recovery, timeout).
type Middleware func(Function) Function

// WithLogging returns a middleware that logs start, end, duration, and errors.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Function) Function {
		return &loggingFunction{functionBase: functionBase{next: next}, logger: logger}
	}
}

// WithRecovery returns a middleware that recovers panics and returns ExecutionError.
func WithRecovery() Middleware {
	return func(next Function) Function {
		return &recoveryFunction{functionBase{next: next}}
	}
}

// WithTimeoutMiddleware returns a middleware that enforces a per-function timeout.
// Named with "Middleware" suffix to avoid collision with FunctionOption WithTimeout.
// When both registry default timeout and this middleware apply, the effective
// timeout is the minimum of the two (inner context cancels first).
func WithTimeoutMiddleware(d time.Duration) Middleware {
	return func(next Function) Function {
		return &timeoutFunction{functionBase: functionBase{next: next}, timeout: d}
	}
}

// functionBase delegates Function and FunctionMetadata to the wrapped Function;
// used by middleware wrappers.
type functionBase struct{ next Function }

func (b *functionBase) Name() string               { return b.next.Name() }
func (b *functionBase) Description() string        { return b.next.Description() }
func (b *functionBase) Parameters() map[string]any { return b.next.Parameters() }

func (b *functionBase) Timeout() time.Duration {
	if fm, ok := b.next.(FunctionMetadata); ok {
		return fm.Timeout()
	}
	return 0
}

type loggingFunction struct {
	functionBase
	logger *slog.Logger
}

func (m *loggingFunction) Call(ctx context.Context, argsJSON []byte) ([]byte, error) {
	m.logger.Info("function start", "function", m.next.Name())
	start := time.Now()
	res, err := m.next.Call(ctx, argsJSON)
	dur := time.Since(start)
	if err != nil {
		m.logger.Error("function error", "function", m.next.Name(), "duration", dur, "error", err)
		return nil, err
	}
	m.logger.Info("function end", "function", m.next.Name(), "duration", dur)
	return res, nil
}

type recoveryFunction struct{ functionBase }

func (r *recoveryFunction) Call(ctx context.Context, argsJSON []byte) (res []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = &ExecutionError{Function: r.next.Name(), Err: &panicError{p: p}}
		}
	}()
	return r.next.Call(ctx, argsJSON)
}

type timeoutFunction struct {
	functionBase
	timeout time.Duration
}

func (t *timeoutFunction) Timeout() time.Duration {
	if t.timeout > 0 {
		return t.timeout
	}
	return t.functionBase.Timeout()
}

func (t *timeoutFunction) Call(ctx context.Context, argsJSON []byte) ([]byte, error) {
	if t.timeout <= 0 {
		return t.next.Call(ctx, argsJSON)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Call(ctx, argsJSON)
}

// Use stores the given middlewares and reapplies them from scratch to all
// registered functions (onion order: first middleware is outermost).
// Functions registered after Use also get these middlewares. Calling Use
// multiple times replaces the chain and rewraps from raw functions, avoiding
// double-wrapping.
func (r *Registry) Use(middlewares ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = middlewares
	for name, raw := range r.rawFuncs {
		f := raw
		for i := len(middlewares) - 1; i >= 0; i-- {
			f = middlewares[i](f)
		}
		r.funcs[name] = f
	}
}
