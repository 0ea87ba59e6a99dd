package chatloop

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFunction[T, R any](t *testing.T, name, desc string, fn func(context.Context, T) (R, error), opts ...FunctionOption) Function {
	t.Helper()
	f, err := NewFunction(name, desc, fn, opts...)
	require.NoError(t, err)
	return f
}

func TestRegistry_RegisterInvoke(t *testing.T) {
	type A struct {
		X int `json:"x"`
	}
	type R struct {
		Y int `json:"y"`
	}
	double := mustFunction(t, "double", "Double x", func(_ context.Context, a A) (R, error) {
		return R{Y: a.X * 2}, nil
	})
	reg := NewRegistry(WithDefaultTimeout(time.Second))
	reg.Register(double)
	require.Equal(t, 1, reg.Len())

	res, err := reg.Invoke(context.Background(), "double", []byte(`{"x": 7}`))
	require.NoError(t, err)
	var out R
	require.NoError(t, json.Unmarshal(res, &out))
	assert.Equal(t, 14, out.Y)
}

func TestRegistry_InvokeMatchesDirectCall(t *testing.T) {
	type A struct {
		X int `json:"x"`
	}
	raw := func(_ context.Context, a A) (int, error) { return a.X + 41, nil }
	reg := NewRegistry()
	reg.Register(mustFunction(t, "inc", "Increment", raw))

	res, err := reg.Invoke(context.Background(), "inc", []byte(`{"x": 1}`))
	require.NoError(t, err)
	direct, err := raw(context.Background(), A{X: 1})
	require.NoError(t, err)
	assert.Equal(t, "42", string(res))
	assert.Equal(t, 42, direct)
}

func TestRegistry_Invoke_NotFound(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Invoke(context.Background(), "missing", []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFunctionNotFound)
	assert.False(t, IsRecoverable(err))
}

func TestRegistry_Register_Replace(t *testing.T) {
	type A struct {
		X int `json:"x"`
	}
	reg := NewRegistry()
	reg.Register(mustFunction(t, "same", "First", func(_ context.Context, a A) (int, error) {
		return a.X, nil
	}))
	reg.Register(mustFunction(t, "other", "Other", func(_ context.Context, a A) (int, error) {
		return 0, nil
	}))
	reg.Register(mustFunction(t, "same", "Second", func(_ context.Context, a A) (int, error) {
		return a.X * 10, nil
	}))

	// Replaced, never duplicated; position in the advertised order is kept.
	require.Equal(t, 2, reg.Len())
	defs := reg.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "same", defs[0].Name)
	assert.Equal(t, "Second", defs[0].Description)
	assert.Equal(t, "other", defs[1].Name)

	res, err := reg.Invoke(context.Background(), "same", []byte(`{"x": 5}`))
	require.NoError(t, err)
	assert.Equal(t, "50", string(res))
}

func TestRegistry_Unregister(t *testing.T) {
	type A struct{}
	reg := NewRegistry()
	reg.Register(mustFunction(t, "f", "F", func(_ context.Context, _ A) (string, error) {
		return "ok", nil
	}))
	require.NoError(t, reg.Unregister("f"))
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.Definitions())

	err := reg.Unregister("f")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFunctionNotFound)
}

func TestRegistry_Definitions_InsertionOrder(t *testing.T) {
	type A struct{}
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		reg.Register(mustFunction(t, name, "Fn "+name, func(_ context.Context, _ A) (string, error) {
			return "", nil
		}))
	}
	defs := reg.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "zeta", defs[0].Name)
	assert.Equal(t, "alpha", defs[1].Name)
	assert.Equal(t, "mid", defs[2].Name)
}

func TestRegistry_Invoke_ValidationError(t *testing.T) {
	type A struct {
		X int `json:"x"`
	}
	var called bool
	reg := NewRegistry()
	reg.Register(mustFunction(t, "strictly", "Strict", func(_ context.Context, _ A) (string, error) {
		called = true
		return "", nil
	}))
	_, err := reg.Invoke(context.Background(), "strictly", []byte(`{"x": "nope"}`))
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.False(t, called)
}

func TestRegistry_Invoke_PanicRecovery(t *testing.T) {
	type A struct{}
	reg := NewRegistry(WithRecoverPanics(true))
	reg.Register(mustFunction(t, "panics", "Panics", func(_ context.Context, _ A) (string, error) {
		panic("oops")
	}))
	_, err := reg.Invoke(context.Background(), "panics", []byte(`{}`))
	require.Error(t, err)
	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, err.Error(), "oops")
}

func TestRegistry_Invoke_Timeout(t *testing.T) {
	type A struct{}
	reg := NewRegistry(WithDefaultTimeout(20 * time.Millisecond))
	reg.Register(mustFunction(t, "slow", "Slow", func(ctx context.Context, _ A) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "done", nil
		}
	}))
	_, err := reg.Invoke(context.Background(), "slow", []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsRecoverable(err), "timeouts feed back to the model")
}

func TestRegistry_Invoke_PerFunctionTimeoutOverride(t *testing.T) {
	type A struct{}
	reg := NewRegistry(WithDefaultTimeout(time.Second))
	reg.Register(mustFunction(t, "slow", "Slow", func(ctx context.Context, _ A) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(500 * time.Millisecond):
			return "done", nil
		}
	}, WithTimeout(20*time.Millisecond)))
	start := time.Now()
	_, err := reg.Invoke(context.Background(), "slow", []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestRegistry_Hooks(t *testing.T) {
	type A struct {
		X int `json:"x"`
	}
	var beforeName string
	var afterCalls int
	var afterErr error
	var afterDur time.Duration
	reg := NewRegistry(
		WithOnBeforeInvoke(func(_ context.Context, name string, _ []byte) {
			beforeName = name
		}),
		WithOnAfterInvoke(func(_ context.Context, _ string, _ []byte, err error, d time.Duration) {
			afterCalls++
			afterErr = err
			afterDur = d
		}),
	)
	reg.Register(mustFunction(t, "add_one", "Add one", func(_ context.Context, a A) (int, error) {
		return a.X + 1, nil
	}))

	_, err := reg.Invoke(context.Background(), "add_one", []byte(`{"x": 10}`))
	require.NoError(t, err)
	assert.Equal(t, "add_one", beforeName)
	assert.Equal(t, 1, afterCalls)
	assert.NoError(t, afterErr)
	assert.GreaterOrEqual(t, afterDur, time.Duration(0))
}

func TestRegistry_Hooks_ErrorPath(t *testing.T) {
	type A struct{}
	boom := errors.New("went wrong")
	var afterErr error
	reg := NewRegistry(WithOnAfterInvoke(func(_ context.Context, _ string, _ []byte, err error, _ time.Duration) {
		afterErr = err
	}))
	reg.Register(mustFunction(t, "fail", "Fails", func(_ context.Context, _ A) (string, error) {
		return "", boom
	}))
	_, err := reg.Invoke(context.Background(), "fail", []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, afterErr, boom)
}
