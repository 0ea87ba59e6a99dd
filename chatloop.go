package chatloop

import (
	"context"
	"time"
)

// Function is the contract for a model-callable function.
// It is provider-agnostic (no knowledge of OpenAI, Anthropic, etc.).
type Function interface {
	Name() string
	Description() string
	// Parameters returns a valid JSON Schema as map (compatible with LLM function definitions).
	Parameters() map[string]any
	// Call runs the function with the raw JSON argument payload and returns
	// the JSON-encoded result. Argument validation happens before the bound
	// callable runs; a payload that fails validation never reaches it.
	Call(ctx context.Context, argsJSON []byte) ([]byte, error)
}

// FunctionMetadata is implemented by functions created with NewFunction and
// exposes optional per-function settings. Registry uses Timeout() to override
// its default invocation timeout when set.
type FunctionMetadata interface {
	Timeout() time.Duration
}

// Definition is the model-facing description of one registered function,
// advertised on every request.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Delta is one fragment of a streamed model response. Text responses carry
// Content; function-call responses carry FunctionName on the first fragment
// and Arguments payload text on subsequent ones.
type Delta struct {
	Content      string
	FunctionName string
	Arguments    string
}

// Completer streams one model response for the given history and function
// definitions, invoking yield per fragment in arrival order. If yield returns
// an error the stream must stop and that error is returned. A nil return
// means the response completed normally.
type Completer interface {
	Stream(ctx context.Context, messages []Message, functions []Definition, yield func(Delta) error) error
}
