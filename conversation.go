package chatloop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultMaxIterations bounds the number of model turns one Submit call may
// take. Nothing stops a model from calling a function forever; the cap turns
// a runaway loop into ErrMaxIterations.
const DefaultMaxIterations = 10

// Conversation orchestrates a multi-turn chat with function calling: it sends
// the message log plus the registry's schemas to the model, assembles the
// streamed response, dispatches function calls, feeds results back, and
// repeats until the model produces a plain-text answer.
//
// A Conversation owns its Log and Registry; both die with it. One Submit runs
// at a time per Conversation, preserving strict message order (the contract
// the model relies on for context). Independent Conversations share nothing
// and may run concurrently.
type Conversation struct {
	completer     Completer
	registry      *Registry
	log           *Log
	sink          Sink
	logger        *slog.Logger
	system        string
	maxIterations int

	mu sync.Mutex // serializes Submit calls
}

// ConversationOption configures a Conversation.
type ConversationOption func(*Conversation)

// WithMaxIterations sets the per-Submit cap on model turns.
func WithMaxIterations(n int) ConversationOption {
	return func(c *Conversation) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithSystemPrompt seeds the log with a system message before the first user
// message.
func WithSystemPrompt(prompt string) ConversationOption {
	return func(c *Conversation) {
		c.system = prompt
	}
}

// WithSink sets the display sink receiving streamed events. Delivery is
// asynchronous and best-effort; the sink never blocks the loop.
func WithSink(s Sink) ConversationOption {
	return func(c *Conversation) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithLogger sets the structured logger for loop diagnostics.
func WithLogger(l *slog.Logger) ConversationOption {
	return func(c *Conversation) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRegistry replaces the conversation's function registry, e.g. to share
// pre-built functions or registry options.
func WithRegistry(r *Registry) ConversationOption {
	return func(c *Conversation) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithMessages seeds the log with an initial context of messages.
func WithMessages(msgs ...Message) ConversationOption {
	return func(c *Conversation) {
		c.log.Append(msgs...)
	}
}

// New creates a Conversation driven by the given completer.
func New(completer Completer, opts ...ConversationOption) *Conversation {
	c := &Conversation{
		completer:     completer,
		registry:      NewRegistry(),
		log:           NewLog(),
		sink:          NopSink{},
		logger:        slog.New(slog.DiscardHandler),
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a function to the conversation's registry; subsequent model
// requests advertise it.
func (c *Conversation) Register(f Function) {
	c.registry.Register(f)
}

// Unregister removes a function by name.
func (c *Conversation) Unregister(name string) error {
	return c.registry.Unregister(name)
}

// Registry returns the conversation's function registry.
func (c *Conversation) Registry() *Registry { return c.registry }

// Messages returns an ordered copy of the conversation so far.
func (c *Conversation) Messages() []Message { return c.log.Snapshot() }

// Truncate drops the oldest messages, keeping at most keepLastN. Context
// management is the caller's decision; the loop never truncates on its own.
func (c *Conversation) Truncate(keepLastN int) { c.log.Truncate(keepLastN) }

// Submit appends a user message and runs the orchestration loop until the
// model answers with plain text, returning that answer.
func (c *Conversation) Submit(ctx context.Context, text string) (string, error) {
	return c.SubmitMessage(ctx, User(text))
}

// SubmitMessage is Submit for a pre-built message.
//
// Error policy: bad model output (malformed or invalid arguments) and
// failures of registered functions are converted into failed function-result
// messages and fed back to the model. Transport failures surface as
// StreamError, unknown function names as ErrFunctionNotFound, and a runaway
// call loop as ErrMaxIterations; in all fatal cases the log is left in its
// last consistent state with no partial turn appended.
func (c *Conversation) SubmitMessage(ctx context.Context, msg Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sink := newAsyncSink(c.sink)
	defer sink.close()

	if c.log.Len() == 0 && c.system != "" {
		c.log.Append(System(c.system))
	}
	c.log.Append(msg)

	for i := 0; i < c.maxIterations; i++ {
		c.logger.Debug("model turn", "iteration", i+1)
		asm := NewAssembler(sink)
		if err := c.completer.Stream(ctx, c.log.Snapshot(), c.registry.Definitions(), asm.Feed); err != nil {
			return "", &StreamError{Err: err}
		}
		out, err := asm.Finish()
		if err != nil {
			if IsClientError(err) && out.Call != nil {
				// The model produced an unparseable payload: nothing is
				// invoked, the failure goes back as data for self-correction.
				c.logger.Warn("malformed function call payload", "function", out.Call.Name)
				c.log.Append(
					AssistantFunctionCall(out.Call.Name, out.Call.Arguments),
					FailedFunctionResult(out.Call.Name, err),
				)
				sink.CallFinished(out.Call.Name, nil, []byte(err.Error()), false)
				continue
			}
			return "", err
		}

		if out.Call == nil {
			c.log.Append(Assistant(out.Text))
			return out.Text, nil
		}

		c.logger.Info("function call", "function", out.Call.Name)
		result, err := c.registry.Invoke(ctx, out.Call.Name, out.Args)
		if err != nil && !IsRecoverable(err) {
			// Unknown function name or caller cancellation mid-invoke:
			// fatal, and nothing from this turn is appended.
			return "", err
		}
		callMsg := AssistantFunctionCall(out.Call.Name, out.Call.Arguments)
		if err != nil {
			c.logger.Warn("function failed", "function", out.Call.Name, "error", err)
			c.log.Append(callMsg, FailedFunctionResult(out.Call.Name, err))
			sink.CallFinished(out.Call.Name, out.Args, []byte(err.Error()), false)
			continue
		}
		c.log.Append(callMsg, FunctionResult(out.Call.Name, string(result)))
		sink.CallFinished(out.Call.Name, out.Args, result, true)
	}

	return "", fmt.Errorf("%w after %d model turns", ErrMaxIterations, c.maxIterations)
}
