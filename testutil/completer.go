// Package testutil provides test helpers for chatloop (scripted completer,
// recording sink).
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/skosovsky/chatloop"
)

// ErrScriptExhausted is returned by ScriptedCompleter when a conversation
// asks for more turns than were scripted.
var ErrScriptExhausted = errors.New("scripted completer: no more turns")

// Turn is one scripted model response: its deltas are streamed in order, then
// Err (if set) terminates the stream to simulate an interruption.
type Turn struct {
	Deltas []chatloop.Delta
	Err    error
}

// TextTurn scripts a text answer streamed as the given fragments.
func TextTurn(fragments ...string) Turn {
	t := Turn{}
	for _, f := range fragments {
		t.Deltas = append(t.Deltas, chatloop.Delta{Content: f})
	}
	return t
}

// CallTurn scripts a function call: the name arrives first, then the argument
// payload as the given fragments.
func CallTurn(name string, argFragments ...string) Turn {
	t := Turn{Deltas: []chatloop.Delta{{FunctionName: name}}}
	for _, f := range argFragments {
		t.Deltas = append(t.Deltas, chatloop.Delta{Arguments: f})
	}
	return t
}

// ErrTurn scripts a stream that delivers the given deltas and then fails.
func ErrTurn(err error, deltas ...chatloop.Delta) Turn {
	return Turn{Deltas: deltas, Err: err}
}

// ScriptedCompleter is a Completer that plays back scripted turns in order.
// Each Stream call consumes one turn. Safe for concurrent use; a Stream call
// past the end of the script returns ErrScriptExhausted.
type ScriptedCompleter struct {
	mu    sync.Mutex
	turns []Turn
	next  int

	// Requests records the messages and definitions of every Stream call for
	// assertions on what the model was shown.
	Requests []Request
}

// Request captures the inputs of one Stream call.
type Request struct {
	Messages  []chatloop.Message
	Functions []chatloop.Definition
}

// NewScriptedCompleter creates a completer playing back the given turns.
func NewScriptedCompleter(turns ...Turn) *ScriptedCompleter {
	return &ScriptedCompleter{turns: turns}
}

// Stream plays back the next scripted turn.
func (s *ScriptedCompleter) Stream(ctx context.Context, messages []chatloop.Message, functions []chatloop.Definition, yield func(chatloop.Delta) error) error {
	s.mu.Lock()
	s.Requests = append(s.Requests, Request{Messages: messages, Functions: functions})
	if s.next >= len(s.turns) {
		s.mu.Unlock()
		return ErrScriptExhausted
	}
	turn := s.turns[s.next]
	s.next++
	s.mu.Unlock()

	for _, d := range turn.Deltas {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := yield(d); err != nil {
			return err
		}
	}
	return turn.Err
}

// Calls returns how many Stream calls were made.
func (s *ScriptedCompleter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}

var _ chatloop.Completer = (*ScriptedCompleter)(nil)
