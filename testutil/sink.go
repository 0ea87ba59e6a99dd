package testutil

import (
	"encoding/json"
	"strings"
	"sync"
)

// SinkEvent is one recorded display event.
type SinkEvent struct {
	Kind      string // "text", "call_started", "call_arg", "call_finished"
	Name      string
	Text      string
	Arguments json.RawMessage
	Result    []byte
	OK        bool
}

// RecordingSink captures every display event for assertions. Safe for
// concurrent use; sink delivery is asynchronous, so tests should assert after
// Submit has returned.
type RecordingSink struct {
	mu     sync.Mutex
	events []SinkEvent
}

func (s *RecordingSink) TextDelta(text string) {
	s.record(SinkEvent{Kind: "text", Text: text})
}

func (s *RecordingSink) CallStarted(name string) {
	s.record(SinkEvent{Kind: "call_started", Name: name})
}

func (s *RecordingSink) CallArgumentDelta(name, fragment string) {
	s.record(SinkEvent{Kind: "call_arg", Name: name, Text: fragment})
}

func (s *RecordingSink) CallFinished(name string, arguments json.RawMessage, result []byte, ok bool) {
	s.record(SinkEvent{Kind: "call_finished", Name: name, Arguments: arguments, Result: result, OK: ok})
}

func (s *RecordingSink) record(ev SinkEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Events returns a copy of the recorded events in delivery order.
func (s *RecordingSink) Events() []SinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SinkEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Text concatenates all recorded text deltas.
func (s *RecordingSink) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	for _, ev := range s.events {
		if ev.Kind == "text" {
			b.WriteString(ev.Text)
		}
	}
	return b.String()
}
