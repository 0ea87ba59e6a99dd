package chatloop

import (
	"encoding/json"
	"fmt"
	"io"
)

// Sink receives incremental display events while a model response streams.
// The orchestration loop never blocks on a Sink: events are delivered
// asynchronously and best-effort, so implementations may be slow but must
// tolerate interleaved text and call-argument events.
type Sink interface {
	// TextDelta delivers one fragment of a streaming text answer.
	TextDelta(text string)
	// CallStarted fires as soon as the function name is known, before any arguments arrive.
	CallStarted(name string)
	// CallArgumentDelta delivers one fragment of the streamed argument payload.
	CallArgumentDelta(name, fragment string)
	// CallFinished fires after dispatch with the parsed arguments and the
	// function outcome. ok is false when the result carries a failure.
	CallFinished(name string, arguments json.RawMessage, result []byte, ok bool)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) TextDelta(string)                                   {}
func (NopSink) CallStarted(string)                                 {}
func (NopSink) CallArgumentDelta(string, string)                   {}
func (NopSink) CallFinished(string, json.RawMessage, []byte, bool) {}

// WriterSink streams events as plain text to W, e.g. a terminal. Text deltas
// are written verbatim; function calls render as "[name(args) -> result]".
type WriterSink struct {
	W io.Writer
}

func (s WriterSink) TextDelta(text string) {
	_, _ = fmt.Fprint(s.W, text)
}

func (s WriterSink) CallStarted(name string) {
	_, _ = fmt.Fprintf(s.W, "[%s(", name)
}

func (s WriterSink) CallArgumentDelta(_, fragment string) {
	_, _ = fmt.Fprint(s.W, fragment)
}

func (s WriterSink) CallFinished(_ string, _ json.RawMessage, result []byte, ok bool) {
	if ok {
		_, _ = fmt.Fprintf(s.W, ") -> %s]\n", result)
		return
	}
	_, _ = fmt.Fprintf(s.W, ") -> failed: %s]\n", result)
}

const (
	evText = iota
	evCallStarted
	evCallArgDelta
	evCallFinished
)

type sinkEvent struct {
	kind   int
	name   string
	text   string
	args   json.RawMessage
	result []byte
	ok     bool
}

// asyncSink decouples the orchestration loop from the caller's Sink: events
// go through a buffered channel drained by one goroutine, and are dropped
// when the buffer is full rather than blocking the loop.
type asyncSink struct {
	dst  Sink
	ch   chan sinkEvent
	done chan struct{}
}

func newAsyncSink(dst Sink) *asyncSink {
	s := &asyncSink{
		dst:  dst,
		ch:   make(chan sinkEvent, 64),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		for ev := range s.ch {
			switch ev.kind {
			case evText:
				dst.TextDelta(ev.text)
			case evCallStarted:
				dst.CallStarted(ev.name)
			case evCallArgDelta:
				dst.CallArgumentDelta(ev.name, ev.text)
			case evCallFinished:
				dst.CallFinished(ev.name, ev.args, ev.result, ev.ok)
			}
		}
	}()
	return s
}

func (s *asyncSink) send(ev sinkEvent) {
	select {
	case s.ch <- ev:
	default:
		// Best-effort delivery: drop instead of blocking the loop.
	}
}

func (s *asyncSink) TextDelta(text string) {
	s.send(sinkEvent{kind: evText, text: text})
}

func (s *asyncSink) CallStarted(name string) {
	s.send(sinkEvent{kind: evCallStarted, name: name})
}

func (s *asyncSink) CallArgumentDelta(name, fragment string) {
	s.send(sinkEvent{kind: evCallArgDelta, name: name, text: fragment})
}

func (s *asyncSink) CallFinished(name string, arguments json.RawMessage, result []byte, ok bool) {
	s.send(sinkEvent{kind: evCallFinished, name: name, args: arguments, result: result, ok: ok})
}

// close drains buffered events and waits for the delivery goroutine to exit.
func (s *asyncSink) close() {
	close(s.ch)
	<-s.done
}

var (
	_ Sink = NopSink{}
	_ Sink = WriterSink{}
	_ Sink = (*asyncSink)(nil)
)
