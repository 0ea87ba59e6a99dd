package chatloop

import (
	"encoding/json"
	"strings"
)

// Outcome is one fully assembled model response: a terminal text answer when
// Call is nil, otherwise a function call with its argument payload. Args is
// only set when the payload parsed as valid JSON.
type Outcome struct {
	Text string
	Call *FunctionCall
	Args json.RawMessage
}

// Assembler reconstructs one streamed model response from Delta fragments.
// The first meaningful fragment commits the response to the text or call
// branch. Once a function name is seen, all subsequent fragments are argument
// payload text accumulated verbatim: the payload streams as a partial JSON
// string that may not be parseable until complete. Incremental events go to
// the sink as fragments arrive.
type Assembler struct {
	sink     Sink
	text     strings.Builder
	callName string
	callArgs strings.Builder
}

// NewAssembler creates an Assembler emitting to sink. A nil sink discards events.
func NewAssembler(sink Sink) *Assembler {
	if sink == nil {
		sink = NopSink{}
	}
	return &Assembler{sink: sink}
}

// Feed consumes one fragment. Use it as the yield of a Completer.Stream call.
func (a *Assembler) Feed(d Delta) error {
	if d.FunctionName != "" && a.callName == "" {
		a.callName = d.FunctionName
		// Report the call before any arguments arrive, for responsiveness.
		a.sink.CallStarted(a.callName)
	}
	if a.callName != "" {
		// One call per response: whatever arrives after the name is payload.
		if d.Arguments != "" {
			a.callArgs.WriteString(d.Arguments)
			a.sink.CallArgumentDelta(a.callName, d.Arguments)
		}
		return nil
	}
	if d.Content != "" {
		a.text.WriteString(d.Content)
		a.sink.TextDelta(d.Content)
	}
	return nil
}

// Finish closes the response. On the call branch the accumulated payload is
// parsed as JSON; if it does not parse, Finish returns a ClientError wrapping
// ErrMalformedArguments together with the partial call so the orchestration
// loop can synthesize a failed function result instead of invoking anything.
func (a *Assembler) Finish() (Outcome, error) {
	if a.callName == "" {
		return Outcome{Text: a.text.String()}, nil
	}
	call := &FunctionCall{Name: a.callName, Arguments: a.callArgs.String()}
	payload := call.Arguments
	if payload == "" {
		// Zero-argument calls stream no payload at all.
		payload = "{}"
		call.Arguments = payload
	}
	if !json.Valid([]byte(payload)) {
		return Outcome{Call: call}, &ClientError{
			Reason: "function call payload is not valid JSON",
			Err:    ErrMalformedArguments,
		}
	}
	return Outcome{Call: call, Args: json.RawMessage(payload)}, nil
}
