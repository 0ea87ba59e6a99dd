package chatloop

import (
	"fmt"
	"sync"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// FunctionCall is a structured request from the model naming a registered
// function. Arguments is the raw payload text exactly as the model emitted it;
// it is only guaranteed to be valid JSON once the whole call has streamed.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is a single conversation turn. For assistant messages exactly one
// of Content and FunctionCall is set. Function-result messages always carry
// the function name in Name; Failed marks results fed back after an
// invocation error and is not part of the wire format.
type Message struct {
	Role         Role          `json:"role"`
	Content      string        `json:"content,omitempty"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
	Failed       bool          `json:"-"`
}

// System builds a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds a plain-text assistant message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// AssistantFunctionCall builds the assistant message recording a function
// call request. Arguments is the raw payload text from the model.
func AssistantFunctionCall(name, arguments string) Message {
	return Message{Role: RoleAssistant, FunctionCall: &FunctionCall{Name: name, Arguments: arguments}}
}

// FunctionResult builds the message that feeds a successful function outcome
// back to the model.
func FunctionResult(name, content string) Message {
	return Message{Role: RoleFunction, Name: name, Content: content}
}

// FailedFunctionResult builds the message that feeds an invocation failure
// back to the model so it can react instead of the caller crashing.
func FailedFunctionResult(name string, err error) Message {
	return Message{Role: RoleFunction, Name: name, Content: fmt.Sprintf("Error: %v", err), Failed: true}
}

// Log is the ordered sequence of conversation messages, the single source of
// truth sent to the model on every request. Messages are append-only; the one
// permitted mutation is Truncate, a caller-driven context-size control.
// Safe for concurrent use.
type Log struct {
	mu   sync.Mutex
	msgs []Message
}

// NewLog creates a Log seeded with the given messages.
func NewLog(initial ...Message) *Log {
	l := &Log{}
	l.msgs = append(l.msgs, initial...)
	return l
}

// Append adds messages in order.
func (l *Log) Append(msgs ...Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msgs...)
}

// Snapshot returns a copy of the log for sending to the model. The live
// sequence is never exposed.
func (l *Log) Snapshot() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Truncate drops the oldest messages, keeping at most keepLastN. It is never
// invoked by the orchestration loop itself; context management is the
// caller's decision.
func (l *Log) Truncate(keepLastN int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if keepLastN < 0 {
		keepLastN = 0
	}
	if len(l.msgs) <= keepLastN {
		return
	}
	kept := make([]Message, keepLastN)
	copy(kept, l.msgs[len(l.msgs)-keepLastN:])
	l.msgs = kept
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}
