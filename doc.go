// Package chatloop drives multi-turn conversations with a hosted chat model
// while exposing local Go functions the model may call mid-conversation.
//
// # Overview
//
// The model emits function calls as streamed JSON. This package turns them
// into concrete Go invocations: assemble the streamed call → validate the
// payload (against the same JSON Schema shown to the model) → invoke → feed
// the result back into the message log → resubmit, until the model answers
// with plain text.
//
// Pipeline: Go function + argument struct → NewFunction (schema derivation) →
// Registry → Conversation.Submit → Completer stream → Assembler →
// Registry.Invoke → function-result message → loop.
//
// # Key concepts
//
//   - Single Source of Truth: one argument struct drives both the schema sent
//     to the model and the validation of incoming payloads.
//   - Self-Correction: bad model output (malformed or invalid arguments) and
//     function failures become failed function-result messages the model can
//     react to; only transport and configuration errors surface to the caller.
//   - Strict ordering: one Submit at a time per Conversation, messages
//     appended in chronological order, never mutated after append.
//
// See Function, Message, Log for the core types, and NewFunction / New for setup.
//
// # Example
//
//	type Args struct{}
//	flip, err := chatloop.NewFunction("flip_a_coin", "Flip a coin",
//	    func(_ context.Context, _ Args) (string, error) { return "tails", nil })
//	if err != nil { ... }
//	chat := chatloop.New(chatloop.NewOpenAICompleter(apiKey, ""))
//	chat.Register(flip)
//	answer, err := chat.Submit(ctx, "flip a coin")
package chatloop
