package testutil

import (
	"time"

	"github.com/skosovsky/chatloop"
)

// NewTestRegistry returns a Registry with long timeout and panic recovery
// enabled, suitable for tests.
func NewTestRegistry(funcs ...chatloop.Function) *chatloop.Registry {
	reg := chatloop.NewRegistry(
		chatloop.WithDefaultTimeout(30*time.Second),
		chatloop.WithRecoverPanics(true),
	)
	for _, f := range funcs {
		reg.Register(f)
	}
	return reg
}
