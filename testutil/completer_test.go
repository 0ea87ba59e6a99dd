package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/chatloop"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScriptedCompleter_PlaysTurnsInOrder(t *testing.T) {
	sc := NewScriptedCompleter(
		TextTurn("Hello, ", "world"),
		CallTurn("lookup", `{"q":`, `"go"}`),
	)

	var first []chatloop.Delta
	err := sc.Stream(context.Background(), nil, nil, func(d chatloop.Delta) error {
		first = append(first, d)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "Hello, ", first[0].Content)
	assert.Equal(t, "world", first[1].Content)

	var second []chatloop.Delta
	err = sc.Stream(context.Background(), nil, nil, func(d chatloop.Delta) error {
		second = append(second, d)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, second, 3)
	assert.Equal(t, "lookup", second[0].FunctionName)
	assert.Equal(t, `{"q":`, second[1].Arguments)
	assert.Equal(t, `"go"}`, second[2].Arguments)
	assert.Equal(t, 2, sc.Calls())
}

func TestScriptedCompleter_Exhausted(t *testing.T) {
	sc := NewScriptedCompleter(TextTurn("only one"))
	err := sc.Stream(context.Background(), nil, nil, func(chatloop.Delta) error { return nil })
	require.NoError(t, err)
	err = sc.Stream(context.Background(), nil, nil, func(chatloop.Delta) error { return nil })
	require.ErrorIs(t, err, ErrScriptExhausted)
}

func TestScriptedCompleter_ErrTurn(t *testing.T) {
	cut := errors.New("connection reset")
	sc := NewScriptedCompleter(ErrTurn(cut, chatloop.Delta{Content: "partial"}))
	var got []chatloop.Delta
	err := sc.Stream(context.Background(), nil, nil, func(d chatloop.Delta) error {
		got = append(got, d)
		return nil
	})
	require.ErrorIs(t, err, cut)
	require.Len(t, got, 1)
	assert.Equal(t, "partial", got[0].Content)
}

func TestRecordingSink(t *testing.T) {
	var sink RecordingSink
	sink.TextDelta("a")
	sink.CallStarted("f")
	sink.CallArgumentDelta("f", "{}")
	sink.CallFinished("f", []byte("{}"), []byte(`"ok"`), true)
	sink.TextDelta("b")

	events := sink.Events()
	require.Len(t, events, 5)
	assert.Equal(t, "text", events[0].Kind)
	assert.Equal(t, "call_started", events[1].Kind)
	assert.Equal(t, "call_arg", events[2].Kind)
	assert.Equal(t, "call_finished", events[3].Kind)
	assert.True(t, events[3].OK)
	assert.Equal(t, "ab", sink.Text())
}
