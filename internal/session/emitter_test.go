package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolohelios/afmbridge-sub001/internal/wire"
)

func TestEmitterProducesValidStream(t *testing.T) {
	em := NewEmitter()
	var events []wire.StreamEvent
	collect := func(ev wire.StreamEvent, err error) {
		require.NoError(t, err)
		events = append(events, ev)
	}

	collect(em.Start("msg_01", "afm-base", wire.Usage{InputTokens: 9}))
	collect(em.OpenText())
	collect(em.AppendText("Hel"))
	collect(em.AppendText("lo"))
	collect(em.CloseBlock())
	collect(em.OpenToolUse("toolu_01", "get_weather"))
	collect(em.AppendToolInput(`{"city":`))
	collect(em.AppendToolInput(`"SF"}`))
	collect(em.CloseBlock())

	terminal, err := em.Finish(wire.StopToolUse, nil, 13)
	require.NoError(t, err)
	events = append(events, terminal...)

	// An independent consumer must accept the emitted stream verbatim.
	resp, err := Assemble(events)
	require.NoError(t, err)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, wire.TextBlock{Text: "Hello"}, resp.Content[0])
	assert.Equal(t, wire.ToolUseBlock{ID: "toolu_01", Name: "get_weather", Input: map[string]any{"city": "SF"}}, resp.Content[1])
	assert.Equal(t, 13, resp.Usage.OutputTokens)

	// Indices were assigned gap-free in order.
	starts := 0
	for _, ev := range events {
		if s, ok := ev.(wire.ContentBlockStart); ok {
			assert.Equal(t, starts, s.Index)
			starts++
		}
	}
	assert.Equal(t, 2, starts)
}

func TestEmitterRejectsMisuse(t *testing.T) {
	em := NewEmitter()
	_, err := em.OpenText()
	assert.ErrorIs(t, err, ErrUnexpectedEvent)

	em = NewEmitter()
	_, err = em.Start("msg_01", "afm-base", wire.Usage{})
	require.NoError(t, err)
	_, err = em.AppendText("x")
	assert.ErrorIs(t, err, ErrOutOfOrderIndex)

	em = NewEmitter()
	_, err = em.Start("msg_01", "afm-base", wire.Usage{})
	require.NoError(t, err)
	_, err = em.OpenText()
	require.NoError(t, err)
	_, err = em.AppendToolInput("{")
	assert.ErrorIs(t, err, ErrDeltaKindMismatch)

	_, err = em.Finish(wire.StopEndTurn, nil, 1)
	assert.ErrorIs(t, err, ErrPrematureFinalize)
}

func TestEmitterResponseMatchesStream(t *testing.T) {
	em := NewEmitter()
	_, err := em.Start("msg_01", "afm-base", wire.Usage{InputTokens: 2})
	require.NoError(t, err)
	_, err = em.OpenText()
	require.NoError(t, err)
	_, err = em.AppendText("ok")
	require.NoError(t, err)
	_, err = em.CloseBlock()
	require.NoError(t, err)

	_, err = em.Response()
	assert.ErrorIs(t, err, ErrIncompleteStream)

	_, err = em.Finish(wire.StopEndTurn, nil, 1)
	require.NoError(t, err)

	resp, err := em.Response()
	require.NoError(t, err)
	assert.Equal(t, wire.TextBlock{Text: "ok"}, resp.Content[0])
}

func TestEmitterAbort(t *testing.T) {
	em := NewEmitter()
	_, err := em.Start("msg_01", "afm-base", wire.Usage{})
	require.NoError(t, err)

	ev, err := em.Abort("api_error", "backend unavailable")
	require.NoError(t, err)
	assert.Equal(t, wire.ErrorEvent{Err: wire.APIError{Type: "api_error", Message: "backend unavailable"}}, ev)

	_, err = em.OpenText()
	assert.ErrorIs(t, err, ErrEventAfterStop)
}

func TestNewMessageID(t *testing.T) {
	id := NewMessageID()
	assert.True(t, strings.HasPrefix(id, "msg_"))
	assert.NotEqual(t, id, NewMessageID())
}
