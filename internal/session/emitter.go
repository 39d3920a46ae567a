package session

import (
	"strings"

	"github.com/google/uuid"

	"github.com/kolohelios/afmbridge-sub001/internal/wire"
)

// Emitter stamps producer-side increments into well-formed events: it assigns
// block indices, fixes each block's delta kind, and guards the terminal
// sequence. Every emitted event passes through an internal Sequencer, so an
// Emitter cannot produce a stream its own consumer would reject.
type Emitter struct {
	seq *Sequencer
}

// NewMessageID returns a fresh vendor-shaped message identifier.
func NewMessageID() string {
	return "msg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func NewEmitter() *Emitter {
	return &Emitter{seq: NewSequencer()}
}

// Start opens the session. Usage carries the known input token count; output
// tokens start at zero and are reported cumulatively by Finish.
func (e *Emitter) Start(id, model string, usage wire.Usage) (wire.StreamEvent, error) {
	ev := wire.MessageStart{Message: wire.MessageSnapshot{
		ID:      id,
		Model:   model,
		Content: []wire.ContentBlock{},
		Usage:   usage,
	}}
	return e.emit(ev)
}

// OpenText opens the next block as a text block.
func (e *Emitter) OpenText() (wire.StreamEvent, error) {
	return e.emit(wire.ContentBlockStart{Index: e.seq.nextIndex, Block: wire.TextBlock{}})
}

// OpenToolUse opens the next block as a tool invocation skeleton; arguments
// stream in afterwards via AppendToolInput.
func (e *Emitter) OpenToolUse(id, name string) (wire.StreamEvent, error) {
	block := wire.ToolUseBlock{ID: id, Name: name, Input: map[string]any{}}
	return e.emit(wire.ContentBlockStart{Index: e.seq.nextIndex, Block: block})
}

func (e *Emitter) AppendText(text string) (wire.StreamEvent, error) {
	return e.emit(wire.ContentBlockDelta{Index: e.seq.nextIndex, Delta: wire.TextDelta{Text: text}})
}

func (e *Emitter) AppendToolInput(partialJSON string) (wire.StreamEvent, error) {
	return e.emit(wire.ContentBlockDelta{Index: e.seq.nextIndex, Delta: wire.InputJSONDelta{PartialJSON: partialJSON}})
}

func (e *Emitter) CloseBlock() (wire.StreamEvent, error) {
	return e.emit(wire.ContentBlockStop{Index: e.seq.nextIndex})
}

func (e *Emitter) Ping() wire.StreamEvent {
	return wire.Ping{}
}

// Finish emits the terminal pair: message_delta with the stop reason and
// cumulative output token count, then message_stop.
func (e *Emitter) Finish(reason wire.StopReason, stopSequence *string, outputTokens int) ([]wire.StreamEvent, error) {
	delta := wire.MessageDelta{
		Delta: wire.MessageDeltaBody{StopReason: reason, StopSequence: stopSequence},
		Usage: wire.UsageDelta{OutputTokens: outputTokens},
	}
	if _, err := e.emit(delta); err != nil {
		return nil, err
	}
	if _, err := e.emit(wire.MessageStop{}); err != nil {
		return nil, err
	}
	return []wire.StreamEvent{delta, wire.MessageStop{}}, nil
}

// Abort emits the protocol's error event, moving the session to its errored
// terminal state.
func (e *Emitter) Abort(errType, message string) (wire.StreamEvent, error) {
	return e.emit(wire.ErrorEvent{Err: wire.APIError{Type: errType, Message: message}})
}

// Response folds everything emitted so far; valid once Finish succeeded.
func (e *Emitter) Response() (*wire.MessageResponse, error) {
	return e.seq.Response()
}

func (e *Emitter) emit(ev wire.StreamEvent) (wire.StreamEvent, error) {
	if err := e.seq.Feed(ev); err != nil {
		return nil, err
	}
	return ev, nil
}
