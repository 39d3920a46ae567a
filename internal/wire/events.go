package wire

import "encoding/json"

// EventType identifies a streaming event variant. The value doubles as the
// SSE "event:" field name.
type EventType string

const (
	EventMessageStart      EventType = "message_start"
	EventContentBlockStart EventType = "content_block_start"
	EventContentBlockDelta EventType = "content_block_delta"
	EventContentBlockStop  EventType = "content_block_stop"
	EventMessageDelta      EventType = "message_delta"
	EventMessageStop       EventType = "message_stop"
	EventPing              EventType = "ping"
	EventError             EventType = "error"
)

// StreamEvent is the closed union over the eight streaming event variants.
// Each variant serializes with its fixed discriminator under the "type" key;
// the discriminator is written by the encoder and never caller-settable.
type StreamEvent interface {
	EventType() EventType
	streamEvent()
}

// MessageStart opens a message session.
type MessageStart struct {
	Message MessageSnapshot
}

func (MessageStart) EventType() EventType { return EventMessageStart }
func (MessageStart) streamEvent()         {}

// ContentBlockStart opens the block at Index.
type ContentBlockStart struct {
	Index int
	Block ContentBlock
}

func (ContentBlockStart) EventType() EventType { return EventContentBlockStart }
func (ContentBlockStart) streamEvent()         {}

// ContentBlockDelta appends a fragment to the open block at Index.
type ContentBlockDelta struct {
	Index int
	Delta ContentDelta
}

func (ContentBlockDelta) EventType() EventType { return EventContentBlockDelta }
func (ContentBlockDelta) streamEvent()         {}

// ContentBlockStop closes the block at Index.
type ContentBlockStop struct {
	Index int
}

func (ContentBlockStop) EventType() EventType { return EventContentBlockStop }
func (ContentBlockStop) streamEvent()         {}

// MessageDeltaBody carries the terminal stop reason.
type MessageDeltaBody struct {
	StopReason   StopReason `json:"stop_reason"`
	StopSequence *string    `json:"stop_sequence"`
}

// MessageDelta finalizes the message: stop reason plus the cumulative output
// token count. Emitted at most once, after all blocks are closed.
type MessageDelta struct {
	Delta MessageDeltaBody
	Usage UsageDelta
}

func (MessageDelta) EventType() EventType { return EventMessageDelta }
func (MessageDelta) streamEvent()         {}

// MessageStop terminates the session.
type MessageStop struct{}

func (MessageStop) EventType() EventType { return EventMessageStop }
func (MessageStop) streamEvent()         {}

// Ping carries no state and may appear at any point before the terminal event.
type Ping struct{}

func (Ping) EventType() EventType { return EventPing }
func (Ping) streamEvent()         {}

// ErrorEvent is a valid terminal payload representing an upstream failure.
type ErrorEvent struct {
	Err APIError
}

func (ErrorEvent) EventType() EventType { return EventError }
func (ErrorEvent) streamEvent()         {}

var (
	_ StreamEvent = MessageStart{}
	_ StreamEvent = ContentBlockStart{}
	_ StreamEvent = ContentBlockDelta{}
	_ StreamEvent = ContentBlockStop{}
	_ StreamEvent = MessageDelta{}
	_ StreamEvent = MessageStop{}
	_ StreamEvent = Ping{}
	_ StreamEvent = ErrorEvent{}
)

func (e MessageStart) MarshalJSON() ([]byte, error) {
	type frame struct {
		Type    EventType       `json:"type"`
		Message MessageSnapshot `json:"message"`
	}
	return json.Marshal(frame{Type: EventMessageStart, Message: e.Message})
}

func (e ContentBlockStart) MarshalJSON() ([]byte, error) {
	type frame struct {
		Type  EventType    `json:"type"`
		Index int          `json:"index"`
		Block ContentBlock `json:"content_block"`
	}
	return json.Marshal(frame{Type: EventContentBlockStart, Index: e.Index, Block: e.Block})
}

func (e ContentBlockDelta) MarshalJSON() ([]byte, error) {
	type frame struct {
		Type  EventType    `json:"type"`
		Index int          `json:"index"`
		Delta ContentDelta `json:"delta"`
	}
	return json.Marshal(frame{Type: EventContentBlockDelta, Index: e.Index, Delta: e.Delta})
}

func (e ContentBlockStop) MarshalJSON() ([]byte, error) {
	type frame struct {
		Type  EventType `json:"type"`
		Index int       `json:"index"`
	}
	return json.Marshal(frame{Type: EventContentBlockStop, Index: e.Index})
}

func (e MessageDelta) MarshalJSON() ([]byte, error) {
	type frame struct {
		Type  EventType        `json:"type"`
		Delta MessageDeltaBody `json:"delta"`
		Usage UsageDelta       `json:"usage"`
	}
	return json.Marshal(frame{Type: EventMessageDelta, Delta: e.Delta, Usage: e.Usage})
}

func (MessageStop) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"message_stop"}`), nil
}

func (Ping) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"ping"}`), nil
}

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	type frame struct {
		Type EventType `json:"type"`
		Err  APIError  `json:"error"`
	}
	return json.Marshal(frame{Type: EventError, Err: e.Err})
}
