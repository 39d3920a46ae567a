package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownEventType reports a "type" discriminator matching none of the
	// eight event variants.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrUnknownBlockType reports a content block discriminator matching
	// neither "text" nor "tool_use".
	ErrUnknownBlockType = errors.New("unknown content block type")

	// ErrMalformedPayload reports a known discriminator whose required fields
	// are missing or mistyped. Local to one frame; the stream may resume at
	// the next frame if transport framing is intact.
	ErrMalformedPayload = errors.New("malformed event payload")
)

// EncodeEvent serializes one event to a single JSON object.
func EncodeEvent(ev StreamEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventType(), err)
	}
	return data, nil
}

// DecodeEvent parses one JSON object into its event variant, reading the
// "type" discriminator first and then dispatching to the variant's decoder.
func DecodeEvent(data []byte) (StreamEvent, error) {
	var env struct {
		Type         *EventType      `json:"type"`
		Message      json.RawMessage `json:"message"`
		Index        *int            `json:"index"`
		ContentBlock json.RawMessage `json:"content_block"`
		Delta        json.RawMessage `json:"delta"`
		Usage        *UsageDelta     `json:"usage"`
		Error        *APIError       `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.Type == nil {
		return nil, fmt.Errorf("%w: missing type discriminator", ErrMalformedPayload)
	}

	switch *env.Type {
	case EventMessageStart:
		if env.Message == nil {
			return nil, fmt.Errorf("%w: message_start missing message", ErrMalformedPayload)
		}
		var msg MessageSnapshot
		if err := json.Unmarshal(env.Message, &msg); err != nil {
			return nil, err
		}
		return MessageStart{Message: msg}, nil

	case EventContentBlockStart:
		if env.Index == nil || env.ContentBlock == nil {
			return nil, fmt.Errorf("%w: content_block_start missing index or content_block", ErrMalformedPayload)
		}
		block, err := DecodeContentBlock(env.ContentBlock)
		if err != nil {
			return nil, err
		}
		return ContentBlockStart{Index: *env.Index, Block: block}, nil

	case EventContentBlockDelta:
		if env.Index == nil || env.Delta == nil {
			return nil, fmt.Errorf("%w: content_block_delta missing index or delta", ErrMalformedPayload)
		}
		delta, err := decodeContentDelta(env.Delta)
		if err != nil {
			return nil, err
		}
		return ContentBlockDelta{Index: *env.Index, Delta: delta}, nil

	case EventContentBlockStop:
		if env.Index == nil {
			return nil, fmt.Errorf("%w: content_block_stop missing index", ErrMalformedPayload)
		}
		return ContentBlockStop{Index: *env.Index}, nil

	case EventMessageDelta:
		if env.Delta == nil || env.Usage == nil {
			return nil, fmt.Errorf("%w: message_delta missing delta or usage", ErrMalformedPayload)
		}
		var body MessageDeltaBody
		if err := json.Unmarshal(env.Delta, &body); err != nil {
			return nil, fmt.Errorf("%w: message_delta: %v", ErrMalformedPayload, err)
		}
		if body.StopReason == "" {
			return nil, fmt.Errorf("%w: message_delta missing stop_reason", ErrMalformedPayload)
		}
		return MessageDelta{Delta: body, Usage: *env.Usage}, nil

	case EventMessageStop:
		return MessageStop{}, nil

	case EventPing:
		return Ping{}, nil

	case EventError:
		if env.Error == nil {
			return nil, fmt.Errorf("%w: error event missing error", ErrMalformedPayload)
		}
		return ErrorEvent{Err: *env.Error}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, *env.Type)
	}
}
