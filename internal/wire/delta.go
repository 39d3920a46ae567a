package wire

import (
	"encoding/json"
	"fmt"
)

// DeltaType identifies a content delta variant.
type DeltaType string

const (
	DeltaText      DeltaType = "text_delta"
	DeltaInputJSON DeltaType = "input_json_delta"
)

// ContentDelta is the closed union over incremental block fragments.
// Successive deltas for the same block index concatenate in arrival order.
type ContentDelta interface {
	DeltaType() DeltaType
	contentDelta()
}

// TextDelta is a fragment of a text block.
type TextDelta struct {
	Text string
}

func (TextDelta) DeltaType() DeltaType { return DeltaText }
func (TextDelta) contentDelta()        {}

// InputJSONDelta is a fragment of a tool_use block's input JSON string.
type InputJSONDelta struct {
	PartialJSON string
}

func (InputJSONDelta) DeltaType() DeltaType { return DeltaInputJSON }
func (InputJSONDelta) contentDelta()        {}

var (
	_ ContentDelta = TextDelta{}
	_ ContentDelta = InputJSONDelta{}
)

func (d TextDelta) MarshalJSON() ([]byte, error) {
	type frame struct {
		Type DeltaType `json:"type"`
		Text string    `json:"text"`
	}
	return json.Marshal(frame{Type: DeltaText, Text: d.Text})
}

func (d InputJSONDelta) MarshalJSON() ([]byte, error) {
	type frame struct {
		Type        DeltaType `json:"type"`
		PartialJSON string    `json:"partial_json"`
	}
	return json.Marshal(frame{Type: DeltaInputJSON, PartialJSON: d.PartialJSON})
}

func decodeContentDelta(data []byte) (ContentDelta, error) {
	var env struct {
		Type        *DeltaType `json:"type"`
		Text        *string    `json:"text"`
		PartialJSON *string    `json:"partial_json"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: delta: %v", ErrMalformedPayload, err)
	}
	if env.Type == nil {
		return nil, fmt.Errorf("%w: delta missing type", ErrMalformedPayload)
	}

	switch *env.Type {
	case DeltaText:
		if env.Text == nil {
			return nil, fmt.Errorf("%w: text_delta missing text", ErrMalformedPayload)
		}
		return TextDelta{Text: *env.Text}, nil
	case DeltaInputJSON:
		if env.PartialJSON == nil {
			return nil, fmt.Errorf("%w: input_json_delta missing partial_json", ErrMalformedPayload)
		}
		return InputJSONDelta{PartialJSON: *env.PartialJSON}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized delta type %q", ErrMalformedPayload, *env.Type)
	}
}
