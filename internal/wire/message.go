package wire

import (
	"encoding/json"
	"fmt"
)

// MessageSnapshot is the message state carried by message_start: always an
// empty content array and a null stop reason, with the usage known so far
// (input token count, zero output tokens).
type MessageSnapshot struct {
	ID           string
	Model        string
	Content      []ContentBlock
	StopReason   *StopReason
	StopSequence *string
	Usage        Usage
}

func (m MessageSnapshot) MarshalJSON() ([]byte, error) {
	type frame struct {
		ID           string         `json:"id"`
		Type         string         `json:"type"`
		Role         string         `json:"role"`
		Model        string         `json:"model"`
		Content      []ContentBlock `json:"content"`
		StopReason   *StopReason    `json:"stop_reason"`
		StopSequence *string        `json:"stop_sequence"`
		Usage        Usage          `json:"usage"`
	}
	content := m.Content
	if content == nil {
		content = []ContentBlock{}
	}
	return json.Marshal(frame{
		ID:           m.ID,
		Type:         "message",
		Role:         "assistant",
		Model:        m.Model,
		Content:      content,
		StopReason:   m.StopReason,
		StopSequence: m.StopSequence,
		Usage:        m.Usage,
	})
}

func (m *MessageSnapshot) UnmarshalJSON(data []byte) error {
	var env struct {
		ID           *string         `json:"id"`
		Model        *string         `json:"model"`
		Content      json.RawMessage `json:"content"`
		StopReason   *StopReason     `json:"stop_reason"`
		StopSequence *string         `json:"stop_sequence"`
		Usage        Usage           `json:"usage"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: message: %v", ErrMalformedPayload, err)
	}
	if env.ID == nil || env.Model == nil {
		return fmt.Errorf("%w: message missing id or model", ErrMalformedPayload)
	}

	content := []ContentBlock{}
	if len(env.Content) > 0 {
		blocks, err := decodeContentBlocks(env.Content)
		if err != nil {
			return err
		}
		content = blocks
	}

	m.ID = *env.ID
	m.Model = *env.Model
	m.Content = content
	m.StopReason = env.StopReason
	m.StopSequence = env.StopSequence
	m.Usage = env.Usage
	return nil
}

// MessageResponse is the complete non-streaming response shape, also the
// result of folding a finished event stream.
type MessageResponse struct {
	ID           string
	Model        string
	Content      []ContentBlock
	StopReason   StopReason
	StopSequence *string
	Usage        Usage
}

func (m MessageResponse) MarshalJSON() ([]byte, error) {
	type frame struct {
		ID           string         `json:"id"`
		Type         string         `json:"type"`
		Role         string         `json:"role"`
		Content      []ContentBlock `json:"content"`
		Model        string         `json:"model"`
		StopReason   StopReason     `json:"stop_reason"`
		StopSequence *string        `json:"stop_sequence"`
		Usage        Usage          `json:"usage"`
	}
	content := m.Content
	if content == nil {
		content = []ContentBlock{}
	}
	return json.Marshal(frame{
		ID:           m.ID,
		Type:         "message",
		Role:         "assistant",
		Content:      content,
		Model:        m.Model,
		StopReason:   m.StopReason,
		StopSequence: m.StopSequence,
		Usage:        m.Usage,
	})
}

func (m *MessageResponse) UnmarshalJSON(data []byte) error {
	var env struct {
		ID           *string         `json:"id"`
		Model        *string         `json:"model"`
		Content      json.RawMessage `json:"content"`
		StopReason   *StopReason     `json:"stop_reason"`
		StopSequence *string         `json:"stop_sequence"`
		Usage        Usage           `json:"usage"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: response: %v", ErrMalformedPayload, err)
	}
	if env.ID == nil || env.Model == nil || env.StopReason == nil {
		return fmt.Errorf("%w: response missing id, model or stop_reason", ErrMalformedPayload)
	}

	content := []ContentBlock{}
	if len(env.Content) > 0 {
		blocks, err := decodeContentBlocks(env.Content)
		if err != nil {
			return err
		}
		content = blocks
	}

	m.ID = *env.ID
	m.Model = *env.Model
	m.Content = content
	m.StopReason = *env.StopReason
	m.StopSequence = env.StopSequence
	m.Usage = env.Usage
	return nil
}
