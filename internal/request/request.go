// Package request models the inbound Messages API request, decoding only the
// fields the bridge consumes.
package request

import (
	"encoding/json"
	"fmt"
	"strings"
)

type MessagesRequest struct {
	Model         string          `json:"model"`
	Messages      []Message       `json:"messages"`
	System        json.RawMessage `json:"system"` // string OR []SystemBlock
	MaxTokens     int             `json:"max_tokens"`
	Temperature   *float64        `json:"temperature"`
	TopP          *float64        `json:"top_p"`
	Stream        bool            `json:"stream"`
	Tools         []Tool          `json:"tools"`
	StopSequences []string        `json:"stop_sequences"`
}

type Message struct {
	Role    string          `json:"role"`    // "user" | "assistant"
	Content json.RawMessage `json:"content"` // string OR []content blocks
}

type SystemBlock struct {
	Type string `json:"type"` // "text"
	Text string `json:"text"`
}

type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Decode parses and validates a request body.
func Decode(body []byte) (*MessagesRequest, error) {
	var req MessagesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if req.Model == "" {
		return nil, fmt.Errorf("decode request: model is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("decode request: messages must not be empty")
	}
	if req.MaxTokens <= 0 {
		return nil, fmt.Errorf("decode request: max_tokens must be positive")
	}
	return &req, nil
}

// SystemPrompt handles both the string and []SystemBlock forms.
func (r *MessagesRequest) SystemPrompt() string {
	if len(r.System) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(r.System, &s); err == nil {
		return s
	}

	var blocks []SystemBlock
	if err := json.Unmarshal(r.System, &blocks); err != nil {
		return ""
	}

	texts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			texts = append(texts, b.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// LastUserText returns the text of the most recent user message, flattening
// block-form content.
func (r *MessagesRequest) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role != "user" {
			continue
		}
		return messageText(r.Messages[i].Content)
	}
	return ""
}

func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}

	var sb strings.Builder
	for _, b := range blocks {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
