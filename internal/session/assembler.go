package session

import (
	"encoding/json"
	"fmt"

	"github.com/kolohelios/afmbridge-sub001/internal/wire"
)

// Response folds the validated stream into one complete MessageResponse.
// Only available once the session reached message_stop; an abrupt end is
// ErrIncompleteStream and an error event is surfaced as such.
func (s *Sequencer) Response() (*wire.MessageResponse, error) {
	switch s.state {
	case StateStopped:
	case StateErrored:
		if s.streamErr != nil {
			return nil, fmt.Errorf("stream terminated by error event: %s: %s", s.streamErr.Type, s.streamErr.Message)
		}
		return nil, s.failed
	default:
		return nil, ErrIncompleteStream
	}

	content := make([]wire.ContentBlock, 0, len(s.blocks))
	for i, accum := range s.blocks {
		switch accum.kind {
		case wire.BlockText:
			content = append(content, wire.TextBlock{Text: accum.text.String()})
		case wire.BlockToolUse:
			input, err := parseToolInput(accum.json.String())
			if err != nil {
				return nil, fmt.Errorf("block %d (%s): %w", i, accum.name, err)
			}
			content = append(content, wire.ToolUseBlock{ID: accum.id, Name: accum.name, Input: input})
		}
	}

	return &wire.MessageResponse{
		ID:           s.msgID,
		Model:        s.model,
		Content:      content,
		StopReason:   s.stopReason,
		StopSequence: s.stopSequence,
		Usage:        s.usage,
	}, nil
}

// parseToolInput parses the concatenated input_json_delta fragments. An empty
// concatenation means the tool was invoked with no arguments.
func parseToolInput(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToolArguments, err)
	}
	if input == nil {
		input = map[string]any{}
	}
	return input, nil
}

// Assemble validates a complete event sequence and folds it into one
// response. Convenience for consumers that buffered the whole stream.
func Assemble(events []wire.StreamEvent) (*wire.MessageResponse, error) {
	seq := NewSequencer()
	for _, ev := range events {
		if err := seq.Feed(ev); err != nil {
			return nil, err
		}
	}
	return seq.Response()
}
