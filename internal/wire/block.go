package wire

import (
	"encoding/json"
	"fmt"
)

// BlockType identifies a content block variant.
type BlockType string

const (
	BlockText    BlockType = "text"
	BlockToolUse BlockType = "tool_use"
)

// ContentBlock is the closed union over content block variants. The same
// shapes appear both in a final response's content array and as the initial
// payload of content_block_start (text empty, tool input empty at open).
// The unexported marker method seals the union.
type ContentBlock interface {
	BlockType() BlockType
	contentBlock()
}

// TextBlock is a unit of plain generated text.
type TextBlock struct {
	Text string
}

func (TextBlock) BlockType() BlockType { return BlockText }
func (TextBlock) contentBlock()        {}

// ToolUseBlock is a tool invocation with structured input.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input map[string]any
}

func (ToolUseBlock) BlockType() BlockType { return BlockToolUse }
func (ToolUseBlock) contentBlock()        {}

var (
	_ ContentBlock = TextBlock{}
	_ ContentBlock = ToolUseBlock{}
)

func (b TextBlock) MarshalJSON() ([]byte, error) {
	type frame struct {
		Type BlockType `json:"type"`
		Text string    `json:"text"`
	}
	return json.Marshal(frame{Type: BlockText, Text: b.Text})
}

func (b ToolUseBlock) MarshalJSON() ([]byte, error) {
	type frame struct {
		Type  BlockType      `json:"type"`
		ID    string         `json:"id"`
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
	}
	input := b.Input
	if input == nil {
		input = map[string]any{}
	}
	return json.Marshal(frame{Type: BlockToolUse, ID: b.ID, Name: b.Name, Input: input})
}

// DecodeContentBlock parses one content block object, dispatching on its
// "type" discriminator.
func DecodeContentBlock(data []byte) (ContentBlock, error) {
	var env struct {
		Type  *BlockType     `json:"type"`
		Text  *string        `json:"text"`
		ID    *string        `json:"id"`
		Name  *string        `json:"name"`
		Input map[string]any `json:"input"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: content block: %v", ErrMalformedPayload, err)
	}
	if env.Type == nil {
		return nil, fmt.Errorf("%w: content block missing type", ErrMalformedPayload)
	}

	switch *env.Type {
	case BlockText:
		if env.Text == nil {
			return nil, fmt.Errorf("%w: text block missing text", ErrMalformedPayload)
		}
		return TextBlock{Text: *env.Text}, nil
	case BlockToolUse:
		if env.ID == nil || env.Name == nil {
			return nil, fmt.Errorf("%w: tool_use block missing id or name", ErrMalformedPayload)
		}
		input := env.Input
		if input == nil {
			input = map[string]any{}
		}
		return ToolUseBlock{ID: *env.ID, Name: *env.Name, Input: input}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlockType, *env.Type)
	}
}

func decodeContentBlocks(data []byte) ([]ContentBlock, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: content array: %v", ErrMalformedPayload, err)
	}
	blocks := make([]ContentBlock, 0, len(raws))
	for _, raw := range raws {
		block, err := DecodeContentBlock(raw)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}
