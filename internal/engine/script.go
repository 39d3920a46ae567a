package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kolohelios/afmbridge-sub001/internal/wire"
)

// ScriptBlock is one planned content block: either Text, or a tool call.
type ScriptBlock struct {
	Text      string
	ToolID    string
	ToolName  string
	ToolInput map[string]any
}

// Script is a fully planned generation, replayed as fragmented increments.
type Script struct {
	Blocks       []ScriptBlock
	StopReason   wire.StopReason
	StopSequence *string
	InputTokens  int
	OutputTokens int
}

// ScriptProducer replays a Script, chunking text and tool input JSON into
// fragments of at most chunkSize runes.
type ScriptProducer struct {
	increments []Increment
	pos        int
}

func NewScriptProducer(script Script, chunkSize int) (*ScriptProducer, error) {
	if chunkSize <= 0 {
		chunkSize = 48
	}

	var incs []Increment
	outputChars := 0
	for _, block := range script.Blocks {
		if block.ToolName != "" {
			raw, err := json.Marshal(block.ToolInput)
			if err != nil {
				return nil, fmt.Errorf("script tool input: %w", err)
			}
			incs = append(incs, BlockOpen{Kind: wire.BlockToolUse, ID: block.ToolID, Name: block.ToolName})
			for _, chunk := range splitRunes(string(raw), chunkSize) {
				incs = append(incs, InputFragment{PartialJSON: chunk})
			}
			outputChars += len(raw)
		} else {
			incs = append(incs, BlockOpen{Kind: wire.BlockText})
			for _, chunk := range splitRunes(block.Text, chunkSize) {
				incs = append(incs, TextFragment{Text: chunk})
			}
			outputChars += len(block.Text)
		}
		incs = append(incs, BlockClose{})
	}

	outputTokens := script.OutputTokens
	if outputTokens == 0 {
		outputTokens = EstimateTokens(strings.Repeat("x", outputChars))
	}
	stopReason := script.StopReason
	if stopReason == "" {
		stopReason = wire.StopEndTurn
	}
	incs = append(incs, Done{
		StopReason:   stopReason,
		StopSequence: script.StopSequence,
		InputTokens:  script.InputTokens,
		OutputTokens: outputTokens,
	})

	return &ScriptProducer{increments: incs}, nil
}

func (p *ScriptProducer) Next(ctx context.Context) (Increment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.pos >= len(p.increments) {
		return nil, io.EOF
	}
	inc := p.increments[p.pos]
	p.pos++
	return inc, nil
}

// EchoScript plans a single text block echoing the prompt. Stand-in producer
// for deployments without a native inference backend.
func EchoScript(prompt string, maxTokens int) Script {
	reply := prompt
	if reply == "" {
		reply = "(empty prompt)"
	}
	outputTokens := EstimateTokens(reply)
	stopReason := wire.StopEndTurn
	if outputTokens > maxTokens {
		stopReason = wire.StopMaxTokens
		outputTokens = maxTokens
	}
	return Script{
		Blocks:       []ScriptBlock{{Text: reply}},
		StopReason:   stopReason,
		InputTokens:  EstimateTokens(prompt),
		OutputTokens: outputTokens,
	}
}

// splitRunes chunks a string by rune count, never splitting a rune.
func splitRunes(s string, chunkSize int) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= chunkSize {
		return []string{s}
	}
	var chunks []string
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
