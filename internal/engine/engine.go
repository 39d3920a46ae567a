// Package engine defines the abstract inference producer contract: a pull
// iterator of block-level increments ending with a Done marker. The protocol
// layer frames these into wire events; how inference happens is not its
// concern.
package engine

import (
	"context"

	"github.com/kolohelios/afmbridge-sub001/internal/wire"
)

// Increment is the sealed union of producer outputs.
type Increment interface {
	increment()
}

// BlockOpen starts a new content block. ID and Name are set for tool_use.
type BlockOpen struct {
	Kind wire.BlockType
	ID   string
	Name string
}

func (BlockOpen) increment() {}

// TextFragment is a piece of the open text block.
type TextFragment struct {
	Text string
}

func (TextFragment) increment() {}

// InputFragment is a piece of the open tool_use block's input JSON string.
type InputFragment struct {
	PartialJSON string
}

func (InputFragment) increment() {}

// BlockClose ends the open block.
type BlockClose struct{}

func (BlockClose) increment() {}

// Done ends generation with the stop reason and final token counts.
type Done struct {
	StopReason   wire.StopReason
	StopSequence *string
	InputTokens  int
	OutputTokens int
}

func (Done) increment() {}

var (
	_ Increment = BlockOpen{}
	_ Increment = TextFragment{}
	_ Increment = InputFragment{}
	_ Increment = BlockClose{}
	_ Increment = Done{}
)

// Producer yields increments one at a time. After Done it returns io.EOF.
type Producer interface {
	Next(ctx context.Context) (Increment, error)
}

// EstimateTokens is the rough chars/4 heuristic used when the backing engine
// reports no counts of its own.
func EstimateTokens(s string) int {
	return len(s)/4 + 1
}
