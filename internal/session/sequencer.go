// Package session enforces the ordering contract of one message generation:
// blocks open and close sequentially by index, the message finalizes at most
// once, and nothing follows the terminal event. It also folds a finished
// stream into the non-streaming response shape.
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kolohelios/afmbridge-sub001/internal/wire"
)

var (
	// Sequencing violations. Fatal to the session: the sequencer rejects all
	// further events once one of these is returned.
	ErrOutOfOrderIndex   = errors.New("content block index out of order")
	ErrDeltaKindMismatch = errors.New("delta kind does not match block type")
	ErrPrematureFinalize = errors.New("finalize with content block still open")
	ErrEventAfterStop    = errors.New("event after terminal event")
	ErrUnexpectedEvent   = errors.New("event not valid in current state")

	// ErrInvalidToolArguments reports that a tool_use block's concatenated
	// input fragments are not a valid JSON object.
	ErrInvalidToolArguments = errors.New("invalid tool arguments")

	// ErrIncompleteStream reports a stream that ended before message_stop or
	// an error event. Distinct from a clean terminal state.
	ErrIncompleteStream = errors.New("stream ended before terminal event")
)

// State is the sequencer's position in the message lifecycle.
type State int

const (
	StateNotStarted State = iota
	StateInMessage        // between blocks, none open
	StateBlockOpen
	StateFinalizing // message_delta seen, awaiting message_stop
	StateStopped
	StateErrored
)

type blockAccum struct {
	kind wire.BlockType
	id   string
	name string
	text strings.Builder
	json strings.Builder
}

// Sequencer validates one event stream against the session ordering contract
// and accumulates block fragments for assembly. One instance per in-flight
// message; discard it after the terminal event or on error.
type Sequencer struct {
	state     State
	failed    error
	nextIndex int
	blocks    []*blockAccum

	msgID        string
	model        string
	usage        wire.Usage
	stopReason   wire.StopReason
	stopSequence *string
	streamErr    *wire.APIError
}

func NewSequencer() *Sequencer {
	return &Sequencer{state: StateNotStarted}
}

func (s *Sequencer) State() State { return s.state }

// StreamError returns the payload of a received error event, if the session
// terminated with one.
func (s *Sequencer) StreamError() *wire.APIError { return s.streamErr }

// Feed applies one event. A non-nil return means the session is torn down;
// every subsequent Feed returns the same error.
func (s *Sequencer) Feed(ev wire.StreamEvent) error {
	if s.failed != nil {
		return s.failed
	}

	if s.state == StateStopped || s.state == StateErrored {
		return s.fail(fmt.Errorf("%w: %s", ErrEventAfterStop, ev.EventType()))
	}

	switch ev := ev.(type) {
	case wire.Ping:
		return nil

	case wire.ErrorEvent:
		err := ev.Err
		s.streamErr = &err
		s.state = StateErrored
		return nil

	case wire.MessageStart:
		if s.state != StateNotStarted {
			return s.fail(fmt.Errorf("%w: duplicate message_start", ErrUnexpectedEvent))
		}
		s.msgID = ev.Message.ID
		s.model = ev.Message.Model
		s.usage = ev.Message.Usage
		s.state = StateInMessage
		return nil

	case wire.ContentBlockStart:
		return s.openBlock(ev)

	case wire.ContentBlockDelta:
		return s.appendDelta(ev)

	case wire.ContentBlockStop:
		return s.closeBlock(ev)

	case wire.MessageDelta:
		return s.finalize(ev)

	case wire.MessageStop:
		switch s.state {
		case StateInMessage, StateFinalizing:
			s.state = StateStopped
			return nil
		case StateBlockOpen:
			return s.fail(fmt.Errorf("%w: message_stop with block %d open", ErrPrematureFinalize, s.nextIndex))
		default:
			return s.fail(fmt.Errorf("%w: message_stop before message_start", ErrUnexpectedEvent))
		}

	default:
		return s.fail(fmt.Errorf("%w: %s", ErrUnexpectedEvent, ev.EventType()))
	}
}

func (s *Sequencer) openBlock(ev wire.ContentBlockStart) error {
	switch s.state {
	case StateNotStarted:
		return s.fail(fmt.Errorf("%w: content_block_start before message_start", ErrUnexpectedEvent))
	case StateBlockOpen:
		return s.fail(fmt.Errorf("%w: block %d opened while %d still open", ErrOutOfOrderIndex, ev.Index, s.nextIndex))
	case StateFinalizing:
		return s.fail(fmt.Errorf("%w: content_block_start after message_delta", ErrEventAfterStop))
	}
	if ev.Index != s.nextIndex {
		return s.fail(fmt.Errorf("%w: content_block_start index %d, want %d", ErrOutOfOrderIndex, ev.Index, s.nextIndex))
	}

	accum := &blockAccum{kind: ev.Block.BlockType()}
	if tool, ok := ev.Block.(wire.ToolUseBlock); ok {
		accum.id = tool.ID
		accum.name = tool.Name
	}
	s.blocks = append(s.blocks, accum)
	s.state = StateBlockOpen
	return nil
}

func (s *Sequencer) appendDelta(ev wire.ContentBlockDelta) error {
	if s.state != StateBlockOpen || ev.Index != s.nextIndex {
		return s.fail(fmt.Errorf("%w: content_block_delta index %d with no open block at that index", ErrOutOfOrderIndex, ev.Index))
	}

	accum := s.blocks[len(s.blocks)-1]
	switch delta := ev.Delta.(type) {
	case wire.TextDelta:
		if accum.kind != wire.BlockText {
			return s.fail(fmt.Errorf("%w: text_delta for %s block %d", ErrDeltaKindMismatch, accum.kind, ev.Index))
		}
		accum.text.WriteString(delta.Text)
	case wire.InputJSONDelta:
		if accum.kind != wire.BlockToolUse {
			return s.fail(fmt.Errorf("%w: input_json_delta for %s block %d", ErrDeltaKindMismatch, accum.kind, ev.Index))
		}
		accum.json.WriteString(delta.PartialJSON)
	}
	return nil
}

func (s *Sequencer) closeBlock(ev wire.ContentBlockStop) error {
	if s.state != StateBlockOpen || ev.Index != s.nextIndex {
		return s.fail(fmt.Errorf("%w: content_block_stop index %d with no open block at that index", ErrOutOfOrderIndex, ev.Index))
	}
	s.nextIndex++
	s.state = StateInMessage
	return nil
}

func (s *Sequencer) finalize(ev wire.MessageDelta) error {
	switch s.state {
	case StateInMessage:
		s.stopReason = ev.Delta.StopReason
		s.stopSequence = ev.Delta.StopSequence
		// Cumulative count: replace, never add.
		s.usage.OutputTokens = ev.Usage.OutputTokens
		s.state = StateFinalizing
		return nil
	case StateBlockOpen:
		return s.fail(fmt.Errorf("%w: message_delta with block %d open", ErrPrematureFinalize, s.nextIndex))
	case StateFinalizing:
		return s.fail(fmt.Errorf("%w: second message_delta", ErrEventAfterStop))
	default:
		return s.fail(fmt.Errorf("%w: message_delta before message_start", ErrUnexpectedEvent))
	}
}

func (s *Sequencer) fail(err error) error {
	s.failed = err
	return err
}
