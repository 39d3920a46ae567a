package server

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kolohelios/afmbridge-sub001/internal/engine"
	"github.com/kolohelios/afmbridge-sub001/internal/request"
	"github.com/kolohelios/afmbridge-sub001/internal/session"
	"github.com/kolohelios/afmbridge-sub001/internal/wire"
)

// pump drains the producer through the emitter, handing every stamped event
// to sink in order. Returns once the producer reports Done and the terminal
// events are emitted.
func pump(ctx context.Context, producer engine.Producer, em *session.Emitter, req *request.MessagesRequest, sink func(wire.StreamEvent) error) error {
	inputEstimate := engine.EstimateTokens(req.SystemPrompt() + req.LastUserText())
	start, err := em.Start(session.NewMessageID(), req.Model, wire.Usage{InputTokens: inputEstimate})
	if err != nil {
		return err
	}
	if err := sink(start); err != nil {
		return err
	}

	for {
		inc, err := producer.Next(ctx)
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("producer ended without reporting completion: %w", session.ErrIncompleteStream)
		}
		if err != nil {
			return err
		}

		var ev wire.StreamEvent
		switch inc := inc.(type) {
		case engine.BlockOpen:
			if inc.Kind == wire.BlockToolUse {
				ev, err = em.OpenToolUse(inc.ID, inc.Name)
			} else {
				ev, err = em.OpenText()
			}
		case engine.TextFragment:
			ev, err = em.AppendText(inc.Text)
		case engine.InputFragment:
			ev, err = em.AppendToolInput(inc.PartialJSON)
		case engine.BlockClose:
			ev, err = em.CloseBlock()
		case engine.Done:
			events, err := em.Finish(inc.StopReason, inc.StopSequence, inc.OutputTokens)
			if err != nil {
				return err
			}
			for _, ev := range events {
				if err := sink(ev); err != nil {
					return err
				}
			}
			return nil
		default:
			err = fmt.Errorf("unhandled producer increment %T", inc)
		}
		if err != nil {
			return err
		}
		if err := sink(ev); err != nil {
			return err
		}
	}
}
