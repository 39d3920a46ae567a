package processor

import (
	"github.com/rs/zerolog/log"

	"github.com/kolohelios/afmbridge-sub001/internal/session"
	"github.com/kolohelios/afmbridge-sub001/internal/stream"
	"github.com/kolohelios/afmbridge-sub001/internal/wire"
)

// Summary is what the analytics pipeline extracts from one replayed stream.
type Summary struct {
	Model      string
	StopReason wire.StopReason
	Usage      wire.Usage
	Complete   bool // reached message_stop and assembled cleanly
	BadFrames  int  // frames that failed to decode
}

func (s Summary) TotalTokens() int {
	return s.Usage.InputTokens + s.Usage.OutputTokens
}

// Replay runs a request's captured frames back through the codec and
// sequencer. Decode failures are local to a frame and skipped; a sequencing
// violation abandons validation but keeps whatever was extracted so far.
func Replay(frames []stream.Frame) Summary {
	var summary Summary
	seq := session.NewSequencer()

	for _, frame := range frames {
		ev, err := wire.DecodeEvent([]byte(frame.RawData))
		if err != nil {
			summary.BadFrames++
			log.Debug().Err(err).Int("frame", frame.Index).Msg("skipping undecodable frame")
			continue
		}

		switch ev := ev.(type) {
		case wire.MessageStart:
			summary.Model = ev.Message.Model
			summary.Usage = ev.Message.Usage
		case wire.MessageDelta:
			summary.StopReason = ev.Delta.StopReason
			// Cumulative count: replace, never add.
			summary.Usage.OutputTokens = ev.Usage.OutputTokens
		}

		if err := seq.Feed(ev); err != nil {
			log.Warn().Err(err).Int("frame", frame.Index).Msg("stream violates session ordering")
			return summary
		}
	}

	if _, err := seq.Response(); err == nil {
		summary.Complete = true
	}
	return summary
}
