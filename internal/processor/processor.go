// Package processor is the analytics consumer: it replays each request's
// published SSE frames through the protocol codec and sequencer, persists
// the event rows, and backfills final usage on the request record.
package processor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/kolohelios/afmbridge-sub001/internal/jetstream"
	"github.com/kolohelios/afmbridge-sub001/internal/storage"
	"github.com/kolohelios/afmbridge-sub001/internal/stream"
)

// Sink is where the processor enqueues its write jobs. Satisfied by
// storage.BatchWriter.
type Sink interface {
	Enqueue(storage.WriteJob)
}

type pendingStream struct {
	parser *stream.Parser
	frames []stream.Frame
	ts     time.Time
}

type Processor struct {
	writer Sink

	mu      sync.Mutex
	pending map[string]*pendingStream
}

func New(writer Sink) *Processor {
	return &Processor{
		writer:  writer,
		pending: make(map[string]*pendingStream),
	}
}

// StartConsumer subscribes to the per-request frame subjects and processes
// each stream when its done marker arrives. Blocks until ctx is cancelled.
func (p *Processor) StartConsumer(ctx context.Context, js nats.JetStreamContext) error {
	sub, err := js.Subscribe(jetstream.SubjectPrefix+">", func(msg *nats.Msg) {
		p.handleMessage(msg)
		msg.Ack()
	}, nats.AckExplicit())
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return nil
}

func (p *Processor) handleMessage(msg *nats.Msg) {
	requestID, done := jetstream.RequestID(msg.Subject)

	p.mu.Lock()
	ps, ok := p.pending[requestID]
	if !ok {
		ps = &pendingStream{parser: stream.NewParser(), ts: time.Now()}
		p.pending[requestID] = ps
	}
	if !done {
		ps.frames = append(ps.frames, ps.parser.ParseChunk(msg.Data)...)
		p.mu.Unlock()
		return
	}
	delete(p.pending, requestID)
	p.mu.Unlock()

	p.finishStream(requestID, ps)
}

func (p *Processor) finishStream(requestID string, ps *pendingStream) {
	id, err := uuid.Parse(requestID)
	if err != nil {
		log.Warn().Str("request_id", requestID).Msg("unparseable request id on done marker")
		return
	}

	summary := Replay(ps.frames)

	if len(ps.frames) > 0 {
		p.writer.Enqueue(storage.InsertStreamEventsJob(id, ps.ts, ps.frames))
	}
	if summary.Model != "" || summary.TotalTokens() > 0 {
		p.writer.Enqueue(storage.UpdateRequestUsageJob(
			id, summary.Model, string(summary.StopReason),
			summary.Usage.InputTokens, summary.Usage.OutputTokens, summary.TotalTokens(),
		))
	}

	log.Debug().
		Str("request_id", requestID).
		Int("frames", len(ps.frames)).
		Str("model", summary.Model).
		Int("input_tokens", summary.Usage.InputTokens).
		Int("output_tokens", summary.Usage.OutputTokens).
		Bool("complete", summary.Complete).
		Msg("stream processing complete")
}
