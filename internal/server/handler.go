// Package server exposes the Messages API endpoint, bridging the abstract
// inference producer to the streaming and non-streaming wire formats.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kolohelios/afmbridge-sub001/internal/engine"
	"github.com/kolohelios/afmbridge-sub001/internal/request"
	"github.com/kolohelios/afmbridge-sub001/internal/session"
	"github.com/kolohelios/afmbridge-sub001/internal/storage"
	"github.com/kolohelios/afmbridge-sub001/internal/stream"
	"github.com/kolohelios/afmbridge-sub001/internal/wire"
)

// ProducerFactory builds an inference producer for one request.
type ProducerFactory func(req *request.MessagesRequest) (engine.Producer, error)

// FramePublisher fans emitted SSE frames out to the analytics pipeline.
type FramePublisher interface {
	PublishFrame(requestID string, frame []byte)
	PublishDone(requestID string)
}

// Handler serves POST /v1/messages. writer and frames may be nil, in which
// case analytics are skipped.
type Handler struct {
	newProducer ProducerFactory
	writer      *storage.BatchWriter
	frames      FramePublisher
}

func NewHandler(factory ProducerFactory, writer *storage.BatchWriter, frames FramePublisher) *Handler {
	return &Handler{newProducer: factory, writer: writer, frames: frames}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	requestID := uuid.New()
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "failed to read request body")
		return
	}

	req, err := request.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		h.record(requestID, start, req, http.StatusBadRequest, nil, err)
		return
	}

	producer, err := h.newProducer(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "api_error", err.Error())
		h.record(requestID, start, req, http.StatusInternalServerError, nil, err)
		return
	}

	var resp *wire.MessageResponse
	status := http.StatusOK
	if req.Stream {
		resp, err = h.handleStreaming(w, r, requestID, req, producer)
	} else {
		resp, err = h.handleNonStreaming(w, r, req, producer)
		if err != nil {
			status = http.StatusInternalServerError
		}
	}

	h.record(requestID, start, req, status, resp, err)

	log.Info().
		Str("request_id", requestID.String()).
		Str("model", req.Model).
		Bool("stream", req.Stream).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("handled messages request")
}

func (h *Handler) handleStreaming(w http.ResponseWriter, r *http.Request, requestID uuid.UUID, req *request.MessagesRequest, producer engine.Producer) (*wire.MessageResponse, error) {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sw := stream.NewWriter(w)
	em := session.NewEmitter()
	sink := func(ev wire.StreamEvent) error {
		frame, err := sw.WriteEvent(ev)
		if err != nil {
			return err
		}
		if h.frames != nil {
			h.frames.PublishFrame(requestID.String(), frame)
		}
		return nil
	}

	err := pump(r.Context(), producer, em, req, sink)
	if err != nil {
		// Mid-stream failure: the error event is the terminal frame.
		if ev, abortErr := em.Abort("api_error", err.Error()); abortErr == nil {
			_ = sink(ev)
		}
	}

	if h.frames != nil {
		h.frames.PublishDone(requestID.String())
	}
	if err != nil {
		return nil, err
	}
	return em.Response()
}

func (h *Handler) handleNonStreaming(w http.ResponseWriter, r *http.Request, req *request.MessagesRequest, producer engine.Producer) (*wire.MessageResponse, error) {
	em := session.NewEmitter()
	discard := func(wire.StreamEvent) error { return nil }

	if err := pump(r.Context(), producer, em, req, discard); err != nil {
		writeError(w, http.StatusInternalServerError, "api_error", err.Error())
		return nil, err
	}

	resp, err := em.Response()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "api_error", err.Error())
		return nil, err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return resp, err
	}
	return resp, nil
}

func (h *Handler) record(requestID uuid.UUID, start time.Time, req *request.MessagesRequest, status int, resp *wire.MessageResponse, err error) {
	if h.writer == nil {
		return
	}
	rec := &storage.RequestRecord{
		ID:             requestID,
		Timestamp:      start,
		StatusCode:     status,
		Success:        err == nil && status < 400,
		ResponseTimeMs: int(time.Since(start).Milliseconds()),
	}
	if err != nil {
		rec.ErrorMessage = err.Error()
	}
	if req != nil {
		rec.Model = req.Model
		rec.IsStream = req.Stream
		rec.MaxTokens = req.MaxTokens
		rec.ToolCount = len(req.Tools)
	}
	if resp != nil {
		rec.StopReason = string(resp.StopReason)
		rec.InputTokens = resp.Usage.InputTokens
		rec.OutputTokens = resp.Usage.OutputTokens
		rec.TotalTokens = resp.Usage.InputTokens + resp.Usage.OutputTokens
	}
	h.writer.Enqueue(storage.InsertRequestJob(rec))
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := json.Marshal(wire.ErrorEvent{Err: wire.APIError{Type: errType, Message: message}})
	w.Write(body)
}
