package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolohelios/afmbridge-sub001/internal/engine"
	"github.com/kolohelios/afmbridge-sub001/internal/request"
	"github.com/kolohelios/afmbridge-sub001/internal/session"
	"github.com/kolohelios/afmbridge-sub001/internal/stream"
	"github.com/kolohelios/afmbridge-sub001/internal/wire"
)

func echoFactory(req *request.MessagesRequest) (engine.Producer, error) {
	return engine.NewScriptProducer(engine.EchoScript(req.LastUserText(), req.MaxTokens), 4)
}

type capturePublisher struct {
	frames []string
	done   []string
}

func (c *capturePublisher) PublishFrame(requestID string, frame []byte) {
	c.frames = append(c.frames, string(frame))
}

func (c *capturePublisher) PublishDone(requestID string) {
	c.done = append(c.done, requestID)
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerNonStreaming(t *testing.T) {
	h := NewHandler(echoFactory, nil, nil)

	rec := post(t, h, `{"model":"afm-base","max_tokens":64,"messages":[{"role":"user","content":"hello there"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp wire.MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.ID, "msg_"))
	assert.Equal(t, "afm-base", resp.Model)
	assert.Equal(t, wire.StopEndTurn, resp.StopReason)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, wire.TextBlock{Text: "hello there"}, resp.Content[0])
	assert.Greater(t, resp.Usage.OutputTokens, 0)
}

func TestHandlerStreaming(t *testing.T) {
	h := NewHandler(echoFactory, nil, nil)

	rec := post(t, h, `{"model":"afm-base","max_tokens":64,"stream":true,"messages":[{"role":"user","content":"stream me a long reply"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream; charset=utf-8", rec.Header().Get("Content-Type"))

	sc := stream.NewScanner(rec.Body)
	var events []wire.StreamEvent
	for {
		ev, err := sc.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		events = append(events, ev)
	}

	// The emitted stream must itself be a valid, assemblable session.
	resp, err := session.Assemble(events)
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, wire.TextBlock{Text: "stream me a long reply"}, resp.Content[0])

	// Fragmented at chunk size 4, so more than one delta frame.
	deltas := 0
	for _, ev := range events {
		if _, ok := ev.(wire.ContentBlockDelta); ok {
			deltas++
		}
	}
	assert.Greater(t, deltas, 1)
}

func TestHandlerStreamingPublishesFrames(t *testing.T) {
	pub := &capturePublisher{}
	h := NewHandler(echoFactory, nil, pub)

	rec := post(t, h, `{"model":"afm-base","max_tokens":64,"stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, pub.done, 1)
	require.NotEmpty(t, pub.frames)
	// Published frames are the exact bytes written to the response.
	assert.Equal(t, rec.Body.String(), strings.Join(pub.frames, ""))
}

func TestHandlerRejectsBadRequest(t *testing.T) {
	h := NewHandler(echoFactory, nil, nil)

	rec := post(t, h, `{"model":"afm-base","messages":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Type string        `json:"type"`
		Err  wire.APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Type)
	assert.Equal(t, "invalid_request_error", body.Err.Type)
}

func TestHandlerRejectsNonPost(t *testing.T) {
	h := NewHandler(echoFactory, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/messages", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandlerProducerFailure(t *testing.T) {
	h := NewHandler(func(*request.MessagesRequest) (engine.Producer, error) {
		return nil, errors.New("backend down")
	}, nil, nil)

	rec := post(t, h, `{"model":"afm-base","max_tokens":8,"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body struct {
		Err wire.APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "api_error", body.Err.Type)
}

type truncatedProducer struct {
	inner engine.Producer
	left  int
}

func (p *truncatedProducer) Next(ctx context.Context) (engine.Increment, error) {
	if p.left <= 0 {
		return nil, io.EOF
	}
	p.left--
	return p.inner.Next(ctx)
}

func TestHandlerStreamingAbortsOnTruncatedProducer(t *testing.T) {
	h := NewHandler(func(req *request.MessagesRequest) (engine.Producer, error) {
		inner, err := echoFactory(req)
		if err != nil {
			return nil, err
		}
		return &truncatedProducer{inner: inner, left: 2}, nil
	}, nil, nil)

	rec := post(t, h, `{"model":"afm-base","max_tokens":64,"stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	// Headers are already out; the failure surfaces as a terminal error event.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `event: error`)
	assert.Contains(t, rec.Body.String(), "without reporting completion")
}
