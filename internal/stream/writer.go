package stream

import (
	"fmt"
	"io"
	"net/http"

	"github.com/kolohelios/afmbridge-sub001/internal/wire"
)

// MarshalFrame renders one event as a complete SSE frame:
// "event: <type>\ndata: <json>\n\n".
func MarshalFrame(ev wire.StreamEvent) ([]byte, error) {
	data, err := wire.EncodeEvent(ev)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(data)+len(ev.EventType())+16)
	frame = append(frame, "event: "...)
	frame = append(frame, ev.EventType()...)
	frame = append(frame, "\ndata: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// Writer emits events as SSE frames, flushing after each one when the
// destination supports it.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// WriteEvent frames and writes one event, returning the frame bytes so the
// caller can fan them out elsewhere (analytics, recording).
func (w *Writer) WriteEvent(ev wire.StreamEvent) ([]byte, error) {
	frame, err := MarshalFrame(ev)
	if err != nil {
		return nil, err
	}
	if _, err := w.w.Write(frame); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return frame, nil
}
