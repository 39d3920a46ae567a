package stream

import (
	"io"

	"github.com/kolohelios/afmbridge-sub001/internal/wire"
)

// Scanner reads SSE frames from a reader and decodes them into wire events.
// A decode failure is local to one frame: Next returns the error and the
// scanner stays usable for subsequent frames. io.EOF signals the transport
// ended; whether that end was clean is the session layer's judgment.
type Scanner struct {
	r       io.Reader
	parser  *Parser
	buf     []byte
	pending []Frame
	readErr error
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{
		r:      r,
		parser: NewParser(),
		buf:    make([]byte, 32*1024),
	}
}

// Next returns the next decoded event. Decode errors carry
// wire.ErrUnknownEventType or wire.ErrMalformedPayload.
func (s *Scanner) Next() (wire.StreamEvent, error) {
	for len(s.pending) == 0 {
		if s.readErr != nil {
			return nil, s.readErr
		}
		n, err := s.r.Read(s.buf)
		if n > 0 {
			s.pending = append(s.pending, s.parser.ParseChunk(s.buf[:n])...)
		}
		if err != nil {
			s.readErr = err
		}
	}

	frame := s.pending[0]
	s.pending = s.pending[1:]
	return wire.DecodeEvent([]byte(frame.RawData))
}
