// Package stream frames wire events as server-sent events and parses them
// back, tolerating frames split across arbitrary read boundaries.
package stream

import (
	"bytes"
	"strings"
)

// Frame is a single parsed SSE frame.
type Frame struct {
	Index     int    // ordinal within this stream, starting at 1
	EventType string // value of the event: line, or inferred from the payload
	RawData   string // raw JSON string from the data: line
	RawBytes  int    // byte length of the data line incl. newline
}

// Parser maintains state across chunks to handle partial SSE lines.
type Parser struct {
	buffer     []byte
	frameIndex int
	eventType  string // current event: field value
}

func NewParser() *Parser {
	return &Parser{}
}

// ParseChunk processes raw bytes from the stream and yields complete frames.
func (p *Parser) ParseChunk(chunk []byte) []Frame {
	p.buffer = append(p.buffer, chunk...)
	var frames []Frame

	for {
		idx := bytes.IndexByte(p.buffer, '\n')
		if idx == -1 {
			break
		}

		line := string(p.buffer[:idx])
		p.buffer = p.buffer[idx+1:]
		line = strings.TrimRight(line, "\r")

		if line == "" {
			// Empty line = frame separator, reset event type
			p.eventType = ""
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			p.eventType = strings.TrimSpace(line[7:])
			continue
		}

		if strings.HasPrefix(line, "data: ") {
			dataStr := line[6:]
			p.frameIndex++

			eventType := p.eventType
			if eventType == "" {
				eventType = inferEventType(dataStr)
			}

			frames = append(frames, Frame{
				Index:     p.frameIndex,
				EventType: eventType,
				RawData:   dataStr,
				RawBytes:  len(line) + 1, // +1 for newline
			})
		}
	}

	return frames
}

// inferEventType extracts the "type" field from JSON data without full parsing.
func inferEventType(data string) string {
	// Fast path: look for "type":"..." pattern
	idx := strings.Index(data, `"type"`)
	if idx == -1 {
		return "unknown"
	}

	rest := data[idx+6:]
	rest = strings.TrimLeft(rest, " \t:")
	rest = strings.TrimLeft(rest, " \t")

	if len(rest) > 0 && rest[0] == '"' {
		end := strings.IndexByte(rest[1:], '"')
		if end >= 0 {
			return rest[1 : end+1]
		}
	}
	return "unknown"
}
