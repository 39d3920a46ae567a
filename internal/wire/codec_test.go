package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestEventRoundTrip(t *testing.T) {
	cacheRead := 12
	tests := []struct {
		name  string
		event StreamEvent
	}{
		{
			name: "message_start",
			event: MessageStart{Message: MessageSnapshot{
				ID:      "msg_0123",
				Model:   "afm-base",
				Content: []ContentBlock{},
				Usage:   Usage{InputTokens: 21, CacheReadInputTokens: &cacheRead},
			}},
		},
		{
			name:  "content_block_start text",
			event: ContentBlockStart{Index: 0, Block: TextBlock{}},
		},
		{
			name: "content_block_start tool_use",
			event: ContentBlockStart{Index: 1, Block: ToolUseBlock{
				ID:    "toolu_01",
				Name:  "get_weather",
				Input: map[string]any{},
			}},
		},
		{
			name:  "content_block_delta text",
			event: ContentBlockDelta{Index: 0, Delta: TextDelta{Text: "Hel"}},
		},
		{
			name:  "content_block_delta input_json",
			event: ContentBlockDelta{Index: 1, Delta: InputJSONDelta{PartialJSON: `{"city":`}},
		},
		{
			name:  "content_block_stop",
			event: ContentBlockStop{Index: 1},
		},
		{
			name: "message_delta",
			event: MessageDelta{
				Delta: MessageDeltaBody{StopReason: StopEndTurn},
				Usage: UsageDelta{OutputTokens: 5},
			},
		},
		{
			name: "message_delta with stop sequence",
			event: MessageDelta{
				Delta: MessageDeltaBody{StopReason: StopStopSequence, StopSequence: strPtr("\n\n")},
				Usage: UsageDelta{OutputTokens: 9},
			},
		},
		{
			name:  "message_stop",
			event: MessageStop{},
		},
		{
			name:  "ping",
			event: Ping{},
		},
		{
			name:  "error",
			event: ErrorEvent{Err: APIError{Type: "overloaded_error", Message: "Overloaded"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := EncodeEvent(tc.event)
			require.NoError(t, err)

			decoded, err := DecodeEvent(data)
			require.NoError(t, err)
			assert.Equal(t, tc.event, decoded)
			assert.Equal(t, tc.event.EventType(), decoded.EventType())
		})
	}
}

func TestEncodeWireShape(t *testing.T) {
	tests := []struct {
		name  string
		event StreamEvent
		want  string
	}{
		{
			name: "message_start",
			event: MessageStart{Message: MessageSnapshot{
				ID:      "msg_01",
				Model:   "afm-base",
				Content: []ContentBlock{},
				Usage:   Usage{InputTokens: 10},
			}},
			want: `{"type":"message_start","message":{"id":"msg_01","type":"message","role":"assistant","model":"afm-base","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":0}}}`,
		},
		{
			name:  "content_block_start",
			event: ContentBlockStart{Index: 0, Block: TextBlock{}},
			want:  `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		},
		{
			name:  "content_block_delta",
			event: ContentBlockDelta{Index: 0, Delta: TextDelta{Text: "Hi"}},
			want:  `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}`,
		},
		{
			name:  "content_block_stop",
			event: ContentBlockStop{Index: 0},
			want:  `{"type":"content_block_stop","index":0}`,
		},
		{
			name: "message_delta",
			event: MessageDelta{
				Delta: MessageDeltaBody{StopReason: StopEndTurn},
				Usage: UsageDelta{OutputTokens: 5},
			},
			want: `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":5}}`,
		},
		{
			name:  "message_stop",
			event: MessageStop{},
			want:  `{"type":"message_stop"}`,
		},
		{
			name:  "ping",
			event: Ping{},
			want:  `{"type":"ping"}`,
		},
		{
			name:  "error",
			event: ErrorEvent{Err: APIError{Type: "overloaded_error", Message: "Overloaded"}},
			want:  `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := EncodeEvent(tc.event)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(data))
		})
	}
}

func TestDecodeEventErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"not json", `{`, ErrMalformedPayload},
		{"missing type", `{"index":0}`, ErrMalformedPayload},
		{"unknown type", `{"type":"message_restart"}`, ErrUnknownEventType},
		{"mistyped type", `{"type":42}`, ErrMalformedPayload},
		{"message_start without message", `{"type":"message_start"}`, ErrMalformedPayload},
		{"message_start message missing id", `{"type":"message_start","message":{"model":"afm-base"}}`, ErrMalformedPayload},
		{"content_block_start without index", `{"type":"content_block_start","content_block":{"type":"text","text":""}}`, ErrMalformedPayload},
		{"content_block_start unknown block", `{"type":"content_block_start","index":0,"content_block":{"type":"image"}}`, ErrUnknownBlockType},
		{"text block missing text", `{"type":"content_block_start","index":0,"content_block":{"type":"text"}}`, ErrMalformedPayload},
		{"tool_use block missing id", `{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","name":"f"}}`, ErrMalformedPayload},
		{"content_block_delta without delta", `{"type":"content_block_delta","index":0}`, ErrMalformedPayload},
		{"delta unknown kind", `{"type":"content_block_delta","index":0,"delta":{"type":"audio_delta"}}`, ErrMalformedPayload},
		{"text_delta missing text", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta"}}`, ErrMalformedPayload},
		{"input_json_delta missing partial_json", `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta"}}`, ErrMalformedPayload},
		{"content_block_stop without index", `{"type":"content_block_stop"}`, ErrMalformedPayload},
		{"message_delta without usage", `{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`, ErrMalformedPayload},
		{"message_delta without stop_reason", `{"type":"message_delta","delta":{},"usage":{"output_tokens":1}}`, ErrMalformedPayload},
		{"error without payload", `{"type":"error"}`, ErrMalformedPayload},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(tc.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestDecodeIsIdempotent(t *testing.T) {
	data := []byte(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}`)

	first, err := DecodeEvent(data)
	require.NoError(t, err)
	second, err := DecodeEvent(data)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDecodeContentBlock(t *testing.T) {
	block, err := DecodeContentBlock([]byte(`{"type":"tool_use","id":"toolu_01","name":"f","input":{"a":1}}`))
	require.NoError(t, err)
	assert.Equal(t, ToolUseBlock{ID: "toolu_01", Name: "f", Input: map[string]any{"a": float64(1)}}, block)

	_, err = DecodeContentBlock([]byte(`{"type":"thinking"}`))
	assert.ErrorIs(t, err, ErrUnknownBlockType)
}

func TestToolUseBlockEncodesEmptyInput(t *testing.T) {
	data, err := ToolUseBlock{ID: "toolu_01", Name: "f"}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"tool_use","id":"toolu_01","name":"f","input":{}}`, string(data))
}
