// Package wire defines the Anthropic-compatible Messages API wire format:
// the eight streaming SSE event variants, the content block unions, and the
// non-streaming response shape. All field names are snake_case on the wire
// regardless of Go naming, and every union is selected by a literal "type"
// discriminator.
package wire

// StopReason reports why the model stopped generating.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
	StopToolUse      StopReason = "tool_use"
)

// Usage is the token accounting snapshot attached once per message.
type Usage struct {
	InputTokens              int  `json:"input_tokens"`
	OutputTokens             int  `json:"output_tokens"`
	CacheCreationInputTokens *int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     *int `json:"cache_read_input_tokens,omitempty"`
}

// UsageDelta carries the cumulative output token count reported with
// message_delta. It replaces, not adds to, any running total.
type UsageDelta struct {
	OutputTokens int `json:"output_tokens"`
}

// APIError is the vendor-defined error payload carried by the "error" event
// and by non-2xx HTTP responses.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
