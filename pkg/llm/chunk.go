package llm

import "github.com/entrhq/webforge/pkg/types"

// StopReason explains why the model stopped generating.
type StopReason string

const (
	// StopReasonEndTurn means the model finished its turn.
	StopReasonEndTurn StopReason = "end_turn"

	// StopReasonToolUse means the model stopped to call one or more tools.
	StopReasonToolUse StopReason = "tool_use"

	// StopReasonMaxTokens means the completion hit the token cap.
	StopReasonMaxTokens StopReason = "max_tokens"

	// StopReasonStopSequence means a configured stop sequence matched.
	StopReasonStopSequence StopReason = "stop_sequence"
)

// Usage reports token consumption for one completion, as counted by the
// provider. Providers that do not report usage leave it zero.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is a fully assembled completion: the assistant's content blocks in
// generation order plus the stop reason and usage the provider reported.
type Response struct {
	Content    []types.ContentBlock
	StopReason StopReason
	Usage      Usage
}

// Text returns the concatenation of the response's text blocks.
func (r *Response) Text() string {
	var out string
	for _, b := range r.Content {
		if b.Type == types.BlockTypeText {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns the response's tool_use blocks in order.
func (r *Response) ToolUses() []types.ContentBlock {
	var uses []types.ContentBlock
	for _, b := range r.Content {
		if b.Type == types.BlockTypeToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// Message wraps the response content into an assistant message suitable for
// appending to conversation history.
func (r *Response) Message() *types.Message {
	return types.NewAssistantMessage(r.Content)
}

// StreamChunk is a single unit of streamed LLM response.
//
// Chunks carrying assistant text have TextDelta set. The terminal chunk has
// Response set; no further chunks follow it. Error chunks have Error set and
// also terminate the stream.
type StreamChunk struct {
	// TextDelta is a fragment of assistant text, in generation order.
	TextDelta string

	// Response is the assembled completion, set only on the terminal chunk.
	Response *Response

	// Error reports a stream failure.
	Error error
}

// IsError returns true if the chunk carries a stream failure.
func (c *StreamChunk) IsError() bool {
	return c.Error != nil
}

// IsFinal returns true if the chunk carries the assembled response.
func (c *StreamChunk) IsFinal() bool {
	return c.Response != nil
}
