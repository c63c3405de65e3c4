// Package types defines the shared vocabulary of the system: conversation
// messages and their content blocks, per-tab todos and modes, and the events
// streamed from the agent to connected panels.
package types

import "encoding/json"

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	// RoleUser is the user side of the conversation. Tool results are also
	// carried on user messages, one batch per assistant turn.
	RoleUser MessageRole = "user"

	// RoleAssistant is the model side of the conversation.
	RoleAssistant MessageRole = "assistant"
)

// BlockType tags the variant of a ContentBlock.
type BlockType string

const (
	BlockTypeText       BlockType = "text"
	BlockTypeToolUse    BlockType = "tool_use"
	BlockTypeToolResult BlockType = "tool_result"
	BlockTypeImage      BlockType = "image"
)

// ContentBlock is one element of a message's content. It is a tagged union:
// Type selects the variant and only that variant's fields are populated. The
// JSON shape matches the model wire format exactly so that blocks returned by
// the model can be stored verbatim and replayed on the next turn.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// Text is set for text blocks.
	Text string `json:"text,omitempty"`

	// ID, Name, and Input are set for tool_use blocks. Input is the raw JSON
	// object the model supplied; it is kept unparsed so replay is byte-faithful.
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// ToolUseID, Content, and IsError are set for tool_result blocks. Content
	// holds the result payload as nested blocks: a single text block for
	// ordinary results, or a [text, image] pair for screenshot reads.
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   []ContentBlock `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`

	// Source is set for image blocks.
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource carries inline image data for an image block.
type ImageSource struct {
	Type      string `json:"type"` // always "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

// ToolUseBlock builds a tool_use content block.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockTypeToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock builds a tool_result block whose payload is a single text
// block. isError marks results that carry an error object.
func ToolResultBlock(toolUseID, text string, isError bool) ContentBlock {
	return ContentBlock{
		Type:      BlockTypeToolResult,
		ToolUseID: toolUseID,
		Content:   []ContentBlock{TextBlock(text)},
		IsError:   isError,
	}
}

// ToolResultBlocks builds a tool_result block with an explicit payload block
// list, for results that mix text and image content.
func ToolResultBlocks(toolUseID string, content []ContentBlock, isError bool) ContentBlock {
	return ContentBlock{
		Type:      BlockTypeToolResult,
		ToolUseID: toolUseID,
		Content:   content,
		IsError:   isError,
	}
}

// ImageBlock builds an image content block from base64 data.
func ImageBlock(mediaType, base64Data string) ContentBlock {
	return ContentBlock{
		Type:   BlockTypeImage,
		Source: &ImageSource{Type: "base64", MediaType: mediaType, Data: base64Data},
	}
}

// Message is one entry of a per-tab conversation. Content is always a block
// list; plain text messages are a single text block.
type Message struct {
	Role    MessageRole    `json:"role"`
	Content []ContentBlock `json:"content"`
}

// NewUserMessage creates a user message containing a single text block.
func NewUserMessage(text string) *Message {
	return &Message{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

// NewAssistantMessage creates an assistant message from the blocks the model
// returned, preserving their order.
func NewAssistantMessage(blocks []ContentBlock) *Message {
	return &Message{Role: RoleAssistant, Content: blocks}
}

// NewToolResultsMessage creates the user message that carries one turn's
// tool_result batch back to the model.
func NewToolResultsMessage(results []ContentBlock) *Message {
	return &Message{Role: RoleUser, Content: results}
}

// Text returns the concatenation of the message's text blocks.
func (m *Message) Text() string {
	var out string
	for _, b := range m.Content {
		if b.Type == BlockTypeText {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns the tool_use blocks of the message in order.
func (m *Message) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, b := range m.Content {
		if b.Type == BlockTypeToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// Clone returns a deep copy of the message. Block payloads are copied so that
// callers holding history snapshots are isolated from later mutation.
func (m *Message) Clone() *Message {
	out := &Message{Role: m.Role, Content: make([]ContentBlock, len(m.Content))}
	copy(out.Content, m.Content)
	for i := range out.Content {
		if len(m.Content[i].Input) > 0 {
			out.Content[i].Input = append(json.RawMessage(nil), m.Content[i].Input...)
		}
		if len(m.Content[i].Content) > 0 {
			inner := make([]ContentBlock, len(m.Content[i].Content))
			copy(inner, m.Content[i].Content)
			out.Content[i].Content = inner
		}
		if m.Content[i].Source != nil {
			src := *m.Content[i].Source
			out.Content[i].Source = &src
		}
	}
	return out
}
