// Package llm provides abstractions for LLM provider integration.
//
// Example usage:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//	    "os"
//
//	    "github.com/entrhq/webforge/pkg/llm"
//	    "github.com/entrhq/webforge/pkg/llm/anthropic"
//	    "github.com/entrhq/webforge/pkg/types"
//	)
//
//	func main() {
//	    // Create provider
//	    provider, err := anthropic.NewProvider(
//	        os.Getenv("ANTHROPIC_API_KEY"),
//	        anthropic.WithModel("claude-sonnet-4-20250514"),
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    // Use streaming
//	    req := &llm.Request{
//	        Messages: []*types.Message{
//	            types.NewUserMessage("Hello!"),
//	        },
//	    }
//
//	    stream, err := provider.StreamCompletion(context.Background(), req)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    for chunk := range stream {
//	        if chunk.IsError() {
//	            log.Fatal(chunk.Error)
//	        }
//	        fmt.Print(chunk.TextDelta)
//	    }
//	}
package llm

import (
	"context"

	"github.com/entrhq/webforge/pkg/types"
)

// ToolDef describes one tool exposed to the model on a request. InputSchema
// is a JSON Schema object for the tool's input.
type ToolDef struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// Request is a single completion request. Messages is the full conversation
// replayed each turn; providers are stateless between calls.
type Request struct {
	// System is the system prompt. Providers place it wherever their wire
	// format expects (a top-level field or a leading system message).
	System string

	// Messages is the conversation history, oldest first.
	Messages []*types.Message

	// Tools is the tool catalog for this request. Empty means no tools.
	Tools []ToolDef

	// MaxTokens caps the completion length. Zero uses the provider default.
	MaxTokens int
}

// ModelCloner is an optional interface that LLM providers can implement to
// support lightweight per-call model overrides without constructing a full
// second provider. The returned provider shares credentials and transport with
// the original but directs calls to the given model.
type ModelCloner interface {
	CloneWithModel(model string) Provider
}

// Provider defines the interface for LLM integrations.
//
// Providers handle API communication with LLM services and return simple
// StreamChunk instances. This design keeps providers focused on LLM concerns
// without coupling them to agent-level events or orchestration.
//
// The Agent layer is responsible for:
// - Converting StreamChunks to AgentEvents
// - Dispatching tool_use blocks and batching results
// - Managing conversation state and history
//
// This separation allows providers to be:
// - Reusable in non-agent contexts (CLI tools, batch processing, etc.)
// - Testable independently of agent logic
// - Simpler to implement and maintain
type Provider interface {
	// StreamCompletion sends a request to the LLM and streams back response
	// chunks.
	//
	// The returned channel emits StreamChunk instances:
	// - Chunks with TextDelta carry assistant text as it is generated
	// - The terminal chunk has Response set with the assembled content
	//   blocks, stop reason, and usage
	// - Error chunks have Error set
	//
	// The channel is closed when streaming completes or an error occurs.
	// Callers should continue reading until the channel is closed.
	//
	// Returns an error only if streaming cannot be initiated (e.g., invalid
	// configuration, network unavailable). Stream-time errors are sent as
	// StreamChunk instances with Error set.
	StreamCompletion(ctx context.Context, req *Request) (<-chan *StreamChunk, error)

	// Complete sends a request to the LLM and returns the full response.
	//
	// This is a convenience wrapper around StreamCompletion for non-streaming
	// use cases. It accumulates all chunks and returns the terminal response.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// GetModelInfo returns information about the LLM model being used.
	GetModelInfo() *types.ModelInfo

	// GetModel returns the model name being used.
	GetModel() string

	// GetBaseURL returns the base URL being used for API requests.
	GetBaseURL() string

	// GetAPIKey returns the API key being used for authentication.
	GetAPIKey() string
}
