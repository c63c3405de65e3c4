// Package anthropic provides an Anthropic Messages API provider implementation.
//
// Example usage:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "os"
//
//	    "github.com/entrhq/webforge/pkg/llm"
//	    "github.com/entrhq/webforge/pkg/llm/anthropic"
//	    "github.com/entrhq/webforge/pkg/types"
//	)
//
//	func main() {
//	    provider, err := anthropic.NewProvider(
//	        os.Getenv("ANTHROPIC_API_KEY"),
//	        anthropic.WithModel("claude-sonnet-4-20250514"),
//	    )
//	    if err != nil {
//	        panic(err)
//	    }
//
//	    resp, err := provider.Complete(context.Background(), &llm.Request{
//	        Messages: []*types.Message{types.NewUserMessage("Hello!")},
//	    })
//	    if err != nil {
//	        panic(err)
//	    }
//
//	    fmt.Println(resp.Text())
//	}
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/entrhq/webforge/pkg/llm"
	"github.com/entrhq/webforge/pkg/types"
)

const (
	// DefaultBaseURL is the default Anthropic API base URL
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultModel is used when no model is configured
	DefaultModel = "claude-sonnet-4-20250514"

	// DefaultMaxTokens caps completion length when the request does not
	DefaultMaxTokens = 8192

	// apiVersion is the Messages API version header value
	apiVersion = "2023-06-01"
)

// Provider implements the LLM provider interface for the Anthropic Messages
// API. Conversation content blocks are sent on the wire verbatim, so tool_use
// and tool_result round-trip without translation.
type Provider struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	modelInfo  *types.ModelInfo
}

// ProviderOption is a function that configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		p.model = model
	}
}

// WithBaseURL sets a custom base URL for Anthropic-compatible APIs.
// This enables proxies and compatible gateways.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithMaxTokens sets the default completion token cap for requests that do
// not specify one.
func WithMaxTokens(maxTokens int) ProviderOption {
	return func(p *Provider) {
		p.maxTokens = maxTokens
	}
}

// NewProvider creates a new Anthropic provider with the given API key.
//
// If apiKey is empty, it will attempt to read from the ANTHROPIC_API_KEY
// environment variable. If baseURL is not provided via WithBaseURL, the
// ANTHROPIC_BASE_URL environment variable is checked.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	// Use environment variable if no API key provided
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (provide via parameter or ANTHROPIC_API_KEY environment variable)")
	}

	p := &Provider{
		model:      DefaultModel,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
		maxTokens:  DefaultMaxTokens,
	}

	for _, opt := range opts {
		opt(p)
	}

	// If baseURL wasn't set by options, check environment variable
	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("ANTHROPIC_BASE_URL"); envBaseURL != "" {
			p.baseURL = strings.TrimSuffix(envBaseURL, "/")
		}
	}

	p.modelInfo = &types.ModelInfo{
		Provider:          "anthropic",
		Name:              p.model,
		MaxTokens:         p.maxTokens,
		ContextWindow:     contextWindowForModel(p.model),
		SupportsStreaming: true,
		Metadata:          make(map[string]interface{}),
	}

	if p.baseURL != DefaultBaseURL {
		p.modelInfo.Metadata["base_url"] = p.baseURL
	}

	return p, nil
}

// contextWindowForModel returns the context size in tokens for known model
// families.
func contextWindowForModel(model string) int {
	switch {
	case strings.HasPrefix(model, "claude-3-opus"), strings.HasPrefix(model, "claude-3-haiku"):
		return 200000
	case strings.HasPrefix(model, "claude"):
		return 200000
	default:
		return 200000
	}
}

// CloneWithModel returns a shallow copy of p configured to use the given model.
// The clone shares the same HTTP client, API key, and base URL as the original.
// It implements llm.ModelCloner.
func (p *Provider) CloneWithModel(model string) llm.Provider {
	clone := *p // shallow copy: shares httpClient (connection pool), apiKey, baseURL
	clone.model = model
	if p.modelInfo != nil {
		mi := *p.modelInfo
		mi.Name = model
		mi.ContextWindow = contextWindowForModel(model)
		clone.modelInfo = &mi
	}
	return &clone
}

// wireMessage is one conversation entry in Messages API form. Content blocks
// already match the wire shape, so they are embedded directly.
type wireMessage struct {
	Role    string               `json:"role"`
	Content []types.ContentBlock `json:"content"`
}

// wireTool is one tool definition in Messages API form.
type wireTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// wireUsage mirrors the usage object on stream events.
type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// streamEvent is the union of Messages API stream event payloads. Type
// selects which of the optional fields are present.
type streamEvent struct {
	Type string `json:"type"`

	Message *struct {
		Usage wireUsage `json:"usage"`
	} `json:"message,omitempty"`

	Index int `json:"index,omitempty"`

	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
		Text string `json:"text,omitempty"`
	} `json:"content_block,omitempty"`

	Delta *struct {
		Type        string `json:"type,omitempty"`
		Text        string `json:"text,omitempty"`
		PartialJSON string `json:"partial_json,omitempty"`
		StopReason  string `json:"stop_reason,omitempty"`
	} `json:"delta,omitempty"`

	Usage *wireUsage `json:"usage,omitempty"`

	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// StreamCompletion sends a request to the Messages API and streams back
// response chunks.
//
// This implementation uses raw HTTP streaming to handle SSE events directly,
// which provides better compatibility with gateways that inject SSE comments
// or have slight format variations.
func (p *Provider) StreamCompletion(ctx context.Context, req *llm.Request) (<-chan *llm.StreamChunk, error) {
	resp, err := p.sendStreamRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	chunks := make(chan *llm.StreamChunk, 10)
	go p.processStreamResponse(ctx, resp, chunks)
	return chunks, nil
}

// sendStreamRequest creates and sends the HTTP request for streaming
func (p *Provider) sendStreamRequest(ctx context.Context, req *llm.Request) (*http.Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	messages := make([]wireMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, wireMessage{Role: string(m.Role), Content: m.Content})
	}

	reqBody := map[string]interface{}{
		"model":      p.model,
		"max_tokens": maxTokens,
		"messages":   messages,
		"stream":     true,
	}
	if req.System != "" {
		reqBody["system"] = req.System
	}
	if len(req.Tools) > 0 {
		tools := make([]wireTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, wireTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		}
		reqBody["tools"] = tools
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("API request failed with status %d (failed to read error body: %w)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

// pendingBlock accumulates one content block across stream events.
type pendingBlock struct {
	block   types.ContentBlock
	jsonBuf strings.Builder
}

// processStreamResponse processes the SSE stream and sends chunks to the channel
func (p *Provider) processStreamResponse(ctx context.Context, resp *http.Response, chunks chan<- *llm.StreamChunk) {
	defer close(chunks)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	pending := make(map[int]*pendingBlock)
	response := &llm.Response{StopReason: llm.StopReasonEndTurn}

	for scanner.Scan() {
		line := scanner.Text()

		if !p.isValidSSELine(line) {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue // Skip malformed events silently
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				response.Usage.InputTokens = event.Message.Usage.InputTokens
			}

		case "content_block_start":
			if event.ContentBlock == nil {
				continue
			}
			pb := &pendingBlock{}
			switch event.ContentBlock.Type {
			case "text":
				pb.block = types.TextBlock(event.ContentBlock.Text)
			case "tool_use":
				pb.block = types.ContentBlock{
					Type: types.BlockTypeToolUse,
					ID:   event.ContentBlock.ID,
					Name: event.ContentBlock.Name,
				}
			default:
				// Unknown block kinds are preserved as empty text so
				// indexes stay aligned.
				pb.block = types.TextBlock("")
			}
			pending[event.Index] = pb

		case "content_block_delta":
			pb, ok := pending[event.Index]
			if !ok || event.Delta == nil {
				continue
			}
			switch event.Delta.Type {
			case "text_delta":
				pb.block.Text += event.Delta.Text
				if !p.sendChunk(ctx, chunks, &llm.StreamChunk{TextDelta: event.Delta.Text}) {
					return
				}
			case "input_json_delta":
				pb.jsonBuf.WriteString(event.Delta.PartialJSON)
			}

		case "content_block_stop":
			pb, ok := pending[event.Index]
			if !ok {
				continue
			}
			if pb.block.Type == types.BlockTypeToolUse {
				input := pb.jsonBuf.String()
				if input == "" {
					input = "{}"
				}
				pb.block.Input = json.RawMessage(input)
			}

		case "message_delta":
			if event.Delta != nil && event.Delta.StopReason != "" {
				response.StopReason = mapStopReason(event.Delta.StopReason)
			}
			if event.Usage != nil {
				response.Usage.OutputTokens = event.Usage.OutputTokens
			}

		case "message_stop":
			response.Content = assembleBlocks(pending)
			p.sendChunk(ctx, chunks, &llm.StreamChunk{Response: response})
			return

		case "error":
			msg := "stream error"
			if event.Error != nil {
				msg = event.Error.Message
			}
			p.sendChunk(ctx, chunks, &llm.StreamChunk{Error: fmt.Errorf("anthropic: %s", msg)})
			return
		}
	}

	if err := scanner.Err(); err != nil {
		p.sendChunk(ctx, chunks, &llm.StreamChunk{Error: fmt.Errorf("stream read error: %w", err)})
		return
	}

	// The stream ended without message_stop. Assemble what arrived so a
	// truncated response is still usable.
	response.Content = assembleBlocks(pending)
	p.sendChunk(ctx, chunks, &llm.StreamChunk{Response: response})
}

// assembleBlocks flattens accumulated blocks back into stream order.
func assembleBlocks(pending map[int]*pendingBlock) []types.ContentBlock {
	indexes := make([]int, 0, len(pending))
	for i := range pending {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	blocks := make([]types.ContentBlock, 0, len(indexes))
	for _, i := range indexes {
		blocks = append(blocks, pending[i].block)
	}
	return blocks
}

// mapStopReason converts wire stop reasons to llm.StopReason.
func mapStopReason(reason string) llm.StopReason {
	switch reason {
	case "tool_use":
		return llm.StopReasonToolUse
	case "max_tokens":
		return llm.StopReasonMaxTokens
	case "stop_sequence":
		return llm.StopReasonStopSequence
	default:
		return llm.StopReasonEndTurn
	}
}

// isValidSSELine checks if a line is a valid SSE data line
func (p *Provider) isValidSSELine(line string) bool {
	return line != "" && !strings.HasPrefix(line, ":") && strings.HasPrefix(line, "data: ")
}

// sendChunk sends a chunk to the channel unless the context is canceled
func (p *Provider) sendChunk(ctx context.Context, chunks chan<- *llm.StreamChunk, chunk *llm.StreamChunk) bool {
	select {
	case chunks <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// Complete sends a request to the Messages API and returns the full response.
//
// This is a convenience wrapper around StreamCompletion that drains the
// stream and returns the terminal response.
func (p *Provider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	stream, err := p.StreamCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	var response *llm.Response
	for chunk := range stream {
		if chunk.IsError() {
			return nil, chunk.Error
		}
		if chunk.IsFinal() {
			response = chunk.Response
		}
	}

	if response == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("stream ended without a response")
	}

	return response, nil
}

// GetModelInfo returns information about the Anthropic model being used.
func (p *Provider) GetModelInfo() *types.ModelInfo {
	return p.modelInfo
}

// GetModel returns the model name being used.
func (p *Provider) GetModel() string {
	return p.model
}

// GetBaseURL returns the base URL being used.
func (p *Provider) GetBaseURL() string {
	return p.baseURL
}

// GetAPIKey returns the API key being used.
func (p *Provider) GetAPIKey() string {
	return p.apiKey
}
