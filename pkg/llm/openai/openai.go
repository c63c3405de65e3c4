// Package openai provides an OpenAI-compatible LLM provider implementation.
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
//	    "github.com/entrhq/webforge/pkg/llm/openai"
//	    "github.com/entrhq/webforge/pkg/types"
//	)
//
//	func main() {
//	    provider, err := openai.NewProvider(
//	        os.Getenv("OPENAI_API_KEY"),
//	        openai.WithModel("gpt-4o"),
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
package openai

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
	"github.com/openai/openai-go"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured
	DefaultModel = "gpt-4o"
)

// Provider implements the LLM provider interface for OpenAI-compatible APIs.
// Anthropic-shaped content blocks are translated onto the chat completions
// vocabulary: tool_use becomes tool_calls, tool_result becomes role:"tool"
// messages, and image payloads become image_url parts.
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

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
// This enables using Azure OpenAI, local models, or other compatible services.
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

// NewProvider creates a new OpenAI provider with the given API key.
//
// If apiKey is empty, it will attempt to read from the OPENAI_API_KEY environment variable.
// If baseURL is not provided via WithBaseURL option, it will check OPENAI_BASE_URL environment variable.
//
// Example:
//
//	// Standard OpenAI
//	provider, _ := openai.NewProvider("sk-...", openai.WithModel("gpt-4o"))
//
//	// Azure OpenAI
//	provider, _ := openai.NewProvider("your-key",
//	    openai.WithBaseURL("https://your-resource.openai.azure.com"),
//	    openai.WithModel("gpt-4o"))
//
//	// Local OpenAI-compatible API
//	provider, _ := openai.NewProvider("local",
//	    openai.WithBaseURL("http://localhost:8080/v1"))
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	// Use environment variable if no API key provided
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	// Create provider with defaults
	p := &Provider{
		model:      DefaultModel,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
	}

	// Apply options (may override baseURL via WithBaseURL)
	for _, opt := range opts {
		opt(p)
	}

	// If baseURL wasn't set by options, check environment variable
	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = strings.TrimSuffix(envBaseURL, "/")
		}
	}

	p.modelInfo = &types.ModelInfo{
		Provider:          "openai",
		Name:              p.model,
		MaxTokens:         p.maxTokens,
		ContextWindow:     contextWindowForModel(p.model),
		SupportsStreaming: true,
		Metadata:          make(map[string]interface{}),
	}

	// Store base URL in metadata if not default
	if p.baseURL != DefaultBaseURL {
		p.modelInfo.Metadata["base_url"] = p.baseURL
	}

	return p, nil
}

// contextWindowForModel returns the context size in tokens for known model
// families.
func contextWindowForModel(model string) int {
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4-turbo"):
		return 128000
	case strings.HasPrefix(model, "gpt-4.1"):
		return 1047576
	case strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return 200000
	case strings.HasPrefix(model, "gpt-4"):
		return 8192
	case strings.HasPrefix(model, "gpt-3.5"):
		return 16385
	default:
		return 128000
	}
}

// CloneWithModel returns a shallow copy of p configured to use the given model.
// The clone shares the same HTTP client, API key, and base URL as the original.
// It implements llm.ModelCloner.
func (p *Provider) CloneWithModel(model string) llm.Provider {
	clone := *p // shallow copy: shares httpClient (connection pool), apiKey, baseURL
	clone.model = model
	if p.modelInfo != nil {
		mi := *p.modelInfo // copy modelInfo so Name mutation doesn't affect original
		mi.Name = model
		mi.ContextWindow = contextWindowForModel(model)
		clone.modelInfo = &mi
	}
	return &clone
}

// toolCallFunction is the function payload of an assistant tool call.
type toolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// toolCall is one entry of an assistant message's tool_calls array.
type toolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function toolCallFunction `json:"function"`
}

// assistantMessage is an assistant turn that carries tool calls. Plain text
// assistant turns use the SDK helper instead.
type assistantMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

// toolMessage carries one tool result back to the model.
type toolMessage struct {
	Role       string `json:"role"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

// contentPart is one element of a multimodal user message.
type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// userPartsMessage is a user message with multimodal content parts.
type userPartsMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

// wireFunction is a tool definition's function payload.
type wireFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// wireTool is one entry of the request's tools array.
type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

// convertMessages translates the conversation into chat completion messages.
// Text-only turns are built with the SDK's param helpers; tool plumbing and
// multimodal parts use local wire structs because the agent speaks the block
// vocabulary. Each message is marshaled independently so the two sources mix
// in one array.
func convertMessages(req *llm.Request) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(req.Messages)+1)

	appendParam := func(param openai.ChatCompletionMessageParamUnion) error {
		raw, err := json.Marshal(param)
		if err != nil {
			return fmt.Errorf("failed to marshal message param: %w", err)
		}
		out = append(out, raw)
		return nil
	}

	appendLocal := func(v interface{}) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		out = append(out, raw)
		return nil
	}

	if req.System != "" {
		if err := appendParam(openai.SystemMessage(req.System)); err != nil {
			return nil, err
		}
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case types.RoleAssistant:
			uses := msg.ToolUses()
			if len(uses) == 0 {
				if err := appendParam(openai.AssistantMessage(msg.Text())); err != nil {
					return nil, err
				}
				continue
			}
			am := assistantMessage{Role: "assistant", Content: msg.Text()}
			for _, use := range uses {
				args := string(use.Input)
				if args == "" {
					args = "{}"
				}
				am.ToolCalls = append(am.ToolCalls, toolCall{
					ID:   use.ID,
					Type: "function",
					Function: toolCallFunction{
						Name:      use.Name,
						Arguments: args,
					},
				})
			}
			if err := appendLocal(am); err != nil {
				return nil, err
			}

		case types.RoleUser:
			results, images := splitToolResults(msg)
			if len(results) == 0 {
				if err := appendParam(openai.UserMessage(msg.Text())); err != nil {
					return nil, err
				}
				continue
			}
			for _, tm := range results {
				if err := appendLocal(tm); err != nil {
					return nil, err
				}
			}
			// The tool role cannot carry images, so screenshot payloads
			// follow the batch as a multimodal user message.
			if len(images) > 0 {
				if err := appendLocal(userPartsMessage{Role: "user", Content: images}); err != nil {
					return nil, err
				}
			}

		default:
			if err := appendParam(openai.UserMessage(msg.Text())); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

// splitToolResults extracts tool result messages and any image parts from a
// user message carrying a tool_result batch.
func splitToolResults(msg *types.Message) ([]toolMessage, []contentPart) {
	var results []toolMessage
	var images []contentPart

	for _, block := range msg.Content {
		if block.Type != types.BlockTypeToolResult {
			continue
		}

		var text string
		for _, inner := range block.Content {
			switch inner.Type {
			case types.BlockTypeText:
				text += inner.Text
			case types.BlockTypeImage:
				if inner.Source != nil {
					images = append(images, contentPart{
						Type: "image_url",
						ImageURL: &imageURL{
							URL: fmt.Sprintf("data:%s;base64,%s", inner.Source.MediaType, inner.Source.Data),
						},
					})
				}
			}
		}

		results = append(results, toolMessage{
			Role:       "tool",
			ToolCallID: block.ToolUseID,
			Content:    text,
		})
	}

	return results, images
}

// StreamCompletion sends a request to the OpenAI API and streams back response
// chunks.
//
// This implementation uses raw HTTP streaming to handle SSE events directly,
// which provides better compatibility with OpenAI-compatible APIs that may
// include SSE comments or have slight format variations.
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
	messages, err := convertMessages(req)
	if err != nil {
		return nil, err
	}

	reqBody := map[string]interface{}{
		"model":    p.model,
		"messages": messages,
		"stream":   true,
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	if maxTokens > 0 {
		reqBody["max_tokens"] = maxTokens
	}

	if len(req.Tools) > 0 {
		tools := make([]wireTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, wireTool{
				Type: "function",
				Function: wireFunction{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.InputSchema,
				},
			})
		}
		reqBody["tools"] = tools
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
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

// pendingCall accumulates a streamed tool call by its delta index.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// processStreamResponse processes the SSE stream and sends chunks to the channel
func (p *Provider) processStreamResponse(ctx context.Context, resp *http.Response, chunks chan<- *llm.StreamChunk) {
	defer close(chunks)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var text strings.Builder
	calls := make(map[int]*pendingCall)
	finishReason := ""

	for scanner.Scan() {
		line := scanner.Text()

		if !p.isValidSSELine(line) {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			p.sendChunk(ctx, chunks, &llm.StreamChunk{Response: assembleResponse(&text, calls, finishReason)})
			return
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content   string `json:"content"`
					ToolCalls []struct {
						Index    int    `json:"index"`
						ID       string `json:"id"`
						Function struct {
							Name      string `json:"name"`
							Arguments string `json:"arguments"`
						} `json:"function"`
					} `json:"tool_calls"`
				} `json:"delta"`
				FinishReason *string `json:"finish_reason"`
			} `json:"choices"`
		}

		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // Skip malformed chunks silently
		}

		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			text.WriteString(choice.Delta.Content)
			if !p.sendChunk(ctx, chunks, &llm.StreamChunk{TextDelta: choice.Delta.Content}) {
				return
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			pc, ok := calls[tc.Index]
			if !ok {
				pc = &pendingCall{}
				calls[tc.Index] = pc
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			pc.args.WriteString(tc.Function.Arguments)
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			finishReason = *choice.FinishReason
		}
	}

	if err := scanner.Err(); err != nil {
		p.sendChunk(ctx, chunks, &llm.StreamChunk{Error: fmt.Errorf("stream read error: %w", err)})
		return
	}

	// The stream ended without [DONE]. Assemble what arrived.
	p.sendChunk(ctx, chunks, &llm.StreamChunk{Response: assembleResponse(&text, calls, finishReason)})
}

// assembleResponse converts accumulated deltas into a block-shaped response.
func assembleResponse(text *strings.Builder, calls map[int]*pendingCall, finishReason string) *llm.Response {
	response := &llm.Response{StopReason: mapFinishReason(finishReason)}

	if text.Len() > 0 {
		response.Content = append(response.Content, types.TextBlock(text.String()))
	}

	indexes := make([]int, 0, len(calls))
	for i := range calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	for _, i := range indexes {
		pc := calls[i]
		args := pc.args.String()
		if args == "" {
			args = "{}"
		}
		response.Content = append(response.Content, types.ToolUseBlock(pc.id, pc.name, json.RawMessage(args)))
	}

	if len(calls) > 0 && finishReason == "" {
		response.StopReason = llm.StopReasonToolUse
	}

	return response
}

// mapFinishReason converts chat completion finish reasons to llm.StopReason.
func mapFinishReason(reason string) llm.StopReason {
	switch reason {
	case "tool_calls", "function_call":
		return llm.StopReasonToolUse
	case "length":
		return llm.StopReasonMaxTokens
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

// Complete sends a request to the OpenAI API and returns the full response.
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

// GetModelInfo returns information about the OpenAI model being used.
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
