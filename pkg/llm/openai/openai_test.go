package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/webforge/pkg/llm"
	"github.com/entrhq/webforge/pkg/types"
)

// recordedRequest captures what the provider put on the wire.
type recordedRequest struct {
	header http.Header
	raw    []byte
}

// newStreamServer serves one recorded SSE body and reports each request it
// receives on the returned channel.
func newStreamServer(t *testing.T, lines []string) (*httptest.Server, <-chan recordedRequest) {
	t.Helper()
	recs := make(chan recordedRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		recs <- recordedRequest{header: r.Header.Clone(), raw: raw}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			io.WriteString(w, line+"\n")
		}
	}))
	t.Cleanup(srv.Close)
	return srv, recs
}

func newTestProvider(t *testing.T, srv *httptest.Server, opts ...ProviderOption) *Provider {
	t.Helper()
	opts = append([]ProviderOption{WithBaseURL(srv.URL)}, opts...)
	p, err := NewProvider("test-key", opts...)
	require.NoError(t, err)
	return p
}

// drainStream collects text deltas and the terminal response, failing the test
// on error chunks.
func drainStream(t *testing.T, stream <-chan *llm.StreamChunk) ([]string, *llm.Response) {
	t.Helper()
	var deltas []string
	var final *llm.Response
	for chunk := range stream {
		require.False(t, chunk.IsError(), "unexpected stream error: %v", chunk.Error)
		if chunk.TextDelta != "" {
			deltas = append(deltas, chunk.TextDelta)
		}
		if chunk.IsFinal() {
			final = chunk.Response
		}
	}
	require.NotNil(t, final, "stream closed without a terminal response")
	return deltas, final
}

// cartStream is a recorded chat completions stream for a response that says a
// sentence and then calls a tool with its arguments split across chunks. The
// comment line stands in for gateway keep-alives.
var cartStream = []string{
	`data: {"id":"chatcmpl-1","choices":[{"index":0,"delta":{"role":"assistant","content":"Checking"},"finish_reason":null}]}`,
	"",
	`data: {"choices":[{"index":0,"delta":{"content":" the cart."},"finish_reason":null}]}`,
	"",
	": keep-alive",
	`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_01","type":"function","function":{"name":"ReadPage","arguments":""}}]},"finish_reason":null}]}`,
	"",
	`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"path\":"}}]},"finish_reason":null}]}`,
	"",
	`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"page.html\"}"}}]},"finish_reason":null}]}`,
	"",
	`data: {"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	"",
	"data: [DONE]",
	"",
}

func TestStreamCompletionAssemblesToolCalls(t *testing.T) {
	srv, _ := newStreamServer(t, cartStream)
	p := newTestProvider(t, srv)

	stream, err := p.StreamCompletion(context.Background(), &llm.Request{
		Messages: []*types.Message{types.NewUserMessage("check the cart")},
	})
	require.NoError(t, err)

	deltas, final := drainStream(t, stream)

	assert.Equal(t, []string{"Checking", " the cart."}, deltas)
	assert.Equal(t, "Checking the cart.", final.Text())
	assert.Equal(t, llm.StopReasonToolUse, final.StopReason)

	uses := final.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "call_01", uses[0].ID)
	assert.Equal(t, "ReadPage", uses[0].Name)
	assert.JSONEq(t, `{"path":"page.html"}`, string(uses[0].Input))
}

func TestStreamCompletionRequestWire(t *testing.T) {
	srv, recs := newStreamServer(t, cartStream)
	p := newTestProvider(t, srv, WithModel("gpt-test"))

	screenshot := types.ToolResultBlocks("call_02", []types.ContentBlock{
		types.TextBlock("captured"),
		types.ImageBlock("image/png", "iVBORw0KGgo="),
	}, false)

	stream, err := p.StreamCompletion(context.Background(), &llm.Request{
		System: "You are terse.",
		Messages: []*types.Message{
			types.NewUserMessage("fix the cart page"),
			types.NewAssistantMessage([]types.ContentBlock{
				types.TextBlock("Reading the page first."),
				types.ToolUseBlock("call_01", "ReadPage", json.RawMessage(`{"path":"page.html"}`)),
				types.ToolUseBlock("call_02", "Screenshot", nil),
			}),
			types.NewToolResultsMessage([]types.ContentBlock{
				types.ToolResultBlock("call_01", "<main>cart</main>", false),
				screenshot,
			}),
		},
		Tools: []llm.ToolDef{{
			Name:        "ReadPage",
			Description: "Read a page file.",
			InputSchema: map[string]interface{}{"type": "object"},
		}},
		MaxTokens: 256,
	})
	require.NoError(t, err)
	drainStream(t, stream)

	rec := <-recs
	assert.Equal(t, "Bearer test-key", rec.header.Get("Authorization"))
	assert.Equal(t, "text/event-stream", rec.header.Get("Accept"))
	assert.Equal(t, "application/json", rec.header.Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.raw, &body))
	assert.Equal(t, "gpt-test", body["model"])
	assert.Equal(t, float64(256), body["max_tokens"])
	assert.Equal(t, true, body["stream"])

	tools, ok := body["tools"].([]interface{})
	require.True(t, ok)
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]interface{})
	assert.Equal(t, "function", tool["type"])
	fn := tool["function"].(map[string]interface{})
	assert.Equal(t, "ReadPage", fn["name"])
	assert.Equal(t, "Read a page file.", fn["description"])
	assert.Equal(t, "object", fn["parameters"].(map[string]interface{})["type"])

	messages, ok := body["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 6)

	system := messages[0].(map[string]interface{})
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, "You are terse.", system["content"])

	user := messages[1].(map[string]interface{})
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, "fix the cart page", user["content"])

	assistant := messages[2].(map[string]interface{})
	assert.Equal(t, "assistant", assistant["role"])
	assert.Equal(t, "Reading the page first.", assistant["content"])
	calls := assistant["tool_calls"].([]interface{})
	require.Len(t, calls, 2)
	first := calls[0].(map[string]interface{})
	assert.Equal(t, "call_01", first["id"])
	assert.Equal(t, "function", first["type"])
	firstFn := first["function"].(map[string]interface{})
	assert.Equal(t, "ReadPage", firstFn["name"])
	assert.JSONEq(t, `{"path":"page.html"}`, firstFn["arguments"].(string))
	second := calls[1].(map[string]interface{})
	secondFn := second["function"].(map[string]interface{})
	assert.Equal(t, "{}", secondFn["arguments"], "empty tool input becomes an empty object")

	firstResult := messages[3].(map[string]interface{})
	assert.Equal(t, "tool", firstResult["role"])
	assert.Equal(t, "call_01", firstResult["tool_call_id"])
	assert.Equal(t, "<main>cart</main>", firstResult["content"])

	secondResult := messages[4].(map[string]interface{})
	assert.Equal(t, "tool", secondResult["role"])
	assert.Equal(t, "call_02", secondResult["tool_call_id"])
	assert.Equal(t, "captured", secondResult["content"])

	imageMsg := messages[5].(map[string]interface{})
	assert.Equal(t, "user", imageMsg["role"])
	parts := imageMsg["content"].([]interface{})
	require.Len(t, parts, 1)
	part := parts[0].(map[string]interface{})
	assert.Equal(t, "image_url", part["type"])
	url := part["image_url"].(map[string]interface{})["url"]
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", url)
}

func TestStreamCompletionOmitsMaxTokensWhenUnset(t *testing.T) {
	srv, recs := newStreamServer(t, cartStream)
	p := newTestProvider(t, srv)

	stream, err := p.StreamCompletion(context.Background(), &llm.Request{
		Messages: []*types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	drainStream(t, stream)

	rec := <-recs
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.raw, &body))
	_, hasMaxTokens := body["max_tokens"]
	assert.False(t, hasMaxTokens)
	_, hasTools := body["tools"]
	assert.False(t, hasTools, "empty tool list should be omitted")
}

func TestStreamCompletionImplicitToolUseStopReason(t *testing.T) {
	srv, _ := newStreamServer(t, []string{
		`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_03","function":{"name":"Screenshot","arguments":""}}]},"finish_reason":null}]}`,
		"data: [DONE]",
	})
	p := newTestProvider(t, srv)

	stream, err := p.StreamCompletion(context.Background(), &llm.Request{
		Messages: []*types.Message{types.NewUserMessage("capture the page")},
	})
	require.NoError(t, err)
	_, final := drainStream(t, stream)

	assert.Equal(t, llm.StopReasonToolUse, final.StopReason)
	uses := final.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "{}", string(uses[0].Input))
}

func TestStreamCompletionTruncatedStream(t *testing.T) {
	srv, _ := newStreamServer(t, []string{
		`data: {"choices":[{"index":0,"delta":{"content":"partial"},"finish_reason":null}]}`,
	})
	p := newTestProvider(t, srv)

	stream, err := p.StreamCompletion(context.Background(), &llm.Request{
		Messages: []*types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	_, final := drainStream(t, stream)

	assert.Equal(t, "partial", final.Text())
	assert.Equal(t, llm.StopReasonEndTurn, final.StopReason)
}

func TestStreamCompletionSkipsMalformedChunks(t *testing.T) {
	srv, _ := newStreamServer(t, []string{
		`data: {not json`,
		`data: {"choices":[]}`,
		`data: {"choices":[{"index":0,"delta":{"content":"ok"},"finish_reason":"stop"}]}`,
		"data: [DONE]",
	})
	p := newTestProvider(t, srv)

	stream, err := p.StreamCompletion(context.Background(), &llm.Request{
		Messages: []*types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	_, final := drainStream(t, stream)

	assert.Equal(t, "ok", final.Text())
	assert.Equal(t, llm.StopReasonEndTurn, final.StopReason)
}

func TestStreamCompletionHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	p := newTestProvider(t, srv)

	_, err := p.StreamCompletion(context.Background(), &llm.Request{
		Messages: []*types.Message{types.NewUserMessage("hi")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestCompleteDrainsStream(t *testing.T) {
	srv, _ := newStreamServer(t, cartStream)
	p := newTestProvider(t, srv)

	resp, err := p.Complete(context.Background(), &llm.Request{
		Messages: []*types.Message{types.NewUserMessage("check the cart")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Checking the cart.", resp.Text())
	assert.Len(t, resp.ToolUses(), 1)
}

func TestMapFinishReason(t *testing.T) {
	tests := []struct {
		reason string
		want   llm.StopReason
	}{
		{"tool_calls", llm.StopReasonToolUse},
		{"function_call", llm.StopReasonToolUse},
		{"length", llm.StopReasonMaxTokens},
		{"stop", llm.StopReasonEndTurn},
		{"", llm.StopReasonEndTurn},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapFinishReason(tt.reason), "reason %q", tt.reason)
	}
}

func TestNewProviderRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewProvider("")
	require.Error(t, err)

	t.Setenv("OPENAI_API_KEY", "env-key")
	p, err := NewProvider("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", p.GetAPIKey())
}

func TestNewProviderDefaults(t *testing.T) {
	t.Setenv("OPENAI_BASE_URL", "")

	p, err := NewProvider("test-key")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, p.GetModel())
	assert.Equal(t, DefaultBaseURL, p.GetBaseURL())

	info := p.GetModelInfo()
	require.NotNil(t, info)
	assert.Equal(t, "openai", info.Provider)
	assert.Equal(t, 128000, info.ContextWindow)
	assert.True(t, info.SupportsStreaming)
	assert.NotContains(t, info.Metadata, "base_url")
}

func TestNewProviderBaseURLFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_BASE_URL", "http://env.local/v1/")

	p, err := NewProvider("test-key")
	require.NoError(t, err)
	assert.Equal(t, "http://env.local/v1", p.GetBaseURL())
}

func TestCloneWithModel(t *testing.T) {
	p, err := NewProvider("test-key", WithModel("gpt-4o"))
	require.NoError(t, err)

	var cloner llm.ModelCloner = p
	clone, ok := cloner.CloneWithModel("gpt-3.5-turbo").(*Provider)
	require.True(t, ok)

	assert.Equal(t, "gpt-3.5-turbo", clone.GetModel())
	assert.Equal(t, 16385, clone.GetModelInfo().ContextWindow)
	assert.Equal(t, "gpt-4o", p.GetModel(), "original provider keeps its model")
	assert.Equal(t, 128000, p.GetModelInfo().ContextWindow)
}
