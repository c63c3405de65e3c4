package types

import (
	"encoding/json"
	"time"
)

// AgentEventType defines the type of event streamed from the background to
// connected panels over a tab's port.
type AgentEventType string

const (
	EventAgentResponse  AgentEventType = "AGENT_RESPONSE"      // EventAgentResponse carries a streamed assistant text delta.
	EventToolCall       AgentEventType = "TOOL_CALL"           // EventToolCall announces a tool dispatch before it runs.
	EventToolResult     AgentEventType = "TOOL_RESULT"         // EventToolResult carries a tool's shaped result after it runs.
	EventTodosUpdated   AgentEventType = "TODOS_UPDATED"       // EventTodosUpdated carries the replaced per-tab todo list.
	EventModeChanged    AgentEventType = "MODE_CHANGED"        // EventModeChanged announces a mode or approval-latch transition.
	EventAgentDone      AgentEventType = "AGENT_DONE"          // EventAgentDone marks the end of a successful run.
	EventAgentError     AgentEventType = "AGENT_ERROR"         // EventAgentError marks a terminal run failure.
	EventStorageChanged AgentEventType = "VFS_STORAGE_CHANGED" // EventStorageChanged relays a persistent vfs:* key change.
)

// AgentEvent is a single stream entry. Only the fields relevant to the Type
// are populated; the struct serializes to one JSON object per event for the
// headless client.
type AgentEvent struct {
	// Type indicates the kind of event.
	Type AgentEventType `json:"type"`

	// TabID is the tab whose run produced the event.
	TabID int `json:"tabId"`

	// Content holds the assistant text delta for AGENT_RESPONSE events.
	Content string `json:"content,omitempty"`

	// ToolName and ToolUseID identify the dispatch for tool events.
	ToolName  string `json:"toolName,omitempty"`
	ToolUseID string `json:"toolUseId,omitempty"`

	// ToolInput is the raw JSON input of a TOOL_CALL event.
	ToolInput json.RawMessage `json:"toolInput,omitempty"`

	// ToolOutput is the shaped result text of a TOOL_RESULT event.
	ToolOutput string `json:"toolOutput,omitempty"`

	// ToolIsError marks TOOL_RESULT events whose payload is an error object.
	ToolIsError bool `json:"toolIsError,omitempty"`

	// Todos is the full replacement list for TODOS_UPDATED events.
	Todos []Todo `json:"todos,omitempty"`

	// Mode and AwaitingApproval describe the tab state for MODE_CHANGED events.
	Mode             Mode `json:"mode,omitempty"`
	AwaitingApproval bool `json:"awaitingApproval,omitempty"`

	// Error holds the message for AGENT_ERROR events; Reason is its class.
	Error  string      `json:"error,omitempty"`
	Reason ErrorReason `json:"reason,omitempty"`

	// Usage reports context size for AGENT_DONE events.
	Usage *ContextUsage `json:"usage,omitempty"`

	// StorageKey is the changed key for VFS_STORAGE_CHANGED events.
	StorageKey string `json:"storageKey,omitempty"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
}

// ErrorReason classifies terminal agent errors.
type ErrorReason string

const (
	ReasonStopped  ErrorReason = "stopped"   // canceled by the user or a superseding run
	ReasonAPIError ErrorReason = "api_error" // model transport failure
	ReasonMaxTurns ErrorReason = "max_turns" // turn cap exhausted
)

// ContextUsage reports the size of the replayed conversation against the
// model's context window.
type ContextUsage struct {
	TotalTokens   int `json:"totalTokens"`
	ContextWindow int `json:"contextWindow"`
}

// NewAgentResponseEvent creates a streamed assistant text delta event.
func NewAgentResponseEvent(tabID int, delta string) *AgentEvent {
	return &AgentEvent{
		Type:      EventAgentResponse,
		TabID:     tabID,
		Content:   delta,
		Timestamp: time.Now(),
	}
}

// NewToolCallEvent creates a tool dispatch announcement event.
func NewToolCallEvent(tabID int, toolUseID, toolName string, input json.RawMessage) *AgentEvent {
	return &AgentEvent{
		Type:      EventToolCall,
		TabID:     tabID,
		ToolUseID: toolUseID,
		ToolName:  toolName,
		ToolInput: input,
		Timestamp: time.Now(),
	}
}

// NewToolResultEvent creates a tool result event.
func NewToolResultEvent(tabID int, toolUseID, toolName, output string, isError bool) *AgentEvent {
	return &AgentEvent{
		Type:        EventToolResult,
		TabID:       tabID,
		ToolUseID:   toolUseID,
		ToolName:    toolName,
		ToolOutput:  output,
		ToolIsError: isError,
		Timestamp:   time.Now(),
	}
}

// NewTodosUpdatedEvent creates a todo list replacement event.
func NewTodosUpdatedEvent(tabID int, todos []Todo) *AgentEvent {
	return &AgentEvent{
		Type:      EventTodosUpdated,
		TabID:     tabID,
		Todos:     todos,
		Timestamp: time.Now(),
	}
}

// NewModeChangedEvent creates a mode transition event.
func NewModeChangedEvent(tabID int, mode Mode, awaitingApproval bool) *AgentEvent {
	return &AgentEvent{
		Type:             EventModeChanged,
		TabID:            tabID,
		Mode:             mode,
		AwaitingApproval: awaitingApproval,
		Timestamp:        time.Now(),
	}
}

// NewAgentDoneEvent creates a run completion event.
func NewAgentDoneEvent(tabID int, usage *ContextUsage) *AgentEvent {
	return &AgentEvent{
		Type:      EventAgentDone,
		TabID:     tabID,
		Usage:     usage,
		Timestamp: time.Now(),
	}
}

// NewAgentErrorEvent creates a terminal error event.
func NewAgentErrorEvent(tabID int, reason ErrorReason, err error) *AgentEvent {
	ev := &AgentEvent{
		Type:      EventAgentError,
		TabID:     tabID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// NewStorageChangedEvent creates a persistent-storage relay event.
func NewStorageChangedEvent(key string) *AgentEvent {
	return &AgentEvent{
		Type:       EventStorageChanged,
		StorageKey: key,
		Timestamp:  time.Now(),
	}
}

// IsToolEvent returns true for tool dispatch and result events.
func (e *AgentEvent) IsToolEvent() bool {
	return e.Type == EventToolCall || e.Type == EventToolResult
}

// IsTerminal returns true for events that end a run.
func (e *AgentEvent) IsTerminal() bool {
	return e.Type == EventAgentDone || e.Type == EventAgentError
}
