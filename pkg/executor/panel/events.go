package panel

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/webforge/pkg/types"
)

// toolResultPreviewLines caps how much of a tool result lands in the
// transcript; full results are visible in the session log.
const toolResultPreviewLines = 6

// handleAgentEvent processes events from the tab's port stream. This is the
// main event handler that updates the UI based on agent activity.
func (m *model) handleAgentEvent(event *types.AgentEvent) {
	switch event.Type {
	case types.EventAgentResponse:
		if m.handleResponseDelta(event.Content) {
			return // Exit early to preserve streaming viewport update
		}

	case types.EventToolCall:
		m.flushMessage()
		m.handleToolCall(event)

	case types.EventToolResult:
		m.handleToolResult(event)

	case types.EventTodosUpdated:
		m.handleTodosUpdated(event)

	case types.EventModeChanged:
		m.flushMessage()
		m.handleModeChanged(event)

	case types.EventAgentDone:
		m.flushMessage()
		m.handleAgentDone(event)

	case types.EventAgentError:
		m.flushMessage()
		m.handleAgentError(event)

	case types.EventStorageChanged:
		m.log.Debugf("storage changed: %s", event.StorageKey)
		return
	}

	// Update viewport with current content
	m.viewport.SetContent(m.content.String())
	m.viewport.GotoBottom()
}

// handleResponseDelta buffers a streamed text delta and live-renders the
// partial message under the committed transcript.
func (m *model) handleResponseDelta(delta string) bool {
	if delta == "" {
		return false
	}
	m.messageBuffer.WriteString(delta)

	formatted := formatEntry("", m.messageBuffer.String(), lipgloss.NewStyle(), m.width, false)
	m.viewport.SetContent(m.content.String() + formatted)
	m.viewport.GotoBottom()
	return true
}

// flushMessage commits the buffered assistant message to the transcript,
// rendering fenced code blocks through the highlighter.
func (m *model) flushMessage() {
	if m.messageBuffer.Len() == 0 {
		return
	}
	text := m.messageBuffer.String()
	m.messageBuffer.Reset()

	if strings.TrimSpace(text) == "" {
		return
	}
	m.lastAssistantMessage = text
	m.content.WriteString(renderMessage(text, m.width))
	m.content.WriteString("\n\n")
}

func (m *model) handleToolCall(event *types.AgentEvent) {
	label := event.ToolName
	if summary := summarizeToolInput(event.ToolInput); summary != "" {
		label = fmt.Sprintf("%s %s", event.ToolName, summary)
	}
	formatted := formatEntry("🔧 ", label, toolStyle, m.width, false)
	m.content.WriteString(formatted)
	m.content.WriteString("\n")
}

func (m *model) handleToolResult(event *types.AgentEvent) {
	icon := "    ✓ "
	style := toolResultStyle
	if event.ToolIsError {
		icon = "    ✗ "
		style = errorStyle
	}
	formatted := formatEntry(icon, previewLines(event.ToolOutput, toolResultPreviewLines), style, m.width, false)
	m.content.WriteString(formatted)
	m.content.WriteString("\n\n")
}

// handleTodosUpdated replaces the tab's todo list and rewrites it into the
// transcript as a checklist.
func (m *model) handleTodosUpdated(event *types.AgentEvent) {
	m.todos = event.Todos
	if len(event.Todos) == 0 {
		return
	}
	var list strings.Builder
	for _, t := range event.Todos {
		list.WriteString("  ")
		list.WriteString(todoMarker(t.Status))
		list.WriteString(" ")
		list.WriteString(t.Content)
		list.WriteString("\n")
	}
	m.content.WriteString(todoStyle.Render(strings.TrimRight(list.String(), "\n")))
	m.content.WriteString("\n\n")
}

func (m *model) handleModeChanged(event *types.AgentEvent) {
	m.mode = event.Mode
	m.awaitingApproval = event.AwaitingApproval
	if event.AwaitingApproval {
		formatted := formatEntry("📋 ", "Plan ready for review. /approve to run it, /reject [feedback] to revise.", toolStyle, m.width, false)
		m.content.WriteString(formatted)
		m.content.WriteString("\n\n")
	}
	m.recalculateLayout()
}

func (m *model) handleAgentDone(event *types.AgentEvent) {
	if event.Usage != nil {
		m.contextTokens = event.Usage.TotalTokens
		m.contextWindow = event.Usage.ContextWindow
	}
	m.agentBusy = false
	m.recalculateLayout()
}

func (m *model) handleAgentError(event *types.AgentEvent) {
	line := fmt.Sprintf("  ❌ Error: %s", event.Error)
	if event.Reason == types.ReasonStopped {
		line = "  ⏹ Stopped"
	}
	m.content.WriteString(errorStyle.Render(line))
	m.content.WriteString("\n\n")
	m.agentBusy = false
	m.recalculateLayout()
}

// todoMarker renders a checklist glyph for a todo state.
func todoMarker(status types.TodoStatus) string {
	switch status {
	case types.TodoCompleted:
		return "✓"
	case types.TodoInProgress:
		return "◐"
	default:
		return "○"
	}
}

// previewLines truncates multi-line tool output for inline display.
func previewLines(text string, max int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= max {
		return text
	}
	return strings.Join(lines[:max], "\n") + fmt.Sprintf("\n… (%d more lines)", len(lines)-max)
}

// summarizeToolInput extracts the most recognizable argument of a tool call
// for the transcript line. Unknown shapes summarize to nothing.
func summarizeToolInput(input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}
	args := struct {
		Path    string `json:"path"`
		Pattern string `json:"pattern"`
		Code    string `json:"code"`
	}{}
	if err := json.Unmarshal(input, &args); err != nil {
		return ""
	}
	switch {
	case args.Path != "":
		return args.Path
	case args.Pattern != "":
		return args.Pattern
	case args.Code != "":
		return firstLine(args.Code)
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + "…"
	}
	if len(s) > 60 {
		s = s[:60] + "…"
	}
	return s
}
