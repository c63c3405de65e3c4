package panel

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/webforge/pkg/types"
	"github.com/entrhq/webforge/pkg/vfs"
)

// clipboardWriteAll is a package-level variable to allow mocking in tests.
var clipboardWriteAll = clipboard.WriteAll

// Update handles all state updates for the panel model. This is the main
// event loop handler for Bubble Tea.
//
// Uses a pointer receiver so transcript buffers and port state persist
// across updates.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.shouldQuit {
		return m, tea.Quit
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	// Handle spinner tick messages
	var spinnerCmd tea.Cmd
	m.spinner, spinnerCmd = m.spinner.Update(msg)

	// Keep the textarea live and resize the layout when its height changes
	oldHeight := m.textarea.Height()
	m.textarea, tiCmd = m.textarea.Update(msg)
	if oldHeight != m.textarea.Height() && m.ready {
		m.recalculateLayout()
	}
	m.updateTextAreaHeight()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowResize(msg)

	case *types.AgentEvent:
		// Update viewport BEFORE handling event (important for streaming)
		m.viewport, vpCmd = m.viewport.Update(msg)
		m.handleAgentEvent(msg)
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)

	case modeStatusMsg:
		m.mode = msg.mode
		m.todos = msg.todos
		m.awaitingApproval = msg.awaitingApproval
		m.recalculateLayout()
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)

	case chatAcceptedMsg:
		m.mode = msg.mode
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)

	case historyClearedMsg:
		m.content.Reset()
		m.messageBuffer.Reset()
		m.todos = nil
		m.awaitingApproval = false
		m.agentBusy = false
		m.showToast("History cleared", "The conversation starts fresh", "🧹", false)
		m.recalculateLayout()
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)

	case filesListedMsg:
		m.writeFileListing(msg.files)
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)

	case exportSavedMsg:
		m.showToast("Export saved", fmt.Sprintf("%d domain(s) written to %s", msg.domains, msg.path), "📦", false)
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)

	case toastMsg:
		m.showToast(msg.message, msg.details, msg.icon, msg.isError)
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)

	case requestErrMsg:
		m.log.Warnf("%s failed: %v", msg.op, msg.err)
		m.agentBusy = false
		m.showToast("Request failed", fmt.Sprintf("%s: %v", msg.op, msg.err), "❌", true)
		m.recalculateLayout()
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)

	case portClosedMsg:
		m.content.WriteString(errorStyle.Render("  ⚡ Disconnected from the background"))
		m.content.WriteString("\n")
		m.viewport.SetContent(m.content.String())
		return m, tea.Quit

	case tea.MouseMsg:
		// Route mouse events (especially scroll wheel) to the viewport
		m.viewport, vpCmd = m.viewport.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)

	case tea.KeyMsg:
		return m.handleKeyPress(msg, vpCmd, tiCmd, spinnerCmd)
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)
}

// calculateViewportHeight computes the viewport height from the fixed rows
// around it.
func (m *model) calculateViewportHeight() int {
	headerHeight := 10                     // ASCII art (6) + tips (1) + status bar (1) + blank line (1) + spacing (1)
	inputHeight := m.textarea.Height() + 2 // textarea height + border
	statusBarHeight := 1
	loadingHeight := 0
	if m.agentBusy {
		loadingHeight = 1 // Loading indicator is a separate line when visible
	}
	bannerHeight := 0
	if m.awaitingApproval {
		bannerHeight = 1
	}

	viewportHeight := m.height - headerHeight - inputHeight - statusBarHeight - loadingHeight - bannerHeight
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	return viewportHeight
}

// handleWindowResize processes window size change events
func (m *model) handleWindowResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.viewport, _ = m.viewport.Update(msg)

	m.width = msg.Width
	m.height = msg.Height

	m.viewport.Width = m.width - 4
	m.viewport.Height = m.calculateViewportHeight()
	m.textarea.SetWidth(m.width - 8)
	m.ready = true
	m.recalculateLayout()
	return m, nil
}

// handleKeyPress processes keyboard input
func (m *model) handleKeyPress(msg tea.KeyMsg, vpCmd, tiCmd, spinnerCmd tea.Cmd) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyCtrlY:
		return m.handleCopyLastMessage()

	case tea.KeyEnter:
		// Check if Alt is held down
		if msg.Alt {
			m.textarea.InsertString("\n")
			m.updateTextAreaHeight()
			return m, nil
		}
		return m.handleEnter(tiCmd, vpCmd, spinnerCmd)
	}

	return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)
}

// handleCopyLastMessage copies the most recent complete assistant message.
func (m *model) handleCopyLastMessage() (tea.Model, tea.Cmd) {
	if m.lastAssistantMessage == "" {
		m.showToast("Nothing to copy", "No assistant message yet", "ℹ️", false)
		return m, nil
	}
	if err := clipboardWriteAll(m.lastAssistantMessage); err != nil {
		m.showToast("Copy failed", fmt.Sprintf("%v", err), "❌", true)
		return m, nil
	}
	m.showToast("Copied", "Last assistant message copied to clipboard", "📋", false)
	return m, nil
}

// handleEnter handles Enter key press (send message or run a slash command)
func (m *model) handleEnter(tiCmd, vpCmd, spinnerCmd tea.Cmd) (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())

	if input == "" {
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)
	}

	// Handle slash commands
	if strings.HasPrefix(input, "/") {
		return m.handleSlashCommand(input, tiCmd, vpCmd, spinnerCmd)
	}

	// Handle regular agent message
	return m.handleAgentMessage(input, tiCmd, vpCmd, spinnerCmd)
}

// handleSlashCommand processes slash commands
func (m *model) handleSlashCommand(input string, tiCmd, vpCmd, spinnerCmd tea.Cmd) (tea.Model, tea.Cmd) {
	// Slash commands are not echoed into the transcript
	m.textarea.Reset()

	commandName, args, ok := parseSlashCommand(input)
	if !ok {
		m.showToast("Invalid command", "Could not parse slash command", "❌", true)
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)
	}

	updatedModel, cmd := executeSlashCommand(m, commandName, args)
	return updatedModel, tea.Batch(tiCmd, vpCmd, spinnerCmd, cmd)
}

// handleAgentMessage processes regular agent messages
func (m *model) handleAgentMessage(input string, tiCmd, vpCmd, spinnerCmd tea.Cmd) (tea.Model, tea.Cmd) {
	// Display user message
	formatted := formatEntry("You: ", input, userStyle, m.width, true)
	formatted = strings.TrimRight(formatted, "\n")
	m.content.WriteString(formatted + "\n\n")

	// Clear input
	m.textarea.Reset()
	m.viewport.SetContent(m.content.String())
	m.viewport.GotoBottom()

	// Set agent busy
	m.agentBusy = true
	m.currentLoadingMessage = getRandomLoadingMessage()
	m.recalculateLayout()

	return m, tea.Batch(tiCmd, vpCmd, spinnerCmd, m.sendChat(input))
}

// writeFileListing renders the /files listing into the transcript, grouped
// the way the store sorts them (domain, path, type, name).
func (m *model) writeFileListing(files []vfs.FileInfo) {
	if len(files) == 0 {
		m.showToast("No stored files", "The agent has not persisted any scripts or styles", "ℹ️", false)
		return
	}

	var list strings.Builder
	list.WriteString(fmt.Sprintf("Stored files (%d):\n", len(files)))
	lastGroup := ""
	for _, f := range files {
		group := f.Domain + f.URLPath
		if group != lastGroup {
			list.WriteString(fmt.Sprintf("\n  %s%s\n", f.Domain, f.URLPath))
			lastGroup = group
		}
		state := "enabled"
		if !f.Enabled {
			state = "disabled"
		}
		list.WriteString(fmt.Sprintf("    %-6s %-28s v%-3d %5dB  %s\n", f.Type, f.Name, f.Version, f.Size, state))
	}

	m.content.WriteString(tipsStyle.Render(strings.TrimRight(list.String(), "\n")))
	m.content.WriteString("\n\n")
	m.recalculateLayout()
}

// recalculateLayout updates viewport content and scrolls to bottom
func (m *model) recalculateLayout() {
	m.viewport.Height = m.calculateViewportHeight()
	m.viewport.SetContent(m.content.String())
	m.viewport.GotoBottom()
}

// showToast displays a toast notification to the user
func (m *model) showToast(message, details, icon string, isError bool) {
	m.toast = toastNotification{
		active:    true,
		message:   message,
		details:   details,
		icon:      icon,
		isError:   isError,
		showUntil: time.Now().Add(3 * time.Second),
	}
}
