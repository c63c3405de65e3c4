package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/webforge/pkg/fabric"
	"github.com/entrhq/webforge/pkg/types"
	"github.com/entrhq/webforge/pkg/vfs"
)

// CommandHandler processes a slash command. It may mutate the model
// directly and return a tea.Cmd for async work, or nil for commands with no
// side effects.
type CommandHandler func(m *model, args []string) tea.Cmd

// SlashCommand represents a registered command
type SlashCommand struct {
	Name        string         // Command name (without /)
	Description string         // Short description for /help
	Handler     CommandHandler // Handler function
	MinArgs     int            // Minimum number of arguments
	MaxArgs     int            // Maximum number of arguments (-1 for unlimited)
}

// commandRegistry holds all registered slash commands, in display order.
var commandRegistry []*SlashCommand

func init() {
	commandRegistry = []*SlashCommand{
		{Name: "help", Description: "Show commands and keyboard shortcuts", Handler: handleHelpCommand, MinArgs: 0, MaxArgs: 0},
		{Name: "mode", Description: "Show or switch the agent mode (plan/execute)", Handler: handleModeCommand, MinArgs: 0, MaxArgs: 1},
		{Name: "approve", Description: "Approve the pending plan and start executing", Handler: handleApproveCommand, MinArgs: 0, MaxArgs: 0},
		{Name: "reject", Description: "Reject the pending plan, optionally with feedback", Handler: handleRejectCommand, MinArgs: 0, MaxArgs: -1},
		{Name: "stop", Description: "Stop the active agent run", Handler: handleStopCommand, MinArgs: 0, MaxArgs: 0},
		{Name: "clear", Description: "Clear the conversation history", Handler: handleClearCommand, MinArgs: 0, MaxArgs: 0},
		{Name: "files", Description: "List stored scripts and styles", Handler: handleFilesCommand, MinArgs: 0, MaxArgs: 0},
		{Name: "export", Description: "Save all stored files to a bundle file", Handler: handleExportCommand, MinArgs: 0, MaxArgs: 0},
		{Name: "quit", Description: "Exit the panel", Handler: handleQuitCommand, MinArgs: 0, MaxArgs: 0},
	}
}

// getCommand retrieves a command from the registry
func getCommand(name string) (*SlashCommand, bool) {
	for _, cmd := range commandRegistry {
		if cmd.Name == name {
			return cmd, true
		}
	}
	return nil, false
}

// parseSlashCommand parses a slash command input into command name and arguments
// Returns: commandName, args, isCommand
func parseSlashCommand(input string) (string, []string, bool) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") {
		return "", nil, false
	}

	// Remove the leading /
	trimmed = trimmed[1:]

	// Split into parts
	parts := strings.Fields(trimmed)
	if len(parts) == 0 {
		return "", nil, false
	}

	commandName := parts[0]
	args := []string{}
	if len(parts) > 1 {
		args = parts[1:]
	}

	return commandName, args, true
}

// executeSlashCommand executes a slash command
func executeSlashCommand(m *model, commandName string, args []string) (*model, tea.Cmd) {
	cmd, exists := getCommand(commandName)
	if !exists {
		m.showToast("Unknown command", fmt.Sprintf("Command '/%s' not found. Type /help for available commands.", commandName), "❌", true)
		return m, nil
	}

	// Validate argument count
	if len(args) < cmd.MinArgs {
		m.showToast("Invalid arguments", fmt.Sprintf("Command '/%s' requires at least %d argument(s)", commandName, cmd.MinArgs), "❌", true)
		return m, nil
	}
	if cmd.MaxArgs != -1 && len(args) > cmd.MaxArgs {
		m.showToast("Invalid arguments", fmt.Sprintf("Command '/%s' accepts at most %d argument(s)", commandName, cmd.MaxArgs), "❌", true)
		return m, nil
	}

	if cmd.Handler != nil {
		return m, cmd.Handler(m, args)
	}
	return m, nil
}

// handleHelpCommand writes the command list and shortcuts into the transcript.
func handleHelpCommand(m *model, args []string) tea.Cmd {
	var help strings.Builder
	help.WriteString("Available Commands:\n\n")
	for _, cmd := range commandRegistry {
		help.WriteString(fmt.Sprintf("  /%s\n", cmd.Name))
		help.WriteString(fmt.Sprintf("    %s\n\n", cmd.Description))
	}

	help.WriteString("Keyboard Shortcuts:\n\n")
	help.WriteString("  Enter        Send message\n")
	help.WriteString("  Alt+Enter    New line\n")
	help.WriteString("  Ctrl+Y       Copy last assistant message\n")
	help.WriteString("  Ctrl+C       Exit\n")

	m.content.WriteString(tipsStyle.Render(help.String()))
	m.content.WriteString("\n")
	m.recalculateLayout()
	return nil
}

// handleModeCommand shows the current mode or requests a switch.
func handleModeCommand(m *model, args []string) tea.Cmd {
	if len(args) == 0 {
		m.showToast("Mode", fmt.Sprintf("Current mode: %s", m.mode), "🧭", false)
		return nil
	}

	mode := types.Mode(strings.ToLower(args[0]))
	if !mode.Valid() {
		m.showToast("Invalid mode", "Use /mode plan or /mode execute", "❌", true)
		return nil
	}

	return m.request("set mode", fabric.ReqSetMode, map[string]string{"mode": string(mode)}, func(json.RawMessage) tea.Msg {
		return toastMsg{message: "Mode changed", details: fmt.Sprintf("Now in %s mode", mode), icon: "🧭"}
	})
}

// handleApproveCommand approves the latched plan; execution starts
// immediately so the panel goes busy.
func handleApproveCommand(m *model, args []string) tea.Cmd {
	m.agentBusy = true
	m.currentLoadingMessage = getRandomLoadingMessage()
	m.recalculateLayout()
	return m.request("approve plan", fabric.ReqApprovePlan, nil, func(json.RawMessage) tea.Msg {
		return toastMsg{message: "Plan approved", details: "Executing the plan", icon: "✅"}
	})
}

// handleRejectCommand rejects the latched plan; any arguments become
// revision feedback for the next plan run.
func handleRejectCommand(m *model, args []string) tea.Cmd {
	feedback := strings.Join(args, " ")
	m.agentBusy = true
	m.currentLoadingMessage = getRandomLoadingMessage()
	m.recalculateLayout()
	return m.request("reject plan", fabric.ReqRejectPlan, map[string]string{"feedback": feedback}, func(json.RawMessage) tea.Msg {
		return toastMsg{message: "Plan rejected", details: "Asking for a revised plan", icon: "📝"}
	})
}

// handleStopCommand aborts the active run.
func handleStopCommand(m *model, args []string) tea.Cmd {
	return m.request("stop", fabric.ReqStopAgent, nil, func(payload json.RawMessage) tea.Msg {
		var res struct {
			Stopped bool `json:"stopped"`
		}
		if err := json.Unmarshal(payload, &res); err == nil && !res.Stopped {
			return toastMsg{message: "Nothing to stop", details: "No run is active", icon: "ℹ️"}
		}
		return toastMsg{message: "Stopping", details: "Sent stop signal to agent", icon: "⏹️"}
	})
}

// handleClearCommand drops the conversation; the transcript clears with it.
func handleClearCommand(m *model, args []string) tea.Cmd {
	return m.request("clear history", fabric.ReqClearHistory, nil, func(json.RawMessage) tea.Msg {
		return historyClearedMsg{}
	})
}

// handleFilesCommand fetches the stored-file listing for the transcript.
func handleFilesCommand(m *model, args []string) tea.Cmd {
	return m.request("list files", fabric.ReqGetVFSFiles, nil, func(payload json.RawMessage) tea.Msg {
		var res struct {
			Files []vfs.FileInfo `json:"files"`
		}
		if err := json.Unmarshal(payload, &res); err != nil {
			return requestErrMsg{op: "list files", err: err}
		}
		return filesListedMsg{files: res.Files}
	})
}

// handleExportCommand saves the full store to a timestamped bundle file in
// the working directory.
func handleExportCommand(m *model, args []string) tea.Cmd {
	return m.request("export", fabric.ReqExportVFS, nil, func(payload json.RawMessage) tea.Msg {
		var bundle vfs.ExportBundle
		if err := json.Unmarshal(payload, &bundle); err != nil {
			return requestErrMsg{op: "export", err: err}
		}

		filename := "webforge-export-" + time.Now().Format("20060102-150405") + ".json"
		data, err := json.MarshalIndent(&bundle, "", "  ")
		if err != nil {
			return requestErrMsg{op: "export", err: err}
		}
		if err := os.WriteFile(filename, data, 0o600); err != nil {
			return requestErrMsg{op: "export", err: err}
		}
		return exportSavedMsg{path: filename, domains: len(bundle.Domains)}
	})
}

// handleQuitCommand exits the panel.
func handleQuitCommand(m *model, args []string) tea.Cmd {
	return tea.Quit
}

// historyClearedMsg resets the transcript after CLEAR_HISTORY succeeds.
type historyClearedMsg struct{}

// request wraps a fabric request as a tea.Cmd. The shape function turns the
// response payload into the message delivered back to Update; failures come
// back as requestErrMsg.
func (m *model) request(op, reqType string, payload interface{}, shape func(json.RawMessage) tea.Msg) tea.Cmd {
	port := m.port
	return func() tea.Msg {
		raw, err := port.Request(context.Background(), reqType, payload)
		if err != nil {
			return requestErrMsg{op: op, err: err}
		}
		return shape(raw)
	}
}

// requestModeStatus seeds the status bar from the background on startup.
func (m *model) requestModeStatus() tea.Cmd {
	return m.request("get mode", fabric.ReqGetMode, nil, func(payload json.RawMessage) tea.Msg {
		var res struct {
			Mode             types.Mode   `json:"mode"`
			Todos            []types.Todo `json:"todos"`
			AwaitingApproval bool         `json:"awaitingApproval"`
		}
		if err := json.Unmarshal(payload, &res); err != nil {
			return requestErrMsg{op: "get mode", err: err}
		}
		return modeStatusMsg{mode: res.Mode, todos: res.Todos, awaitingApproval: res.AwaitingApproval}
	})
}

// sendChat submits a user message; the run's events arrive on the port.
func (m *model) sendChat(text string) tea.Cmd {
	return m.request("send message", fabric.ReqChatMessage, map[string]string{"text": text}, func(payload json.RawMessage) tea.Msg {
		var res struct {
			Mode types.Mode `json:"mode"`
		}
		if err := json.Unmarshal(payload, &res); err != nil {
			return requestErrMsg{op: "send message", err: err}
		}
		return chatAcceptedMsg{mode: res.Mode}
	})
}
