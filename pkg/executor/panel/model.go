package panel

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/webforge/pkg/fabric"
	"github.com/entrhq/webforge/pkg/logging"
	"github.com/entrhq/webforge/pkg/types"
	"github.com/entrhq/webforge/pkg/vfs"
)

// model represents the state of the panel application. It contains all
// components needed for the interactive terminal interface.
type model struct {
	// Bubble Tea components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// Fabric integration
	port  *fabric.Port
	tabID int
	log   *logging.Logger

	// Content buffers
	content       *strings.Builder
	messageBuffer *strings.Builder

	// Tab state mirrored from the background
	mode             types.Mode
	awaitingApproval bool
	todos            []types.Todo

	// Agent state
	agentBusy             bool
	currentLoadingMessage string

	// Token usage from the last AGENT_DONE event
	contextTokens int
	contextWindow int

	// lastAssistantMessage backs the copy keybinding
	lastAssistantMessage string

	// UI state
	toast toastNotification

	// Window dimensions
	width  int
	height int
	ready  bool

	// Application state
	shouldQuit bool
}

// initialModel builds the panel model with its components configured but no
// dimensions yet; the first WindowSizeMsg makes it ready.
func initialModel(port *fabric.Port, tabID int, log *logging.Logger) *model {
	ta := textarea.New()
	ta.Placeholder = "Describe a page change, or /help for commands"
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(1)
	ta.KeyMap.InsertNewline.SetEnabled(false) // Alt+Enter inserts manually
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(salmonPink)

	vp := viewport.New(80, 20)

	return &model{
		viewport:      vp,
		textarea:      ta,
		spinner:       sp,
		port:          port,
		tabID:         tabID,
		log:           log,
		content:       &strings.Builder{},
		messageBuffer: &strings.Builder{},
		mode:          types.ModePlan,
	}
}

// Init starts the cursor blink and spinner and seeds the status bar with the
// tab's current mode.
func (m *model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.requestModeStatus())
}

// modeStatusMsg carries a GET_MODE response back into the update loop.
type modeStatusMsg struct {
	mode             types.Mode
	todos            []types.Todo
	awaitingApproval bool
}

// chatAcceptedMsg confirms the background started a run for our message.
type chatAcceptedMsg struct {
	mode types.Mode
}

// requestErrMsg reports a failed fabric request.
type requestErrMsg struct {
	op  string
	err error
}

// toastMsg triggers a toast notification
type toastMsg struct {
	message string
	details string
	icon    string
	isError bool
}

// filesListedMsg carries the GET_VFS_FILES listing for the transcript.
type filesListedMsg struct {
	files []vfs.FileInfo
}

// exportSavedMsg reports a bundle written to disk by /export.
type exportSavedMsg struct {
	path    string
	domains int
}

// portClosedMsg means the event stream ended (port replaced or hub shut down).
type portClosedMsg struct{}

// toastNotification represents a temporary notification message
type toastNotification struct {
	active    bool
	message   string
	details   string
	icon      string
	isError   bool
	showUntil time.Time
}
