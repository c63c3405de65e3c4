// Package agent runs the per-tab agent loop in the background context.
//
// A Manager owns one Session per tab and serves the panel request surface
// over the fabric hub: chat messages start runs, plan approval gates the
// transition into execute mode, and management requests operate on the
// shared virtual filesystem store. Runs replay the full conversation to the
// LLM provider each turn and dispatch the model's tool_use blocks against
// the tab's page worker.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/entrhq/webforge/pkg/agent/tools"
	"github.com/entrhq/webforge/pkg/fabric"
	"github.com/entrhq/webforge/pkg/host"
	"github.com/entrhq/webforge/pkg/llm"
	"github.com/entrhq/webforge/pkg/llm/tokenizer"
	"github.com/entrhq/webforge/pkg/logging"
	"github.com/entrhq/webforge/pkg/types"
	"github.com/entrhq/webforge/pkg/vfs"
)

var agentDebugLog *logging.Logger

func init() {
	var err error
	agentDebugLog, err = logging.NewLogger("agent")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		agentDebugLog.Warnf("Failed to initialize agent logger, using stderr fallback: %v", err)
	}
}

// DefaultMaxTurns caps the number of model calls in a single run.
const DefaultMaxTurns = 500

// PageDirectory resolves live page handles by tab. The manager uses it for
// main-world evaluation and to describe the current page in the system
// prompt; tabs without a live handle simply lose those affordances.
type PageDirectory interface {
	Page(tabID int) (host.Page, bool)
}

// Manager owns the agent sessions of every tab and the background half of
// the panel protocol.
type Manager struct {
	provider llm.Provider
	hub      *fabric.Hub
	store    *vfs.DomainStore

	pages              PageDirectory
	keepAlive          *fabric.KeepAlive
	tokenizer          *tokenizer.Tokenizer
	maxTurns           int
	customInstructions string
	extraTools         []tools.Tool

	mu       sync.Mutex
	sessions map[int]*Session

	running bool
	runMu   sync.Mutex
	runCtx  context.Context
}

// ManagerOption is a function that configures a Manager.
type ManagerOption func(*Manager)

// WithMaxTurns sets the maximum number of model calls per run.
func WithMaxTurns(max int) ManagerOption {
	return func(m *Manager) {
		m.maxTurns = max
	}
}

// WithCustomInstructions appends user-provided instructions to every system
// prompt.
func WithCustomInstructions(instructions string) ManagerOption {
	return func(m *Manager) {
		m.customInstructions = instructions
	}
}

// WithPageDirectory supplies live page handles for main-world evaluation
// and system-prompt page context.
func WithPageDirectory(pages PageDirectory) ManagerOption {
	return func(m *Manager) {
		m.pages = pages
	}
}

// WithKeepAlive holds the given keep-alive for the duration of every run so
// the host is not suspended mid-run.
func WithKeepAlive(ka *fabric.KeepAlive) ManagerOption {
	return func(m *Manager) {
		m.keepAlive = ka
	}
}

// WithTools adds embedder-provided tools to the catalog of every run, in
// plan and execute mode alike. A built-in tool wins a name collision, so an
// extra tool cannot shadow the page toolset.
func WithTools(extra ...tools.Tool) ManagerOption {
	return func(m *Manager) {
		m.extraTools = append(m.extraTools, extra...)
	}
}

// NewManager creates a manager serving panels connected to hub, running
// conversations against provider, and managing persistent files in store.
func NewManager(provider llm.Provider, hub *fabric.Hub, store *vfs.DomainStore, opts ...ManagerOption) *Manager {
	// Client-side token counting; nil disables usage reporting.
	tok, err := tokenizer.New()
	if err != nil {
		tok = nil
	}

	m := &Manager{
		provider:  provider,
		hub:       hub,
		store:     store,
		tokenizer: tok,
		maxTurns:  DefaultMaxTurns,
		sessions:  make(map[int]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start registers the panel request handlers and arms the manager for runs.
// Runs started afterwards are bounded by ctx; canceling it aborts them all.
func (m *Manager) Start(ctx context.Context) error {
	m.runMu.Lock()
	if m.running {
		m.runMu.Unlock()
		return fmt.Errorf("agent manager is already running")
	}
	m.running = true
	m.runCtx = ctx
	m.runMu.Unlock()

	m.registerHandlers()
	return nil
}

// Shutdown aborts every active run and waits for them to exit, or for ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	for _, s := range sessions {
		if err := s.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Session returns the session for tabID, creating it on first use. New
// sessions start in the tab's persisted mode default, or plan mode when
// none was recorded.
func (m *Manager) Session(tabID int) *Session {
	m.mu.Lock()
	if s, ok := m.sessions[tabID]; ok {
		m.mu.Unlock()
		return s
	}
	m.mu.Unlock()

	// Storage read happens outside the lock; a racing creator wins below.
	mode := m.defaultMode(context.Background(), tabID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[tabID]; ok {
		return s
	}
	s := newSession(tabID, mode, m.emit)
	m.sessions[tabID] = s
	return s
}

// emit delivers an event to the panel port of the event's tab. Tabs with no
// connected panel drop the event.
func (m *Manager) emit(event *types.AgentEvent) {
	m.hub.Send(event)
}

// page resolves the live page handle for a tab, if a directory is wired.
func (m *Manager) page(tabID int) (host.Page, bool) {
	if m.pages == nil {
		return nil, false
	}
	return m.pages.Page(tabID)
}

// invalidatePages tells every attached page worker to drop cached store
// state after a management mutation. Best effort; workers also reload
// lazily on the next read.
func (m *Manager) invalidatePages(ctx context.Context) {
	if err := m.hub.PageBroadcast(ctx, fabric.ReqInvalidateCache, nil); err != nil {
		agentDebugLog.Debugf("cache invalidation broadcast: %v", err)
	}
}
