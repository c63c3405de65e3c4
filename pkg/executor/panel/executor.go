// Package panel provides the interactive terminal executor for WebForge: a
// chat panel connected to the background over a tab's fabric port, with a
// transcript viewport, slash commands, and the plan approval flow.
//
// The panel codebase is split into multiple files for better organization:
// - executor.go: Main executor implementation and program lifecycle
// - model.go: Core model structure and state
// - update.go: Bubble Tea Update function and message handling
// - view.go: Bubble Tea View function and rendering
// - events.go: Agent event processing
// - slash_commands.go: Slash command registry and handlers
// - helpers.go: Utility functions
// - styles.go: Color scheme and styling
package panel

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/webforge/pkg/fabric"
	"github.com/entrhq/webforge/pkg/logging"
)

// Executor runs the interactive chat panel for one tab.
type Executor struct {
	hub     *fabric.Hub
	tabID   int
	program *tea.Program
}

// NewExecutor creates a panel executor for the given tab. The background
// (agent manager, page workers) must already be wired into the hub.
func NewExecutor(hub *fabric.Hub, tabID int) *Executor {
	return &Executor{
		hub:   hub,
		tabID: tabID,
	}
}

// Run connects the tab's port and blocks until the user exits. Canceling
// ctx quits the program gracefully.
func (e *Executor) Run(ctx context.Context) error {
	log, err := logging.NewLogger("panel")
	if err != nil {
		// The fallback logger writes to stderr; keep going.
		log.Warnf("file logging unavailable: %v", err)
	}
	defer log.Close()
	log.Infof("panel starting for tab %d", e.tabID)

	port := e.hub.Connect(e.tabID)
	defer port.Close()

	m := initialModel(port, e.tabID, log)

	e.program = tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	// Forward agent events from the port into the program. The stream ends
	// when the port closes or is replaced.
	go func() {
		for event := range port.Events() {
			e.program.Send(event)
		}
		e.program.Send(portClosedMsg{})
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			e.program.Quit()
		case <-done:
		}
	}()

	if _, err := e.program.Run(); err != nil {
		return fmt.Errorf("failed to run panel program: %w", err)
	}
	return nil
}
