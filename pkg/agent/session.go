package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/entrhq/webforge/pkg/types"
)

// Session is the conversational state of one tab: its history, mode, todo
// list, and the approval latch set when a plan run finishes. At most one
// run is active per session; starting a new one aborts its predecessor.
type Session struct {
	tabID int
	emit  func(*types.AgentEvent)

	mu               sync.Mutex
	history          []*types.Message
	mode             types.Mode
	todos            []types.Todo
	awaitingApproval bool

	// cancel and done belong to the active run; both are nil when idle.
	cancel context.CancelFunc
	done   chan struct{}

	// startMu serializes run handover so two starts cannot both adopt the
	// same predecessor.
	startMu sync.Mutex
}

func newSession(tabID int, mode types.Mode, emit func(*types.AgentEvent)) *Session {
	if !mode.Valid() {
		mode = types.ModePlan
	}
	return &Session{
		tabID: tabID,
		emit:  emit,
		mode:  mode,
	}
}

// TabID returns the tab this session serves.
func (s *Session) TabID() int { return s.tabID }

// Mode returns the session's current mode.
func (s *Session) Mode() types.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches the session's mode. It fails while a plan is awaiting
// approval; the approval flow is the only exit from that state.
func (s *Session) SetMode(mode types.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown mode %q", mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.awaitingApproval {
		return fmt.Errorf("a plan is awaiting approval; approve or reject it before switching modes")
	}
	s.mode = mode
	return nil
}

// AwaitingApproval reports whether a finished plan is waiting on the user.
func (s *Session) AwaitingApproval() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaitingApproval
}

func (s *Session) setAwaiting(v bool) {
	s.mu.Lock()
	s.awaitingApproval = v
	s.mu.Unlock()
}

// Todos returns a copy of the session's todo list.
func (s *Session) Todos() []types.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Todo, len(s.todos))
	copy(out, s.todos)
	return out
}

// SetTodos replaces the todo list and notifies the tab's panel.
func (s *Session) SetTodos(todos []types.Todo) {
	s.mu.Lock()
	s.todos = make([]types.Todo, len(todos))
	copy(s.todos, todos)
	snapshot := make([]types.Todo, len(todos))
	copy(snapshot, todos)
	s.mu.Unlock()
	s.emit(types.NewTodosUpdatedEvent(s.tabID, snapshot))
}

// History returns a deep copy of the conversation, oldest first.
func (s *Session) History() []*types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Message, len(s.history))
	for i, m := range s.history {
		out[i] = m.Clone()
	}
	return out
}

// append adds a message to the conversation.
func (s *Session) append(msg *types.Message) {
	s.mu.Lock()
	s.history = append(s.history, msg)
	s.mu.Unlock()
}

// clear drops the conversation and todo list, notifying the panel of the
// emptied todos. Mode and approval state stay as they are; ClearHistory
// resets approval separately before clearing.
func (s *Session) clear() {
	s.mu.Lock()
	s.history = nil
	s.todos = nil
	s.mu.Unlock()
	s.emit(types.NewTodosUpdatedEvent(s.tabID, nil))
}

// approve transitions the session into execute mode with a fresh history
// seeded from the approved plan text and the still-open todos.
func (s *Session) approve(planText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("The plan has been approved. Execute it now.")
	if planText != "" {
		b.WriteString("\n\n<approved_plan>\n")
		b.WriteString(strings.TrimRight(planText, "\n"))
		b.WriteString("\n</approved_plan>")
	}
	if open := types.OpenTodos(s.todos); len(open) > 0 {
		b.WriteString("\n\nOpen todos:\n")
		for _, t := range open {
			fmt.Fprintf(&b, "- [%s] %s\n", t.Status, t.Content)
		}
	}

	s.history = []*types.Message{types.NewUserMessage(b.String())}
	s.mode = types.ModeExecute
	s.awaitingApproval = false
}

// begin aborts any active run, waits for it to exit, and arms a new run
// derived from parent. The returned end func must be called exactly once
// when the run exits.
func (s *Session) begin(parent context.Context) (context.Context, func()) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	ctx, runCancel := context.WithCancel(parent)
	runDone := make(chan struct{})
	s.mu.Lock()
	s.cancel, s.done = runCancel, runDone
	s.mu.Unlock()

	end := func() {
		s.mu.Lock()
		if s.done == runDone {
			s.cancel, s.done = nil, nil
		}
		s.mu.Unlock()
		runCancel()
		close(runDone)
	}
	return ctx, end
}

// Stop cancels the active run, if any, and reports whether one was active.
// It returns without waiting for the run to unwind.
func (s *Session) Stop() bool {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// abort cancels the active run and waits for it to exit.
func (s *Session) abort() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until the active run exits, or ctx is done. It returns
// immediately when the session is idle.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a run is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
