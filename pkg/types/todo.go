package types

// TodoStatus is the workflow state of a todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// Todo is one entry of a tab's task list. The agent replaces the whole list
// through the TodoWrite tool; items are never patched individually.
type Todo struct {
	ID      string     `json:"id"`
	Content string     `json:"content"`
	Status  TodoStatus `json:"status"`
}

// Valid reports whether the status is one of the recognized states.
func (s TodoStatus) Valid() bool {
	switch s {
	case TodoPending, TodoInProgress, TodoCompleted:
		return true
	}
	return false
}

// OpenTodos filters a list down to items that still need work.
func OpenTodos(todos []Todo) []Todo {
	var open []Todo
	for _, t := range todos {
		if t.Status != TodoCompleted {
			open = append(open, t)
		}
	}
	return open
}

// Mode is the per-tab agent lifecycle phase.
type Mode string

const (
	// ModePlan restricts the agent to discovery tools plus writing the plan
	// file. Runs in this mode end by latching the approval gate.
	ModePlan Mode = "plan"

	// ModeExecute exposes the full tool catalog.
	ModeExecute Mode = "execute"
)

// Valid reports whether the mode is recognized.
func (m Mode) Valid() bool {
	return m == ModePlan || m == ModeExecute
}
