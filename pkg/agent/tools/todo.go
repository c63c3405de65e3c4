package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/entrhq/webforge/pkg/types"
)

// TodoReadTool returns the tab's current task list.
type TodoReadTool struct {
	todos TodoStore
}

// NewTodoRead creates a TodoRead tool over the given store.
func NewTodoRead(todos TodoStore) *TodoReadTool {
	return &TodoReadTool{todos: todos}
}

func (t *TodoReadTool) Name() string {
	return "TodoRead"
}

func (t *TodoReadTool) Description() string {
	return "Read the current todo list for this tab."
}

func (t *TodoReadTool) Schema() map[string]interface{} {
	return BaseToolSchema(map[string]interface{}{}, nil)
}

func (t *TodoReadTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	list := t.todos.Todos()
	return map[string]interface{}{"todos": list, "count": len(list)}, nil
}

// TodoWriteTool replaces the tab's task list wholesale. Items are never
// patched individually; the model sends the full desired list each time.
type TodoWriteTool struct {
	todos TodoStore
}

// NewTodoWrite creates a TodoWrite tool over the given store.
func NewTodoWrite(todos TodoStore) *TodoWriteTool {
	return &TodoWriteTool{todos: todos}
}

func (t *TodoWriteTool) Name() string {
	return "TodoWrite"
}

func (t *TodoWriteTool) Description() string {
	return "Replace the entire todo list for this tab. Send every item, not a delta; omitted items are dropped. Status is pending, in_progress, or completed."
}

func (t *TodoWriteTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"todos": map[string]interface{}{
				"type":        "array",
				"description": "The full replacement list",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id": map[string]interface{}{
							"type":        "string",
							"description": "Stable item id; omit for new items",
						},
						"content": map[string]interface{}{
							"type":        "string",
							"description": "What needs to be done",
						},
						"status": map[string]interface{}{
							"type": "string",
							"enum": []string{"pending", "in_progress", "completed"},
						},
					},
					"required": []string{"content", "status"},
				},
			},
		},
		[]string{"todos"},
	)
}

func (t *TodoWriteTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var args struct {
		Todos []types.Todo `json:"todos"`
	}
	if err := decodeInput(t.Name(), input, &args); err != nil {
		return nil, err
	}
	for i := range args.Todos {
		item := &args.Todos[i]
		if item.Content == "" {
			return nil, fmt.Errorf("todo %d has no content", i)
		}
		if !item.Status.Valid() {
			return nil, fmt.Errorf("todo %d has invalid status %q", i, item.Status)
		}
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
	}
	t.todos.SetTodos(args.Todos)
	return map[string]interface{}{"todos": args.Todos, "count": len(args.Todos)}, nil
}
