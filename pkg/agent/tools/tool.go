// Package tools implements the model-facing tool catalog. Filesystem tools
// operate on a tab's virtual filesystem through a page connection; todo
// tools operate on the session's task list. Tool failures are data, not
// control flow: the dispatcher shapes errors into error tool_results and
// the run continues.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entrhq/webforge/pkg/fabric"
	"github.com/entrhq/webforge/pkg/types"
	"github.com/entrhq/webforge/pkg/vfs"
)

// Tool represents a capability the model can invoke during a run.
type Tool interface {
	// Name returns the unique identifier declared to the model (e.g. "Read").
	Name() string

	// Description returns the model-facing description of what this tool does.
	Description() string

	// Schema returns the JSON schema for this tool's input parameters.
	Schema() map[string]interface{}

	// Execute runs the tool with the raw JSON input of a tool_use block.
	// The returned value is serialized and truncated by Shape; an error is
	// shaped into an error tool_result rather than terminating the run.
	Execute(ctx context.Context, input json.RawMessage) (interface{}, error)
}

// PageConn is the slice of the page connection the filesystem tools need.
// *fabric.PageClient implements it; tests substitute fakes.
type PageConn interface {
	Read(ctx context.Context, path string, offset, limit int) (*vfs.ReadResult, error)
	Write(ctx context.Context, path, content string, expectedVersion int64) (*vfs.WriteResult, error)
	Edit(ctx context.Context, path, old, new string, expectedVersion int64, replaceAll bool) (*vfs.EditResult, error)
	Ls(ctx context.Context, path string) ([]vfs.LsEntry, error)
	Glob(ctx context.Context, pattern string) ([]string, error)
	Grep(ctx context.Context, pattern, path string) (*vfs.GrepResult, error)
	GrepCount(ctx context.Context, pattern, path string) (int, error)
	Exec(ctx context.Context, code, scriptPath string) (*fabric.ExecResult, error)
	Screenshot(ctx context.Context) (*vfs.WriteResult, error)
}

// TodoStore is the session-local todo list the todo tools operate on.
type TodoStore interface {
	Todos() []types.Todo
	SetTodos(todos []types.Todo)
}

// ForMode builds the tool catalog exposed in the given mode. Plan mode
// offers the discovery tools plus a Write restricted to the plan file;
// execute mode offers everything.
func ForMode(mode types.Mode, conn PageConn, todos TodoStore) []Tool {
	if mode == types.ModePlan {
		return []Tool{
			NewRead(conn),
			NewGlob(conn),
			NewGrep(conn),
			NewGrepCount(conn),
			NewScreenshot(conn),
			NewLs(conn),
			NewBash(conn),
			NewWrite(conn, true),
			NewTodoRead(todos),
			NewTodoWrite(todos),
		}
	}
	return []Tool{
		NewRead(conn),
		NewWrite(conn, false),
		NewEdit(conn),
		NewGlob(conn),
		NewGrep(conn),
		NewGrepCount(conn),
		NewScreenshot(conn),
		NewLs(conn),
		NewBash(conn),
		NewTodoRead(todos),
		NewTodoWrite(todos),
	}
}

// Lookup finds a tool by name in a catalog.
func Lookup(catalog []Tool, name string) (Tool, bool) {
	for _, t := range catalog {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// BaseToolSchema creates a common JSON schema structure for a tool with
// the given properties and required fields.
func BaseToolSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// decodeInput unmarshals a tool_use input into the tool's argument struct.
func decodeInput(toolName string, input json.RawMessage, v interface{}) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid %s arguments: %w", toolName, err)
	}
	return nil
}
