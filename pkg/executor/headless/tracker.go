package headless

import (
	"encoding/json"

	"github.com/entrhq/webforge/pkg/types"
)

// writeTracker records which virtual files the run actually changed. A
// Write or Edit dispatch stays pending until its result arrives; error
// results cancel the pending entry instead of confirming it.
type writeTracker struct {
	pending  map[string]string // toolUseID -> target path
	seen     map[string]bool
	modified []string
}

func newWriteTracker() *writeTracker {
	return &writeTracker{
		pending:  make(map[string]string),
		seen:     make(map[string]bool),
		modified: make([]string, 0),
	}
}

// track records the target path of a file-modifying tool dispatch.
func (t *writeTracker) track(event *types.AgentEvent) {
	if event.Type != types.EventToolCall || !modifiesFiles(event.ToolName) {
		return
	}

	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(event.ToolInput, &input); err != nil || input.Path == "" {
		return
	}

	t.pending[event.ToolUseID] = input.Path
}

// resolve confirms or cancels the pending entry for a tool result.
func (t *writeTracker) resolve(event *types.AgentEvent) {
	if event.Type != types.EventToolResult {
		return
	}

	path, ok := t.pending[event.ToolUseID]
	if !ok {
		return
	}
	delete(t.pending, event.ToolUseID)

	if event.ToolIsError || t.seen[path] {
		return
	}
	t.seen[path] = true
	t.modified = append(t.modified, path)
}

// files returns the confirmed modifications in first-write order.
func (t *writeTracker) files() []string {
	return t.modified
}

func modifiesFiles(toolName string) bool {
	return toolName == "Write" || toolName == "Edit"
}
