package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// WriteTool creates or replaces a virtual file under optimistic versioning.
// In plan mode the tool is constructed restricted: only the session plan
// file may be written, and any other path fails regardless of what the
// prompt allowed the model to believe.
type WriteTool struct {
	conn     PageConn
	planOnly bool
}

// NewWrite creates a Write tool. planOnly restricts writes to plan.md.
func NewWrite(conn PageConn, planOnly bool) *WriteTool {
	return &WriteTool{conn: conn, planOnly: planOnly}
}

func (t *WriteTool) Name() string {
	return "Write"
}

func (t *WriteTool) Description() string {
	if t.planOnly {
		return "Write the plan file (plan.md). expected_version must match the file's current version; use 0 to create it."
	}
	return "Create or replace a file in the virtual filesystem. expected_version must match the file's current version from Read; use 0 to create a new file. A version mismatch means the file changed underneath you: read it again first."
}

func (t *WriteTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File path to write",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Full new file content",
			},
			"expected_version": map[string]interface{}{
				"type":        "integer",
				"description": "Current version of the file, or 0 to create",
			},
		},
		[]string{"path", "content", "expected_version"},
	)
}

func (t *WriteTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var args struct {
		Path            string `json:"path"`
		Content         string `json:"content"`
		ExpectedVersion int64  `json:"expected_version"`
	}
	if err := decodeInput(t.Name(), input, &args); err != nil {
		return nil, err
	}
	if args.Path == "" {
		return nil, fmt.Errorf("missing required parameter: path")
	}
	if t.planOnly && !isPlanPath(args.Path) {
		return nil, fmt.Errorf("plan mode only allows writing plan.md; %s is not writable until the plan is approved", args.Path)
	}
	return t.conn.Write(ctx, args.Path, args.Content, args.ExpectedVersion)
}

// isPlanPath accepts the plan file in any of the spellings the model uses:
// bare, ./-relative, or absolute under a page directory.
func isPlanPath(path string) bool {
	return path == "plan.md" || path == "./plan.md" || strings.HasSuffix(path, "/plan.md")
}
