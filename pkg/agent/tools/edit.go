package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// EditTool replaces content inside a virtual file. Page edits land on the
// most specific containing element; the result reports the selector chosen.
type EditTool struct {
	conn PageConn
}

// NewEdit creates an Edit tool over the given page connection.
func NewEdit(conn PageConn) *EditTool {
	return &EditTool{conn: conn}
}

func (t *EditTool) Name() string {
	return "Edit"
}

func (t *EditTool) Description() string {
	return "Replace old content with new content inside a file. With replace_all false, old must match exactly once. expected_version must match the file's current version from Read; on a mismatch, read the file again before retrying."
}

func (t *EditTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File path to edit",
			},
			"old": map[string]interface{}{
				"type":        "string",
				"description": "Content to replace; must exist in the file",
			},
			"new": map[string]interface{}{
				"type":        "string",
				"description": "Replacement content; empty deletes the match",
			},
			"expected_version": map[string]interface{}{
				"type":        "integer",
				"description": "Current version of the file",
			},
			"replace_all": map[string]interface{}{
				"type":        "boolean",
				"description": "Replace every occurrence instead of exactly one",
			},
		},
		[]string{"path", "old", "new", "expected_version"},
	)
}

func (t *EditTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var args struct {
		Path            string `json:"path"`
		Old             string `json:"old"`
		New             string `json:"new"`
		ExpectedVersion int64  `json:"expected_version"`
		ReplaceAll      bool   `json:"replace_all"`
	}
	if err := decodeInput(t.Name(), input, &args); err != nil {
		return nil, err
	}
	if args.Path == "" {
		return nil, fmt.Errorf("missing required parameter: path")
	}
	if args.Old == "" {
		return nil, fmt.Errorf("missing required parameter: old")
	}
	return t.conn.Edit(ctx, args.Path, args.Old, args.New, args.ExpectedVersion, args.ReplaceAll)
}
