package tools

import (
	"context"
	"encoding/json"
)

// LsTool lists a virtual directory.
type LsTool struct {
	conn PageConn
}

// NewLs creates an Ls tool over the given page connection.
func NewLs(conn PageConn) *LsTool {
	return &LsTool{conn: conn}
}

func (t *LsTool) Name() string {
	return "Ls"
}

func (t *LsTool) Description() string {
	return "List a directory in the virtual filesystem. With no path, lists the current page's directory: page.html, console.log, plan.md and screenshot.png when present, plus scripts/ and styles/."
}

func (t *LsTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Optional directory path; defaults to the current page directory",
			},
		},
		nil,
	)
}

func (t *LsTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := decodeInput(t.Name(), input, &args); err != nil {
		return nil, err
	}
	return t.conn.Ls(ctx, args.Path)
}
