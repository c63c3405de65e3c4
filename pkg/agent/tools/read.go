package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// ReadTool reads a window of a virtual file.
type ReadTool struct {
	conn PageConn
}

// NewRead creates a Read tool over the given page connection.
func NewRead(conn PageConn) *ReadTool {
	return &ReadTool{conn: conn}
}

func (t *ReadTool) Name() string {
	return "Read"
}

func (t *ReadTool) Description() string {
	return "Read a file from the virtual filesystem. Returns content and the file's current version, which Write and Edit require. Use offset/limit to window large files; content over 15000 characters must be windowed or searched with Grep."
}

func (t *ReadTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File path, absolute (/domain/urlPath/file) or relative to the current page directory",
			},
			"offset": map[string]interface{}{
				"type":        "integer",
				"description": "Optional 0-based line to start from",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Optional number of lines to return",
			},
		},
		[]string{"path"},
	)
}

func (t *ReadTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var args struct {
		Path   string `json:"path"`
		Offset int    `json:"offset"`
		Limit  int    `json:"limit"`
	}
	if err := decodeInput(t.Name(), input, &args); err != nil {
		return nil, err
	}
	if args.Path == "" {
		return nil, fmt.Errorf("missing required parameter: path")
	}
	return t.conn.Read(ctx, args.Path, args.Offset, args.Limit)
}
