package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// GrepTool searches file contents and returns matching lines with context.
type GrepTool struct {
	conn PageConn
}

// NewGrep creates a Grep tool over the given page connection.
func NewGrep(conn PageConn) *GrepTool {
	return &GrepTool{conn: conn}
}

func (t *GrepTool) Name() string {
	return "Grep"
}

func (t *GrepTool) Description() string {
	return "Search file contents with a case-insensitive regex (invalid patterns fall back to literal matching). Returns up to 30 matches with two lines of context. Use GrepCount first when the match count is unknown."
}

func (t *GrepTool) Schema() map[string]interface{} {
	return grepSchema()
}

func (t *GrepTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	pattern, path, err := decodeGrepArgs(t.Name(), input)
	if err != nil {
		return nil, err
	}
	return t.conn.Grep(ctx, pattern, path)
}

// GrepCountTool counts matches without returning content.
type GrepCountTool struct {
	conn PageConn
}

// NewGrepCount creates a GrepCount tool over the given page connection.
func NewGrepCount(conn PageConn) *GrepCountTool {
	return &GrepCountTool{conn: conn}
}

func (t *GrepCountTool) Name() string {
	return "GrepCount"
}

func (t *GrepCountTool) Description() string {
	return "Count lines matching a case-insensitive regex without returning their content. Cheap way to size a search before running Grep."
}

func (t *GrepCountTool) Schema() map[string]interface{} {
	return grepSchema()
}

func (t *GrepCountTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	pattern, path, err := decodeGrepArgs(t.Name(), input)
	if err != nil {
		return nil, err
	}
	count, err := t.conn.GrepCount(ctx, pattern, path)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"count": count, "path": path}, nil
}

func grepSchema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Regex to search for; treated literally when it does not compile",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Optional file or directory to search; defaults to every readable file in the domain",
			},
		},
		[]string{"pattern"},
	)
}

func decodeGrepArgs(toolName string, input json.RawMessage) (pattern, path string, err error) {
	var args struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := decodeInput(toolName, input, &args); err != nil {
		return "", "", err
	}
	if args.Pattern == "" {
		return "", "", fmt.Errorf("missing required parameter: pattern")
	}
	return args.Pattern, args.Path, nil
}
