package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// GlobTool matches virtual paths against a pattern.
type GlobTool struct {
	conn PageConn
}

// NewGlob creates a Glob tool over the given page connection.
func NewGlob(conn PageConn) *GlobTool {
	return &GlobTool{conn: conn}
}

func (t *GlobTool) Name() string {
	return "Glob"
}

func (t *GlobTool) Description() string {
	return "Find files matching a glob pattern (* and ? wildcards) within the current domain. Returns matching paths."
}

func (t *GlobTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Glob pattern, e.g. scripts/*.js or /shop.example/*/styles/*.css",
			},
		},
		[]string{"pattern"},
	)
}

func (t *GlobTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var args struct {
		Pattern string `json:"pattern"`
	}
	if err := decodeInput(t.Name(), input, &args); err != nil {
		return nil, err
	}
	if args.Pattern == "" {
		return nil, fmt.Errorf("missing required parameter: pattern")
	}
	return t.conn.Glob(ctx, args.Pattern)
}
