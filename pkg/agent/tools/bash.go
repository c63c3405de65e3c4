package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// BashTool evaluates JavaScript in the page's main world, either inline
// code or a stored scripts/*.js file. The name keeps the coding-agent
// muscle memory; the "shell" of a page is its JS console.
type BashTool struct {
	conn PageConn
}

// NewBash creates a Bash tool over the given page connection.
func NewBash(conn PageConn) *BashTool {
	return &BashTool{conn: conn}
}

func (t *BashTool) Name() string {
	return "Bash"
}

func (t *BashTool) Description() string {
	return "Execute JavaScript in the page's main world and return the result. Pass code for a one-off expression, or script_path to run a stored scripts/*.js file. Runtime errors come back in the result rather than failing the call."
}

func (t *BashTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"code": map[string]interface{}{
				"type":        "string",
				"description": "Inline JavaScript to evaluate",
			},
			"script_path": map[string]interface{}{
				"type":        "string",
				"description": "Path of a stored script to execute instead of inline code",
			},
		},
		nil,
	)
}

func (t *BashTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	var args struct {
		Code       string `json:"code"`
		ScriptPath string `json:"script_path"`
	}
	if err := decodeInput(t.Name(), input, &args); err != nil {
		return nil, err
	}
	if args.Code == "" && args.ScriptPath == "" {
		return nil, fmt.Errorf("provide code or script_path")
	}
	if args.Code != "" && args.ScriptPath != "" {
		return nil, fmt.Errorf("provide code or script_path, not both")
	}
	return t.conn.Exec(ctx, args.Code, args.ScriptPath)
}
