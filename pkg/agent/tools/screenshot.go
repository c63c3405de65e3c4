package tools

import (
	"context"
	"encoding/json"
)

// ScreenshotTool captures the page viewport into the session screenshot
// file. Reading the returned path brings the pixels into the conversation.
type ScreenshotTool struct {
	conn PageConn
}

// NewScreenshot creates a Screenshot tool over the given page connection.
func NewScreenshot(conn PageConn) *ScreenshotTool {
	return &ScreenshotTool{conn: conn}
}

func (t *ScreenshotTool) Name() string {
	return "Screenshot"
}

func (t *ScreenshotTool) Description() string {
	return "Capture the visible viewport into screenshot.png and return its path and version. Read that path to see the image."
}

func (t *ScreenshotTool) Schema() map[string]interface{} {
	return BaseToolSchema(map[string]interface{}{}, nil)
}

func (t *ScreenshotTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	return t.conn.Screenshot(ctx)
}
