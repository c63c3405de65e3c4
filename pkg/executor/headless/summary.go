package headless

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/entrhq/webforge/pkg/types"
)

const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

// RunSummary is the machine-readable record of one scripted run, written
// to the manifest's summary_path when the stream ends.
type RunSummary struct {
	Task          string        `json:"task"`
	URL           string        `json:"url"`
	Mode          types.Mode    `json:"mode"`
	Status        string        `json:"status"`
	Error         string        `json:"error,omitempty"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Duration      time.Duration `json:"duration"`
	ToolCalls     int           `json:"tool_calls"`
	FilesModified []string      `json:"files_modified"`
	TokensUsed    int           `json:"tokens_used"`
	ContextWindow int           `json:"context_window"`
}

// writeSummary writes the summary as indented JSON, creating parent
// directories as needed.
func writeSummary(path string, summary *RunSummary) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create summary directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0o600); writeErr != nil {
		return fmt.Errorf("failed to write run summary: %w", writeErr)
	}

	return nil
}
