package headless

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/entrhq/webforge/pkg/types"
	"gopkg.in/yaml.v3"
)

// Manifest describes one scripted run: the page to open, the task to
// submit, and the budget the run must stay within.
type Manifest struct {
	// URL is the page the launcher opens before the run starts.
	URL string `yaml:"url" json:"url"`

	// Task is the user message submitted to the agent.
	Task string `yaml:"task" json:"task"`

	// Mode selects plan or execute for the run.
	Mode types.Mode `yaml:"mode" json:"mode"`

	// MaxTurns caps model calls for the run; 0 keeps the agent default.
	MaxTurns int `yaml:"max_turns" json:"max_turns"`

	// Timeout bounds the whole run; 0 disables the bound.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// SummaryPath, when set, receives a JSON RunSummary after the stream
	// ends.
	SummaryPath string `yaml:"summary_path" json:"summary_path,omitempty"`
}

// DefaultManifest returns the manifest defaults for scripted runs. Mode
// defaults to execute because nothing in a scripted run can approve a
// plan.
func DefaultManifest() *Manifest {
	return &Manifest{
		Mode:    types.ModeExecute,
		Timeout: 10 * time.Minute,
	}
}

// Validate validates the manifest.
func (m *Manifest) Validate() error {
	if m.Task == "" {
		return fmt.Errorf("task description is required")
	}

	if m.URL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(m.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url must be absolute with scheme and host: %q", m.URL)
	}

	if !m.Mode.Valid() {
		return fmt.Errorf("invalid mode: %s (must be 'plan' or 'execute')", m.Mode)
	}

	if m.MaxTurns < 0 {
		return fmt.Errorf("max_turns cannot be negative")
	}

	if m.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	return nil
}

// LoadManifest reads and validates a YAML run manifest. Fields absent from
// the file keep their DefaultManifest values.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	manifest := DefaultManifest()
	if unmarshalErr := yaml.Unmarshal(data, manifest); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to parse manifest file: %w", unmarshalErr)
	}

	if validationErr := manifest.Validate(); validationErr != nil {
		return nil, fmt.Errorf("invalid run manifest: %w", validationErr)
	}

	return manifest, nil
}
