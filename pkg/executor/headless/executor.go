package headless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/entrhq/webforge/pkg/fabric"
	"github.com/entrhq/webforge/pkg/logging"
	"github.com/entrhq/webforge/pkg/types"
)

// Executor drives one scripted run over a tab's fabric port: it sets the
// manifest mode, submits the task, relays every stream event as a JSON
// line, and stops at the first terminal event.
type Executor struct {
	hub      *fabric.Hub
	tabID    int
	manifest *Manifest
	out      io.Writer
	log      *logging.Logger
}

// NewExecutor creates a headless executor for an already-opened tab. The
// background must be wired into the hub before Run is called.
func NewExecutor(hub *fabric.Hub, tabID int, manifest *Manifest) (*Executor, error) {
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run manifest: %w", err)
	}

	return &Executor{
		hub:      hub,
		tabID:    tabID,
		manifest: manifest,
		out:      os.Stdout,
	}, nil
}

// Run executes the manifest task and streams events until the run ends.
// It returns an error when the run ends in AGENT_ERROR, the timeout
// elapses, or the event stream closes early.
func (e *Executor) Run(ctx context.Context) error {
	log, logErr := logging.NewLogger("headless")
	if logErr != nil {
		log.Warnf("file logging unavailable: %v", logErr)
	}
	defer log.Close()
	e.log = log

	if e.manifest.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.manifest.Timeout)
		defer cancel()
	}

	summary := &RunSummary{
		Task:      e.manifest.Task,
		URL:       e.manifest.URL,
		Mode:      e.manifest.Mode,
		StartTime: time.Now(),
	}

	port := e.hub.Connect(e.tabID)
	defer port.Close()

	log.Infof("headless run starting: tab=%d url=%s mode=%s", e.tabID, e.manifest.URL, e.manifest.Mode)

	if _, err := port.Request(ctx, fabric.ReqSetMode, map[string]string{"mode": string(e.manifest.Mode)}); err != nil {
		return e.fail(summary, fmt.Errorf("failed to set mode: %w", err))
	}
	if _, err := port.Request(ctx, fabric.ReqChatMessage, map[string]string{"text": e.manifest.Task}); err != nil {
		return e.fail(summary, fmt.Errorf("failed to submit task: %w", err))
	}

	tracker := newWriteTracker()
	enc := json.NewEncoder(e.out)
	events := port.Events()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				summary.FilesModified = tracker.files()
				return e.fail(summary, errors.New("event stream closed before the run finished"))
			}
			if err := enc.Encode(event); err != nil {
				summary.FilesModified = tracker.files()
				return e.fail(summary, fmt.Errorf("failed to write event: %w", err))
			}

			switch event.Type {
			case types.EventToolCall:
				summary.ToolCalls++
				tracker.track(event)
			case types.EventToolResult:
				tracker.resolve(event)
			case types.EventAgentDone:
				if event.Usage != nil {
					summary.TokensUsed = event.Usage.TotalTokens
					summary.ContextWindow = event.Usage.ContextWindow
				}
				summary.FilesModified = tracker.files()
				return e.finish(summary)
			case types.EventAgentError:
				summary.FilesModified = tracker.files()
				return e.fail(summary, fmt.Errorf("agent run failed (%s): %s", event.Reason, event.Error))
			}

		case <-ctx.Done():
			summary.FilesModified = tracker.files()
			if _, err := port.Request(context.Background(), fabric.ReqStopAgent, nil); err != nil {
				log.Warnf("failed to stop run after cancellation: %v", err)
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return e.fail(summary, errors.New("execution timeout exceeded"))
			}
			return e.fail(summary, fmt.Errorf("execution canceled: %w", ctx.Err()))
		}
	}
}

func (e *Executor) finish(summary *RunSummary) error {
	summary.Status = statusSuccess
	e.finalize(summary)
	return nil
}

// fail marks the run as failed and returns the error unchanged.
func (e *Executor) fail(summary *RunSummary, err error) error {
	summary.Status = statusFailed
	summary.Error = err.Error()
	e.finalize(summary)
	return err
}

// finalize stamps the end time and writes the summary artifact when the
// manifest asks for one. A summary write failure is logged, not returned.
func (e *Executor) finalize(summary *RunSummary) {
	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime)
	if summary.FilesModified == nil {
		summary.FilesModified = []string{}
	}

	e.log.Infof("headless run finished: status=%s tools=%d duration=%s",
		summary.Status, summary.ToolCalls, summary.Duration)

	if e.manifest.SummaryPath == "" {
		return
	}
	if err := writeSummary(e.manifest.SummaryPath, summary); err != nil {
		e.log.Warnf("failed to write run summary: %v", err)
	}
}
