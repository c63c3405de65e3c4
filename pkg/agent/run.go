package agent

import (
	"context"
	"fmt"

	"github.com/entrhq/webforge/pkg/agent/prompts"
	"github.com/entrhq/webforge/pkg/agent/tools"
	"github.com/entrhq/webforge/pkg/fabric"
	"github.com/entrhq/webforge/pkg/llm"
	"github.com/entrhq/webforge/pkg/types"
	"github.com/entrhq/webforge/pkg/vfs"
)

// launch starts a run for the session, aborting its predecessor first. The
// run is bounded by the manager's lifecycle context and holds the keep-alive
// while active.
func (m *Manager) launch(sess *Session) {
	m.runMu.Lock()
	parent := m.runCtx
	m.runMu.Unlock()
	if parent == nil {
		parent = context.Background()
	}

	ctx, end := sess.begin(parent)
	release := func() {}
	if m.keepAlive != nil {
		release = m.keepAlive.Acquire()
	}
	go func() {
		defer end()
		defer release()
		m.run(ctx, sess)
	}()
}

// run executes the turn loop for one user message: replay history to the
// model, append its response verbatim, dispatch tool calls in order, and
// feed the batched results back, until the model ends its turn or the turn
// cap trips.
func (m *Manager) run(ctx context.Context, sess *Session) {
	mode := sess.Mode()
	conn := fabric.NewPageClient(m.hub, sess.tabID)
	catalog := append(tools.ForMode(mode, conn, sess), m.extraTools...)
	defs := toolDefs(catalog)
	system := m.systemPrompt(sess.tabID, mode)

	agentDebugLog.Infof("run start: tab=%d mode=%s tools=%d", sess.tabID, mode, len(catalog))

	for turn := 0; turn < m.maxTurns; turn++ {
		if ctx.Err() != nil {
			m.fail(sess, types.ReasonStopped, ctx.Err())
			return
		}

		resp, err := m.complete(ctx, sess, system, defs)
		if err != nil {
			if ctx.Err() != nil {
				m.fail(sess, types.ReasonStopped, ctx.Err())
				return
			}
			m.fail(sess, types.ReasonAPIError, err)
			return
		}
		sess.append(resp.Message())

		uses := resp.ToolUses()
		if len(uses) == 0 {
			m.finish(sess, system)
			return
		}

		results, stopped := m.dispatch(ctx, sess, catalog, uses)
		sess.append(types.NewToolResultsMessage(results))
		if stopped {
			m.fail(sess, types.ReasonStopped, ctx.Err())
			return
		}

		if resp.StopReason == llm.StopReasonEndTurn {
			m.finish(sess, system)
			return
		}
	}

	m.fail(sess, types.ReasonMaxTurns, fmt.Errorf("run exceeded %d turns", m.maxTurns))
}

// complete streams one model call, forwarding text deltas to the panel, and
// returns the assembled response.
func (m *Manager) complete(ctx context.Context, sess *Session, system string, defs []llm.ToolDef) (*llm.Response, error) {
	req := &llm.Request{
		System:   system,
		Messages: sess.History(),
		Tools:    defs,
	}
	stream, err := m.provider.StreamCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	var resp *llm.Response
	for chunk := range stream {
		switch {
		case chunk.IsError():
			return nil, chunk.Error
		case chunk.IsFinal():
			resp = chunk.Response
		case chunk.TextDelta != "":
			m.emit(types.NewAgentResponseEvent(sess.tabID, chunk.TextDelta))
		}
	}
	if resp == nil {
		return nil, fmt.Errorf("stream ended without a terminal chunk")
	}
	return resp, nil
}

// dispatch executes the turn's tool_use blocks in order and returns one
// tool_result block per use. When the run is canceled mid-batch the
// remaining uses get canceled error results so the recorded history still
// pairs every tool_use with a result.
func (m *Manager) dispatch(ctx context.Context, sess *Session, catalog []tools.Tool, uses []types.ContentBlock) ([]types.ContentBlock, bool) {
	results := make([]types.ContentBlock, 0, len(uses))
	for i, use := range uses {
		if ctx.Err() != nil {
			for _, rest := range uses[i:] {
				blocks, _ := tools.ShapeError(fmt.Errorf("tool execution canceled"))
				results = append(results, types.ToolResultBlocks(rest.ID, blocks, true))
			}
			return results, true
		}

		m.emit(types.NewToolCallEvent(sess.tabID, use.ID, use.Name, use.Input))
		block, display, isErr := m.runTool(ctx, catalog, use)
		m.emit(types.NewToolResultEvent(sess.tabID, use.ID, use.Name, display, isErr))
		results = append(results, block)
	}
	return results, false
}

// runTool resolves and executes one tool call. Failures become error
// tool_results; the loop never terminates on a tool error.
func (m *Manager) runTool(ctx context.Context, catalog []tools.Tool, use types.ContentBlock) (types.ContentBlock, string, bool) {
	tool, ok := tools.Lookup(catalog, use.Name)
	if !ok {
		agentDebugLog.Debugf("unknown tool requested: %s", use.Name)
		blocks, display := tools.ShapeError(fmt.Errorf("unknown tool %q; available tools are listed in the request", use.Name))
		return types.ToolResultBlocks(use.ID, blocks, true), display, true
	}

	result, err := tool.Execute(ctx, use.Input)
	if err != nil {
		agentDebugLog.Debugf("tool %s failed: %v", use.Name, err)
		blocks, display := tools.ShapeError(err)
		return types.ToolResultBlocks(use.ID, blocks, true), display, true
	}

	blocks, display := tools.Shape(result)
	return types.ToolResultBlocks(use.ID, blocks, false), display, false
}

// finish emits the run's completion event. Plan runs additionally latch the
// approval gate so the next step is an explicit approve or reject.
func (m *Manager) finish(sess *Session, system string) {
	m.emit(types.NewAgentDoneEvent(sess.tabID, m.usage(sess, system)))
	if sess.Mode() == types.ModePlan {
		sess.setAwaiting(true)
		m.emit(types.NewModeChangedEvent(sess.tabID, types.ModePlan, true))
	}
	agentDebugLog.Infof("run done: tab=%d", sess.tabID)
}

// fail emits the run's terminal error event.
func (m *Manager) fail(sess *Session, reason types.ErrorReason, err error) {
	m.emit(types.NewAgentErrorEvent(sess.tabID, reason, err))
	agentDebugLog.Infof("run failed: tab=%d reason=%s err=%v", sess.tabID, reason, err)
}

// usage reports the replayed context size against the model's window.
func (m *Manager) usage(sess *Session, system string) *types.ContextUsage {
	u := &types.ContextUsage{}
	if info := m.provider.GetModelInfo(); info != nil {
		u.ContextWindow = info.ContextWindow
	}
	if m.tokenizer != nil {
		u.TotalTokens = m.tokenizer.CountText(system) + m.tokenizer.CountMessages(sess.History())
	}
	return u
}

// systemPrompt assembles the system prompt for a run, including the current
// page section when a live handle is available.
func (m *Manager) systemPrompt(tabID int, mode types.Mode) string {
	b := prompts.NewBuilder(mode)
	if p, ok := m.page(tabID); ok {
		info := p.Info()
		if loc, err := vfs.LocationFromURL(info.URL); err == nil {
			b = b.WithLocation(loc).WithPageTitle(info.Title)
		}
	}
	if m.customInstructions != "" {
		b = b.WithCustomInstructions(m.customInstructions)
	}
	return b.Build()
}

// toolDefs converts the catalog into the provider's tool declarations.
func toolDefs(catalog []tools.Tool) []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(catalog))
	for _, t := range catalog {
		defs = append(defs, llm.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Schema(),
		})
	}
	return defs
}
