package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/webforge/pkg/fabric"
	"github.com/entrhq/webforge/pkg/types"
	"github.com/entrhq/webforge/pkg/vfs"
)

// Panel request payloads. Field names follow the wire casing used across
// the fabric.
type (
	chatPayload struct {
		Text string `json:"text"`
	}

	modePayload struct {
		Mode types.Mode `json:"mode"`
	}

	rejectPayload struct {
		Feedback string `json:"feedback"`
	}

	filePayload struct {
		Domain  string `json:"domain"`
		URLPath string `json:"urlPath"`
		Type    string `json:"type"`
		Name    string `json:"name"`
		Enabled bool   `json:"enabled"`
	}

	enabledPayload struct {
		Enabled bool `json:"enabled"`
	}

	execPayload struct {
		Code string `json:"code"`
	}
)

// registerHandlers wires every panel request type into the hub.
func (m *Manager) registerHandlers() {
	m.hub.HandleFunc(fabric.ReqChatMessage, m.handleChat)
	m.hub.HandleFunc(fabric.ReqStopAgent, m.handleStop)
	m.hub.HandleFunc(fabric.ReqClearHistory, m.handleClearHistory)
	m.hub.HandleFunc(fabric.ReqGetHistory, m.handleGetHistory)
	m.hub.HandleFunc(fabric.ReqSetMode, m.handleSetMode)
	m.hub.HandleFunc(fabric.ReqGetMode, m.handleGetMode)
	m.hub.HandleFunc(fabric.ReqApprovePlan, m.handleApprovePlan)
	m.hub.HandleFunc(fabric.ReqRejectPlan, m.handleRejectPlan)
	m.hub.HandleFunc(fabric.ReqGetVFSFiles, m.handleGetVFSFiles)
	m.hub.HandleFunc(fabric.ReqDeleteVFSFile, m.handleDeleteVFSFile)
	m.hub.HandleFunc(fabric.ReqToggleVFSFileEnabled, m.handleToggleVFSFile)
	m.hub.HandleFunc(fabric.ReqSetAllVFSFilesEnabled, m.handleSetAllVFSFiles)
	m.hub.HandleFunc(fabric.ReqCaptureScreenshot, m.handleCaptureScreenshot)
	m.hub.HandleFunc(fabric.ReqExecuteInMainWorld, m.handleExecuteInMainWorld)
	m.hub.HandleFunc(fabric.ReqExportVFS, m.handleExportVFS)
	m.hub.HandleFunc(fabric.ReqImportVFS, m.handleImportVFS)
}

// handleChat appends the user message and starts a run. A pending plan
// blocks new messages until it is approved or rejected.
func (m *Manager) handleChat(ctx context.Context, req *fabric.Request) (interface{}, error) {
	var p chatPayload
	if err := req.Bind(&p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Text) == "" {
		return nil, fmt.Errorf("message text is empty")
	}

	sess := m.Session(req.TabID)
	if sess.AwaitingApproval() {
		return nil, fmt.Errorf("a plan is awaiting approval; approve or reject it before sending new messages")
	}

	sess.append(types.NewUserMessage(p.Text))
	m.launch(sess)
	return map[string]interface{}{"started": true, "mode": sess.Mode()}, nil
}

func (m *Manager) handleStop(ctx context.Context, req *fabric.Request) (interface{}, error) {
	stopped := m.Session(req.TabID).Stop()
	return map[string]bool{"stopped": stopped}, nil
}

// handleClearHistory aborts any active run, then drops the conversation,
// todos, and approval latch. Mode is preserved.
func (m *Manager) handleClearHistory(ctx context.Context, req *fabric.Request) (interface{}, error) {
	sess := m.Session(req.TabID)
	sess.abort()
	sess.setAwaiting(false)
	sess.clear()
	m.emit(types.NewModeChangedEvent(sess.tabID, sess.Mode(), false))
	return map[string]bool{"cleared": true}, nil
}

func (m *Manager) handleGetHistory(ctx context.Context, req *fabric.Request) (interface{}, error) {
	sess := m.Session(req.TabID)
	return map[string]interface{}{"messages": sess.History()}, nil
}

func (m *Manager) handleSetMode(ctx context.Context, req *fabric.Request) (interface{}, error) {
	var p modePayload
	if err := req.Bind(&p); err != nil {
		return nil, err
	}
	sess := m.Session(req.TabID)
	if err := sess.SetMode(p.Mode); err != nil {
		return nil, err
	}
	m.persistMode(ctx, req.TabID, p.Mode)
	m.emit(types.NewModeChangedEvent(sess.tabID, p.Mode, false))
	return map[string]interface{}{"mode": p.Mode}, nil
}

func (m *Manager) handleGetMode(ctx context.Context, req *fabric.Request) (interface{}, error) {
	sess := m.Session(req.TabID)
	return map[string]interface{}{
		"mode":             sess.Mode(),
		"todos":            sess.Todos(),
		"awaitingApproval": sess.AwaitingApproval(),
	}, nil
}

// handleApprovePlan reads the approved plan from the tab's session files
// and starts an execute-mode run on a fresh history seeded with it.
func (m *Manager) handleApprovePlan(ctx context.Context, req *fabric.Request) (interface{}, error) {
	sess := m.Session(req.TabID)
	if !sess.AwaitingApproval() {
		return nil, fmt.Errorf("no plan is awaiting approval")
	}

	planText := ""
	conn := fabric.NewPageClient(m.hub, req.TabID)
	if res, err := conn.Read(ctx, "plan.md", 0, 0); err == nil {
		planText = res.Content
	} else {
		agentDebugLog.Debugf("approve: plan.md unavailable for tab %d: %v", req.TabID, err)
	}

	sess.approve(planText)
	m.emit(types.NewModeChangedEvent(sess.tabID, types.ModeExecute, false))
	m.launch(sess)
	return map[string]interface{}{"mode": types.ModeExecute}, nil
}

// handleRejectPlan releases the approval latch and asks the model to revise
// the plan, staying in plan mode.
func (m *Manager) handleRejectPlan(ctx context.Context, req *fabric.Request) (interface{}, error) {
	var p rejectPayload
	if err := req.Bind(&p); err != nil {
		return nil, err
	}
	sess := m.Session(req.TabID)
	if !sess.AwaitingApproval() {
		return nil, fmt.Errorf("no plan is awaiting approval")
	}

	sess.setAwaiting(false)
	m.emit(types.NewModeChangedEvent(sess.tabID, types.ModePlan, false))

	msg := "The plan was rejected. Please revise it."
	if strings.TrimSpace(p.Feedback) != "" {
		msg = "Please revise the plan based on this feedback: " + p.Feedback
	}
	sess.append(types.NewUserMessage(msg))
	m.launch(sess)
	return map[string]interface{}{"mode": types.ModePlan}, nil
}

func (m *Manager) handleGetVFSFiles(ctx context.Context, req *fabric.Request) (interface{}, error) {
	files, err := m.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"files": files}, nil
}

func (m *Manager) handleDeleteVFSFile(ctx context.Context, req *fabric.Request) (interface{}, error) {
	var p filePayload
	if err := req.Bind(&p); err != nil {
		return nil, err
	}
	kind, err := vfs.ParseFileType(p.Type)
	if err != nil {
		return nil, err
	}
	deleted, err := m.store.DeleteFile(ctx, p.Domain, p.URLPath, kind, p.Name)
	if err != nil {
		return nil, err
	}
	if deleted {
		m.invalidatePages(ctx)
	}
	return map[string]bool{"deleted": deleted}, nil
}

func (m *Manager) handleToggleVFSFile(ctx context.Context, req *fabric.Request) (interface{}, error) {
	var p filePayload
	if err := req.Bind(&p); err != nil {
		return nil, err
	}
	kind, err := vfs.ParseFileType(p.Type)
	if err != nil {
		return nil, err
	}
	if err := m.store.SetFileEnabled(ctx, p.Domain, p.URLPath, kind, p.Name, p.Enabled); err != nil {
		return nil, err
	}
	m.invalidatePages(ctx)
	return map[string]bool{"enabled": p.Enabled}, nil
}

func (m *Manager) handleSetAllVFSFiles(ctx context.Context, req *fabric.Request) (interface{}, error) {
	var p enabledPayload
	if err := req.Bind(&p); err != nil {
		return nil, err
	}
	count, err := m.store.SetAllEnabled(ctx, p.Enabled)
	if err != nil {
		return nil, err
	}
	m.invalidatePages(ctx)
	return map[string]interface{}{"count": count, "enabled": p.Enabled}, nil
}

// handleCaptureScreenshot stores a fresh capture as the tab's session
// screenshot file and returns its path and version.
func (m *Manager) handleCaptureScreenshot(ctx context.Context, req *fabric.Request) (interface{}, error) {
	conn := fabric.NewPageClient(m.hub, req.TabID)
	return conn.Screenshot(ctx)
}

// handleExecuteInMainWorld evaluates JavaScript in the page's main world.
// Page workers route inline Bash code here; the page worker itself cannot
// reach the main world.
func (m *Manager) handleExecuteInMainWorld(ctx context.Context, req *fabric.Request) (interface{}, error) {
	var p execPayload
	if err := req.Bind(&p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Code) == "" {
		return nil, fmt.Errorf("code is empty")
	}
	page, ok := m.page(req.TabID)
	if !ok {
		return nil, fmt.Errorf("no live page for tab %d", req.TabID)
	}
	result, err := page.EvalMainWorld(ctx, p.Code)
	if err != nil {
		return &fabric.ExecResult{Success: false, Error: err.Error()}, nil
	}
	return &fabric.ExecResult{Success: true, Result: result}, nil
}

func (m *Manager) handleExportVFS(ctx context.Context, req *fabric.Request) (interface{}, error) {
	return m.store.Export(ctx)
}

func (m *Manager) handleImportVFS(ctx context.Context, req *fabric.Request) (interface{}, error) {
	var bundle vfs.ExportBundle
	if err := req.Bind(&bundle); err != nil {
		return nil, err
	}
	stats, err := m.store.Import(ctx, &bundle)
	if err != nil {
		return nil, err
	}
	m.invalidatePages(ctx)
	return stats, nil
}
