// Package fabric routes messages between the three runtime contexts: the
// background (agent host), per-tab page workers (VFS hosts), and UI panels.
// Panels hold long-lived named ports that stream agent events; scalar work
// travels as one-shot requests. Requests from the background to a page
// worker re-inject the worker once when delivery finds no receiver.
package fabric

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/webforge/pkg/vfs"
)

// Request types accepted by the background.
const (
	ReqChatMessage           = "CHAT_MESSAGE"
	ReqStopAgent             = "STOP_AGENT"
	ReqClearHistory          = "CLEAR_HISTORY"
	ReqGetHistory            = "GET_HISTORY"
	ReqSetMode               = "SET_MODE"
	ReqGetMode               = "GET_MODE"
	ReqApprovePlan           = "APPROVE_PLAN"
	ReqRejectPlan            = "REJECT_PLAN"
	ReqGetVFSFiles           = "GET_VFS_FILES"
	ReqDeleteVFSFile         = "DELETE_VFS_FILE"
	ReqToggleVFSFileEnabled  = "TOGGLE_VFS_FILE_ENABLED"
	ReqSetAllVFSFilesEnabled = "SET_ALL_VFS_FILES_ENABLED"
	ReqCaptureScreenshot     = "CAPTURE_SCREENSHOT"
	ReqExecuteInMainWorld    = "EXECUTE_IN_MAIN_WORLD"
	ReqExportVFS             = "EXPORT_VFS"
	ReqImportVFS             = "IMPORT_VFS"
)

// Request types served by page workers.
const (
	ReqVFSRead         = "VFS_READ"
	ReqVFSWrite        = "VFS_WRITE"
	ReqVFSEdit         = "VFS_EDIT"
	ReqVFSLs           = "VFS_LS"
	ReqVFSGlob         = "VFS_GLOB"
	ReqVFSGrep         = "VFS_GREP"
	ReqVFSGrepCount    = "VFS_GREP_COUNT"
	ReqVFSExec         = "VFS_EXEC"
	ReqVFSScreenshot   = "VFS_SCREENSHOT"
	ReqInvalidateCache = "INVALIDATE_VFS_CACHE"
)

// RequestTimeout is the default deadline applied to one-shot requests
// issued from a UI port. Exceeding it surfaces ErrTimeout instead of
// hanging the panel.
const RequestTimeout = 5 * time.Second

var (
	// ErrNoReceiver means no page worker is attached for the tab and no
	// injector was configured to create one.
	ErrNoReceiver = errors.New("no receiver for tab")

	// ErrPrivilegedPage means worker injection was attempted and refused;
	// the page does not accept workers.
	ErrPrivilegedPage = errors.New("page does not accept a worker")

	// ErrTimeout means a one-shot request exceeded its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrUnknownRequest means no handler is registered for the request type.
	ErrUnknownRequest = errors.New("unknown request type")
)

// Request is one one-shot message. Payload is the JSON-encoded,
// type-specific argument object.
type Request struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	TabID   int             `json:"tabId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewRequest builds a request with a fresh ID and a JSON-encoded payload.
// A nil payload is omitted.
func NewRequest(reqType string, tabID int, payload interface{}) (*Request, error) {
	req := &Request{ID: uuid.New().String(), Type: reqType, TabID: tabID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", reqType, err)
		}
		req.Payload = raw
	}
	return req, nil
}

// Bind decodes the request payload into v. A missing payload leaves v
// untouched.
func (r *Request) Bind(v interface{}) error {
	if len(r.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", r.Type, err)
	}
	return nil
}

// Response is the reply to a one-shot request.
type Response struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError carries a failure across the fabric. Filesystem failures
// keep their structured form so callers can match on the error kind after
// transport.
type ResponseError struct {
	Message string     `json:"message"`
	Code    string     `json:"code,omitempty"`
	VFS     *vfs.Error `json:"vfs,omitempty"`
}

// Error codes for fabric-level failures.
const (
	CodeNoReceiver     = "no_receiver"
	CodePrivilegedPage = "privileged_page"
	CodeTimeout        = "timeout"
)

// wrapError shapes err for transport.
func wrapError(err error) *ResponseError {
	re := &ResponseError{Message: err.Error()}
	var vfsErr *vfs.Error
	if errors.As(err, &vfsErr) {
		re.VFS = vfsErr
	}
	switch {
	case errors.Is(err, ErrNoReceiver):
		re.Code = CodeNoReceiver
	case errors.Is(err, ErrPrivilegedPage):
		re.Code = CodePrivilegedPage
	case errors.Is(err, ErrTimeout):
		re.Code = CodeTimeout
	}
	return re
}

// Err reconstructs the transported failure, preserving filesystem error
// structure and fabric sentinels.
func (e *ResponseError) Err() error {
	if e == nil {
		return nil
	}
	if e.VFS != nil {
		return e.VFS
	}
	switch e.Code {
	case CodeNoReceiver:
		return ErrNoReceiver
	case CodePrivilegedPage:
		return ErrPrivilegedPage
	case CodeTimeout:
		return ErrTimeout
	}
	return errors.New(e.Message)
}

// PortName is the well-known name a panel connects under for a tab.
func PortName(tabID int) string {
	return fmt.Sprintf("sidebar:tab:%d", tabID)
}
