package fabric

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entrhq/webforge/pkg/vfs"
)

// Payloads for page worker requests. Both ends of the fabric share these
// shapes, so filesystem arguments survive the round trip unchanged.
type (
	// ReadPayload selects a window of a file.
	ReadPayload struct {
		Path   string `json:"path"`
		Offset int    `json:"offset,omitempty"`
		Limit  int    `json:"limit,omitempty"`
	}

	// WritePayload stores content at a path.
	WritePayload struct {
		Path            string `json:"path"`
		Content         string `json:"content"`
		ExpectedVersion int64  `json:"expectedVersion"`
	}

	// EditPayload replaces old with new inside a file.
	EditPayload struct {
		Path            string `json:"path"`
		Old             string `json:"old"`
		New             string `json:"new"`
		ExpectedVersion int64  `json:"expectedVersion"`
		ReplaceAll      bool   `json:"replaceAll,omitempty"`
	}

	// LsPayload lists a directory; an empty path lists the page directory.
	LsPayload struct {
		Path string `json:"path,omitempty"`
	}

	// GlobPayload matches paths under the page directory.
	GlobPayload struct {
		Pattern string `json:"pattern"`
	}

	// GrepPayload searches file contents.
	GrepPayload struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path,omitempty"`
	}

	// ExecPayload runs JavaScript in the page's main world, either inline
	// code or a stored scripts/*.js file.
	ExecPayload struct {
		Code       string `json:"code,omitempty"`
		ScriptPath string `json:"scriptPath,omitempty"`
	}
)

// CountResult carries a bare match count.
type CountResult struct {
	Count int `json:"count"`
}

// ExecResult reports a main-world evaluation. Runtime failures travel as
// data so callers can shape them into tool results instead of transport
// errors.
type ExecResult struct {
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PageClient is the background's typed view of one tab's virtual
// filesystem, served by the tab's page worker over the hub. Workers that
// are not yet attached are injected on first use; tabs that refuse a
// worker surface ErrPrivilegedPage.
type PageClient struct {
	hub   *Hub
	tabID int
}

// NewPageClient creates a client for the given tab.
func NewPageClient(hub *Hub, tabID int) *PageClient {
	return &PageClient{hub: hub, tabID: tabID}
}

// TabID returns the tab this client serves.
func (c *PageClient) TabID() int {
	return c.tabID
}

// Read returns a window of the file at path.
func (c *PageClient) Read(ctx context.Context, path string, offset, limit int) (*vfs.ReadResult, error) {
	var out vfs.ReadResult
	if err := c.request(ctx, ReqVFSRead, ReadPayload{Path: path, Offset: offset, Limit: limit}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Write stores content at path under optimistic versioning.
func (c *PageClient) Write(ctx context.Context, path, content string, expectedVersion int64) (*vfs.WriteResult, error) {
	var out vfs.WriteResult
	if err := c.request(ctx, ReqVFSWrite, WritePayload{Path: path, Content: content, ExpectedVersion: expectedVersion}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Edit replaces old with new inside the file at path.
func (c *PageClient) Edit(ctx context.Context, path, old, new string, expectedVersion int64, replaceAll bool) (*vfs.EditResult, error) {
	var out vfs.EditResult
	payload := EditPayload{Path: path, Old: old, New: new, ExpectedVersion: expectedVersion, ReplaceAll: replaceAll}
	if err := c.request(ctx, ReqVFSEdit, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ls lists a directory.
func (c *PageClient) Ls(ctx context.Context, path string) ([]vfs.LsEntry, error) {
	var out []vfs.LsEntry
	if err := c.request(ctx, ReqVFSLs, LsPayload{Path: path}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Glob returns the paths matching pattern.
func (c *PageClient) Glob(ctx context.Context, pattern string) ([]string, error) {
	var out []string
	if err := c.request(ctx, ReqVFSGlob, GlobPayload{Pattern: pattern}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Grep searches file contents.
func (c *PageClient) Grep(ctx context.Context, pattern, path string) (*vfs.GrepResult, error) {
	var out vfs.GrepResult
	if err := c.request(ctx, ReqVFSGrep, GrepPayload{Pattern: pattern, Path: path}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GrepCount returns the number of lines matching pattern.
func (c *PageClient) GrepCount(ctx context.Context, pattern, path string) (int, error) {
	var out CountResult
	if err := c.request(ctx, ReqVFSGrepCount, GrepPayload{Pattern: pattern, Path: path}, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Exec evaluates JavaScript in the page's main world.
func (c *PageClient) Exec(ctx context.Context, code, scriptPath string) (*ExecResult, error) {
	var out ExecResult
	if err := c.request(ctx, ReqVFSExec, ExecPayload{Code: code, ScriptPath: scriptPath}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Screenshot captures the visible viewport into the session screenshot
// file and returns its path and version.
func (c *PageClient) Screenshot(ctx context.Context) (*vfs.WriteResult, error) {
	var out vfs.WriteResult
	if err := c.request(ctx, ReqVFSScreenshot, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InvalidateCache tells the worker to drop its local storage cache, used
// after an import rewrites the persistent store underneath it.
func (c *PageClient) InvalidateCache(ctx context.Context) error {
	return c.request(ctx, ReqInvalidateCache, nil, nil)
}

func (c *PageClient) request(ctx context.Context, reqType string, payload, out interface{}) error {
	req, err := NewRequest(reqType, c.tabID, payload)
	if err != nil {
		return err
	}
	resp := c.hub.PageRequest(ctx, req)
	if resp.Error != nil {
		return resp.Error.Err()
	}
	if out != nil && len(resp.Payload) > 0 {
		if err := json.Unmarshal(resp.Payload, out); err != nil {
			return fmt.Errorf("decode %s response: %w", reqType, err)
		}
	}
	return nil
}
