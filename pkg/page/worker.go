// Package page runs the per-tab worker that owns a tab's virtual
// filesystem view and serves filesystem requests arriving over the
// fabric. A worker binds one live page: it feeds the console ring,
// injects matching styles and scripts on load, and drops its store cache
// when the background signals that persistent data changed underneath it.
package page

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/entrhq/webforge/pkg/fabric"
	"github.com/entrhq/webforge/pkg/host"
	"github.com/entrhq/webforge/pkg/logging"
	"github.com/entrhq/webforge/pkg/scripts"
	"github.com/entrhq/webforge/pkg/vfs"
)

// Worker serves one tab's filesystem over the fabric.
type Worker struct {
	hub      *fabric.Hub
	tabID    int
	pg       host.Page
	fs       *vfs.VFS
	registry host.ScriptRegistry
	log      *logging.Logger

	mu            sync.Mutex
	detach        func()
	removeConsole func()
}

// Option configures a Worker.
type Option func(*Worker)

// WithRegistry tells the worker a persistent user-script facility serves
// this host, so load-time script injection is left to registration.
func WithRegistry(reg host.ScriptRegistry) Option {
	return func(w *Worker) { w.registry = reg }
}

// New builds a worker for the page's tab. The page URL determines the
// filesystem location; URLs without a hostname (browser-internal pages)
// are refused, which surfaces upstream as a privileged page.
func New(hub *fabric.Hub, store *vfs.DomainStore, pg host.Page, opts ...Option) (*Worker, error) {
	info := pg.Info()
	loc, err := vfs.LocationFromURL(info.URL)
	if err != nil {
		return nil, fmt.Errorf("tab %d: %w", info.TabID, err)
	}

	logger, _ := logging.NewLogger("page")
	w := &Worker{
		hub:   hub,
		tabID: info.TabID,
		pg:    pg,
		log:   logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.fs = vfs.New(store, loc,
		vfs.WithPage(pg),
		vfs.WithEvaluator(w.forwardEval),
	)
	return w, nil
}

// TabID returns the tab this worker serves.
func (w *Worker) TabID() int { return w.tabID }

// FS returns the worker's filesystem view.
func (w *Worker) FS() *vfs.VFS { return w.fs }

// Start attaches the worker to the hub and performs the load-time sync:
// console capture begins, matching styles are injected, and matching
// scripts are injected when no persistent registry serves this host.
// Sync failures are logged; the worker serves requests regardless.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.detach != nil {
		w.mu.Unlock()
		return nil
	}
	console := w.fs.Console()
	w.removeConsole = w.pg.OnConsole(func(m host.ConsoleMessage) {
		console.AppendAt(m.Level, m.Text, m.Time)
	})
	w.detach = w.hub.AttachPage(w.tabID, w.handle)
	w.mu.Unlock()

	if err := w.fs.SyncStyles(ctx); err != nil {
		w.log.Warnf("tab %d: style sync: %v", w.tabID, err)
	}
	if w.registry == nil || !w.registry.Available() {
		w.injectStored(ctx)
	}
	return nil
}

// Stop detaches the worker from the hub and stops console capture.
// Injected styles stay on the page.
func (w *Worker) Stop() {
	w.mu.Lock()
	detach, removeConsole := w.detach, w.removeConsole
	w.detach, w.removeConsole = nil, nil
	w.mu.Unlock()
	if detach != nil {
		detach()
	}
	if removeConsole != nil {
		removeConsole()
	}
}

// handle serves one fabric request addressed to this tab.
func (w *Worker) handle(ctx context.Context, req *fabric.Request) (interface{}, error) {
	switch req.Type {
	case fabric.ReqVFSRead:
		var p fabric.ReadPayload
		if err := req.Bind(&p); err != nil {
			return nil, err
		}
		return w.fs.Read(ctx, p.Path, p.Offset, p.Limit)

	case fabric.ReqVFSWrite:
		var p fabric.WritePayload
		if err := req.Bind(&p); err != nil {
			return nil, err
		}
		return w.fs.Write(ctx, p.Path, p.Content, p.ExpectedVersion)

	case fabric.ReqVFSEdit:
		var p fabric.EditPayload
		if err := req.Bind(&p); err != nil {
			return nil, err
		}
		return w.fs.Edit(ctx, p.Path, p.Old, p.New, p.ExpectedVersion, p.ReplaceAll)

	case fabric.ReqVFSLs:
		var p fabric.LsPayload
		if err := req.Bind(&p); err != nil {
			return nil, err
		}
		return w.fs.Ls(ctx, p.Path)

	case fabric.ReqVFSGlob:
		var p fabric.GlobPayload
		if err := req.Bind(&p); err != nil {
			return nil, err
		}
		return w.fs.Glob(ctx, p.Pattern)

	case fabric.ReqVFSGrep:
		var p fabric.GrepPayload
		if err := req.Bind(&p); err != nil {
			return nil, err
		}
		return w.fs.Grep(ctx, p.Pattern, p.Path)

	case fabric.ReqVFSGrepCount:
		var p fabric.GrepPayload
		if err := req.Bind(&p); err != nil {
			return nil, err
		}
		n, err := w.fs.GrepCount(ctx, p.Pattern, p.Path)
		if err != nil {
			return nil, err
		}
		return fabric.CountResult{Count: n}, nil

	case fabric.ReqVFSExec:
		var p fabric.ExecPayload
		if err := req.Bind(&p); err != nil {
			return nil, err
		}
		return w.exec(ctx, p)

	case fabric.ReqVFSScreenshot:
		return w.fs.CaptureScreenshot(ctx)

	case fabric.ReqInvalidateCache:
		w.invalidate(ctx)
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s", fabric.ErrUnknownRequest, req.Type)
}

// exec serves the Bash tool. A stored script resolves through the
// filesystem first; inline code goes straight to the principal world.
// Runtime failures travel as data so the agent shapes them into tool
// results; filesystem failures stay structured errors.
func (w *Worker) exec(ctx context.Context, p fabric.ExecPayload) (interface{}, error) {
	var out string
	var err error
	switch {
	case p.ScriptPath != "":
		out, err = w.fs.Exec(ctx, p.ScriptPath)
		var vfsErr *vfs.Error
		if errors.As(err, &vfsErr) {
			return nil, err
		}
	case p.Code != "":
		out, err = w.fs.EvalMainWorld(ctx, p.Code)
	default:
		return nil, fmt.Errorf("exec needs code or a script path")
	}
	if err != nil {
		return &fabric.ExecResult{Success: false, Error: err.Error()}, nil
	}
	return &fabric.ExecResult{Success: true, Result: out}, nil
}

// forwardEval runs code through the background's principal-world channel.
// The worker cannot evaluate in the main world itself; the background
// owns that capability and resolves the live page for the tab.
func (w *Worker) forwardEval(ctx context.Context, code string) (string, error) {
	req, err := fabric.NewRequest(fabric.ReqExecuteInMainWorld, w.tabID, fabric.ExecPayload{Code: code})
	if err != nil {
		return "", err
	}
	resp := w.hub.Call(ctx, req)
	if resp.Error != nil {
		return "", resp.Error.Err()
	}
	var out fabric.ExecResult
	if len(resp.Payload) > 0 {
		if err := json.Unmarshal(resp.Payload, &out); err != nil {
			return "", fmt.Errorf("decode main world result: %w", err)
		}
	}
	if !out.Success {
		if out.Error == "" {
			return "", errors.New("main world execution failed")
		}
		return "", errors.New(out.Error)
	}
	return out.Result, nil
}

// injectStored runs every enabled stored script matching the page through
// the principal-world channel. Hosts without a persistent registry get
// their scripts this way on each load. Failures are logged; the remaining
// scripts still run.
func (w *Worker) injectStored(ctx context.Context) {
	files, err := w.fs.MatchingFiles(ctx, vfs.KindScript)
	if err != nil {
		w.log.Errorf("tab %d: enumerate scripts for injection: %v", w.tabID, err)
		return
	}
	for _, nf := range files {
		if !nf.File.IsEnabled() {
			continue
		}
		if _, err := w.fs.EvalMainWorld(ctx, scripts.InjectionCode(nf)); err != nil {
			w.log.Warnf("tab %d: inject script %s: %v", w.tabID, nf.Name, err)
		}
	}
}

// invalidate drops the store cache and re-syncs styles, since an import
// may have changed which stored styles serve this page.
func (w *Worker) invalidate(ctx context.Context) {
	w.fs.Store().InvalidateAll()
	if err := w.fs.SyncStyles(ctx); err != nil {
		w.log.Warnf("tab %d: style sync after invalidation: %v", w.tabID, err)
	}
}

// PageDirectory resolves live pages by tab.
type PageDirectory interface {
	Page(tabID int) (host.Page, bool)
}

// Injector returns the hub injector that builds and starts a worker on
// demand when a background request finds no receiver for its tab. Tabs
// without a live page, or whose URL the filesystem cannot place, refuse
// the worker and surface as privileged.
func Injector(hub *fabric.Hub, store *vfs.DomainStore, pages PageDirectory, opts ...Option) fabric.Injector {
	return func(ctx context.Context, tabID int) error {
		pg, ok := pages.Page(tabID)
		if !ok {
			return fmt.Errorf("no live page for tab %d", tabID)
		}
		w, err := New(hub, store, pg, opts...)
		if err != nil {
			return err
		}
		return w.Start(ctx)
	}
}
