package main

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/entrhq/webforge/pkg/host"
	"github.com/entrhq/webforge/pkg/page"
)

// pageHost is the host surface the launcher wires: tab opening, page lookup
// for workers and tools, the user-script registry, and shutdown. Both the
// Playwright browser host and the detached in-memory host satisfy it.
type pageHost interface {
	page.PageDirectory
	OpenTab(ctx context.Context, url string) (int, error)
	Registry() host.ScriptRegistry
	Shutdown() error
}

// detachedDocument is the scaffold served for each detached tab. The agent
// edits it exactly as it would a live page; only the rendering is absent.
const detachedDocument = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>%s</title>
</head>
<body>
  <main>
    <h1>%s</h1>
    <p>This page is served from memory. Edits persist to the store; no browser renders them.</p>
  </main>
</body>
</html>`

// detachedHost serves in-memory pages so the agent can run without a
// browser. Tab ids count from 1 in open order, matching the browser host.
type detachedHost struct {
	mu    sync.Mutex
	next  int
	pages map[int]*host.MemoryPage
}

func newDetachedHost() *detachedHost {
	return &detachedHost{pages: make(map[int]*host.MemoryPage)}
}

// OpenTab parses rawURL and serves a scaffold document at it. The URL must
// be absolute: the filesystem mounts pages by origin, so a page without a
// host has nowhere to mount.
func (h *detachedHost) OpenTab(_ context.Context, rawURL string) (int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("invalid page url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return 0, fmt.Errorf("page url must be absolute with scheme and host: %q", rawURL)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	pg, err := host.NewMemoryPage(h.next, rawURL, u.Host, fmt.Sprintf(detachedDocument, u.Host, u.Host))
	if err != nil {
		h.next--
		return 0, err
	}
	h.pages[h.next] = pg
	return h.next, nil
}

func (h *detachedHost) Page(tabID int) (host.Page, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pg, ok := h.pages[tabID]
	if !ok {
		return nil, false
	}
	return pg, true
}

// Registry reports that no persistent user-script facility exists here, so
// page workers fall back to direct injection of stored scripts.
func (h *detachedHost) Registry() host.ScriptRegistry {
	return host.NoScriptRegistry{}
}

func (h *detachedHost) Shutdown() error {
	return nil
}
