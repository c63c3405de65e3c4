// Package browser is the live host backend: it drives a managed Chromium
// instance through Playwright and exposes each tab as a host.Page. A
// MutationObserver installed on every document reports serialized-document
// changes through an exposed binding, which is what advances the page
// version for optimistic concurrency. Playwright has no persistent
// user-script world, so the package simulates one: an in-memory registry
// records registrations and the host replays matching scripts on every
// page load.
package browser

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/webforge/pkg/host"
	"github.com/entrhq/webforge/pkg/logging"
)

const (
	// DefaultViewportWidth and DefaultViewportHeight match the browser
	// config section's defaults.
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800

	// DefaultTimeout is the Playwright action deadline in milliseconds.
	DefaultTimeout = 30000.0
)

// Host owns the Playwright lifecycle, the open tabs, and the simulated
// user-script registry. It satisfies the page directory interfaces of the
// agent manager and the worker injector.
type Host struct {
	log      *logging.Logger
	headless bool
	width    int
	height   int

	mu       sync.Mutex
	pw       *playwright.Playwright
	browser  playwright.Browser
	context  playwright.BrowserContext
	pages    map[int]*livePage
	nextTab  int
	registry *initScriptRegistry
	started  bool
}

// Option configures a Host.
type Option func(*Host)

// WithHeadless controls whether Chromium launches without a window.
func WithHeadless(headless bool) Option {
	return func(h *Host) {
		h.headless = headless
	}
}

// WithViewport sets the viewport size for new tabs. Non-positive dimensions
// keep the defaults.
func WithViewport(width, height int) Option {
	return func(h *Host) {
		if width > 0 && height > 0 {
			h.width, h.height = width, height
		}
	}
}

// WithLogger routes host logging to the given logger.
func WithLogger(log *logging.Logger) Option {
	return func(h *Host) {
		h.log = log
	}
}

// New creates a Host. Start must be called before opening tabs.
func New(opts ...Option) *Host {
	logger, _ := logging.NewLogger("browser")
	h := &Host{
		log:      logger,
		width:    DefaultViewportWidth,
		height:   DefaultViewportHeight,
		pages:    make(map[int]*livePage),
		nextTab:  1,
		registry: newInitScriptRegistry(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start installs the Playwright driver if needed and launches Chromium with
// one shared browser context. Driver output is discarded so it cannot
// interleave with the panel.
func (h *Host) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return nil
	}

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &h.headless,
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: h.width, Height: h.height},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("create browser context: %w", err)
	}

	h.pw, h.browser, h.context = pw, browser, bctx
	h.started = true
	h.log.Infof("chromium started, headless=%v viewport=%dx%d", h.headless, h.width, h.height)
	return nil
}

// OpenTab opens a new page, wires observation, and navigates it to url. The
// returned tab id identifies the page on the fabric and in the directory.
func (h *Host) OpenTab(ctx context.Context, url string) (int, error) {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return 0, fmt.Errorf("browser host not started")
	}
	bctx := h.context
	tabID := h.nextTab
	h.nextTab++
	h.mu.Unlock()

	pg, err := bctx.NewPage()
	if err != nil {
		return 0, fmt.Errorf("open tab %d: %w", tabID, err)
	}
	pg.SetDefaultTimeout(DefaultTimeout)

	p := newLivePage(tabID, pg, h.log)
	if err := h.watch(p); err != nil {
		pg.Close()
		return 0, fmt.Errorf("tab %d: %w", tabID, err)
	}

	if _, err := pg.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		pg.Close()
		return 0, fmt.Errorf("navigate tab %d to %s: %w", tabID, url, err)
	}

	html, err := p.DocumentHTML(ctx)
	if err != nil {
		h.log.Warnf("tab %d: seed serialization: %v", tabID, err)
	} else {
		p.seed(html)
	}

	h.mu.Lock()
	h.pages[tabID] = p
	h.mu.Unlock()
	h.log.Infof("tab %d opened at %s", tabID, url)
	return tabID, nil
}

// watch installs the change binding, the observer init script, and the
// console and lifecycle listeners on a fresh page.
func (h *Host) watch(p *livePage) error {
	err := p.pw.ExposeBinding(changeBinding, func(_ *playwright.BindingSource, args ...interface{}) interface{} {
		if len(args) > 0 {
			if html, ok := args[0].(string); ok {
				p.handleChanged(html)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("expose change binding: %w", err)
	}
	if err := p.pw.AddInitScript(playwright.Script{Content: playwright.String(observerJS)}); err != nil {
		return fmt.Errorf("install mutation observer: %w", err)
	}
	p.pw.OnConsole(p.handleConsole)
	p.pw.OnLoad(func(playwright.Page) {
		go h.handleLoad(p)
	})
	p.pw.OnClose(func(playwright.Page) {
		h.mu.Lock()
		delete(h.pages, p.tabID)
		h.mu.Unlock()
		h.log.Infof("tab %d closed", p.tabID)
	})
	return nil
}

// handleLoad runs after every full navigation. Injected styles are
// reinstated first, then the registered scripts matching the new URL are
// replayed, standing in for the persistent user-script world Playwright
// lacks.
func (h *Host) handleLoad(p *livePage) {
	ctx := context.Background()
	p.reapplyStyles(ctx)

	scripts, err := h.registry.matching(ctx, p.pw.URL())
	if err != nil {
		h.log.Errorf("tab %d: list scripts on load: %v", p.tabID, err)
		return
	}
	for _, s := range scripts {
		if _, err := p.pw.Evaluate(s.Code); err != nil {
			h.log.Warnf("tab %d: inject script %s: %v", p.tabID, s.ID, err)
		}
	}
}

// Page returns the live handle for tabID.
func (h *Host) Page(tabID int) (host.Page, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pages[tabID]
	if !ok {
		return nil, false
	}
	return p, true
}

// CloseTab closes the page for tabID and forgets it.
func (h *Host) CloseTab(tabID int) error {
	h.mu.Lock()
	p, ok := h.pages[tabID]
	delete(h.pages, tabID)
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("tab %d not found", tabID)
	}
	if err := p.pw.Close(); err != nil {
		return fmt.Errorf("close tab %d: %w", tabID, err)
	}
	return nil
}

// Registry returns the simulated user-script facility. The lifecycle
// reconciler registers into it; the host replays matching entries on load.
func (h *Host) Registry() host.ScriptRegistry {
	return h.registry
}

// Shutdown closes every tab, the context, the browser, and stops the
// Playwright driver.
func (h *Host) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for tabID, p := range h.pages {
		p.pw.Close()
		delete(h.pages, tabID)
	}
	if h.context != nil {
		h.context.Close()
		h.context = nil
	}
	if h.browser != nil {
		h.browser.Close()
		h.browser = nil
	}
	if h.pw != nil {
		if err := h.pw.Stop(); err != nil {
			return fmt.Errorf("stop playwright: %w", err)
		}
		h.pw = nil
	}
	h.started = false
	return nil
}
