package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/webforge/pkg/dom"
)

// transparentPixelPNG is the screenshot payload of the in-memory page.
const transparentPixelPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// MemoryPage is an in-process Page backed by a parsed document. It mirrors
// the live host's observation model: the version bumps only when a mutation
// actually changes the serialized document, so spurious notifications do
// not advance it.
type MemoryPage struct {
	mu             sync.Mutex
	info           PageInfo
	doc            *dom.Document
	version        uint64
	lastSerialized string

	listenerMu sync.Mutex
	nextID     int
	listeners  map[int]func(ConsoleMessage)

	evalHook func(js string) (string, error)
	evalLog  []string
}

// NewMemoryPage parses rawHTML into a page handle starting at version 1.
func NewMemoryPage(tabID int, url, title, rawHTML string) (*MemoryPage, error) {
	doc, err := dom.Parse(rawHTML)
	if err != nil {
		return nil, err
	}
	return &MemoryPage{
		info:           PageInfo{TabID: tabID, URL: url, Title: title},
		doc:            doc,
		version:        1,
		lastSerialized: doc.HTML(),
		listeners:      make(map[int]func(ConsoleMessage)),
	}, nil
}

func (p *MemoryPage) Info() PageInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := p.info
	if t := p.doc.Title(); t != "" {
		info.Title = t
	}
	return info
}

func (p *MemoryPage) Version() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

func (p *MemoryPage) DocumentHTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.HTML(), nil
}

func (p *MemoryPage) ReplaceDocument(_ context.Context, html string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.doc.ReplaceWith(html); err != nil {
		return err
	}
	p.bumpIfChanged()
	return nil
}

func (p *MemoryPage) SetElementHTML(_ context.Context, selector, inner string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.doc.QuerySelector(selector)
	if n == nil {
		return fmt.Errorf("no element matches selector %q", selector)
	}
	if err := dom.SetInnerHTML(n, inner); err != nil {
		return err
	}
	p.bumpIfChanged()
	return nil
}

func (p *MemoryPage) InjectStyle(_ context.Context, id, css string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing := p.doc.FindByID(id); existing != nil {
		if err := dom.SetInnerHTML(existing, css); err != nil {
			return err
		}
		p.bumpIfChanged()
		return nil
	}
	head := p.doc.Head()
	if head == nil {
		return fmt.Errorf("document has no head")
	}
	head.AppendChild(dom.NewStyleElement(id, css))
	p.bumpIfChanged()
	return nil
}

func (p *MemoryPage) RemoveStyle(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing := p.doc.FindByID(id); existing != nil {
		dom.RemoveNode(existing)
		p.bumpIfChanged()
	}
	return nil
}

// EvalMainWorld runs the configured eval hook, or records the script and
// returns "undefined" when no hook is set.
func (p *MemoryPage) EvalMainWorld(_ context.Context, js string) (string, error) {
	p.mu.Lock()
	hook := p.evalHook
	if hook == nil {
		p.evalLog = append(p.evalLog, js)
	}
	p.mu.Unlock()

	if hook == nil {
		return "undefined", nil
	}
	out, err := hook(js)

	p.mu.Lock()
	p.bumpIfChanged()
	p.mu.Unlock()
	return out, err
}

func (p *MemoryPage) CaptureScreenshot(context.Context) (string, error) {
	return transparentPixelPNG, nil
}

func (p *MemoryPage) OnConsole(fn func(ConsoleMessage)) func() {
	p.listenerMu.Lock()
	defer p.listenerMu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.listenerMu.Lock()
		defer p.listenerMu.Unlock()
		delete(p.listeners, id)
	}
}

// EmitConsole delivers a console message to all listeners. Tests use it to
// simulate page logging.
func (p *MemoryPage) EmitConsole(level, text string) {
	msg := ConsoleMessage{Level: level, Text: text, Time: time.Now().UnixMilli()}
	p.listenerMu.Lock()
	fns := make([]func(ConsoleMessage), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.listenerMu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

// SetEvalHook installs the main-world evaluator used by EvalMainWorld.
func (p *MemoryPage) SetEvalHook(fn func(js string) (string, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evalHook = fn
}

// EvalLog returns scripts evaluated while no hook was installed.
func (p *MemoryPage) EvalLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.evalLog))
	copy(out, p.evalLog)
	return out
}

func (p *MemoryPage) bumpIfChanged() {
	s := p.doc.HTML()
	if s != p.lastSerialized {
		p.version++
		p.lastSerialized = s
	}
}
