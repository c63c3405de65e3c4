package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/webforge/pkg/host"
	"github.com/entrhq/webforge/pkg/logging"
)

// documentHTMLJS serializes the full document from the root element down.
const documentHTMLJS = `document.documentElement.outerHTML`

// replaceDocumentJS reparses the incoming HTML and swaps head and body
// contents plus the root element's attributes. Attribute copying is wrapped
// per attribute so one unwritable attribute cannot abort the rest of the
// replacement.
const replaceDocumentJS = `(html) => {
	const parsed = new DOMParser().parseFromString(html, 'text/html');
	const root = document.documentElement;
	for (const attr of Array.from(root.attributes)) {
		try { root.removeAttribute(attr.name); } catch (err) {}
	}
	for (const attr of Array.from(parsed.documentElement.attributes)) {
		try { root.setAttribute(attr.name, attr.value); } catch (err) {}
	}
	document.head.innerHTML = parsed.head.innerHTML;
	document.body.innerHTML = parsed.body.innerHTML;
}`

// setElementHTMLJS replaces the innerHTML of the first selector match and
// throws when nothing matches so the failure surfaces as an eval error.
const setElementHTMLJS = `([selector, html]) => {
	const el = document.querySelector(selector);
	if (!el) {
		throw new Error('no element matches selector ' + JSON.stringify(selector));
	}
	el.innerHTML = html;
}`

// injectStyleJS upserts a <style> element by id into head.
const injectStyleJS = `([id, css]) => {
	let el = document.getElementById(id);
	if (!el) {
		el = document.createElement('style');
		el.id = id;
		document.head.appendChild(el);
	}
	el.textContent = css;
}`

// removeStyleJS removes the <style> element with the given id, if present.
const removeStyleJS = `(id) => {
	const el = document.getElementById(id);
	if (el) {
		el.remove();
	}
}`

// observerJS is installed as an init script on every new document. It wires
// a MutationObserver on the root element and reports the serialized document
// through the exposed binding on every mutation batch. The host deduplicates
// reports against the last serialization, so callback frequency only costs
// round-trips, never spurious version bumps.
const observerJS = `(() => {
	const report = () => {
		try {
			window.` + changeBinding + `(document.documentElement.outerHTML);
		} catch (err) {}
	};
	const start = () => {
		if (!document.documentElement) {
			return;
		}
		new MutationObserver(report).observe(document.documentElement, {
			subtree: true,
			childList: true,
			attributes: true,
			characterData: true,
		});
	};
	if (document.readyState === 'loading') {
		document.addEventListener('DOMContentLoaded', start, { once: true });
	} else {
		start();
	}
})();`

// changeBinding is the name of the binding the observer script reports
// through.
const changeBinding = "__webforgeDocumentChanged"

// livePage adapts one Playwright page to the host.Page contract. The version
// counter advances when the serialized document changes, whether the change
// came from an agent mutation or from the page's own scripts; mutating
// methods re-serialize synchronously so the version a caller reads after a
// write already reflects that write.
type livePage struct {
	tabID int
	pw    playwright.Page
	log   *logging.Logger

	mu       sync.Mutex
	version  uint64
	lastHTML string
	styles   map[string]string

	listenerMu sync.Mutex
	nextID     int
	listeners  map[int]func(host.ConsoleMessage)
}

func newLivePage(tabID int, pw playwright.Page, log *logging.Logger) *livePage {
	return &livePage{
		tabID:     tabID,
		pw:        pw,
		log:       log,
		styles:    make(map[string]string),
		listeners: make(map[int]func(host.ConsoleMessage)),
	}
}

func (p *livePage) Info() host.PageInfo {
	title, err := p.pw.Title()
	if err != nil {
		title = ""
	}
	return host.PageInfo{TabID: p.tabID, URL: p.pw.URL(), Title: title}
}

func (p *livePage) Version() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

func (p *livePage) DocumentHTML(context.Context) (string, error) {
	res, err := p.pw.Evaluate(documentHTMLJS)
	if err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	html, ok := res.(string)
	if !ok {
		return "", fmt.Errorf("serialize document: unexpected result type %T", res)
	}
	return html, nil
}

func (p *livePage) ReplaceDocument(ctx context.Context, html string) error {
	if _, err := p.pw.Evaluate(replaceDocumentJS, html); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return p.refresh(ctx)
}

func (p *livePage) SetElementHTML(ctx context.Context, selector, inner string) error {
	if _, err := p.pw.Evaluate(setElementHTMLJS, []interface{}{selector, inner}); err != nil {
		return fmt.Errorf("set element html: %w", err)
	}
	return p.refresh(ctx)
}

func (p *livePage) InjectStyle(ctx context.Context, id, css string) error {
	if _, err := p.pw.Evaluate(injectStyleJS, []interface{}{id, css}); err != nil {
		return fmt.Errorf("inject style %s: %w", id, err)
	}
	p.mu.Lock()
	p.styles[id] = css
	p.mu.Unlock()
	return p.refresh(ctx)
}

func (p *livePage) RemoveStyle(ctx context.Context, id string) error {
	if _, err := p.pw.Evaluate(removeStyleJS, id); err != nil {
		return fmt.Errorf("remove style %s: %w", id, err)
	}
	p.mu.Lock()
	delete(p.styles, id)
	p.mu.Unlock()
	return p.refresh(ctx)
}

func (p *livePage) EvalMainWorld(ctx context.Context, js string) (string, error) {
	res, err := p.pw.Evaluate(js)
	if err != nil {
		return "", err
	}
	if rerr := p.refresh(ctx); rerr != nil {
		p.log.Warnf("tab %d: refresh after eval: %v", p.tabID, rerr)
	}
	return formatEvalResult(res), nil
}

func (p *livePage) CaptureScreenshot(context.Context) (string, error) {
	data, err := p.pw.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
	if err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (p *livePage) OnConsole(fn func(host.ConsoleMessage)) func() {
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

// handleConsole fans one Playwright console event out to the registered
// listeners. Playwright has no message timestamp, so receipt time stands in.
func (p *livePage) handleConsole(msg playwright.ConsoleMessage) {
	out := host.ConsoleMessage{
		Level: normalizeLevel(msg.Type()),
		Text:  msg.Text(),
		Time:  time.Now().UnixMilli(),
	}
	p.listenerMu.Lock()
	fns := make([]func(host.ConsoleMessage), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.listenerMu.Unlock()
	for _, fn := range fns {
		fn(out)
	}
}

// handleChanged receives the serialized document from the observer binding.
func (p *livePage) handleChanged(html string) {
	p.bumpIfChanged(html)
}

// refresh re-serializes the document and advances the version if the
// serialization moved. Mutating methods call it so a Version read issued
// right after a write already sees the bump instead of racing the observer.
func (p *livePage) refresh(ctx context.Context) error {
	html, err := p.DocumentHTML(ctx)
	if err != nil {
		return err
	}
	p.bumpIfChanged(html)
	return nil
}

func (p *livePage) bumpIfChanged(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if html != p.lastHTML {
		p.lastHTML = html
		p.version++
	}
}

// seed records the post-navigation serialization without counting the load
// itself as a mutation. The version still lands at 1 or above so the first
// write has a baseline to check against.
func (p *livePage) seed(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastHTML = html
	if p.version == 0 {
		p.version = 1
	}
}

// reapplyStyles reinstates the injected styles after a full navigation wipes
// the document.
func (p *livePage) reapplyStyles(ctx context.Context) {
	p.mu.Lock()
	styles := make(map[string]string, len(p.styles))
	for id, css := range p.styles {
		styles[id] = css
	}
	p.mu.Unlock()
	for id, css := range styles {
		if _, err := p.pw.Evaluate(injectStyleJS, []interface{}{id, css}); err != nil {
			p.log.Warnf("tab %d: reapply style %s: %v", p.tabID, id, err)
		}
	}
}

// formatEvalResult renders an Evaluate completion value for tool output.
// Strings pass through as-is, nil reads as undefined, everything else is
// formatted as JSON.
func formatEvalResult(res interface{}) string {
	if res == nil {
		return "undefined"
	}
	if s, ok := res.(string); ok {
		return s
	}
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", res)
	}
	return string(out)
}

// normalizeLevel maps Playwright console types onto the console ring's level
// set. Chromium reports "warning" where the ring stores "warn"; unknown
// types such as dir or trace fold into log.
func normalizeLevel(t string) string {
	switch t {
	case "log", "info", "error", "debug":
		return t
	case "warn", "warning":
		return "warn"
	default:
		return "log"
	}
}
