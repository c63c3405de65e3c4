package host

import "context"

// PageInfo identifies a live page.
type PageInfo struct {
	TabID int
	URL   string
	Title string
}

// ConsoleMessage is one console entry emitted by a page.
type ConsoleMessage struct {
	// Level is the console method name: log, info, warn, error, debug.
	Level string
	Text  string
	// Time is milliseconds since the Unix epoch.
	Time int64
}

// Page is a handle to one live page. Mutating operations bump the page
// version when they change the serialized document; the version is the
// basis for optimistic concurrency on page edits.
type Page interface {
	Info() PageInfo
	// Version returns the current document version. It increments
	// monotonically on every observed document mutation.
	Version() uint64
	// DocumentHTML returns the document element's outerHTML.
	DocumentHTML(ctx context.Context) (string, error)
	// ReplaceDocument parses html and replaces head and body contents plus
	// the root element's attributes.
	ReplaceDocument(ctx context.Context, html string) error
	// SetElementHTML replaces the innerHTML of the first element matching
	// selector.
	SetElementHTML(ctx context.Context, selector, inner string) error
	// InjectStyle upserts a <style> element with the given id in head.
	InjectStyle(ctx context.Context, id, css string) error
	// RemoveStyle removes the <style> element with the given id, if any.
	RemoveStyle(ctx context.Context, id string) error
	// EvalMainWorld evaluates js in the page's main world and returns the
	// completion value serialized to a string.
	EvalMainWorld(ctx context.Context, js string) (string, error)
	// CaptureScreenshot returns the viewport as a PNG data URL.
	CaptureScreenshot(ctx context.Context) (string, error)
	// OnConsole registers a console listener and returns its removal func.
	OnConsole(fn func(ConsoleMessage)) (remove func())
}
