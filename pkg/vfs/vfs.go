// Package vfs exposes a live web page and its saved artifacts as a small
// versioned filesystem. Paths follow /{domain}/{urlPath}/{leaf}; leaves are
// the live document (page.html), the console ring (console.log), session
// files (screenshot.png, plan.md), and persisted scripts and styles. Every
// file carries a version for optimistic concurrency.
package vfs

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/entrhq/webforge/pkg/dom"
	"github.com/entrhq/webforge/pkg/host"
)

// Evaluator runs JavaScript in the attached page's principal world and
// returns the completion value serialized to a string.
type Evaluator func(ctx context.Context, code string) (string, error)

// VFS is the filesystem view for one attached page. Persistent data is
// shared through the DomainStore; console and session state belong to the
// tab this instance serves.
type VFS struct {
	store   *DomainStore
	session *Session
	console *ConsoleBuffer
	page    host.Page
	eval    Evaluator
	loc     Location

	mu          sync.Mutex
	cachedVer   uint64
	cachedPage  string
	injectedIDs map[string]bool
}

// Option configures a VFS.
type Option func(*VFS)

// WithPage attaches the live page handle.
func WithPage(p host.Page) Option {
	return func(v *VFS) { v.page = p }
}

// WithConsole supplies the tab's console buffer.
func WithConsole(c *ConsoleBuffer) Option {
	return func(v *VFS) { v.console = c }
}

// WithSession supplies the tab's session file set.
func WithSession(s *Session) Option {
	return func(v *VFS) { v.session = s }
}

// WithEvaluator routes main-world execution through fn instead of the
// attached page handle. The page worker uses this to forward execution
// to the context that owns the principal-world channel.
func WithEvaluator(fn Evaluator) Option {
	return func(v *VFS) { v.eval = fn }
}

// New builds a VFS rooted at loc. Without options it has no live page and
// fresh console/session state.
func New(store *DomainStore, loc Location, opts ...Option) *VFS {
	v := &VFS{
		store:       store,
		loc:         Location{Domain: loc.Domain, URLPath: NormalizeURLPath(loc.URLPath)},
		injectedIDs: make(map[string]bool),
	}
	for _, o := range opts {
		o(v)
	}
	if v.console == nil {
		v.console = NewConsoleBuffer()
	}
	if v.session == nil {
		v.session = NewSession()
	}
	return v
}

// LocationFromURL derives the VFS location from a page URL.
func LocationFromURL(rawURL string) (Location, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Location{}, fmt.Errorf("parse url: %w", err)
	}
	if u.Hostname() == "" {
		return Location{}, fmt.Errorf("url %q has no host", rawURL)
	}
	return Location{Domain: u.Hostname(), URLPath: NormalizeURLPath(u.Path)}, nil
}

// Location returns the attached page's location.
func (v *VFS) Location() Location { return v.loc }

// Console returns the tab's console buffer.
func (v *VFS) Console() *ConsoleBuffer { return v.console }

// Store returns the shared persistent store.
func (v *VFS) Store() *DomainStore { return v.store }

// parse resolves a raw path against the attached location and enforces
// domain isolation.
func (v *VFS) parse(raw string) (*PathInfo, error) {
	info, err := ParsePath(raw, v.loc)
	if err != nil {
		return nil, err
	}
	if info.Domain != v.loc.Domain {
		return nil, permissionDenied(info.Full, "path is outside the current page's domain %q", v.loc.Domain)
	}
	return info, nil
}

// formattedPage returns the formatted serialization of the live document,
// cached per page version.
func (v *VFS) formattedPage(ctx context.Context) (string, int64, error) {
	if v.page == nil {
		return "", 0, notFound("page.html", "no live page is attached")
	}
	ver := v.page.Version()

	v.mu.Lock()
	if v.cachedPage != "" && v.cachedVer == ver {
		content := v.cachedPage
		v.mu.Unlock()
		return content, int64(ver), nil
	}
	v.mu.Unlock()

	raw, err := v.page.DocumentHTML(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("read page document: %w", err)
	}
	formatted, err := dom.FormatHTML(raw)
	if err != nil {
		return "", 0, fmt.Errorf("format page document: %w", err)
	}

	v.mu.Lock()
	v.cachedVer = ver
	v.cachedPage = formatted
	v.mu.Unlock()
	return formatted, int64(ver), nil
}

// NamedFile is a stored file resolved for the attached location.
type NamedFile struct {
	Name string
	File *File
	// PatternKey is the stored urlPath key the file came from. For exact
	// entries it equals the location's urlPath.
	PatternKey string
	// Params holds route parameters extracted when PatternKey is dynamic.
	Params map[string]string
}

// MatchingFiles returns every stored file of the given kind that serves the
// attached location: the exact entry's files plus files from each matching
// pattern in priority order. When a name appears in several entries the
// most specific one wins.
func (v *VFS) MatchingFiles(ctx context.Context, kind FileKind) ([]NamedFile, error) {
	return v.matchingFilesAt(ctx, v.loc.URLPath, kind)
}

func (v *VFS) matchingFilesAt(ctx context.Context, urlPath string, kind FileKind) ([]NamedFile, error) {
	data, err := v.store.Domain(ctx, v.loc.Domain)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []NamedFile

	appendEntry := func(key string, params map[string]string) {
		entry, ok := data.Paths[key]
		if !ok {
			return
		}
		files := entry.Scripts
		if kind == KindStyle {
			files = entry.Styles
		}
		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, NamedFile{Name: name, File: files[name], PatternKey: key, Params: params})
		}
	}

	want := NormalizeURLPath(urlPath)
	for key := range data.Paths {
		if NormalizeURLPath(key) == want {
			appendEntry(key, nil)
			break
		}
	}
	for _, m := range MatchRoutes(urlPath, data.PathKeys()) {
		if NormalizeURLPath(m.PatternKey) == want {
			continue
		}
		appendEntry(m.PatternKey, m.Params)
	}
	return out, nil
}

// resolveStored locates the stored entry serving urlPath and returns the
// file of the given kind and name along with the entry's storage key.
func (v *VFS) resolveStored(ctx context.Context, urlPath string, kind FileKind, name string) (string, *File, error) {
	data, err := v.store.Domain(ctx, v.loc.Domain)
	if err != nil {
		return "", nil, err
	}
	key, _ := ResolveRoute(urlPath, data.PathKeys())
	if key == "" {
		return "", nil, nil
	}
	entry := data.Paths[key]
	if entry == nil {
		return key, nil, nil
	}
	files := entry.Scripts
	if kind == KindStyle {
		files = entry.Styles
	}
	f, ok := files[name]
	if !ok {
		// The best-priority entry may not hold this particular file; fall
		// back through the remaining matches like load-time enumeration.
		for _, m := range MatchRoutes(urlPath, data.PathKeys()) {
			entry := data.Paths[m.PatternKey]
			if entry == nil {
				continue
			}
			files := entry.Scripts
			if kind == KindStyle {
				files = entry.Styles
			}
			if f, ok := files[name]; ok {
				return m.PatternKey, f, nil
			}
		}
		return key, nil, nil
	}
	return key, f, nil
}
