package vfs

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// styleIDPrefix namespaces injected <style> elements so stale ones can be
// recognized and removed.
const styleIDPrefix = "wf-style-"

var styleIDSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// StyleElementID derives the stable element id for a stored style name.
// One name maps to exactly one element; rewriting replaces the prior node.
func StyleElementID(name string) string {
	return styleIDPrefix + styleIDSanitizer.ReplaceAllString(name, "-")
}

// Exec reads a stored script and evaluates it in the attached page's main
// world. A Content-Security-Policy failure is annotated to point at the
// registration path, which injects at page load without eval.
func (v *VFS) Exec(ctx context.Context, scriptPath string) (string, error) {
	info, err := v.parse(scriptPath)
	if err != nil {
		return "", err
	}
	if info.IsDir || info.Kind != KindScript {
		return "", invalidPath(info.Full, "only scripts/*.js files can be executed")
	}

	_, f, err := v.resolveStored(ctx, info.URLPath, KindScript, info.FileName)
	if err != nil {
		return "", err
	}
	if f == nil {
		return "", notFound(info.Full, "file does not exist")
	}

	out, err := v.EvalMainWorld(ctx, f.Content)
	if err != nil && isCSPError(err) {
		return "", fmt.Errorf(
			"%v; the page's Content Security Policy blocked inline evaluation, but the saved script still runs at page load through registration", err)
	}
	return out, err
}

// EvalMainWorld runs code in the page's principal world, through the
// configured evaluator when one is set and the page handle otherwise.
func (v *VFS) EvalMainWorld(ctx context.Context, code string) (string, error) {
	if v.eval != nil {
		return v.eval(ctx, code)
	}
	if v.page == nil {
		return "", notFound(v.loc.Dir(), "no live page is attached")
	}
	return v.page.EvalMainWorld(ctx, code)
}

func isCSPError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"content security policy", "unsafe-eval", "evalerror", "csp"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// SyncStyles makes the attached page's <style> elements mirror the enabled
// stored styles serving this location: matching styles are upserted and
// previously injected ones that no longer apply are removed. Injection is
// best effort; the first error is returned after the full pass.
func (v *VFS) SyncStyles(ctx context.Context) error {
	if v.page == nil {
		return nil
	}
	files, err := v.MatchingFiles(ctx, KindStyle)
	if err != nil {
		return err
	}

	expected := make(map[string]bool, len(files))
	var firstErr error
	for _, nf := range files {
		if !nf.File.IsEnabled() {
			continue
		}
		id := StyleElementID(nf.Name)
		expected[id] = true
		if err := v.page.InjectStyle(ctx, id, nf.File.Content); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("inject style %s: %w", nf.Name, err)
		}
	}

	v.mu.Lock()
	stale := make([]string, 0)
	for id := range v.injectedIDs {
		if !expected[id] {
			stale = append(stale, id)
		}
	}
	v.injectedIDs = expected
	v.mu.Unlock()

	for _, id := range stale {
		if err := v.page.RemoveStyle(ctx, id); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove style %s: %w", id, err)
		}
	}
	return firstErr
}

// CaptureScreenshot captures the attached page and stores it as the
// session screenshot for this location.
func (v *VFS) CaptureScreenshot(ctx context.Context) (*WriteResult, error) {
	if v.page == nil {
		return nil, notFound(v.loc.Dir()+"/screenshot.png", "no live page is attached")
	}
	dataURL, err := v.page.CaptureScreenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	version := v.session.Put(KindScreenshot, v.loc, dataURL)
	return &WriteResult{Path: v.loc.Dir() + "/screenshot.png", Version: version}, nil
}
