package vfs

import (
	"context"
)

// WriteResult is a successful Write.
type WriteResult struct {
	Path    string `json:"path"`
	Version int64  `json:"version"`
}

// Write stores content at path. expectedVersion must equal the current
// version; 0 creates and only succeeds when no file exists. Writing a style
// also refreshes its injected <style> element when the attached page
// matches.
func (v *VFS) Write(ctx context.Context, path, content string, expectedVersion int64) (*WriteResult, error) {
	info, err := v.parse(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir {
		return nil, invalidPath(info.Full, "is a directory; write to a file inside it")
	}
	if !info.Kind.CanWrite() {
		if info.Kind == KindScreenshot {
			return nil, permissionDenied(info.Full, "screenshots are captured with the screenshot tool, not written")
		}
		return nil, permissionDenied(info.Full, "console output is read-only")
	}

	switch info.Kind {
	case KindPage:
		return v.writePage(ctx, info, content, expectedVersion)
	case KindPlan:
		return v.writeSession(info, content, expectedVersion)
	case KindScript, KindStyle:
		return v.writeStored(ctx, info, content, expectedVersion)
	}
	return nil, invalidPath(info.Full, "unwritable file kind %q", info.Kind)
}

func (v *VFS) writePage(ctx context.Context, info *PathInfo, content string, expectedVersion int64) (*WriteResult, error) {
	if v.page == nil {
		return nil, notFound(info.Full, "no live page is attached")
	}
	current := int64(v.page.Version())
	if expectedVersion != current {
		return nil, versionMismatch(info.Full, expectedVersion, current)
	}
	if err := v.page.ReplaceDocument(ctx, content); err != nil {
		return nil, invalidPath(info.Full, "replace document: %v", err)
	}
	return &WriteResult{Path: info.Full, Version: int64(v.page.Version())}, nil
}

func (v *VFS) writeSession(info *PathInfo, content string, expectedVersion int64) (*WriteResult, error) {
	loc := Location{Domain: info.Domain, URLPath: info.URLPath}
	if f, ok := v.session.Get(info.Kind, loc); ok {
		if expectedVersion != f.Version {
			return nil, versionMismatch(info.Full, expectedVersion, f.Version)
		}
	} else if expectedVersion != 0 {
		return nil, versionMismatch(info.Full, expectedVersion, 0)
	}
	version := v.session.Put(info.Kind, loc, content)
	return &WriteResult{Path: info.Full, Version: version}, nil
}

// writeStored updates a persisted script or style. When the file resolves
// through a route pattern the pattern's entry is updated, keeping
// read-modify-write cycles coherent; creation always lands at the path's
// own urlPath.
func (v *VFS) writeStored(ctx context.Context, info *PathInfo, content string, expectedVersion int64) (*WriteResult, error) {
	resolvedKey, existing, err := v.resolveStored(ctx, info.URLPath, info.Kind, info.FileName)
	if err != nil {
		return nil, err
	}

	targetKey := info.URLPath
	if existing != nil {
		targetKey = resolvedKey
	}
	if existing == nil && expectedVersion != 0 {
		return nil, versionMismatch(info.Full, expectedVersion, 0)
	}

	var version int64
	err = v.store.Update(ctx, info.Domain, func(data *DomainData) error {
		files := data.Entry(targetKey).files(info.Kind)
		if f, ok := files[info.FileName]; ok {
			if expectedVersion != f.Version {
				return versionMismatch(info.Full, expectedVersion, f.Version)
			}
			f.bump(content)
			version = f.Version
			return nil
		}
		if expectedVersion != 0 {
			return versionMismatch(info.Full, expectedVersion, 0)
		}
		f := newFile(content)
		files[info.FileName] = f
		version = f.Version
		return nil
	})
	if err != nil {
		return nil, err
	}

	if info.Kind == KindStyle {
		v.refreshStyle(ctx, targetKey, info.FileName, content)
	}
	return &WriteResult{Path: info.Full, Version: version}, nil
}

// refreshStyle re-injects a style into the attached page when its entry
// serves the page's location. Failures are swallowed; injection is a best
// effort convenience and the stored file is already durable.
func (v *VFS) refreshStyle(ctx context.Context, entryKey, name, content string) {
	if v.page == nil {
		return
	}
	if !v.entryServesLocation(entryKey) {
		return
	}
	id := StyleElementID(name)
	if err := v.page.InjectStyle(ctx, id, content); err == nil {
		v.mu.Lock()
		v.injectedIDs[id] = true
		v.mu.Unlock()
	}
}

// entryServesLocation reports whether a stored urlPath key serves the
// attached page's location, exactly or via its pattern.
func (v *VFS) entryServesLocation(entryKey string) bool {
	if NormalizeURLPath(entryKey) == NormalizeURLPath(v.loc.URLPath) {
		return true
	}
	p, err := CompileRoute(entryKey)
	if err != nil {
		return false
	}
	_, ok := p.Match(v.loc.URLPath)
	return ok
}
