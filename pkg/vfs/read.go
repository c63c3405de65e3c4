package vfs

import (
	"context"
	"fmt"
	"strings"
)

// MaxReadChars bounds a single Read's content to keep downstream token use
// in check.
const MaxReadChars = 15000

// ReadResult is a successful Read.
type ReadResult struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Version int64  `json:"version"`
	// Lines is the total line count of the full file, before any
	// offset/limit windowing.
	Lines int `json:"lines"`
	// IsScreenshot marks data-URL content that callers should present as
	// an image rather than text.
	IsScreenshot bool `json:"isScreenshot,omitempty"`
}

// Read returns a file's content and version. offset and limit select a
// window of lines: offset is 0-indexed, the window ends before
// offset+limit. limit <= 0 means "to the end". Content longer than
// MaxReadChars fails with an advisory to use offset/limit or grep.
func (v *VFS) Read(ctx context.Context, path string, offset, limit int) (*ReadResult, error) {
	info, err := v.parse(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir {
		return nil, invalidPath(info.Full, "is a directory; read a file inside it")
	}

	content, version, err := v.fullContent(ctx, info)
	if err != nil {
		return nil, err
	}

	if info.Kind == KindScreenshot {
		// Screenshot data URLs bypass line windowing and the size cap;
		// they are consumed as images, not text.
		return &ReadResult{
			Path:         info.Full,
			Content:      content,
			Version:      version,
			Lines:        1,
			IsScreenshot: true,
		}, nil
	}

	lines := strings.Split(content, "\n")
	totalLines := len(lines)

	if offset > 0 || limit > 0 {
		start := offset
		if start < 0 {
			start = 0
		}
		if start > len(lines) {
			start = len(lines)
		}
		end := len(lines)
		if limit > 0 && start+limit < end {
			end = start + limit
		}
		content = strings.Join(lines[start:end], "\n")
	}

	if len(content) > MaxReadChars {
		return nil, fmt.Errorf(
			"content is %d characters, over the %d character limit; use offset and limit to read a window of the %d lines, or grep to locate what you need",
			len(content), MaxReadChars, totalLines)
	}

	return &ReadResult{
		Path:    info.Full,
		Content: content,
		Version: version,
		Lines:   totalLines,
	}, nil
}

// fullContent fetches a file's complete content and version with no size
// cap. Grep runs on it directly so large pages stay searchable.
func (v *VFS) fullContent(ctx context.Context, info *PathInfo) (string, int64, error) {
	switch info.Kind {
	case KindPage:
		return v.formattedPage(ctx)

	case KindConsole:
		return v.console.Format(), v.console.Version(), nil

	case KindScreenshot:
		f, ok := v.session.Get(KindScreenshot, Location{Domain: info.Domain, URLPath: info.URLPath})
		if !ok {
			return "", 0, notFound(info.Full, "no screenshot captured for this page yet")
		}
		return f.Content, f.Version, nil

	case KindPlan:
		f, ok := v.session.Get(KindPlan, Location{Domain: info.Domain, URLPath: info.URLPath})
		if !ok {
			return "", 0, notFound(info.Full, "no plan exists for this page yet")
		}
		return f.Content, f.Version, nil

	case KindScript, KindStyle:
		_, f, err := v.resolveStored(ctx, info.URLPath, info.Kind, info.FileName)
		if err != nil {
			return "", 0, err
		}
		if f == nil {
			return "", 0, notFound(info.Full, "file does not exist")
		}
		return f.Content, f.Version, nil
	}
	return "", 0, invalidPath(info.Full, "unreadable file kind %q", info.Kind)
}

// Stat reports a file's existence and version without reading content.
func (v *VFS) Stat(ctx context.Context, path string) (int64, bool, error) {
	info, err := v.parse(path)
	if err != nil {
		return 0, false, err
	}
	if info.IsDir {
		return 0, false, nil
	}

	switch info.Kind {
	case KindPage:
		if v.page == nil {
			return 0, false, nil
		}
		return int64(v.page.Version()), true, nil
	case KindConsole:
		return v.console.Version(), true, nil
	case KindScreenshot, KindPlan:
		f, ok := v.session.Get(info.Kind, Location{Domain: info.Domain, URLPath: info.URLPath})
		if !ok {
			return 0, false, nil
		}
		return f.Version, true, nil
	case KindScript, KindStyle:
		_, f, err := v.resolveStored(ctx, info.URLPath, info.Kind, info.FileName)
		if err != nil || f == nil {
			return 0, false, err
		}
		return f.Version, true, nil
	}
	return 0, false, nil
}
