package vfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/entrhq/webforge/pkg/dom"
)

// AutoEditsName is the synthetic script regenerated from recorded page
// edits so they replay on future page loads.
const AutoEditsName = "_auto_edits.js"

// EditResult is a successful Edit.
type EditResult struct {
	Path         string `json:"path"`
	Version      int64  `json:"version"`
	Replacements int    `json:"replacements"`
	// Selector is set for page edits: the element the edit landed on.
	Selector string `json:"selector,omitempty"`
}

// Edit replaces old with new inside the file at path. Page edits walk the
// document for the most specific containing element and degrade through
// whitespace-tolerant matching; other files match literally. With
// replaceAll false exactly one occurrence must exist.
func (v *VFS) Edit(ctx context.Context, path, old, new string, expectedVersion int64, replaceAll bool) (*EditResult, error) {
	if old == "" {
		return nil, invalidPath(path, "old content must not be empty")
	}
	info, err := v.parse(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir {
		return nil, invalidPath(info.Full, "is a directory; edit a file inside it")
	}
	if !info.Kind.CanEdit() {
		if info.Kind == KindScreenshot {
			return nil, permissionDenied(info.Full, "screenshots cannot be edited")
		}
		return nil, permissionDenied(info.Full, "console output is read-only")
	}

	switch info.Kind {
	case KindPage:
		return v.editPage(ctx, info, old, new, expectedVersion, replaceAll)
	case KindPlan:
		return v.editSession(info, old, new, expectedVersion, replaceAll)
	case KindScript, KindStyle:
		return v.editStored(ctx, info, old, new, expectedVersion, replaceAll)
	}
	return nil, invalidPath(info.Full, "uneditable file kind %q", info.Kind)
}

func (v *VFS) editPage(ctx context.Context, info *PathInfo, old, new string, expectedVersion int64, replaceAll bool) (*EditResult, error) {
	if v.page == nil {
		return nil, notFound(info.Full, "no live page is attached")
	}
	current := int64(v.page.Version())
	if expectedVersion != current {
		return nil, versionMismatch(info.Full, expectedVersion, current)
	}

	raw, err := v.page.DocumentHTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page document: %w", err)
	}
	doc, err := dom.Parse(raw)
	if err != nil {
		return nil, invalidPath(info.Full, "parse page document: %v", err)
	}

	res, err := doc.Edit(old, new, replaceAll)
	if err != nil {
		if errors.Is(err, dom.ErrNoMatch) {
			return nil, notFound(info.Full, "old content not found in the page")
		}
		return nil, err
	}

	// Apply the already-edited element back to the live page. When the
	// derived selector cannot be resolved live, replace the whole document
	// from the edited copy instead of dropping the edit.
	if node := doc.QuerySelector(res.Selector); node != nil {
		err = v.page.SetElementHTML(ctx, res.Selector, dom.InnerHTML(node))
	} else {
		err = v.page.ReplaceDocument(ctx, doc.HTML())
	}
	if err != nil {
		return nil, fmt.Errorf("apply page edit: %w", err)
	}

	v.recordEdit(ctx, info.URLPath, EditRecord{
		Selector:   res.Selector,
		OldContent: old,
		NewContent: new,
		Timestamp:  nowMillis(),
	})

	return &EditResult{
		Path:         info.Full,
		Version:      int64(v.page.Version()),
		Replacements: res.Replacements,
		Selector:     res.Selector,
	}, nil
}

// recordEdit appends an edit record and regenerates the auto-edits script
// from the full record list. Failures are logged to the error return of the
// storage layer by the caller's store; the page edit itself already landed.
func (v *VFS) recordEdit(ctx context.Context, urlPath string, rec EditRecord) {
	_ = v.store.Update(ctx, v.loc.Domain, func(data *DomainData) error {
		entry := data.Entry(urlPath)
		entry.EditRecords = append(entry.EditRecords, rec)

		code := renderAutoEdits(entry.EditRecords)
		files := entry.files(KindScript)
		if f, ok := files[AutoEditsName]; ok {
			f.bump(code)
		} else {
			files[AutoEditsName] = newFile(code)
		}
		return nil
	})
}

// renderAutoEdits builds the replay script from recorded edits. The records
// are embedded as JSON; json.Marshal escapes angle brackets so the payload
// is inert wherever it lands.
func renderAutoEdits(records []EditRecord) string {
	payload, err := json.Marshal(records)
	if err != nil {
		payload = []byte("[]")
	}
	var sb strings.Builder
	sb.WriteString("// Generated from recorded page edits. Rewritten on every new edit.\n")
	sb.WriteString("(function () {\n")
	sb.WriteString("  var edits = ")
	sb.Write(payload)
	sb.WriteString(";\n")
	sb.WriteString("  function apply() {\n")
	sb.WriteString("    for (var i = 0; i < edits.length; i++) {\n")
	sb.WriteString("      var e = edits[i];\n")
	sb.WriteString("      var el = document.querySelector(e.selector);\n")
	sb.WriteString("      if (!el) continue;\n")
	sb.WriteString("      if (el.innerHTML.indexOf(e.oldContent) !== -1) {\n")
	sb.WriteString("        el.innerHTML = el.innerHTML.split(e.oldContent).join(e.newContent);\n")
	sb.WriteString("      }\n")
	sb.WriteString("    }\n")
	sb.WriteString("  }\n")
	sb.WriteString("  if (document.readyState === 'loading') {\n")
	sb.WriteString("    document.addEventListener('DOMContentLoaded', apply);\n")
	sb.WriteString("  } else {\n")
	sb.WriteString("    apply();\n")
	sb.WriteString("  }\n")
	sb.WriteString("})();\n")
	return sb.String()
}

func (v *VFS) editSession(info *PathInfo, old, new string, expectedVersion int64, replaceAll bool) (*EditResult, error) {
	loc := Location{Domain: info.Domain, URLPath: info.URLPath}
	f, ok := v.session.Get(info.Kind, loc)
	if !ok {
		return nil, notFound(info.Full, "file does not exist")
	}
	if expectedVersion != f.Version {
		return nil, versionMismatch(info.Full, expectedVersion, f.Version)
	}

	updated, count, err := literalReplace(f.Content, old, new, replaceAll)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, notFound(info.Full, "old content not found in file")
	}
	version := v.session.Put(info.Kind, loc, updated)
	return &EditResult{Path: info.Full, Version: version, Replacements: count}, nil
}

func (v *VFS) editStored(ctx context.Context, info *PathInfo, old, new string, expectedVersion int64, replaceAll bool) (*EditResult, error) {
	resolvedKey, existing, err := v.resolveStored(ctx, info.URLPath, info.Kind, info.FileName)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, notFound(info.Full, "file does not exist")
	}
	if expectedVersion != existing.Version {
		return nil, versionMismatch(info.Full, expectedVersion, existing.Version)
	}

	updated, count, err := literalReplace(existing.Content, old, new, replaceAll)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, notFound(info.Full, "old content not found in file")
	}

	var version int64
	err = v.store.Update(ctx, info.Domain, func(data *DomainData) error {
		files := data.Entry(resolvedKey).files(info.Kind)
		f, ok := files[info.FileName]
		if !ok {
			return notFound(info.Full, "file does not exist")
		}
		if f.Version != existing.Version {
			return versionMismatch(info.Full, expectedVersion, f.Version)
		}
		f.bump(updated)
		version = f.Version
		return nil
	})
	if err != nil {
		return nil, err
	}

	if info.Kind == KindStyle {
		v.refreshStyle(ctx, resolvedKey, info.FileName, updated)
	}
	return &EditResult{Path: info.Full, Version: version, Replacements: count}, nil
}

// literalReplace is the non-page matcher: literal substring only. A zero
// count is returned rather than an error so callers can name the path.
func literalReplace(content, old, new string, replaceAll bool) (string, int, error) {
	count := strings.Count(content, old)
	if count == 0 {
		return "", 0, nil
	}
	if !replaceAll && count > 1 {
		return "", 0, &dom.AmbiguousError{Count: count}
	}
	if replaceAll {
		return strings.ReplaceAll(content, old, new), count, nil
	}
	return strings.Replace(content, old, new, 1), 1, nil
}
