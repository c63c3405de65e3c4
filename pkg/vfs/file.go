package vfs

import "time"

// File is a named, versioned byte sequence. Version 0 never appears on a
// stored file; it is the caller-side signal for "no prior version". Enabled
// is pointer-typed so that files saved before the flag existed stay enabled.
type File struct {
	Content  string `json:"content"`
	Version  int64  `json:"version"`
	Created  int64  `json:"created"`  // epoch milliseconds
	Modified int64  `json:"modified"` // epoch milliseconds
	Enabled  *bool  `json:"enabled,omitempty"`
}

// IsEnabled treats an absent flag as enabled.
func (f *File) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// EditRecord captures one applied page edit for regeneration into the
// synthetic _auto_edits.js script.
type EditRecord struct {
	Selector   string `json:"selector"`
	OldContent string `json:"oldContent"`
	NewContent string `json:"newContent"`
	Timestamp  int64  `json:"timestamp"`
}

// PathEntry groups everything stored under one urlPath of a domain.
type PathEntry struct {
	Scripts     map[string]*File `json:"scripts,omitempty"`
	Styles      map[string]*File `json:"styles,omitempty"`
	EditRecords []EditRecord     `json:"editRecords,omitempty"`
}

// Empty reports whether the entry holds no files. Edit records alone do not
// keep a path alive; they are dropped when the last file goes.
func (e *PathEntry) Empty() bool {
	return len(e.Scripts) == 0 && len(e.Styles) == 0
}

func (e *PathEntry) files(kind FileKind) map[string]*File {
	switch kind {
	case KindScript:
		if e.Scripts == nil {
			e.Scripts = make(map[string]*File)
		}
		return e.Scripts
	case KindStyle:
		if e.Styles == nil {
			e.Styles = make(map[string]*File)
		}
		return e.Styles
	}
	return nil
}

// DomainData is the value stored under a vfs:{domain} key.
type DomainData struct {
	Paths map[string]*PathEntry `json:"paths"`
}

// Entry returns the PathEntry for urlPath, creating it when absent.
func (d *DomainData) Entry(urlPath string) *PathEntry {
	if d.Paths == nil {
		d.Paths = make(map[string]*PathEntry)
	}
	key := NormalizeURLPath(urlPath)
	e, ok := d.Paths[key]
	if !ok {
		e = &PathEntry{}
		d.Paths[key] = e
	}
	return e
}

// PathKeys returns the stored urlPath keys.
func (d *DomainData) PathKeys() []string {
	keys := make([]string, 0, len(d.Paths))
	for k := range d.Paths {
		keys = append(keys, k)
	}
	return keys
}

// Prune drops empty path entries. It returns true when nothing is left.
func (d *DomainData) Prune() bool {
	for key, entry := range d.Paths {
		if entry.Empty() {
			delete(d.Paths, key)
		}
	}
	return len(d.Paths) == 0
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// newFile creates a version-1 file.
func newFile(content string) *File {
	now := nowMillis()
	return &File{Content: content, Version: 1, Created: now, Modified: now}
}

// bump applies a successful write to an existing file.
func (f *File) bump(content string) {
	f.Content = content
	f.Version++
	f.Modified = nowMillis()
}
