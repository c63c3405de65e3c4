package vfs

import (
	"context"
	"fmt"
	"sort"
)

// FileInfo is one stored file as presented to management surfaces.
type FileInfo struct {
	Domain   string `json:"domain"`
	URLPath  string `json:"urlPath"`
	Type     string `json:"type"` // "script" or "style"
	Name     string `json:"name"`
	Version  int64  `json:"version"`
	Enabled  bool   `json:"enabled"`
	Size     int    `json:"size"`
	Modified int64  `json:"modified"`
}

// ParseFileType maps the wire names used by management requests to kinds.
func ParseFileType(s string) (FileKind, error) {
	switch s {
	case "script":
		return KindScript, nil
	case "style":
		return KindStyle, nil
	}
	return "", fmt.Errorf("unknown file type %q", s)
}

// TypeName is the wire name for a persistent kind.
func TypeName(kind FileKind) string {
	if kind == KindStyle {
		return "style"
	}
	return "script"
}

// ListFiles enumerates every stored script and style across all domains,
// sorted by domain, urlPath, type, then name.
func (s *DomainStore) ListFiles(ctx context.Context) ([]FileInfo, error) {
	domains, err := s.Domains(ctx)
	if err != nil {
		return nil, err
	}

	var out []FileInfo
	for _, domain := range domains {
		data, err := s.Domain(ctx, domain)
		if err != nil {
			return nil, err
		}
		for urlPath, entry := range data.Paths {
			if entry == nil {
				continue
			}
			appendFiles := func(kind FileKind, files map[string]*File) {
				for name, f := range files {
					out = append(out, FileInfo{
						Domain:   domain,
						URLPath:  urlPath,
						Type:     TypeName(kind),
						Name:     name,
						Version:  f.Version,
						Enabled:  f.IsEnabled(),
						Size:     len(f.Content),
						Modified: f.Modified,
					})
				}
			}
			appendFiles(KindScript, entry.Scripts)
			appendFiles(KindStyle, entry.Styles)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		if a.URLPath != b.URLPath {
			return a.URLPath < b.URLPath
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Name < b.Name
	})
	return out, nil
}

// DeleteFile removes one stored file, reporting whether it existed. Emptied
// paths and domains are pruned by the store.
func (s *DomainStore) DeleteFile(ctx context.Context, domain, urlPath string, kind FileKind, name string) (bool, error) {
	deleted := false
	err := s.Update(ctx, domain, func(data *DomainData) error {
		key := NormalizeURLPath(urlPath)
		entry, ok := data.Paths[key]
		if !ok {
			return nil
		}
		files := entry.Scripts
		if kind == KindStyle {
			files = entry.Styles
		}
		if _, ok := files[name]; ok {
			delete(files, name)
			deleted = true
		}
		return nil
	})
	return deleted, err
}

// SetFileEnabled flips one file's enabled flag.
func (s *DomainStore) SetFileEnabled(ctx context.Context, domain, urlPath string, kind FileKind, name string, enabled bool) error {
	return s.Update(ctx, domain, func(data *DomainData) error {
		key := NormalizeURLPath(urlPath)
		entry, ok := data.Paths[key]
		if !ok {
			return notFound("/"+domain+key, "no files stored at this path")
		}
		files := entry.Scripts
		if kind == KindStyle {
			files = entry.Styles
		}
		f, ok := files[name]
		if !ok {
			return notFound("/"+domain+key+"/"+name, "file does not exist")
		}
		f.Enabled = &enabled
		return nil
	})
}

// SetAllEnabled flips every stored file's enabled flag, returning the
// number of files touched.
func (s *DomainStore) SetAllEnabled(ctx context.Context, enabled bool) (int, error) {
	domains, err := s.Domains(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, domain := range domains {
		err := s.Update(ctx, domain, func(data *DomainData) error {
			for _, entry := range data.Paths {
				for _, f := range entry.Scripts {
					val := enabled
					f.Enabled = &val
					count++
				}
				for _, f := range entry.Styles {
					val := enabled
					f.Enabled = &val
					count++
				}
			}
			return nil
		})
		if err != nil {
			return count, err
		}
	}
	return count, nil
}
