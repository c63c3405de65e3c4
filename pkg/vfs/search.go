package vfs

import (
	"context"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// LsEntry is one directory listing row.
type LsEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"isDir,omitempty"`
}

// Ls lists a directory. An empty path lists the attached page's directory.
// Listing scripts/ or styles/ resolves route patterns so the returned files
// are the ones a read at this location would find.
func (v *VFS) Ls(ctx context.Context, path string) ([]LsEntry, error) {
	if path == "" {
		path = v.loc.Dir()
	}
	info, err := v.parse(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir {
		_, ok, err := v.Stat(ctx, info.Full)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, notFound(info.Full, "file does not exist")
		}
		return []LsEntry{{Name: baseName(info.Full), Path: info.Full}}, nil
	}

	if info.DirName != "" {
		kind := KindScript
		if info.DirName == "styles" {
			kind = KindStyle
		}
		files, err := v.matchingFilesAt(ctx, info.URLPath, kind)
		if err != nil {
			return nil, err
		}
		entries := make([]LsEntry, 0, len(files))
		for _, f := range files {
			entries = append(entries, LsEntry{
				Name: f.Name,
				Path: info.Full + "/" + f.Name,
			})
		}
		return entries, nil
	}

	dirLoc := Location{Domain: info.Domain, URLPath: info.URLPath}
	var entries []LsEntry
	if v.page != nil && dirLoc == v.loc {
		entries = append(entries, LsEntry{Name: "page.html", Path: info.Full + "/page.html"})
	}
	entries = append(entries, LsEntry{Name: "console.log", Path: info.Full + "/console.log"})
	if _, ok := v.session.Get(KindScreenshot, dirLoc); ok {
		entries = append(entries, LsEntry{Name: "screenshot.png", Path: info.Full + "/screenshot.png"})
	}
	if _, ok := v.session.Get(KindPlan, dirLoc); ok {
		entries = append(entries, LsEntry{Name: "plan.md", Path: info.Full + "/plan.md"})
	}
	entries = append(entries,
		LsEntry{Name: "scripts", Path: info.Full + "/scripts", IsDir: true},
		LsEntry{Name: "styles", Path: info.Full + "/styles", IsDir: true},
	)
	return entries, nil
}

// Glob matches pattern against the files reachable from the attached
// directory. Patterns support * and ?; both the absolute path and the path
// relative to the current directory are tried.
func (v *VFS) Glob(ctx context.Context, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, invalidPath(pattern, "invalid glob: %v", err)
	}

	candidates, err := v.enumeratePaths(ctx)
	if err != nil {
		return nil, err
	}

	prefix := v.loc.Dir() + "/"
	var out []string
	for _, full := range candidates {
		rel := strings.TrimPrefix(full, prefix)
		if g.Match(full) || g.Match(rel) {
			out = append(out, full)
		}
	}
	return out, nil
}

// enumeratePaths lists every readable file path under the attached
// directory: the live page, console, session files, and resolved scripts
// and styles.
func (v *VFS) enumeratePaths(ctx context.Context) ([]string, error) {
	dir := v.loc.Dir()
	var out []string
	if v.page != nil {
		out = append(out, dir+"/page.html")
	}
	out = append(out, dir+"/console.log")
	if _, ok := v.session.Get(KindScreenshot, v.loc); ok {
		out = append(out, dir+"/screenshot.png")
	}
	if _, ok := v.session.Get(KindPlan, v.loc); ok {
		out = append(out, dir+"/plan.md")
	}
	for _, kind := range []FileKind{KindScript, KindStyle} {
		files, err := v.MatchingFiles(ctx, kind)
		if err != nil {
			return nil, err
		}
		sub := "scripts"
		if kind == KindStyle {
			sub = "styles"
		}
		for _, f := range files {
			out = append(out, dir+"/"+sub+"/"+f.Name)
		}
	}
	return out, nil
}

// Grep caps and context sizes protect the downstream token budget.
const (
	maxGrepMatches  = 30
	grepContextSize = 2
	maxGrepLineLen  = 500
)

// GrepMatch is one matching line with its surrounding context.
type GrepMatch struct {
	Path       string   `json:"path"`
	LineNumber int      `json:"lineNumber"` // 1-based
	Line       string   `json:"line"`
	Before     []string `json:"before,omitempty"`
	After      []string `json:"after,omitempty"`
}

// GrepResult is a completed search.
type GrepResult struct {
	Matches   []GrepMatch `json:"matches"`
	Count     int         `json:"count"`
	Truncated bool        `json:"truncated,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// Grep searches file contents case-insensitively. An invalid regex is
// retried as a literal string. With no path every text file reachable from
// the attached directory is searched. At most 30 matches are returned, each
// with two lines of context.
func (v *VFS) Grep(ctx context.Context, pattern, path string) (*GrepResult, error) {
	re, err := compileSearch(pattern)
	if err != nil {
		return nil, err
	}

	targets, err := v.grepTargets(ctx, path)
	if err != nil {
		return nil, err
	}

	result := &GrepResult{}
	for _, target := range targets {
		lines := strings.Split(target.content, "\n")
		for i, line := range lines {
			if !re.MatchString(line) {
				continue
			}
			result.Count++
			if len(result.Matches) >= maxGrepMatches {
				result.Truncated = true
				continue
			}
			result.Matches = append(result.Matches, GrepMatch{
				Path:       target.path,
				LineNumber: i + 1,
				Line:       clipLine(line),
				Before:     clipLines(lines, i-grepContextSize, i),
				After:      clipLines(lines, i+1, i+1+grepContextSize),
			})
		}
	}
	if result.Truncated {
		result.Message = "match limit reached; narrow the pattern or pass a specific file"
	}
	return result, nil
}

// GrepCount runs the same search as Grep but returns only the match count.
func (v *VFS) GrepCount(ctx context.Context, pattern, path string) (int, error) {
	re, err := compileSearch(pattern)
	if err != nil {
		return 0, err
	}
	targets, err := v.grepTargets(ctx, path)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, target := range targets {
		for _, line := range strings.Split(target.content, "\n") {
			if re.MatchString(line) {
				count++
			}
		}
	}
	return count, nil
}

type grepTarget struct {
	path    string
	content string
}

// grepTargets resolves the search scope: one named file, or every text file
// in the attached directory. Content is fetched uncapped so large pages
// stay searchable. Screenshots are skipped; a data URL is not useful line
// content.
func (v *VFS) grepTargets(ctx context.Context, path string) ([]grepTarget, error) {
	if path != "" {
		info, err := v.parse(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir {
			return nil, invalidPath(info.Full, "is a directory; grep a file or omit the path")
		}
		if info.Kind == KindScreenshot {
			return nil, invalidPath(info.Full, "cannot grep image content")
		}
		content, _, err := v.fullContent(ctx, info)
		if err != nil {
			return nil, err
		}
		return []grepTarget{{path: info.Full, content: content}}, nil
	}

	paths, err := v.enumeratePaths(ctx)
	if err != nil {
		return nil, err
	}
	var targets []grepTarget
	for _, p := range paths {
		if strings.HasSuffix(p, "/screenshot.png") {
			continue
		}
		info, err := v.parse(p)
		if err != nil {
			continue
		}
		content, _, err := v.fullContent(ctx, info)
		if err != nil {
			continue
		}
		targets = append(targets, grepTarget{path: info.Full, content: content})
	}
	return targets, nil
}

// compileSearch builds the case-insensitive matcher, degrading an invalid
// regex to a literal search.
func compileSearch(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err == nil {
		return re, nil
	}
	return regexp.Compile("(?i)" + regexp.QuoteMeta(pattern))
}

func clipLine(line string) string {
	if len(line) > maxGrepLineLen {
		return line[:maxGrepLineLen] + "..."
	}
	return line
}

func clipLines(lines []string, from, to int) []string {
	if from < 0 {
		from = 0
	}
	if to > len(lines) {
		to = len(lines)
	}
	if from >= to {
		return nil
	}
	out := make([]string, 0, to-from)
	for _, l := range lines[from:to] {
		out = append(out, clipLine(l))
	}
	return out
}

func baseName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
