package vfs

import (
	"regexp"
	"strings"
)

// FileKind tags the backing store of a virtual file.
type FileKind string

const (
	KindPage       FileKind = "page"       // live DOM document, page.html
	KindConsole    FileKind = "console"    // console ring, console.log
	KindScreenshot FileKind = "screenshot" // session screenshot, screenshot.png
	KindPlan       FileKind = "plan"       // session plan, plan.md
	KindScript     FileKind = "script"     // persisted scripts/<name>.js
	KindStyle      FileKind = "style"      // persisted styles/<name>.css
)

// Capabilities per kind. Screenshot is written by capture, not by Write;
// console is read-only.
func (k FileKind) CanWrite() bool {
	switch k {
	case KindPage, KindPlan, KindScript, KindStyle:
		return true
	}
	return false
}

func (k FileKind) CanEdit() bool {
	switch k {
	case KindPage, KindPlan, KindScript, KindStyle:
		return true
	}
	return false
}

func (k FileKind) CanDelete() bool {
	return k == KindScript || k == KindStyle
}

// Persistent reports whether files of this kind live in the domain store.
func (k FileKind) Persistent() bool {
	return k == KindScript || k == KindStyle
}

// Location is the active page's position in the virtual tree, used to resolve
// relative paths and to enforce domain isolation.
type Location struct {
	Domain  string
	URLPath string
}

// Dir returns the location's directory path, e.g. /shop.test/products/42.
func (l Location) Dir() string {
	if l.URLPath == "" || l.URLPath == "/" {
		return "/" + l.Domain
	}
	return "/" + l.Domain + l.URLPath
}

// PathInfo is the parse result of a virtual path.
type PathInfo struct {
	Domain   string
	URLPath  string
	Kind     FileKind
	FileName string // script/style leaf name, e.g. "a.js"
	Full     string // normalized absolute path
	IsDir    bool
	DirName  string // "" for a urlPath directory, "scripts" or "styles" for those
}

// Script and style names are flat: no slashes, a single recognized extension.
var (
	scriptNameRe = regexp.MustCompile(`^[^/\s]+\.js$`)
	styleNameRe  = regexp.MustCompile(`^[^/\s]+\.css$`)
)

// ParsePath parses raw into a PathInfo. Absolute paths start with /{domain};
// ./, ../ and bare leaves resolve against the active location. A path whose
// leaf is not a recognized file kind describes a directory.
func ParsePath(raw string, at Location) (*PathInfo, error) {
	if raw == "" {
		return nil, invalidPath(raw, "empty path")
	}

	abs := raw
	if !strings.HasPrefix(raw, "/") {
		abs = resolvePath(at.Dir(), raw)
	}

	segs := splitPath(abs)
	if len(segs) == 0 {
		return nil, invalidPath(raw, "path has no domain component")
	}

	domain := segs[0]
	if domain == "" || strings.ContainsAny(domain, " \t") {
		return nil, invalidPath(raw, "invalid domain %q", domain)
	}
	rest := segs[1:]

	info := &PathInfo{Domain: domain}

	switch {
	case len(rest) == 0:
		info.IsDir = true
		info.URLPath = "/"

	case last(rest) == "page.html":
		info.Kind = KindPage
		info.URLPath = joinURLPath(rest[:len(rest)-1])

	case last(rest) == "console.log":
		info.Kind = KindConsole
		info.URLPath = joinURLPath(rest[:len(rest)-1])

	case last(rest) == "screenshot.png":
		info.Kind = KindScreenshot
		info.URLPath = joinURLPath(rest[:len(rest)-1])

	case last(rest) == "plan.md":
		info.Kind = KindPlan
		info.URLPath = joinURLPath(rest[:len(rest)-1])

	case len(rest) >= 2 && rest[len(rest)-2] == "scripts" && scriptNameRe.MatchString(last(rest)):
		info.Kind = KindScript
		info.FileName = last(rest)
		info.URLPath = joinURLPath(rest[:len(rest)-2])

	case len(rest) >= 2 && rest[len(rest)-2] == "styles" && styleNameRe.MatchString(last(rest)):
		info.Kind = KindStyle
		info.FileName = last(rest)
		info.URLPath = joinURLPath(rest[:len(rest)-2])

	case last(rest) == "scripts" || last(rest) == "styles":
		info.IsDir = true
		info.DirName = last(rest)
		info.URLPath = joinURLPath(rest[:len(rest)-1])

	case strings.Contains(last(rest), "."):
		// Looks like a file leaf but matches no recognized kind. Rejecting
		// here catches nested script dirs and unknown extensions.
		return nil, invalidPath(raw, "unrecognized file %q", last(rest))

	default:
		info.IsDir = true
		info.URLPath = joinURLPath(rest)
	}

	info.Full = rebuildFull(info)
	return info, nil
}

// resolvePath joins rel onto baseDir, folding . and .. segments. Traversal
// above the root is clamped by dropping surplus .. segments.
func resolvePath(baseDir, rel string) string {
	var stack []string
	if !strings.HasPrefix(rel, "/") {
		stack = splitPath(baseDir)
	}
	for _, seg := range strings.Split(rel, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}
	return "/" + strings.Join(stack, "/")
}

// NormalizeURLPath strips trailing slashes (keeping root "/") and guarantees a
// leading slash.
func NormalizeURLPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}
	return p
}

func splitPath(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" && s != "." {
			segs = append(segs, s)
		}
	}
	return segs
}

func joinURLPath(segs []string) string {
	if len(segs) == 0 {
		return "/"
	}
	return "/" + strings.Join(segs, "/")
}

func last(segs []string) string {
	return segs[len(segs)-1]
}

func rebuildFull(info *PathInfo) string {
	dir := "/" + info.Domain
	if info.URLPath != "/" {
		dir += info.URLPath
	}
	switch {
	case info.IsDir && info.DirName != "":
		return dir + "/" + info.DirName
	case info.IsDir:
		return dir
	case info.Kind == KindScript:
		return dir + "/scripts/" + info.FileName
	case info.Kind == KindStyle:
		return dir + "/styles/" + info.FileName
	default:
		return dir + "/" + leafName(info.Kind)
	}
}

func leafName(kind FileKind) string {
	switch kind {
	case KindPage:
		return "page.html"
	case KindConsole:
		return "console.log"
	case KindScreenshot:
		return "screenshot.png"
	case KindPlan:
		return "plan.md"
	}
	return ""
}
