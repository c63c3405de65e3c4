package vfs

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// RoutePattern is a compiled urlPath pattern. Dynamic segments are written
// [name]; a catch-all segment [...name] consumes one or more trailing
// segments. Exact patterns (no placeholders) always outrank dynamic ones, and
// any dynamic pattern outranks any catch-all; ties break on static segment
// count.
type RoutePattern struct {
	Raw          string
	ParamNames   []string
	IsCatchAll   bool
	StaticCount  int
	DynamicCount int

	re *regexp.Regexp
}

var (
	dynamicSegRe  = regexp.MustCompile(`^\[([A-Za-z_][A-Za-z0-9_]*)\]$`)
	catchAllSegRe = regexp.MustCompile(`^\[\.\.\.([A-Za-z_][A-Za-z0-9_]*)\]$`)
)

// CompileRoute builds a RoutePattern from its string form. A catch-all
// segment must be last.
func CompileRoute(pattern string) (*RoutePattern, error) {
	norm := NormalizeURLPath(pattern)
	p := &RoutePattern{Raw: norm}

	var sb strings.Builder
	sb.WriteString("^")

	segs := splitPath(norm)
	for i, seg := range segs {
		if m := catchAllSegRe.FindStringSubmatch(seg); m != nil {
			if i != len(segs)-1 {
				return nil, fmt.Errorf("catch-all segment [...%s] must be the last segment of %q", m[1], pattern)
			}
			p.ParamNames = append(p.ParamNames, m[1])
			p.IsCatchAll = true
			p.DynamicCount++
			sb.WriteString("/(.+)")
			continue
		}
		if m := dynamicSegRe.FindStringSubmatch(seg); m != nil {
			p.ParamNames = append(p.ParamNames, m[1])
			p.DynamicCount++
			sb.WriteString("/([^/]+)")
			continue
		}
		p.StaticCount++
		sb.WriteString("/" + regexp.QuoteMeta(seg))
	}

	if len(segs) == 0 {
		sb.WriteString("/")
	}

	// Catch-alls stay open so deeper paths keep matching; everything else
	// terminates, tolerating one trailing slash.
	if !p.IsCatchAll {
		sb.WriteString("/?$")
	}

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("compile route %q: %w", pattern, err)
	}
	p.re = re
	return p, nil
}

// IsDynamic reports whether the pattern has any placeholder segments.
func (p *RoutePattern) IsDynamic() bool {
	return p.DynamicCount > 0
}

// Priority orders patterns for resolution. Tiers guarantee exact > dynamic >
// catch-all regardless of segment counts.
func (p *RoutePattern) Priority() int {
	const (
		tierExact   = 1 << 20
		tierDynamic = 1 << 10
	)
	switch {
	case !p.IsDynamic():
		return tierExact + p.StaticCount
	case !p.IsCatchAll:
		return tierDynamic + p.StaticCount
	default:
		return p.StaticCount
	}
}

// Match tests a concrete urlPath against the pattern and extracts parameters.
// Catch-all parameters may contain slashes.
func (p *RoutePattern) Match(urlPath string) (map[string]string, bool) {
	m := p.re.FindStringSubmatch(NormalizeURLPath(urlPath))
	if m == nil {
		return nil, false
	}
	params := make(map[string]string, len(p.ParamNames))
	for i, name := range p.ParamNames {
		params[name] = m[i+1]
	}
	return params, true
}

// RegexSource returns the pattern's regex in a form usable by both Go and
// page-side JavaScript (the injection wrapper embeds it verbatim).
func (p *RoutePattern) RegexSource() string {
	return p.re.String()
}

// WildcardPath replaces every placeholder segment with * for use in host
// match patterns.
func (p *RoutePattern) WildcardPath() string {
	segs := splitPath(p.Raw)
	out := make([]string, len(segs))
	for i, seg := range segs {
		if dynamicSegRe.MatchString(seg) || catchAllSegRe.MatchString(seg) {
			out[i] = "*"
		} else {
			out[i] = seg
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

// RouteMatch pairs a stored urlPath key with its extracted parameters.
type RouteMatch struct {
	PatternKey string
	Pattern    *RoutePattern
	Params     map[string]string
}

// MatchRoutes tests urlPath against every stored pattern key and returns the
// hits sorted by priority, insertion order preserved among equals. Keys that
// fail to compile are skipped.
func MatchRoutes(urlPath string, keys []string) []RouteMatch {
	var matches []RouteMatch
	for _, key := range keys {
		p, err := CompileRoute(key)
		if err != nil {
			continue
		}
		if params, ok := p.Match(urlPath); ok {
			matches = append(matches, RouteMatch{PatternKey: key, Pattern: p, Params: params})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Pattern.Priority() > matches[j].Pattern.Priority()
	})
	return matches
}

// ResolveRoute picks the stored urlPath key that serves a concrete urlPath:
// the normalized exact key when present, else the highest-priority pattern
// match, else "".
func ResolveRoute(urlPath string, keys []string) (string, map[string]string) {
	want := NormalizeURLPath(urlPath)
	for _, key := range keys {
		if NormalizeURLPath(key) == want {
			return key, nil
		}
	}
	matches := MatchRoutes(urlPath, keys)
	if len(matches) == 0 {
		return "", nil
	}
	return matches[0].PatternKey, matches[0].Params
}
