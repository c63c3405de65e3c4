package scripts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/webforge/pkg/vfs"
)

// MatchPattern builds the host match pattern for a stored urlPath: scheme
// wildcard, the exact domain, and the path with placeholder segments
// wildcarded. The trailing * keeps deeper paths matching; the runtime guard
// does the precise check.
func MatchPattern(domain string, p *vfs.RoutePattern) string {
	return "*://" + domain + p.WildcardPath() + "*"
}

// WrapRouteScript wraps a script stored under a dynamic pattern in a guard
// that re-tests location.pathname at run time. On mismatch the script exits
// before the body runs; on match the extracted parameters are merged into
// window.__routeParams so the body can read them.
func WrapRouteScript(p *vfs.RoutePattern, body string) string {
	regex := jsString(p.RegexSource())

	var params strings.Builder
	for i, name := range p.ParamNames {
		if i > 0 {
			params.WriteString(", ")
		}
		fmt.Fprintf(&params, "%s: __wfm[%d]", jsString(name), i+1)
	}

	var sb strings.Builder
	sb.WriteString("(function() {\n")
	fmt.Fprintf(&sb, "  var __wfm = location.pathname.match(new RegExp(%s));\n", regex)
	sb.WriteString("  if (!__wfm) { return; }\n")
	fmt.Fprintf(&sb, "  window.__routeParams = Object.assign(window.__routeParams || {}, {%s});\n", params.String())
	sb.WriteString(body)
	sb.WriteString("\n})();\n")
	return sb.String()
}

// InjectionCode builds the one-shot injection form of a resolved script for
// hosts without a persistent registry. Parameters were already extracted by
// route resolution, so they are assigned directly instead of re-matched.
func InjectionCode(nf vfs.NamedFile) string {
	if len(nf.Params) == 0 {
		return nf.File.Content
	}

	var params strings.Builder
	first := true
	for _, name := range routeParamOrder(nf) {
		if !first {
			params.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&params, "%s: %s", jsString(name), jsString(nf.Params[name]))
	}

	var sb strings.Builder
	sb.WriteString("(function() {\n")
	fmt.Fprintf(&sb, "  window.__routeParams = Object.assign(window.__routeParams || {}, {%s});\n", params.String())
	sb.WriteString(nf.File.Content)
	sb.WriteString("\n})();\n")
	return sb.String()
}

// routeParamOrder returns parameter names in their pattern order when the
// pattern still compiles, falling back to map order.
func routeParamOrder(nf vfs.NamedFile) []string {
	if p, err := vfs.CompileRoute(nf.PatternKey); err == nil {
		return p.ParamNames
	}
	names := make([]string, 0, len(nf.Params))
	for name := range nf.Params {
		names = append(names, name)
	}
	return names
}

// jsString renders s as a JavaScript string literal. JSON escaping is a
// strict subset of JS, so the output is safe to embed.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
