package scripts

import (
	"strings"
	"testing"

	"github.com/entrhq/webforge/pkg/vfs"
)

func mustRoute(t *testing.T, pattern string) *vfs.RoutePattern {
	t.Helper()
	p, err := vfs.CompileRoute(pattern)
	if err != nil {
		t.Fatalf("CompileRoute(%q) error = %v", pattern, err)
	}
	return p
}

func TestScriptIDDeterministicAndSanitized(t *testing.T) {
	a := ScriptID("shop.test", "/products/[id]", "highlight.js")
	b := ScriptID("shop.test", "/products/[id]", "highlight.js")
	if a != b {
		t.Fatalf("ScriptID not deterministic: %q vs %q", a, b)
	}

	for _, r := range a {
		ok := r == '_' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9')
		if !ok {
			t.Fatalf("ScriptID contains invalid rune %q in %q", r, a)
		}
	}

	if !IsManagedID(a) {
		t.Errorf("IsManagedID(%q) = false", a)
	}
	if IsManagedID("someone_elses_script") {
		t.Error("IsManagedID matched a foreign ID")
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"/products", "*://shop.test/products*"},
		{"/products/[id]", "*://shop.test/products/**"},
		{"/docs/[...slug]", "*://shop.test/docs/**"},
		{"/", "*://shop.test/*"},
	}
	for _, tt := range tests {
		p := mustRoute(t, tt.pattern)
		if got := MatchPattern("shop.test", p); got != tt.want {
			t.Errorf("MatchPattern(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func TestWrapRouteScriptEmbedsGuard(t *testing.T) {
	p := mustRoute(t, "/products/[id]")
	wrapped := WrapRouteScript(p, "console.log(window.__routeParams.id);")

	if !strings.Contains(wrapped, p.RegexSource()) {
		t.Errorf("wrapper does not embed route regex %q:\n%s", p.RegexSource(), wrapped)
	}
	if !strings.Contains(wrapped, `"id": __wfm[1]`) {
		t.Errorf("wrapper does not map parameter id:\n%s", wrapped)
	}
	if !strings.Contains(wrapped, "if (!__wfm) { return; }") {
		t.Errorf("wrapper does not exit early on mismatch:\n%s", wrapped)
	}
	if !strings.Contains(wrapped, "console.log(window.__routeParams.id);") {
		t.Errorf("wrapper lost the script body:\n%s", wrapped)
	}
}

func TestWrapRouteScriptMultipleParams(t *testing.T) {
	p := mustRoute(t, "/shop/[category]/[item]")
	wrapped := WrapRouteScript(p, "void 0;")

	if !strings.Contains(wrapped, `"category": __wfm[1]`) {
		t.Errorf("missing first param mapping:\n%s", wrapped)
	}
	if !strings.Contains(wrapped, `"item": __wfm[2]`) {
		t.Errorf("missing second param mapping:\n%s", wrapped)
	}
}

func TestInjectionCodeAssignsKnownParams(t *testing.T) {
	nf := vfs.NamedFile{
		Name:       "highlight.js",
		File:       &vfs.File{Content: "document.title = window.__routeParams.id;", Version: 1},
		PatternKey: "/products/[id]",
		Params:     map[string]string{"id": "42"},
	}

	code := InjectionCode(nf)
	if !strings.Contains(code, `"id": "42"`) {
		t.Errorf("injection code does not assign extracted params:\n%s", code)
	}
	if !strings.Contains(code, nf.File.Content) {
		t.Errorf("injection code lost the script body:\n%s", code)
	}
}

func TestInjectionCodeExactEntryIsBare(t *testing.T) {
	nf := vfs.NamedFile{
		Name:       "init.js",
		File:       &vfs.File{Content: "console.log('hi');", Version: 1},
		PatternKey: "/products",
	}
	if got := InjectionCode(nf); got != nf.File.Content {
		t.Errorf("exact-entry injection = %q, want bare content", got)
	}
}
