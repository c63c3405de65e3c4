package vfs

import "testing"

var testLoc = Location{Domain: "shop.test", URLPath: "/products/42"}

func TestParsePathAbsolute(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantKind FileKind
		wantDom  string
		wantURL  string
		wantFile string
	}{
		{"page at root", "/x.test/page.html", KindPage, "x.test", "/", ""},
		{"page nested", "/x.test/a/b/page.html", KindPage, "x.test", "/a/b", ""},
		{"console", "/x.test/console.log", KindConsole, "x.test", "/", ""},
		{"screenshot", "/x.test/a/screenshot.png", KindScreenshot, "x.test", "/a", ""},
		{"plan", "/x.test/plan.md", KindPlan, "x.test", "/", ""},
		{"script", "/shop.test/products/[id]/scripts/a.js", KindScript, "shop.test", "/products/[id]", "a.js"},
		{"style", "/shop.test/styles/dark.css", KindStyle, "shop.test", "/", "dark.css"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParsePath(tt.path, testLoc)
			if err != nil {
				t.Fatalf("ParsePath(%q) error: %v", tt.path, err)
			}
			if info.IsDir {
				t.Fatalf("ParsePath(%q) returned a directory", tt.path)
			}
			if info.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", info.Kind, tt.wantKind)
			}
			if info.Domain != tt.wantDom {
				t.Errorf("domain = %s, want %s", info.Domain, tt.wantDom)
			}
			if info.URLPath != tt.wantURL {
				t.Errorf("urlPath = %s, want %s", info.URLPath, tt.wantURL)
			}
			if info.FileName != tt.wantFile {
				t.Errorf("fileName = %s, want %s", info.FileName, tt.wantFile)
			}
		})
	}
}

func TestParsePathRelative(t *testing.T) {
	tests := []struct {
		path string
		full string
	}{
		{"page.html", "/shop.test/products/42/page.html"},
		{"./page.html", "/shop.test/products/42/page.html"},
		{"./scripts/a.js", "/shop.test/products/42/scripts/a.js"},
		{"../page.html", "/shop.test/products/page.html"},
		{"../../page.html", "/shop.test/page.html"},
		// Surplus .. segments clamp at the root instead of escaping it.
		{"../../../../../page.html", "/page.html"},
	}

	for _, tt := range tests {
		info, err := ParsePath(tt.path, testLoc)
		if err != nil {
			t.Fatalf("ParsePath(%q) error: %v", tt.path, err)
		}
		if info.Full != tt.full {
			t.Errorf("ParsePath(%q).Full = %s, want %s", tt.path, info.Full, tt.full)
		}
	}
}

func TestParsePathDirectories(t *testing.T) {
	info, err := ParsePath("/shop.test/products/42/scripts", testLoc)
	if err != nil {
		t.Fatalf("ParsePath error: %v", err)
	}
	if !info.IsDir || info.DirName != "scripts" {
		t.Errorf("expected scripts directory, got %+v", info)
	}

	info, err = ParsePath("/shop.test/products/42", testLoc)
	if err != nil {
		t.Fatalf("ParsePath error: %v", err)
	}
	if !info.IsDir || info.DirName != "" || info.URLPath != "/products/42" {
		t.Errorf("expected urlPath directory, got %+v", info)
	}
}

func TestParsePathRejectsUnknownLeaves(t *testing.T) {
	bad := []string{
		"",
		"/shop.test/scripts/nested/dir.js", // nested script dirs are not a thing
		"/shop.test/readme.txt",
		"/shop.test/scripts/noext",
	}
	for _, p := range bad {
		if _, err := ParsePath(p, testLoc); err == nil {
			t.Errorf("ParsePath(%q) should fail", p)
		} else if p != "" && KindOf(err) != ErrInvalidPath {
			t.Errorf("ParsePath(%q) kind = %s, want INVALID_PATH", p, KindOf(err))
		}
	}
}

func TestNormalizeURLPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/", "/"},
		{"", "/"},
		{"/a/", "/a"},
		{"/a//", "/a"},
		{"a/b", "/a/b"},
		{"/products/42/", "/products/42"},
	}
	for _, tt := range tests {
		if got := NormalizeURLPath(tt.in); got != tt.want {
			t.Errorf("NormalizeURLPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
