package dom

import (
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func TestEditTargetsMostSpecificElement(t *testing.T) {
	doc := mustParse(t, `<html><body><div id="outer"><section class="content"><p>target text here</p></section></div></body></html>`)

	res, err := doc.Edit("target text", "updated text", false)
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if res.Strategy != strategyLiteral {
		t.Errorf("Strategy = %q, want %q", res.Strategy, strategyLiteral)
	}
	if res.Selector != "#outer > section.content > p" {
		t.Errorf("Selector = %q", res.Selector)
	}
	if res.Replacements != 1 {
		t.Errorf("Replacements = %d, want 1", res.Replacements)
	}
	if got := Text(doc.Body()); !strings.Contains(got, "updated text here") {
		t.Errorf("body text = %q", got)
	}
}

func TestEditWhitespaceFlexibleFallback(t *testing.T) {
	doc := mustParse(t, `<html><body><p>Hello    World</p></body></html>`)

	res, err := doc.Edit("Hello World", "Hello Go", false)
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if res.Strategy != strategyFlexible {
		t.Errorf("Strategy = %q, want %q", res.Strategy, strategyFlexible)
	}
	if got := Text(doc.Body()); got != "Hello Go" {
		t.Errorf("body text = %q, want %q", got, "Hello Go")
	}
}

func TestEditNormalizedMatchesFormattedCapture(t *testing.T) {
	// Old text captured from the formatted serialization carries newlines
	// between tags that the dense live document does not have.
	doc := mustParse(t, `<html><body><div><span>one</span><span>two</span></div></body></html>`)

	old := "<span>one</span>\n<span>two</span>"
	res, err := doc.Edit(old, "<span>merged</span>", false)
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if res.Strategy != strategyNormalized {
		t.Errorf("Strategy = %q, want %q", res.Strategy, strategyNormalized)
	}
	if got := Text(doc.Body()); got != "merged" {
		t.Errorf("body text = %q, want %q", got, "merged")
	}
}

func TestEditSingleRequiresUniqueOccurrence(t *testing.T) {
	doc := mustParse(t, `<html><body><p>dup dup</p></body></html>`)

	_, err := doc.Edit("dup", "x", false)
	var ambiguous *AmbiguousError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("Edit() error = %v, want AmbiguousError", err)
	}
	if ambiguous.Count != 2 {
		t.Errorf("Count = %d, want 2", ambiguous.Count)
	}
}

func TestEditReplaceAll(t *testing.T) {
	doc := mustParse(t, `<html><body><p>dup dup dup</p></body></html>`)

	res, err := doc.Edit("dup", "x", true)
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if res.Replacements != 3 {
		t.Errorf("Replacements = %d, want 3", res.Replacements)
	}
	if got := Text(doc.Body()); got != "x x x" {
		t.Errorf("body text = %q, want %q", got, "x x x")
	}
}

func TestEditFirstDeepestWinsAcrossSiblings(t *testing.T) {
	doc := mustParse(t, `<html><body><p class="a">dup</p><p class="b">dup</p></body></html>`)

	res, err := doc.Edit("dup", "first", false)
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if res.Selector != "p.a" {
		t.Errorf("Selector = %q, want %q", res.Selector, "p.a")
	}
	body := Text(doc.Body())
	if !strings.Contains(body, "first") || !strings.Contains(body, "dup") {
		t.Errorf("body text = %q, want one replaced and one untouched", body)
	}
}

func TestEditNoMatch(t *testing.T) {
	doc := mustParse(t, `<html><body><p>content</p></body></html>`)

	_, err := doc.Edit("absent", "x", false)
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("Edit() error = %v, want ErrNoMatch", err)
	}
}

func TestDeriveSelector(t *testing.T) {
	doc := mustParse(t, `<html><body>
		<div id="shop"><ul class="items featured"><li class="css-x92k1 item"><a href="/p">buy</a></li></ul></div>
		<footer><p>fine print</p></footer>
	</body></html>`)

	tests := []struct {
		name string
		pick func() *EditResult
		want string
	}{
		{
			name: "id anchors path",
			pick: func() *EditResult {
				res, err := doc.Edit("buy", "buy now", false)
				if err != nil {
					t.Fatalf("Edit() error = %v", err)
				}
				return res
			},
			want: "#shop > ul.items.featured > li.item > a",
		},
		{
			name: "no id climbs to body",
			pick: func() *EditResult {
				res, err := doc.Edit("fine print", "legal", false)
				if err != nil {
					t.Fatalf("Edit() error = %v", err)
				}
				return res
			},
			want: "footer > p",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pick().Selector; got != tt.want {
				t.Errorf("Selector = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsLikelyGeneratedClass(t *testing.T) {
	tests := []struct {
		cls  string
		want bool
	}{
		{"item", false},
		{"product-card", false},
		{"css-x92k1", true},
		{"sc-bdVaJa", true},
		{"a1b2c3", true},
		{"col-2", false},
	}
	for _, tt := range tests {
		if got := isLikelyGeneratedClass(tt.cls); got != tt.want {
			t.Errorf("isLikelyGeneratedClass(%q) = %v, want %v", tt.cls, got, tt.want)
		}
	}
}
