package dom

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoMatch is returned when no matching strategy locates old text in the
// document.
var ErrNoMatch = errors.New("no element contains the target text")

// AmbiguousError reports multiple occurrences of old text inside the chosen
// element when a single replacement was requested.
type AmbiguousError struct {
	Count int
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("found %d occurrences of old text; provide more surrounding context or set replace_all", e.Count)
}

// EditResult describes a completed document edit.
type EditResult struct {
	// Selector is a best-effort stable CSS selector for the edited element,
	// suitable for replaying the edit against the live page.
	Selector string
	// Replacements is the number of occurrences replaced.
	Replacements int
	// Strategy names the matching strategy that located the text.
	Strategy string
}

// matching strategies, tried strictly in order
const (
	strategyLiteral    = "literal"
	strategyFlexible   = "whitespace-flexible"
	strategyNormalized = "whitespace-normalized"
)

// textMatcher is one matching strategy compiled against an old string.
type textMatcher struct {
	strategy string
	re       *regexp.Regexp
}

var wsRun = regexp.MustCompile(`[ \t\r\n]+`)

// matchersFor builds the ordered strategy list for old. Literal matching is
// always first. The flexible form lets any whitespace run in old match any
// run in the document; the normalized form additionally lets whitespace
// appear or vanish at tag boundaries, covering text captured from the
// formatted serialization being applied against densely rendered HTML.
func matchersFor(old string) []textMatcher {
	quoted := regexp.QuoteMeta(old)

	flexible := wsRun.ReplaceAllString(quoted, `\s+`)
	normalized := wsRun.ReplaceAllString(quoted, `\s*`)
	normalized = strings.ReplaceAll(normalized, "><", `>\s*<`)

	return []textMatcher{
		{strategyLiteral, regexp.MustCompile(quoted)},
		{strategyFlexible, regexp.MustCompile(flexible)},
		{strategyNormalized, regexp.MustCompile(normalized)},
	}
}

// Edit locates oldStr in the document and replaces it with newStr inside the
// most specific element containing it. Strategies degrade from literal to
// whitespace-flexible to whitespace-normalized; a strategy is only consulted
// when the previous one matched nowhere in the tree. With replaceAll false
// the chosen element must contain exactly one occurrence.
func (d *Document) Edit(oldStr, newStr string, replaceAll bool) (*EditResult, error) {
	root := d.Root()
	if root == nil {
		return nil, ErrNoMatch
	}

	for _, m := range matchersFor(oldStr) {
		target := deepestMatch(root, m.re)
		if target == nil {
			continue
		}
		if target == root {
			// A hit only at the root means the text spans the head/body
			// boundary; prefer body when it alone can satisfy the match.
			if body := childElement(root, atom.Body); body != nil && m.re.MatchString(InnerHTML(body)) {
				target = body
			}
		}

		count, err := replaceInner(target, m.re, newStr, replaceAll)
		if err != nil {
			return nil, err
		}
		return &EditResult{
			Selector:     DeriveSelector(target),
			Replacements: count,
			Strategy:     m.strategy,
		}, nil
	}

	return nil, ErrNoMatch
}

// deepestMatch returns the most specific element whose innerHTML matches re,
// preferring the first matching child at each level.
func deepestMatch(n *html.Node, re *regexp.Regexp) *html.Node {
	if n.Type != html.ElementNode {
		return nil
	}
	if !re.MatchString(InnerHTML(n)) {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if deeper := deepestMatch(c, re); deeper != nil {
			return deeper
		}
	}
	return n
}

// replaceInner rewrites the target's innerHTML, replacing matches of re with
// replacement text taken literally.
func replaceInner(target *html.Node, re *regexp.Regexp, newStr string, replaceAll bool) (int, error) {
	inner := InnerHTML(target)
	locs := re.FindAllStringIndex(inner, -1)
	if len(locs) == 0 {
		return 0, ErrNoMatch
	}

	var updated string
	var count int
	if replaceAll {
		updated = re.ReplaceAllLiteralString(inner, newStr)
		count = len(locs)
	} else {
		if len(locs) > 1 {
			return 0, &AmbiguousError{Count: len(locs)}
		}
		loc := locs[0]
		updated = inner[:loc[0]] + newStr + inner[loc[1]:]
		count = 1
	}

	if err := SetInnerHTML(target, updated); err != nil {
		return 0, err
	}
	return count, nil
}
