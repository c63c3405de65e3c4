package dom

import (
	"strings"

	"golang.org/x/net/html"
)

const maxSelectorDepth = 4

// DeriveSelector builds a best-effort stable CSS selector for an element.
// An id anywhere on the path anchors the selector immediately; otherwise
// up to four ancestors contribute tag-plus-class segments, skipping class
// names that look machine generated.
func DeriveSelector(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	switch strings.ToLower(n.Data) {
	case "html", "head", "body":
		return strings.ToLower(n.Data)
	}

	var parts []string
	cur := n
	for depth := 0; cur != nil && cur.Type == html.ElementNode && depth < maxSelectorDepth; depth++ {
		tag := strings.ToLower(cur.Data)
		if tag == "html" || tag == "head" || tag == "body" {
			break
		}
		if id := Attr(cur, "id"); id != "" && !strings.ContainsAny(id, " \t\n") {
			parts = append([]string{"#" + id}, parts...)
			return strings.Join(parts, " > ")
		}
		parts = append([]string{segmentFor(cur, tag)}, parts...)
		cur = parentElement(cur)
	}
	return strings.Join(parts, " > ")
}

// segmentFor returns a tag.class1.class2 step using at most two stable
// class names.
func segmentFor(n *html.Node, tag string) string {
	var sb strings.Builder
	sb.WriteString(tag)
	kept := 0
	for _, cls := range strings.Fields(Attr(n, "class")) {
		if kept == 2 {
			break
		}
		if isLikelyGeneratedClass(cls) {
			continue
		}
		sb.WriteString(".")
		sb.WriteString(cls)
		kept++
	}
	return sb.String()
}

// isLikelyGeneratedClass flags class names that change between builds:
// hash-heavy names and the prefixes emitted by CSS-in-JS libraries.
func isLikelyGeneratedClass(cls string) bool {
	digits := 0
	for _, r := range cls {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits >= 3 {
		return true
	}
	lower := strings.ToLower(cls)
	for _, prefix := range []string{"css-", "jss", "sc-", "emotion-", "chakra-"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func parentElement(n *html.Node) *html.Node {
	p := n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return p
}
