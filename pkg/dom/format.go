package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Formatted serializes the document element one tag per line with leading
// whitespace trimmed. The stable line structure keeps line-oriented reads,
// greps, and whitespace-flexible edits predictable across page observations.
func (d *Document) Formatted() string {
	root := d.Root()
	if root == nil {
		return ""
	}
	var builder strings.Builder
	formatNode(root, &builder)
	return strings.TrimRight(builder.String(), "\n")
}

// FormatHTML parses raw HTML and returns its formatted serialization.
func FormatHTML(raw string) (string, error) {
	doc, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return doc.Formatted(), nil
}

// formatNode recursively serializes a node. Unlike a content cleaner this
// keeps everything: all attributes, script and style bodies, and comments,
// since edits are applied against exactly what was read.
func formatNode(n *html.Node, builder *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		formatTextNode(n, builder)
	case html.CommentNode:
		builder.WriteString("<!--")
		builder.WriteString(n.Data)
		builder.WriteString("-->\n")
	case html.ElementNode:
		formatElementNode(n, builder)
	default:
		formatChildren(n, builder)
	}
}

// formatTextNode emits text content with each line trimmed, skipping
// whitespace-only runs that only existed as inter-tag formatting.
func formatTextNode(n *html.Node, builder *strings.Builder) {
	if strings.TrimSpace(n.Data) == "" {
		return
	}
	for _, line := range strings.Split(n.Data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		builder.WriteString(line)
		builder.WriteString("\n")
	}
}

// formatElementNode writes the opening tag, children, and closing tag on
// separate lines. Void elements get no closing tag.
func formatElementNode(n *html.Node, builder *strings.Builder) {
	tagName := strings.ToLower(n.Data)

	builder.WriteString("<")
	builder.WriteString(tagName)
	for _, attr := range n.Attr {
		name := attr.Key
		if attr.Namespace != "" {
			name = attr.Namespace + ":" + name
		}
		fmt.Fprintf(builder, ` %s="%s"`, name, html.EscapeString(attr.Val))
	}
	builder.WriteString(">\n")

	if isVoid(tagName) {
		return
	}

	formatChildren(n, builder)

	builder.WriteString("</")
	builder.WriteString(tagName)
	builder.WriteString(">\n")
}

func formatChildren(n *html.Node, builder *strings.Builder) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		formatNode(c, builder)
	}
}

// isVoid returns true for elements that never carry a closing tag.
func isVoid(tagName string) bool {
	voids := map[string]bool{
		"area":   true,
		"base":   true,
		"br":     true,
		"col":    true,
		"embed":  true,
		"hr":     true,
		"img":    true,
		"input":  true,
		"link":   true,
		"meta":   true,
		"param":  true,
		"source": true,
		"track":  true,
		"wbr":    true,
	}
	return voids[tagName]
}
