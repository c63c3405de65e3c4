// Package dom provides a parsed-document model for page synchronization:
// formatted serialization for stable reads, targeted innerHTML edits, and
// best-effort stable selector derivation. It operates on x/net/html node
// trees and performs no I/O.
package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document wraps a parsed HTML document.
type Document struct {
	doc *html.Node // the #document node
}

// Parse builds a Document from serialized HTML. The parser is permissive and
// synthesizes html/head/body when absent, mirroring browser behavior.
func Parse(src string) (*Document, error) {
	node, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: node}, nil
}

// Root returns the <html> element.
func (d *Document) Root() *html.Node {
	for c := d.doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return c
		}
	}
	return nil
}

// Head returns the <head> element, or nil.
func (d *Document) Head() *html.Node {
	return childElement(d.Root(), atom.Head)
}

// Body returns the <body> element, or nil.
func (d *Document) Body() *html.Node {
	return childElement(d.Root(), atom.Body)
}

// HTML returns the document element's outerHTML.
func (d *Document) HTML() string {
	root := d.Root()
	if root == nil {
		return ""
	}
	return OuterHTML(root)
}

// Title returns the text of the first <title> element.
func (d *Document) Title() string {
	head := d.Head()
	if head == nil {
		return ""
	}
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Title {
			return strings.TrimSpace(Text(c))
		}
	}
	return ""
}

// ReplaceWith parses replacement HTML and grafts it onto the document:
// head and body children are swapped wholesale and the root element's
// attributes are copied over. The existing node identity of html/head/body
// is preserved so held references stay valid.
func (d *Document) ReplaceWith(src string) error {
	next, err := Parse(src)
	if err != nil {
		return err
	}

	curRoot, nextRoot := d.Root(), next.Root()
	if curRoot == nil || nextRoot == nil {
		return fmt.Errorf("document has no root element")
	}

	// A replacement document without html/head/body leaves the current
	// structure untouched.
	curRoot.Attr = cloneAttrs(nextRoot.Attr)

	if curHead, nextHead := d.Head(), next.Head(); curHead != nil && nextHead != nil {
		moveChildren(nextHead, curHead)
	}
	if curBody, nextBody := d.Body(), next.Body(); curBody != nil && nextBody != nil {
		moveChildren(nextBody, curBody)
	}
	return nil
}

// OuterHTML renders a node and its subtree.
func OuterHTML(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}

// InnerHTML renders a node's children.
func InnerHTML(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return ""
		}
	}
	return sb.String()
}

// SetInnerHTML replaces a node's children with a parsed fragment.
func SetInnerHTML(n *html.Node, fragment string) error {
	ctx := &html.Node{Type: html.ElementNode, Data: n.Data, DataAtom: n.DataAtom}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	removeChildren(n)
	for _, child := range nodes {
		n.AppendChild(child)
	}
	return nil
}

// Text returns the concatenated text content of a subtree.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// SetAttr sets or replaces an attribute.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// FindByID returns the first element with the given id, depth-first.
func (d *Document) FindByID(id string) *html.Node {
	root := d.Root()
	if root == nil {
		return nil
	}
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && Attr(n, "id") == id {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

// QuerySelector resolves the restricted selector grammar produced by
// DeriveSelector: #id, tag, tag.class chains joined by " > " (descendant
// steps walk depth-first rather than requiring direct children, matching
// how the selectors are derived).
func (d *Document) QuerySelector(selector string) *html.Node {
	root := d.Root()
	if root == nil {
		return nil
	}
	steps := strings.Split(selector, ">")
	for i := range steps {
		steps[i] = strings.TrimSpace(steps[i])
	}
	return matchSteps(root, steps)
}

func matchSteps(scope *html.Node, steps []string) *html.Node {
	if len(steps) == 0 {
		return nil
	}
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && stepMatches(n, steps[0]) {
			if len(steps) == 1 {
				found = n
				return
			}
			if deeper := matchSteps(n, steps[1:]); deeper != nil {
				found = deeper
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := scope.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return found
}

func stepMatches(n *html.Node, step string) bool {
	if step == "" {
		return false
	}
	if strings.HasPrefix(step, "#") {
		return Attr(n, "id") == step[1:]
	}
	parts := strings.Split(step, ".")
	if parts[0] != "" && parts[0] != n.Data {
		return false
	}
	if len(parts) > 1 {
		classes := " " + Attr(n, "class") + " "
		for _, cls := range parts[1:] {
			if cls == "" {
				continue
			}
			if !strings.Contains(classes, " "+cls+" ") {
				return false
			}
		}
	}
	return true
}

func childElement(n *html.Node, a atom.Atom) *html.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}

func removeChildren(n *html.Node) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
}

func moveChildren(from, to *html.Node) {
	removeChildren(to)
	for from.FirstChild != nil {
		c := from.FirstChild
		from.RemoveChild(c)
		to.AppendChild(c)
	}
}

func cloneAttrs(attrs []html.Attribute) []html.Attribute {
	out := make([]html.Attribute, len(attrs))
	copy(out, attrs)
	return out
}

// RemoveNode detaches a node from its parent.
func RemoveNode(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// NewStyleElement builds a <style id=...> element holding css text.
func NewStyleElement(id, css string) *html.Node {
	style := &html.Node{
		Type:     html.ElementNode,
		Data:     "style",
		DataAtom: atom.Style,
		Attr:     []html.Attribute{{Key: "id", Val: id}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	return style
}
