package htmldom

import (
	"strings"

	"golang.org/x/net/html"

	"indiflow/internal/dom"
	"indiflow/internal/models"
)

// Element is a node of a Document. Elements are cached per node, so two
// lookups of the same node return the same pointer.
type Element struct {
	doc  *Document
	node *html.Node
}

var _ dom.Element = (*Element)(nil)

// tags that never produce a layout box
var nonRendered = map[string]bool{
	"head": true, "script": true, "style": true, "template": true,
	"meta": true, "link": true, "title": true, "noscript": true,
}

// inherited CSS properties the engine reads
var inherited = map[string]bool{"cursor": true, "visibility": true}

func (e *Element) Node() *html.Node { return e.node }

func (e *Element) TagName() string { return strings.ToLower(e.node.Data) }

func (e *Element) Attr(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute in place.
func (e *Element) SetAttr(name, value string) {
	name = strings.ToLower(name)
	for i, a := range e.node.Attr {
		if a.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

func (e *Element) ID() string {
	v, _ := e.Attr("id")
	return v
}

func (e *Element) ClassList() []string {
	v, _ := e.Attr("class")
	return strings.Fields(v)
}

func (e *Element) TextContent() string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode:
				walk(c)
			}
		}
	}
	walk(e.node)
	return b.String()
}

func (e *Element) OwnText() string {
	var b strings.Builder
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func (e *Element) InnerHTML() string {
	var b strings.Builder
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return b.String()
}

func (e *Element) Parent() dom.Element {
	p := e.node.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return e.doc.wrap(p)
}

func (e *Element) Children() []dom.Element {
	var out []dom.Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.wrap(c))
		}
	}
	return out
}

func (e *Element) Rect() models.Rect {
	if r, ok := e.doc.rectOverride(e.node); ok {
		return r
	}
	if e.hidden() {
		return models.Rect{}
	}
	return models.Rect{X: 0, Y: float64(e.doc.order[e.node]) * 20, Width: 100, Height: 20}
}

// hidden reports whether e or an ancestor is excluded from layout.
func (e *Element) hidden() bool {
	for n := e.node; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if nonRendered[n.Data] || hasAttr(n, "hidden") {
			return true
		}
		if e.doc.displayOf(n) == "none" {
			return true
		}
	}
	return false
}

func (e *Element) ComputedStyle(property string) string {
	property = strings.ToLower(property)
	for n := e.node; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if property == "display" {
			return e.doc.displayOf(n)
		}
		if v, ok := e.doc.styleOverride(n, property); ok {
			return v
		}
		if v, ok := inlineStyle(n)[property]; ok {
			return v
		}
		if !inherited[property] {
			break
		}
	}
	switch property {
	case "cursor":
		return "auto"
	case "visibility":
		return "visible"
	}
	return ""
}

func (d *Document) displayOf(n *html.Node) string {
	if v, ok := d.styleOverride(n, "display"); ok {
		return v
	}
	if hasAttr(n, "hidden") {
		return "none"
	}
	if v, ok := inlineStyle(n)["display"]; ok {
		return v
	}
	return "block"
}

func (e *Element) Value() string {
	if v, ok := e.doc.valueOf(e.node); ok {
		return v
	}
	switch e.TagName() {
	case "input":
		v, _ := e.Attr("value")
		return v
	case "textarea":
		return e.TextContent()
	case "select":
		var first *Element
		for _, opt := range e.descendants("option") {
			if first == nil {
				first = opt
			}
			if _, ok := opt.Attr("selected"); ok {
				return opt.optionValue()
			}
		}
		if first != nil {
			return first.optionValue()
		}
	}
	return ""
}

func (e *Element) optionValue() string {
	if v, ok := e.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(e.TextContent())
}

func (e *Element) descendants(tag string) []*Element {
	var out []*Element
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				if c.Data == tag {
					out = append(out, e.doc.wrap(c))
				}
				walk(c)
			}
		}
	}
	walk(e.node)
	return out
}

// Document returns the document that owns e.
func (e *Element) Document() *Document { return e.doc }

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func inlineStyle(n *html.Node) map[string]string {
	var raw string
	for _, a := range n.Attr {
		if a.Key == "style" {
			raw = a.Val
			break
		}
	}
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}
