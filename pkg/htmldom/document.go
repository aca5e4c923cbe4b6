// Package htmldom is an in-memory implementation of the dom interfaces built
// on golang.org/x/net/html. CSS selectors are evaluated with cascadia and
// XPath with htmlquery. Layout is not computed: every rendered element gets a
// synthetic non-empty box unless a real box was supplied by a snapshot or
// SetRect.
package htmldom

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"indiflow/internal/dom"
	"indiflow/internal/models"
)

// Document wraps a parsed HTML tree.
type Document struct {
	root *html.Node
	url  string

	mu     sync.Mutex
	elems  map[*html.Node]*Element
	order  map[*html.Node]int
	rects  map[*html.Node]models.Rect
	styles map[*html.Node]map[string]string
	values map[*html.Node]string
}

// Parse reads an HTML document served from url.
func Parse(r io.Reader, url string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return newDocument(root, url), nil
}

// ParseString is Parse over a string.
func ParseString(src, url string) (*Document, error) {
	return Parse(strings.NewReader(src), url)
}

// MustParse panics on parse errors. Intended for tests and fixtures.
func MustParse(src, url string) *Document {
	doc, err := ParseString(src, url)
	if err != nil {
		panic(err)
	}
	return doc
}

func newDocument(root *html.Node, url string) *Document {
	d := &Document{
		root:   root,
		url:    url,
		elems:  make(map[*html.Node]*Element),
		order:  make(map[*html.Node]int),
		rects:  make(map[*html.Node]models.Rect),
		styles: make(map[*html.Node]map[string]string),
		values: make(map[*html.Node]string),
	}
	i := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			d.order[n] = i
			i++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return d
}

// wrap returns the cached Element for n so identity comparisons hold.
func (d *Document) wrap(n *html.Node) *Element {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.elems[n]; ok {
		return el
	}
	el := &Element{doc: d, node: n}
	d.elems[n] = el
	return el
}

func (d *Document) URL() string { return d.url }

func (d *Document) Root() dom.Element {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return d.wrap(c)
		}
	}
	return nil
}

func (d *Document) Body() dom.Element {
	n := findTag(d.root, "body")
	if n == nil {
		return nil
	}
	return d.wrap(n)
}

func findTag(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTag(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func (d *Document) QuerySelectorAll(selector string) ([]dom.Element, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	nodes := cascadia.QueryAll(d.root, sel)
	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.wrap(n))
	}
	return out, nil
}

// Query returns the first element matching selector, or nil.
func (d *Document) Query(selector string) *Element {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil
	}
	return d.wrap(cascadia.Query(d.root, sel))
}

func (d *Document) EvaluateXPath(expr string) (dom.Element, error) {
	n, err := htmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	if n == nil || n.Type != html.ElementNode {
		return nil, nil
	}
	return d.wrap(n), nil
}

// SetRect overrides the layout box of el.
func (d *Document) SetRect(el *Element, r models.Rect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rects[el.node] = r
}

// SetStyle overrides a computed style property of el.
func (d *Document) SetStyle(el *Element, property, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.styles[el.node] == nil {
		d.styles[el.node] = make(map[string]string)
	}
	d.styles[el.node][property] = value
}

func (d *Document) rectOverride(n *html.Node) (models.Rect, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rects[n]
	return r, ok
}

func (d *Document) styleOverride(n *html.Node, property string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.styles[n][property]
	return v, ok
}

func (d *Document) valueOf(n *html.Node) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.values[n]
	return v, ok
}

func (d *Document) setValue(n *html.Node, v string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[n] = v
}

// Render serializes the whole document.
func (d *Document) Render() string {
	var b strings.Builder
	_ = html.Render(&b, d.root)
	return b.String()
}
