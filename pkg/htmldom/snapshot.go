package htmldom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"indiflow/internal/models"
)

// SnapshotNode is one node of a DOM tree serialized by a live page. A node
// with Text set is a text node; everything else describes an element.
type SnapshotNode struct {
	Text       *string        `json:"text,omitempty"`
	Tag        string         `json:"tag,omitempty"`
	Attrs      [][2]string    `json:"attrs,omitempty"`
	Children   []SnapshotNode `json:"children,omitempty"`
	Rect       *models.Rect   `json:"rect,omitempty"`
	Value      *string        `json:"value,omitempty"`
	Cursor     string         `json:"cursor,omitempty"`
	Display    string         `json:"display,omitempty"`
	Visibility string         `json:"visibility,omitempty"`
}

// Snapshot is the serialized state of a page: its URL, scroll offsets and
// the documentElement subtree.
type Snapshot struct {
	URL     string       `json:"url"`
	ScrollX float64      `json:"scrollX"`
	ScrollY float64      `json:"scrollY"`
	Root    SnapshotNode `json:"root"`
}

// FromSnapshot rebuilds a Document from a snapshot, keeping the layout and
// form state the page reported.
func FromSnapshot(s *Snapshot) *Document {
	docNode := &html.Node{Type: html.DocumentNode}
	type pending struct {
		node *html.Node
		snap *SnapshotNode
	}
	var layout []pending

	var build func(parent *html.Node, sn *SnapshotNode)
	build = func(parent *html.Node, sn *SnapshotNode) {
		if sn.Text != nil {
			parent.AppendChild(&html.Node{Type: html.TextNode, Data: *sn.Text})
			return
		}
		tag := strings.ToLower(sn.Tag)
		n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
		for _, kv := range sn.Attrs {
			n.Attr = append(n.Attr, html.Attribute{Key: strings.ToLower(kv[0]), Val: kv[1]})
		}
		parent.AppendChild(n)
		layout = append(layout, pending{node: n, snap: sn})
		for i := range sn.Children {
			build(n, &sn.Children[i])
		}
	}
	build(docNode, &s.Root)

	d := newDocument(docNode, s.URL)
	for _, p := range layout {
		if p.snap.Rect != nil {
			d.rects[p.node] = *p.snap.Rect
		}
		if p.snap.Value != nil {
			d.values[p.node] = *p.snap.Value
		}
		styles := map[string]string{}
		if p.snap.Cursor != "" {
			styles["cursor"] = p.snap.Cursor
		}
		if p.snap.Display != "" {
			styles["display"] = p.snap.Display
		}
		if p.snap.Visibility != "" {
			styles["visibility"] = p.snap.Visibility
		}
		if len(styles) > 0 {
			d.styles[p.node] = styles
		}
	}
	return d
}
