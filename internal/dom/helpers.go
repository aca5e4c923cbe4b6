package dom

import (
	"strings"

	"indiflow/internal/models"
)

// Ancestors returns up to max ancestors of el, nearest first. A negative max
// walks to the root.
func Ancestors(el Element, max int) []Element {
	var out []Element
	for p := el.Parent(); p != nil; p = p.Parent() {
		if max >= 0 && len(out) >= max {
			break
		}
		out = append(out, p)
	}
	return out
}

// Closest returns el or its nearest ancestor matching pred.
func Closest(el Element, pred func(Element) bool) Element {
	for cur := el; cur != nil; cur = cur.Parent() {
		if pred(cur) {
			return cur
		}
	}
	return nil
}

// HasClass reports whether el carries class c.
func HasClass(el Element, c string) bool {
	for _, have := range el.ClassList() {
		if have == c {
			return true
		}
	}
	return false
}

// HasClassPrefix reports whether any class of el starts with prefix.
func HasClassPrefix(el Element, prefix string) bool {
	for _, have := range el.ClassList() {
		if strings.HasPrefix(have, prefix) {
			return true
		}
	}
	return false
}

// AttrOr returns the attribute value or "" when it is absent.
func AttrOr(el Element, name string) string {
	v, _ := el.Attr(name)
	return v
}

// Visible reports whether el has a non-zero layout box and is displayed.
func Visible(el Element) bool {
	if el == nil {
		return false
	}
	r := el.Rect()
	if r.Width <= 0 || r.Height <= 0 {
		return false
	}
	return el.ComputedStyle("display") != "none" && el.ComputedStyle("visibility") != "hidden"
}

// Center returns the viewport center of el.
func Center(el Element) models.Point {
	r := el.Rect()
	return models.Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Path returns the element-child indices leading from the root element to el.
func Path(el Element) []int {
	var rev []int
	for cur := el; cur.Parent() != nil; cur = cur.Parent() {
		for i, sib := range cur.Parent().Children() {
			if sib == cur {
				rev = append(rev, i)
				break
			}
		}
	}
	out := make([]int, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

// ElementAt follows a Path from the root of doc.
func ElementAt(doc Document, path []int) Element {
	cur := doc.Root()
	for _, idx := range path {
		if cur == nil {
			return nil
		}
		kids := cur.Children()
		if idx < 0 || idx >= len(kids) {
			return nil
		}
		cur = kids[idx]
	}
	return cur
}

// Contains reports whether el is root or a descendant of root.
func Contains(root, el Element) bool {
	for cur := el; cur != nil; cur = cur.Parent() {
		if cur == root {
			return true
		}
	}
	return false
}
