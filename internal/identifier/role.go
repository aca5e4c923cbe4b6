package identifier

import (
	"sort"
	"strings"

	"indiflow/internal/dom"
)

var implicitInputRoles = map[string]string{
	"button": "button", "submit": "button", "reset": "button", "image": "button",
	"checkbox": "checkbox", "radio": "radio", "range": "slider", "number": "spinbutton",
	"search": "searchbox", "email": "textbox", "tel": "textbox", "text": "textbox", "url": "textbox",
	"password": "textbox",
}

var implicitTagRoles = map[string]string{
	"button": "button", "textarea": "textbox", "option": "option", "nav": "navigation",
	"main": "main", "header": "banner", "footer": "contentinfo", "aside": "complementary",
	"ul": "list", "ol": "list", "li": "listitem", "table": "table", "tr": "row",
	"td": "cell", "th": "columnheader", "dialog": "dialog", "progress": "progressbar",
	"h1": "heading", "h2": "heading", "h3": "heading", "h4": "heading", "h5": "heading", "h6": "heading",
	"summary": "button", "article": "article", "menu": "list",
}

// ResolveRole returns the explicit role of el, or the implicit role its
// tag and type imply. It returns "" for elements without a role.
func ResolveRole(el dom.Element) string {
	if r, ok := el.Attr("role"); ok {
		if f := strings.Fields(r); len(f) > 0 {
			return strings.ToLower(f[0])
		}
	}
	tag := el.TagName()
	switch tag {
	case "a", "area":
		if _, ok := el.Attr("href"); ok {
			return "link"
		}
		return ""
	case "input":
		t := strings.ToLower(dom.AttrOr(el, "type"))
		if t == "" {
			t = "text"
		}
		if _, ok := el.Attr("list"); ok && implicitInputRoles[t] == "textbox" {
			return "combobox"
		}
		return implicitInputRoles[t]
	case "select":
		if _, multi := el.Attr("multiple"); multi {
			return "listbox"
		}
		if s := dom.AttrOr(el, "size"); s != "" && s != "0" && s != "1" {
			return "listbox"
		}
		return "combobox"
	case "img":
		if alt, ok := el.Attr("alt"); ok && alt == "" {
			return "presentation"
		}
		return "img"
	}
	return implicitTagRoles[tag]
}

// ImplicitSelectors returns CSS selectors for elements whose implicit role is
// role. The finder unions these with [role=...].
func ImplicitSelectors(role string) []string {
	var out []string
	switch role {
	case "link":
		return []string{"a[href]", "area[href]"}
	case "combobox":
		out = append(out, "select:not([multiple])", "input[list]")
	case "listbox":
		out = append(out, "select[multiple]", "select[size]")
	case "img":
		return []string{"img"}
	}
	for tag, r := range implicitTagRoles {
		if r == role {
			out = append(out, tag)
		}
	}
	for typ, r := range implicitInputRoles {
		if r == role {
			out = append(out, `input[type="`+typ+`"]`)
		}
	}
	if role == "textbox" {
		out = append(out, "input:not([type])")
	}
	sort.Strings(out)
	return out
}
