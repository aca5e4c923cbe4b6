// Package uikit holds heuristics for component libraries whose widgets
// render their internals in ways generic locators handle poorly: dropdown
// options mounted in portals, triggers that only open on a full pointer
// sequence, and buttons whose text lives in nested spans.
//
// Kits are consulted in registration order. Adding support for a new library
// means registering another Kit; the identifier and player never change.
package uikit

import (
	"strings"

	"indiflow/internal/dom"
	"indiflow/internal/models"
)

// Kit describes one component library.
type Kit struct {
	Name string

	// Component returns a CSS selector that scopes a text locator for el,
	// or "" when el is not a recognised component part.
	Component func(el dom.Element) string

	// OptionMarkers are lowercase substrings that, found in a locator
	// selector, mark the captured element as a dropdown option.
	OptionMarkers []string

	// IsTrigger reports whether clicking el opens a popup.
	IsTrigger func(el dom.Element) bool

	// TriggerTarget returns the element that actually listens for the
	// opening click. Nil means el itself.
	TriggerTarget func(el dom.Element) dom.Element

	// MenuSelectors match the popup containers this kit renders.
	MenuSelectors []string
}

type Registry struct {
	kits []Kit
}

func NewRegistry(kits ...Kit) *Registry {
	return &Registry{kits: kits}
}

// Default returns the built-in kits, most specific first.
func Default() *Registry {
	return NewRegistry(AntDesign(), MaterialUI(), Radix(), HeadlessUI(), Bootstrap(), ARIA())
}

// Register appends k after the existing kits.
func (r *Registry) Register(k Kit) {
	r.kits = append(r.kits, k)
}

func (r *Registry) Kits() []Kit {
	return append([]Kit(nil), r.kits...)
}

// Component returns the first component-scoped selector any kit produces.
func (r *Registry) Component(el dom.Element) (selector, kit string) {
	for _, k := range r.kits {
		if k.Component == nil {
			continue
		}
		if sel := k.Component(el); sel != "" {
			return sel, k.Name
		}
	}
	return "", ""
}

var optionRoles = map[string]bool{
	"option": true, "menuitem": true, "menuitemradio": true, "menuitemcheckbox": true, "treeitem": true,
}

// LooksLikeOption reports whether fp was captured on a dropdown option.
func (r *Registry) LooksLikeOption(fp models.ElementFingerprint) bool {
	if optionRoles[fp.Verification.Role] {
		return true
	}
	for _, loc := range fp.Locators {
		sel := strings.ToLower(loc.Selector)
		for _, k := range r.kits {
			for _, m := range k.OptionMarkers {
				if strings.Contains(sel, m) {
					return true
				}
			}
		}
	}
	return false
}

// Trigger reports whether el opens a dropdown and returns the element the
// opening click should land on.
func (r *Registry) Trigger(el dom.Element) (dom.Element, bool) {
	for _, k := range r.kits {
		if k.IsTrigger == nil || !k.IsTrigger(el) {
			continue
		}
		if k.TriggerTarget != nil {
			if t := k.TriggerTarget(el); t != nil {
				return t, true
			}
		}
		return el, true
	}
	return nil, false
}

// MenuSelectors returns the union of every kit's popup selectors.
func (r *Registry) MenuSelectors() []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range r.kits {
		for _, s := range k.MenuSelectors {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// OpenMenu returns the first visible popup container in doc, or nil.
func (r *Registry) OpenMenu(doc dom.Document) dom.Element {
	for _, sel := range r.MenuSelectors() {
		els, err := doc.QuerySelectorAll(sel)
		if err != nil {
			continue
		}
		for _, el := range els {
			if dom.Visible(el) {
				return el
			}
		}
	}
	return nil
}

// classScope returns a selector for el when it, or one of its nearest
// ancestors, carries one of classes. Ancestor matches scope the element's
// own tag under the component class.
func classScope(el dom.Element, depth int, classes ...string) string {
	for _, c := range classes {
		if dom.HasClass(el, c) {
			return "." + c
		}
	}
	for _, anc := range dom.Ancestors(el, depth) {
		for _, c := range classes {
			if dom.HasClass(anc, c) {
				return "." + c + " " + el.TagName()
			}
		}
	}
	return ""
}

func closestClass(el dom.Element, depth int, classes ...string) dom.Element {
	cands := append([]dom.Element{el}, dom.Ancestors(el, depth)...)
	for _, cand := range cands {
		for _, c := range classes {
			if dom.HasClass(cand, c) {
				return cand
			}
		}
	}
	return nil
}
