// Package identifier turns a live element into an ElementFingerprint: every
// applicable locator strategy, ranked, plus the metadata used to verify a
// future match.
package identifier

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"indiflow/internal/dom"
	"indiflow/internal/locator"
	"indiflow/internal/models"
	"indiflow/internal/textmatch"
	"indiflow/internal/uikit"
)

// Strategy priorities and confidences. Lower priority is tried first.
var (
	RoleWithName = spec(1, models.StrategyRoleWithName, 10)
	RoleWithText = spec(2, models.StrategyRoleWithText, 9)
	TestID       = spec(3, models.StrategyTestID, 9)
	ID           = spec(4, models.StrategyID, 8)
	Name         = spec(5, models.StrategyName, 8)
	TextContent  = spec(6, models.StrategyTextContent, 7)
	Placeholder  = spec(7, models.StrategyPlaceholder, 7)
	Framework    = spec(8, models.StrategyFramework, 7)
	SmartCSS     = spec(9, models.StrategySmartCSS, 6)
	Position     = spec(10, models.StrategyPosition, 5)
	XPath        = spec(11, models.StrategyXPath, 4)
)

type strategySpec struct {
	Priority   int
	Strategy   models.Strategy
	Confidence int
}

func spec(p int, s models.Strategy, c int) strategySpec {
	return strategySpec{Priority: p, Strategy: s, Confidence: c}
}

func (s strategySpec) locator(selector string) models.Locator {
	return models.Locator{Priority: s.Priority, Strategy: s.Strategy, Selector: selector, Confidence: s.Confidence}
}

// TestIDAttributes are checked in order; the first present one wins.
var TestIDAttributes = []string{"data-testid", "data-test", "data-test-id", "data-cy", "data-qa"}

const (
	maxRoleText      = 100
	minLocatorText   = 2
	maxLocatorText   = 100
	maxVerifyText    = 200
	maxVisualHTML    = 500
	maxSmartCSSDepth = 8
)

var formControls = map[string]bool{"input": true, "select": true, "textarea": true, "button": true}

// text-content is skipped for these: their text is either absent or the
// concatenation of unrelated children.
var noTextLocator = map[string]bool{
	"html": true, "body": true, "select": true, "textarea": true, "input": true,
	"script": true, "style": true,
}

type Identifier struct {
	kits   *uikit.Registry
	logger *zap.Logger
}

func New(kits *uikit.Registry, logger *zap.Logger) *Identifier {
	if kits == nil {
		kits = uikit.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Identifier{kits: kits, logger: logger.Named("identifier")}
}

// CaptureElement computes the fingerprint of el in doc. It never fails: a
// strategy that panics on a pathological element is skipped, and the
// position and XPath fallbacks are always present.
func (id *Identifier) CaptureElement(el dom.Element, doc dom.Document) models.ElementFingerprint {
	fp := models.ElementFingerprint{}
	text := textmatch.Collapse(id.safeText(el))
	role := id.safeRole(el)

	strategies := []struct {
		name string
		fn   func() []models.Locator
	}{
		{"role", func() []models.Locator { return roleLocators(el, role, text) }},
		{"test-id", func() []models.Locator { return testIDLocators(el) }},
		{"id", func() []models.Locator { return idLocators(el) }},
		{"name", func() []models.Locator { return nameLocators(el) }},
		{"text", func() []models.Locator { return textLocators(el, text) }},
		{"placeholder", func() []models.Locator { return placeholderLocators(el) }},
		{"framework", func() []models.Locator { return id.frameworkLocators(el, text) }},
		{"smart-css", func() []models.Locator { return smartCSSLocators(el, doc) }},
	}
	for _, s := range strategies {
		fp.Locators = append(fp.Locators, id.guard(s.name, s.fn)...)
	}

	pos := id.guard("position", func() []models.Locator { return []models.Locator{Position.locator(PositionPath(el))} })
	if len(pos) == 0 {
		pos = []models.Locator{Position.locator(el.TagName())}
	}
	xp := id.guard("xpath", func() []models.Locator { return []models.Locator{XPath.locator(XPathFor(el))} })
	if len(xp) == 0 {
		xp = []models.Locator{XPath.locator("//" + el.TagName())}
	}
	fp.Locators = append(fp.Locators, pos...)
	fp.Locators = append(fp.Locators, xp...)
	models.SortLocators(fp.Locators)

	fp.Visual = models.VisualSnapshot{Rect: el.Rect(), HTML: textmatch.Truncate(el.InnerHTML(), maxVisualHTML)}
	fp.Verification = models.Verification{
		TagName:     el.TagName(),
		TextContent: textmatch.Truncate(text, maxVerifyText),
		Role:        role,
	}
	if el.TagName() == "input" {
		t := strings.ToLower(dom.AttrOr(el, "type"))
		if t == "" {
			t = "text"
		}
		fp.Verification.InputType = t
	}

	id.logger.Debug("captured element",
		zap.String("tag", el.TagName()),
		zap.Int("locators", len(fp.Locators)),
		zap.String("best", fp.Locators[0].Selector))
	return fp
}

func (id *Identifier) guard(name string, fn func() []models.Locator) (out []models.Locator) {
	defer func() {
		if r := recover(); r != nil {
			id.logger.Warn("locator strategy panicked", zap.String("strategy", name), zap.Any("panic", r))
			out = nil
		}
	}()
	return fn()
}

func (id *Identifier) safeText(el dom.Element) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	return el.TextContent()
}

func (id *Identifier) safeRole(el dom.Element) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	return ResolveRole(el)
}

func roleLocators(el dom.Element, role, text string) []models.Locator {
	if role == "" {
		return nil
	}
	var out []models.Locator
	if label := strings.TrimSpace(dom.AttrOr(el, "aria-label")); label != "" {
		out = append(out, RoleWithName.locator(locator.Role(role, "name", label)))
	}
	if text != "" && utf8.RuneCountInString(text) < maxRoleText {
		out = append(out, RoleWithText.locator(locator.Role(role, "text", text)))
	}
	return out
}

func testIDLocators(el dom.Element) []models.Locator {
	for _, attr := range TestIDAttributes {
		if v := dom.AttrOr(el, attr); v != "" {
			return []models.Locator{TestID.locator("[" + attr + "=" + locator.CSSString(v) + "]")}
		}
	}
	return nil
}

func idLocators(el dom.Element) []models.Locator {
	v := el.ID()
	if v == "" || IsDynamicID(v) {
		return nil
	}
	return []models.Locator{ID.locator(locator.IDSelector(v))}
}

func nameLocators(el dom.Element) []models.Locator {
	if !formControls[el.TagName()] {
		return nil
	}
	v := dom.AttrOr(el, "name")
	if v == "" {
		return nil
	}
	return []models.Locator{Name.locator(el.TagName() + "[name=" + locator.CSSString(v) + "]")}
}

func textLocators(el dom.Element, text string) []models.Locator {
	tag := el.TagName()
	n := utf8.RuneCountInString(text)
	if noTextLocator[tag] || n < minLocatorText || n > maxLocatorText {
		return nil
	}
	base := tag
	switch tag {
	case "a":
		if href := dom.AttrOr(el, "href"); href != "" {
			base = "a[href=" + locator.CSSString(href) + "]"
		}
	case "button":
		if typ := dom.AttrOr(el, "type"); typ != "" {
			base = "button[type=" + locator.CSSString(typ) + "]"
		}
	}
	return []models.Locator{TextContent.locator(locator.HasText(base, text))}
}

func placeholderLocators(el dom.Element) []models.Locator {
	tag := el.TagName()
	if tag != "input" && tag != "textarea" {
		return nil
	}
	v := dom.AttrOr(el, "placeholder")
	if v == "" {
		return nil
	}
	return []models.Locator{Placeholder.locator(tag + "[placeholder=" + locator.CSSString(v) + "]")}
}

func (id *Identifier) frameworkLocators(el dom.Element, text string) []models.Locator {
	n := utf8.RuneCountInString(text)
	if n == 0 || n > maxLocatorText {
		return nil
	}
	scope, _ := id.kits.Component(el)
	if scope == "" {
		return nil
	}
	return []models.Locator{Framework.locator(locator.HasText(scope, text))}
}

func smartCSSLocators(el dom.Element, doc dom.Document) []models.Locator {
	if doc == nil {
		return nil
	}
	if sel := SmartCSSPath(el, doc); sel != "" {
		return []models.Locator{SmartCSS.locator(sel)}
	}
	return nil
}

// SmartCSSPath walks from el toward <body>, naming each level by tag, one
// stable class and, when siblings share the tag, :nth-of-type. It stops as
// soon as the path selects el alone.
func SmartCSSPath(el dom.Element, doc dom.Document) string {
	var parts []string
	cur := el
	for depth := 0; cur != nil && depth < maxSmartCSSDepth; depth++ {
		tag := cur.TagName()
		if tag == "body" || tag == "html" {
			parts = append([]string{tag}, parts...)
			break
		}
		if v := cur.ID(); v != "" && !IsDynamicID(v) && locator.IsIdent(v) {
			parts = append([]string{tag + "#" + v}, parts...)
		} else {
			parts = append([]string{levelSelector(cur)}, parts...)
		}
		sel := strings.Join(parts, " > ")
		if uniqueMatch(doc, sel, el) {
			return sel
		}
		cur = cur.Parent()
	}
	sel := strings.Join(parts, " > ")
	if uniqueMatch(doc, sel, el) {
		return sel
	}
	return ""
}

func levelSelector(el dom.Element) string {
	seg := el.TagName()
	for _, c := range el.ClassList() {
		if IsStableClass(c) {
			seg += "." + c
			break
		}
	}
	if p := el.Parent(); p != nil {
		same, idx := 0, 0
		for _, sib := range p.Children() {
			if sib.TagName() == el.TagName() {
				same++
				if sib == el {
					idx = same
				}
			}
		}
		if same > 1 {
			seg += ":nth-of-type(" + strconv.Itoa(idx) + ")"
		}
	}
	return seg
}

func uniqueMatch(doc dom.Document, sel string, el dom.Element) bool {
	els, err := doc.QuerySelectorAll(sel)
	return err == nil && len(els) == 1 && els[0] == el
}

// PositionPath is the nth-child chain from <body> (or the root when el is
// outside body) down to el.
func PositionPath(el dom.Element) string {
	var chain []dom.Element
	for cur := el; cur != nil; cur = cur.Parent() {
		chain = append([]dom.Element{cur}, chain...)
		if cur.TagName() == "body" {
			break
		}
	}
	parts := []string{chain[0].TagName()}
	for i := 1; i < len(chain); i++ {
		idx := 0
		for j, sib := range chain[i-1].Children() {
			if sib == chain[i] {
				idx = j + 1
				break
			}
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", chain[i].TagName(), idx))
	}
	return strings.Join(parts, " > ")
}

// XPathFor returns //*[@id="..."] for a stable id, otherwise the absolute
// tag/index path from the root.
func XPathFor(el dom.Element) string {
	if v := el.ID(); v != "" && !IsDynamicID(v) && !strings.Contains(v, `"`) {
		return `//*[@id="` + v + `"]`
	}
	var parts []string
	for cur := el; cur != nil; cur = cur.Parent() {
		idx := 1
		if p := cur.Parent(); p != nil {
			n := 0
			for _, sib := range p.Children() {
				if sib.TagName() == cur.TagName() {
					n++
					if sib == cur {
						idx = n
					}
				}
			}
		}
		parts = append([]string{fmt.Sprintf("%s[%d]", cur.TagName(), idx)}, parts...)
	}
	return "/" + strings.Join(parts, "/")
}
