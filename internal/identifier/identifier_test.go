package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indiflow/internal/dom"
	"indiflow/internal/models"
	"indiflow/pkg/htmldom"
)

const form = `<html><head></head><body>
<nav id="main-nav"><a href="/home">Home</a><a href="/docs" class="css-1x2y3z nav-link">Docs</a></nav>
<form class="login">
  <input id="email" name="email" type="email" placeholder="Email address">
  <button id="button-x7f3a" type="submit" class="btn primary">Save</button>
  <button aria-label="Close dialog" data-testid="close">×</button>
</form>
<div><div></div><div class="card"><span>one</span><span>two</span></div></div>
</body></html>`

func capture(t *testing.T, doc *htmldom.Document, sel string) models.ElementFingerprint {
	t.Helper()
	el := doc.Query(sel)
	require.NotNil(t, el, sel)
	return New(nil, nil).CaptureElement(el, doc)
}

func selectors(fp models.ElementFingerprint) map[models.Strategy]string {
	out := make(map[models.Strategy]string)
	for _, l := range fp.Locators {
		out[l.Strategy] = l.Selector
	}
	return out
}

func TestIsDynamicID(t *testing.T) {
	dynamic := []string{
		"42", "a1b2c3d4e5f6g7h8", "3f2504e0-4f89-11d3-9a0c-0305e82c3301", ":r3:", ":R1a:",
		"mui-17", "button-x7f3a", "radix-:r5:", "headlessui-menu-button-1", "ember123",
		"row-1699999999999", "V1StGXR8_Z5jdHi6B-myT",
	}
	for _, id := range dynamic {
		assert.True(t, IsDynamicID(id), id)
	}
	for _, id := range []string{"submit-button", "main-nav", "email", "app", "login-form", "deadbeefcafe"} {
		assert.False(t, IsDynamicID(id), id)
	}
}

func TestIsStableClass(t *testing.T) {
	for _, c := range []string{"btn", "primary", "nav-link", "ant-btn", "MuiButton-root", "card", "card__title"} {
		assert.True(t, IsStableClass(c), c)
	}
	for _, c := range []string{"css-1x2y3z", "MuiBox-root", "md:flex", "p-4", "mt-2", "text-sm", "flex", "active", "styles__title__3xYz1", "jsx-123456"} {
		assert.False(t, IsStableClass(c), c)
	}
}

func TestBareElementStillHasFallbacks(t *testing.T) {
	doc := htmldom.MustParse(form, "https://app.test/")
	fp := capture(t, doc, "body > div > div:nth-of-type(1)")

	require.NotEmpty(t, fp.Locators)
	n := len(fp.Locators)
	require.GreaterOrEqual(t, n, 2)
	assert.Equal(t, models.StrategyPosition, fp.Locators[n-2].Strategy)
	assert.Equal(t, models.StrategyXPath, fp.Locators[n-1].Strategy)
	for i := 1; i < n; i++ {
		assert.LessOrEqual(t, fp.Locators[i-1].Priority, fp.Locators[i].Priority)
	}
	assert.Equal(t, "div", fp.Verification.TagName)
	assert.Empty(t, fp.Verification.TextContent)
}

func TestCaptureButton(t *testing.T) {
	doc := htmldom.MustParse(form, "https://app.test/")
	fp := capture(t, doc, "button.btn")
	got := selectors(fp)

	assert.Equal(t, `role=button[text="Save"]`, got[models.StrategyRoleWithText])
	assert.Equal(t, `button[type="submit"]:has-text("Save")`, got[models.StrategyTextContent])
	assert.NotContains(t, got, models.StrategyID, "dynamic id must be skipped")
	assert.Equal(t, "body > form:nth-child(2) > button:nth-child(2)", got[models.StrategyPosition])
	assert.Equal(t, "/html[1]/body[1]/form[1]/button[1]", got[models.StrategyXPath])
	assert.Equal(t, models.Verification{TagName: "button", TextContent: "Save", Role: "button"}, fp.Verification)
	assert.Equal(t, models.StrategyRoleWithText, fp.Locators[0].Strategy)
}

func TestCaptureInput(t *testing.T) {
	doc := htmldom.MustParse(form, "https://app.test/")
	fp := capture(t, doc, "#email")
	got := selectors(fp)

	assert.Equal(t, "#email", got[models.StrategyID])
	assert.Equal(t, `input[name="email"]`, got[models.StrategyName])
	assert.Equal(t, `input[placeholder="Email address"]`, got[models.StrategyPlaceholder])
	assert.Equal(t, "input#email", got[models.StrategySmartCSS])
	assert.Equal(t, `//*[@id="email"]`, got[models.StrategyXPath])
	assert.Equal(t, "email", fp.Verification.InputType)
	assert.Equal(t, "textbox", fp.Verification.Role)
}

func TestCaptureLabelledButton(t *testing.T) {
	doc := htmldom.MustParse(form, "https://app.test/")
	fp := capture(t, doc, `[data-testid="close"]`)
	got := selectors(fp)

	assert.Equal(t, `role=button[name="Close dialog"]`, got[models.StrategyRoleWithName])
	assert.Equal(t, `[data-testid="close"]`, got[models.StrategyTestID])
	assert.Equal(t, models.StrategyRoleWithName, fp.Locators[0].Strategy)
	assert.Equal(t, 10, fp.Locators[0].Confidence)
}

func TestSmartCSSSkipsHashedClasses(t *testing.T) {
	doc := htmldom.MustParse(form, "https://app.test/")
	fp := capture(t, doc, "a.nav-link")
	got := selectors(fp)

	assert.Equal(t, "a.nav-link:nth-of-type(2)", got[models.StrategySmartCSS])
	assert.Equal(t, `a[href="/docs"]:has-text("Docs")`, got[models.StrategyTextContent])
	assert.Equal(t, `role=link[text="Docs"]`, got[models.StrategyRoleWithText])
}

func TestSmartCSSUsesNthOfType(t *testing.T) {
	doc := htmldom.MustParse(form, "https://app.test/")
	el := doc.Query(".card span:nth-of-type(2)")
	assert.Equal(t, "span:nth-of-type(2)", SmartCSSPath(el, doc))

	first := doc.Query(".card span:nth-of-type(1)")
	assert.Equal(t, "span:nth-of-type(1)", SmartCSSPath(first, doc))

	card := doc.Query(".card")
	assert.Equal(t, "div.card:nth-of-type(2)", SmartCSSPath(card, doc))
}

func TestFrameworkLocator(t *testing.T) {
	doc := htmldom.MustParse(`<html><body><div class="ant-select-dropdown">
		<div class="ant-select-item ant-select-item-option" title="Apple">Apple</div></div></body></html>`, "https://app.test/")
	fp := capture(t, doc, ".ant-select-item-option")
	assert.Equal(t, `.ant-select-item-option:has-text("Apple")`, selectors(fp)[models.StrategyFramework])
}

func TestLongTextSkipsTextLocators(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "word "
	}
	doc := htmldom.MustParse(`<html><body><p>`+long+`</p></body></html>`, "https://app.test/")
	fp := capture(t, doc, "p")
	got := selectors(fp)
	assert.NotContains(t, got, models.StrategyTextContent)
	assert.NotContains(t, got, models.StrategyRoleWithText)
}

// brokenElement panics on class access, as a detached or foreign node might.
type brokenElement struct{ *htmldom.Element }

func (brokenElement) ClassList() []string { panic("detached") }

func TestCaptureNeverPanics(t *testing.T) {
	doc := htmldom.MustParse(form, "https://app.test/")
	var el dom.Element = brokenElement{doc.Query("button.btn")}

	fp := New(nil, nil).CaptureElement(el, doc)
	got := selectors(fp)
	assert.Contains(t, got, models.StrategyPosition)
	assert.Contains(t, got, models.StrategyXPath)
	assert.NotContains(t, got, models.StrategySmartCSS)
}

func TestResolveRole(t *testing.T) {
	doc := htmldom.MustParse(`<html><body>
		<a href="/x" id="l">x</a><a id="na">y</a><input id="s" type="submit"><input id="t">
		<select id="sel"></select><div role="tab menuitem" id="r"></div><h2 id="h">t</h2></body></html>`, "https://app.test/")
	cases := map[string]string{"#l": "link", "#na": "", "#s": "button", "#t": "textbox", "#sel": "combobox", "#r": "tab", "#h": "heading"}
	for sel, want := range cases {
		assert.Equal(t, want, ResolveRole(doc.Query(sel)), sel)
	}
}
