package player

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indiflow/internal/dom"
	"indiflow/internal/models"
	"indiflow/internal/netlog"
	"indiflow/pkg/htmldom"
)

const widgets = `<html><body>
<button id="size" aria-haspopup="listbox" aria-expanded="false">Size</button>
<ul role="listbox" id="menu" style="display:none">
  <li role="option">Small</li>
  <li role="option">Large</li>
</ul>
<form id="search"><input id="q" name="q" type="text"></form>
<select id="native" name="native"><option>One</option><option>Two</option></select>
<a href="/help" id="help">Help</a>
</body></html>`

func widgetPage() *htmldom.Page {
	return htmldom.NewPage(htmldom.MustParse(widgets, "https://app.test/w"))
}

func openMenuOnMousedown(p *htmldom.Page, d htmldom.Dispatched) {
	if d.Event.Type == "mousedown" && d.Target.ID() == "size" {
		doc := p.Current()
		doc.SetStyle(doc.Query("#menu"), "display", "block")
	}
}

func TestDropdownTriggerAndOption(t *testing.T) {
	ctx := context.Background()
	src := htmldom.MustParse(widgets, "")
	src.SetStyle(src.Query("#menu"), "display", "block")
	trigger := capture(src, "#size")
	option := capture(src, "li:nth-of-type(2)")
	assert.Equal(t, "option", option.Verification.Role)

	page := widgetPage()
	page.OnDispatch = openMenuOnMousedown
	e := newEnv(page)
	flow := &models.IndiFlow{ID: "dd", Steps: []models.FlowStep{
		step("1", models.ClickAction{Element: trigger}),
		step("2", models.ClickAction{Element: option}),
	}}

	result, err := e.player().PlayFlow(ctx, flow, 0)
	require.NoError(t, err)
	require.True(t, result.Success, "%+v", result.Results)

	doc := page.Current()
	assert.Equal(t, []string{"focus", "mouseenter", "mouseover", "mousedown", "mouseup", "click"},
		page.EventTypes(doc.Query("#size")))
	assert.Equal(t, []string{"click"}, page.EventTypes(doc.Query("li:nth-of-type(2)")))
}

func TestDropdownOptionRenderedLate(t *testing.T) {
	ctx := context.Background()
	src := htmldom.MustParse(widgets, "")
	src.SetStyle(src.Query("#menu"), "display", "block")
	option := capture(src, "li:nth-of-type(2)")

	page := htmldom.NewPage(htmldom.MustParse(`<html><body><p>loading</p></body></html>`, ""))
	e := newEnv(page)
	opts := fastOptions()
	opts.ElementTimeout = 20 * time.Millisecond
	opts.OptionRetryDelay = 50 * time.Millisecond

	late := htmldom.MustParse(widgets, "")
	late.SetStyle(late.Query("#menu"), "display", "block")
	timer := time.AfterFunc(100*time.Millisecond, func() { page.SetDocument(late) })
	defer timer.Stop()

	result, err := e.player(WithOptions(opts)).PlayFlow(ctx, &models.IndiFlow{ID: "late", Steps: []models.FlowStep{
		step("1", models.ClickAction{Element: option}),
	}}, 0)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, models.StrategyRoleWithText, result.Results[0].MatchedStrategy)
}

func TestNativeSelectIsOnlyFocused(t *testing.T) {
	ctx := context.Background()
	src := htmldom.MustParse(widgets, "")
	page := widgetPage()
	e := newEnv(page)

	result, err := e.player().PlayFlow(ctx, &models.IndiFlow{ID: "sel", Steps: []models.FlowStep{
		step("1", models.ClickAction{Element: capture(src, "#native")}),
		step("2", models.ChangeAction{Element: capture(src, "#native"), Value: "Two"}),
	}}, 0)
	require.NoError(t, err)
	require.True(t, result.Success)

	sel := page.Current().Query("#native")
	assert.Equal(t, []string{"focus", "focus", "input", "change"}, page.EventTypes(sel))
	assert.Equal(t, "Two", sel.Value())
}

func TestKeypressEnterSubmitsForm(t *testing.T) {
	ctx := context.Background()
	src := htmldom.MustParse(widgets, "")
	page := widgetPage()
	e := newEnv(page)

	result, err := e.player().PlayFlow(ctx, &models.IndiFlow{ID: "k", Steps: []models.FlowStep{
		step("1", models.KeypressAction{Element: capture(src, "#q"), Key: "Enter", Modifiers: models.Modifiers{Shift: true}}),
	}}, 0)
	require.NoError(t, err)
	require.True(t, result.Success)

	doc := page.Current()
	assert.Equal(t, []string{"focus", "keydown", "keyup"}, page.EventTypes(doc.Query("#q")))
	assert.Equal(t, []string{"submit"}, page.EventTypes(doc.Query("#search")))

	var keydown dom.Event
	for _, d := range page.Events() {
		if d.Event.Type == "keydown" {
			keydown = d.Event
		}
	}
	assert.Equal(t, "Enter", keydown.Key)
	assert.True(t, keydown.Modifiers.Shift)
}

func TestHoverDispatchesPointerEvents(t *testing.T) {
	ctx := context.Background()
	src := htmldom.MustParse(widgets, "")
	page := widgetPage()
	e := newEnv(page)

	at := &models.Point{X: 12, Y: 34}
	result, err := e.player().PlayFlow(ctx, &models.IndiFlow{ID: "h", Steps: []models.FlowStep{
		step("1", models.HoverAction{Element: capture(src, "#help"), Position: at}),
	}}, 0)
	require.NoError(t, err)
	require.True(t, result.Success)

	help := page.Current().Query("#help")
	assert.Equal(t, []string{"mouseenter", "mouseover", "mousemove", "focus"}, page.EventTypes(help))
	for _, d := range page.Events() {
		if d.Event.Type == "mouseenter" {
			assert.False(t, d.Event.Bubbles)
			assert.Equal(t, 12.0, d.Event.ClientX)
		}
	}
}

type panickyPage struct {
	*htmldom.Page
}

func (panickyPage) Click(ctx context.Context, el dom.Element) error {
	panic("renderer crashed")
}

func TestPanicBecomesFailedStep(t *testing.T) {
	ctx := context.Background()
	src := htmldom.MustParse(widgets, "")
	e := newEnv(widgetPage())
	p := New(panickyPage{e.page}, e.store, e.coord, nil, nil, WithOptions(fastOptions()))

	result, err := p.PlayFlow(ctx, &models.IndiFlow{ID: "p", Steps: []models.FlowStep{
		step("1", models.ClickAction{Element: capture(src, "#help")}),
	}}, 0)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].ElementFound)
	assert.False(t, result.Results[0].ActionPerformed)
	assert.Contains(t, result.Results[0].Error, "renderer crashed")
	assert.False(t, p.IsPlaying())
}

func TestAPIValidationIsReportedAndOptionallyStrict(t *testing.T) {
	ctx := context.Background()
	src := htmldom.MustParse(widgets, "")
	click := step("1", models.ClickAction{Element: capture(src, "#help")})
	click.TriggeredAPIs = []models.ExpectedAPI{{Method: "GET", URLPattern: "/help/:id", ExpectedStatus: 200}}
	flow := &models.IndiFlow{ID: "api", Steps: []models.FlowStep{click}}

	e := newEnv(widgetPage())
	result, err := e.player().PlayFlow(ctx, flow, 0)
	require.NoError(t, err)
	assert.True(t, result.Success, "API results alone do not fail a step")
	require.Len(t, result.Results[0].APIResults, 1)
	assert.False(t, result.Results[0].APIResults[0].Matched)

	strict := fastOptions()
	strict.StrictAPIValidation = true
	result, err = e.player(WithOptions(strict)).PlayFlow(ctx, flow, 0)
	require.NoError(t, err)
	assert.False(t, result.Success)

	calls := netlog.NewCache(0, 0)
	page := widgetPage()
	page.OnDispatch = func(p *htmldom.Page, d htmldom.Dispatched) {
		if d.Native {
			calls.Add(models.NetworkCall{Method: "GET", URL: "https://app.test/help/7", Status: 200})
		}
	}
	e = newEnv(page)
	result, err = e.player(WithOptions(strict), WithNetworkCache(calls)).PlayFlow(ctx, flow, 0)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Results[0].APIResults[0].Matched)
}
