package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"indiflow/internal/dom"
	"indiflow/internal/finder"
	"indiflow/internal/models"
	"indiflow/internal/netlog"
)

var errNotElement = errors.New("resolved node is not an element")

// playStep runs one non-navigation step. Panics are converted into a failed
// result.
func (p *Player) playStep(ctx context.Context, step models.FlowStep) (res models.StepResult) {
	start := p.now()
	res = models.StepResult{Step: step, APIResults: []models.APIValidationResult{}}
	defer func() {
		if r := recover(); r != nil {
			res.Passed, res.ActionPerformed = false, false
			res.Error = fmt.Sprintf("panic: %v", r)
			p.logger.Error("step panicked", zap.Any("panic", r))
		}
		res.Duration = p.now().Sub(start).Milliseconds()
	}()

	var err error
	switch a := step.Action.(type) {
	case models.WaitAction:
		d := p.opts.DefaultWait
		if step.WaitAfter > 0 {
			d = time.Duration(step.WaitAfter) * time.Millisecond
		}
		err = sleep(ctx, d)
	case models.ScrollAction:
		err = p.page.ScrollTo(ctx, a.ScrollPosition.X, a.ScrollPosition.Y)
	case models.ElementAction:
		var m *finder.Match
		m, err = p.locate(ctx, a.Target())
		if err != nil {
			break
		}
		res.ElementFound = true
		res.MatchedStrategy = m.Locator.Strategy
		res.MatchedSelector = m.Locator.Selector
		err = p.perform(ctx, m.Element, a)
	default:
		err = fmt.Errorf("unsupported action %q", step.Action.Type())
	}

	if err != nil {
		res.Error = err.Error()
	} else {
		res.ActionPerformed = true
	}

	if len(step.TriggeredAPIs) > 0 {
		res.APIResults = netlog.ValidateAPIs(step.TriggeredAPIs, p.calls.Between(start, time.Time{}))
	}
	res.Passed = res.ActionPerformed
	if p.opts.StrictAPIValidation && !netlog.AllMatched(res.APIResults) {
		res.Passed = false
		if res.Error == "" {
			res.Error = "expected API calls were not observed"
		}
	}
	return res
}

// locate resolves the target of an element step. Dropdown options get a
// head start for the menu to render and one slower retry.
func (p *Player) locate(ctx context.Context, fp models.ElementFingerprint) (*finder.Match, error) {
	option := p.kits.LooksLikeOption(fp)
	if option {
		if !p.waitForMenu(ctx, p.opts.DropdownWait) {
			p.logger.Debug("no dropdown menu visible before option lookup")
		}
	}

	m, err := p.finder.FindElement(ctx, fp, p.opts.ElementTimeout)
	if err != nil && option && errors.Is(err, finder.ErrElementNotFound) {
		if err := sleep(ctx, p.opts.OptionRetryDelay); err != nil {
			return nil, err
		}
		m, err = p.finder.FindElement(ctx, fp, p.opts.OptionRetryTimeout)
	}
	if err != nil {
		return nil, err
	}
	if m == nil || m.Element == nil {
		return nil, errNotElement
	}
	return m, nil
}

// waitForMenu polls until any known popup menu is visible.
func (p *Player) waitForMenu(ctx context.Context, timeout time.Duration) bool {
	deadline := p.now().Add(timeout)
	for {
		if doc, err := p.page.Document(ctx); err == nil && p.kits.OpenMenu(doc) != nil {
			return true
		}
		if !p.now().Before(deadline) {
			return false
		}
		if err := sleep(ctx, p.opts.PollInterval); err != nil {
			return false
		}
	}
}

func (p *Player) perform(ctx context.Context, el dom.Element, action models.ElementAction) error {
	switch a := action.(type) {
	case models.ClickAction:
		return p.click(ctx, el)
	case models.InputAction:
		return p.setValue(ctx, el, a.Value)
	case models.ChangeAction:
		return p.setValue(ctx, el, a.Value)
	case models.HoverAction:
		return p.hover(ctx, el, a.Position)
	case models.KeypressAction:
		return p.keypress(ctx, el, a.Key, a.Modifiers)
	}
	return fmt.Errorf("unsupported action %q", action.Type())
}

func (p *Player) click(ctx context.Context, el dom.Element) error {
	if el.TagName() == "select" {
		// the option list of a native select cannot be opened; the change
		// step that follows sets the value
		return p.page.Focus(ctx, el)
	}
	target, ok := p.kits.Trigger(el)
	if !ok {
		return p.page.Click(ctx, el)
	}

	if err := p.comprehensiveClick(ctx, target); err != nil {
		return err
	}
	if p.waitForMenu(ctx, p.opts.MenuWait) {
		return nil
	}
	p.logger.Debug("dropdown did not open, clicking again", zap.String("tag", target.TagName()))
	if err := p.page.Focus(ctx, target); err != nil {
		return err
	}
	return p.page.Click(ctx, target)
}

// comprehensiveClick replays the full pointer sequence a user click
// produces, for widgets that open on mousedown rather than click.
func (p *Player) comprehensiveClick(ctx context.Context, el dom.Element) error {
	pos := dom.Center(el)
	if err := p.page.Focus(ctx, el); err != nil {
		p.logger.Debug("focus failed", zap.Error(err))
	}
	seq := []dom.Event{
		{Type: "mouseenter"},
		{Type: "mouseover", Bubbles: true},
		{Type: "mousedown", Bubbles: true},
		{Type: "mouseup", Bubbles: true},
		{Type: "click", Bubbles: true},
	}
	for i, ev := range seq {
		ev.ClientX, ev.ClientY = pos.X, pos.Y
		if err := p.page.Dispatch(ctx, el, ev); err != nil {
			if ev.Type == "click" {
				return p.page.Click(ctx, el)
			}
			return err
		}
		if i < len(seq)-1 {
			if err := sleep(ctx, p.opts.EventGap); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Player) setValue(ctx context.Context, el dom.Element, value string) error {
	if err := p.page.Focus(ctx, el); err != nil {
		p.logger.Debug("focus failed", zap.Error(err))
	}
	if err := p.page.SetValue(ctx, el, value); err != nil {
		return err
	}
	for _, typ := range []string{"input", "change"} {
		if err := p.page.Dispatch(ctx, el, dom.Event{Type: typ, Bubbles: true}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Player) hover(ctx context.Context, el dom.Element, at *models.Point) error {
	pos := dom.Center(el)
	if at != nil {
		pos = *at
	}
	for _, ev := range []dom.Event{
		{Type: "mouseenter"},
		{Type: "mouseover", Bubbles: true},
		{Type: "mousemove", Bubbles: true},
	} {
		ev.ClientX, ev.ClientY = pos.X, pos.Y
		if err := p.page.Dispatch(ctx, el, ev); err != nil {
			return err
		}
	}
	if err := p.page.Focus(ctx, el); err != nil {
		p.logger.Debug("focus failed", zap.Error(err))
	}
	return sleep(ctx, p.opts.HoverHold)
}

func (p *Player) keypress(ctx context.Context, el dom.Element, key string, mods models.Modifiers) error {
	if err := p.page.Focus(ctx, el); err != nil {
		return err
	}
	if err := p.page.Dispatch(ctx, el, dom.Event{Type: "keydown", Bubbles: true, Key: key, Modifiers: mods}); err != nil {
		return err
	}
	if err := sleep(ctx, p.opts.KeyGap); err != nil {
		return err
	}
	if err := p.page.Dispatch(ctx, el, dom.Event{Type: "keyup", Bubbles: true, Key: key, Modifiers: mods}); err != nil {
		return err
	}
	if key != "Enter" || el.TagName() != "input" {
		return nil
	}
	form := dom.Closest(el, func(e dom.Element) bool { return e.TagName() == "form" })
	if form == nil {
		return nil
	}
	return p.page.Dispatch(ctx, form, dom.Event{Type: "submit", Bubbles: true})
}
