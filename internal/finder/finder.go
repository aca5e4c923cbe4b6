// Package finder re-locates captured elements in the current DOM.
package finder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"indiflow/internal/dom"
	"indiflow/internal/identifier"
	"indiflow/internal/locator"
	"indiflow/internal/models"
	"indiflow/internal/textmatch"
)

var ErrElementNotFound = errors.New("element not found")

const (
	DefaultPollInterval = 100 * time.Millisecond
	maxVerifyText       = 200
)

// Match is a located element and the locator that found it.
type Match struct {
	Element dom.Element
	Locator models.Locator
}

type Finder struct {
	page     dom.Page
	interval time.Duration
	logger   *zap.Logger
}

type Option func(*Finder)

func WithPollInterval(d time.Duration) Option {
	return func(f *Finder) {
		if d > 0 {
			f.interval = d
		}
	}
}

func New(page dom.Page, logger *zap.Logger, opts ...Option) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Finder{page: page, interval: DefaultPollInterval, logger: logger.Named("finder")}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FindElement polls the page until one of the fingerprint's locators yields
// a verified element or timeout elapses. Every pass takes a fresh document
// and tries the locators in priority order. At least one pass is made.
func (f *Finder) FindElement(ctx context.Context, fp models.ElementFingerprint, timeout time.Duration) (*Match, error) {
	locs := append([]models.Locator(nil), fp.Locators...)
	models.SortLocators(locs)

	deadline := time.Now().Add(timeout)
	passes := 0
	for {
		passes++
		doc, err := f.page.Document(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			f.logger.Debug("document unavailable", zap.Error(err))
		} else if m := find(doc, locs, fp.Verification); m != nil {
			f.logger.Debug("element located",
				zap.String("strategy", string(m.Locator.Strategy)),
				zap.String("selector", m.Locator.Selector),
				zap.Int("passes", passes))
			return m, nil
		}

		if !time.Now().Before(deadline) {
			break
		}
		wait := f.interval
		if rem := time.Until(deadline); rem < wait {
			wait = rem
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %s (%d locators, %d passes)", ErrElementNotFound, timeout, len(locs), passes)
}

// FindInDocument makes a single pass over doc.
func FindInDocument(doc dom.Document, fp models.ElementFingerprint) *Match {
	locs := append([]models.Locator(nil), fp.Locators...)
	models.SortLocators(locs)
	return find(doc, locs, fp.Verification)
}

func find(doc dom.Document, locs []models.Locator, ver models.Verification) *Match {
	for _, loc := range locs {
		if el := ResolveLocator(doc, loc, ver); el != nil {
			return &Match{Element: el, Locator: loc}
		}
	}
	return nil
}

// ResolveLocator returns the first verified element loc selects in doc, or nil.
func ResolveLocator(doc dom.Document, loc models.Locator, ver models.Verification) dom.Element {
	switch loc.Strategy {
	case models.StrategyRoleWithName, models.StrategyRoleWithText:
		if role, key, value, ok := locator.ParseRole(loc.Selector); ok {
			return resolveRole(doc, role, key, value, ver)
		}
	case models.StrategyTextContent, models.StrategyFramework:
		if base, text, ok := locator.ParseHasText(loc.Selector); ok {
			return resolveHasText(doc, base, text, ver)
		}
	case models.StrategyXPath:
		el, err := doc.EvaluateXPath(loc.Selector)
		if err != nil || el == nil || !VerifyElement(el, ver) {
			return nil
		}
		return el
	}
	return resolveCSS(doc, loc.Selector, ver)
}

func resolveCSS(doc dom.Document, selector string, ver models.Verification) dom.Element {
	els, err := doc.QuerySelectorAll(selector)
	if err != nil {
		return nil
	}
	for _, el := range els {
		if el != nil && VerifyElement(el, ver) {
			return el
		}
	}
	return nil
}

func resolveRole(doc dom.Document, role, key, value string, ver models.Verification) dom.Element {
	sels := append([]string{`[role~="` + role + `"]`}, identifier.ImplicitSelectors(role)...)
	els, err := doc.QuerySelectorAll(strings.Join(sels, ", "))
	if err != nil {
		return nil
	}
	var cands []dom.Element
	for _, el := range els {
		if identifier.ResolveRole(el) == role {
			cands = append(cands, el)
		}
	}

	label := func(el dom.Element) string {
		if key == "name" {
			return strings.TrimSpace(dom.AttrOr(el, "aria-label"))
		}
		return textmatch.Collapse(el.TextContent())
	}
	for _, el := range cands {
		if label(el) == value && VerifyElement(el, ver) {
			return el
		}
	}
	for _, el := range cands {
		if textmatch.Similarity(label(el), value) >= textmatch.FuzzyThreshold && VerifyElement(el, ver) {
			return el
		}
	}
	return nil
}

func resolveHasText(doc dom.Document, base, text string, ver models.Verification) dom.Element {
	els, err := doc.QuerySelectorAll(base)
	if err != nil {
		return nil
	}
	own := func(el dom.Element) string { return textmatch.Collapse(el.OwnText()) }
	all := func(el dom.Element) string { return textmatch.Collapse(el.TextContent()) }
	want := textmatch.Collapse(text)
	needle := textmatch.Normalize(text)

	exact := func(s string) bool { return s == want }
	substring := func(s string) bool {
		return needle != "" && strings.Contains(textmatch.Normalize(s), needle)
	}
	fuzzy := func(s string) bool { return textmatch.Similarity(s, want) >= textmatch.FuzzyThreshold }

	for _, match := range []func(string) bool{exact, substring, fuzzy} {
		for _, textOf := range []func(dom.Element) string{own, all} {
			for _, el := range els {
				if match(textOf(el)) && VerifyElement(el, ver) {
					return el
				}
			}
		}
	}
	return nil
}

// VerifyElement rejects a located element whose tag differs from the
// captured one, or whose text drifted too far from the captured text.
// Captured texts of three characters or fewer, and located texts shorter
// than two characters, carry too little signal and are not compared.
func VerifyElement(el dom.Element, ver models.Verification) bool {
	if el == nil {
		return false
	}
	if ver.TagName != "" && !strings.EqualFold(el.TagName(), ver.TagName) {
		return false
	}
	expected := strings.TrimSpace(ver.TextContent)
	if utf8.RuneCountInString(expected) <= 3 {
		return true
	}
	actual := textmatch.Truncate(textmatch.Collapse(el.TextContent()), maxVerifyText)
	if utf8.RuneCountInString(actual) < 2 {
		return true
	}
	return textmatch.Similarity(expected, actual) >= textmatch.VerifyThreshold
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
