// Package browser drives a live Chrome tab through chromedp and exposes it
// as a dom.Page and dom.EventSource.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"indiflow/internal/dom"
	"indiflow/pkg/htmldom"
)

const DefaultPollInterval = 100 * time.Millisecond

var errForeignElement = errors.New("element does not belong to a page snapshot")

type Page struct {
	tab    context.Context
	logger *zap.Logger
	poll   time.Duration
}

type PageOption func(*Page)

// WithPollInterval sets how often the recorder buffer is drained.
func WithPollInterval(d time.Duration) PageOption {
	return func(p *Page) {
		if d > 0 {
			p.poll = d
		}
	}
}

// NewPage wraps a chromedp tab context.
func NewPage(tab context.Context, logger *zap.Logger, opts ...PageOption) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Page{tab: tab, logger: logger.Named("browser"), poll: DefaultPollInterval}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run executes actions on the tab and aborts them when ctx is done.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	rctx, cancel := context.WithCancel(p.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(rctx, actions...)
}

func (p *Page) snapshot(ctx context.Context) (*htmldom.Document, error) {
	var raw []byte
	if err := p.run(ctx, chromedp.Evaluate(snapshotScript, &raw)); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	var s htmldom.Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return htmldom.FromSnapshot(&s), nil
}

func (p *Page) Document(ctx context.Context) (dom.Document, error) {
	return p.snapshot(ctx)
}

func (p *Page) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Navigate loads url and waits for the load event. The engine lives outside
// the page, so a full load never interrupts it.
func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *Page) ScrollTo(ctx context.Context, x, y float64) error {
	return p.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollTo(%g, %g)", x, y), nil))
}

func (p *Page) onElement(ctx context.Context, el dom.Element, body string, args interface{}) error {
	if _, ok := el.(*htmldom.Element); !ok {
		return errForeignElement
	}
	script, err := elementScript(dom.Path(el), body, args)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.Evaluate(script, nil))
}

func (p *Page) Dispatch(ctx context.Context, el dom.Element, ev dom.Event) error {
	return p.onElement(ctx, el, dispatchBody, dispatchArgs{
		Type:    ev.Type,
		Bubbles: ev.Bubbles,
		ClientX: ev.ClientX,
		ClientY: ev.ClientY,
		Key:     ev.Key,
		Ctrl:    ev.Modifiers.Ctrl,
		Shift:   ev.Modifiers.Shift,
		Alt:     ev.Modifiers.Alt,
		Meta:    ev.Modifiers.Meta,
	})
}

func (p *Page) Focus(ctx context.Context, el dom.Element) error {
	return p.onElement(ctx, el, focusBody, nil)
}

func (p *Page) Click(ctx context.Context, el dom.Element) error {
	return p.onElement(ctx, el, clickBody, nil)
}

func (p *Page) SetValue(ctx context.Context, el dom.Element, value string) error {
	return p.onElement(ctx, el, setValueBody, map[string]string{"value": value})
}

// Listen installs the recorder script on the current and every future
// document of the tab and streams the buffered events to handler.
func (p *Page) Listen(ctx context.Context, handler func(dom.UserEvent)) (func(), error) {
	var scriptID page.ScriptIdentifier
	err := p.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			scriptID, err = page.AddScriptToEvaluateOnNewDocument(recorderScript).Do(ctx)
			return err
		}),
		chromedp.Evaluate(recorderScript, nil),
	)
	if err != nil {
		return nil, fmt.Errorf("install recorder script: %w", err)
	}

	lctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.pump(lctx, handler)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			cleanup, cancelCleanup := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelCleanup()
			if err := p.run(cleanup, page.RemoveScriptToEvaluateOnNewDocument(scriptID), chromedp.Evaluate(stopScript, nil)); err != nil {
				p.logger.Warn("failed to remove recorder script", zap.Error(err))
			}
		})
	}, nil
}

func (p *Page) pump(ctx context.Context, handler func(dom.UserEvent)) {
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	var lastInput struct {
		path []int
		el   dom.Element
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var raw []byte
		if err := p.run(ctx, chromedp.Evaluate(drainScript, &raw)); err != nil {
			if ctx.Err() == nil {
				p.logger.Debug("drain recorder buffer", zap.Error(err))
			}
			continue
		}
		batch := decodeEvents(raw)
		if len(batch) == 0 {
			continue
		}

		var doc *htmldom.Document
		for _, ev := range batch {
			if ev.targeted() {
				var err error
				if doc, err = p.snapshot(ctx); err != nil {
					p.logger.Warn("snapshot for recorded events failed", zap.Error(err))
				}
				break
			}
		}

		for _, ev := range batch {
			ue := dom.UserEvent{
				Type:          ev.Type,
				Value:         ev.Value,
				ClientX:       ev.X,
				ClientY:       ev.Y,
				ScrollX:       ev.ScrollX,
				ScrollY:       ev.ScrollY,
				URL:           ev.URL,
				Key:           ev.Key,
				Modifiers:     ev.Modifiers,
				MutationCount: ev.Mutations,
				Time:          ev.Time,
			}
			if doc != nil {
				ue.Document = doc
			}
			if ev.targeted() && doc != nil {
				ue.Target = dom.ElementAt(doc, ev.Path)
			}
			// keystrokes into one field must resolve to one element across
			// batches, each of which brings its own snapshot
			switch ev.Type {
			case dom.UserInput:
				if samePath(ev.Path, lastInput.path) && lastInput.el != nil {
					ue.Target = lastInput.el
				} else {
					lastInput.path, lastInput.el = ev.Path, ue.Target
				}
			case dom.UserMutation, dom.UserScroll:
			default:
				lastInput.path, lastInput.el = nil, nil
			}
			handler(ue)
		}
	}
}
