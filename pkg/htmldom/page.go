package htmldom

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"indiflow/internal/dom"
	"indiflow/internal/models"
)

// Dispatched is one interaction the page received from the engine.
type Dispatched struct {
	Target *Element
	Event  dom.Event
	// Native is set for Click, which stands for the element's click().
	Native bool
}

// Loader returns the document served at url.
type Loader func(url string) (*Document, error)

// Page is an in-memory tab. It records every synthetic interaction and lets
// tests simulate trusted user events through Fire and the User* helpers.
type Page struct {
	mu        sync.Mutex
	doc       *Document
	loader    Loader
	reload    bool
	scroll    models.Point
	events    []Dispatched
	focused   *Element
	listeners map[int]func(dom.UserEvent)
	nextID    int

	// OnDispatch runs after every recorded interaction, outside the lock.
	// Tests use it to react to clicks, for example by rendering a menu.
	OnDispatch func(p *Page, d Dispatched)
}

var (
	_ dom.Page        = (*Page)(nil)
	_ dom.EventSource = (*Page)(nil)
)

type Option func(*Page)

// WithLoader makes Navigate load the target document through l.
func WithLoader(l Loader) Option {
	return func(p *Page) { p.loader = l }
}

// ReloadOnNavigate makes Navigate behave like a full page load: the
// document is replaced and Navigate returns dom.ErrPageUnloaded.
func ReloadOnNavigate() Option {
	return func(p *Page) { p.reload = true }
}

func NewPage(doc *Document, opts ...Option) *Page {
	p := &Page{doc: doc, listeners: make(map[int]func(dom.UserEvent))}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Current returns the loaded document.
func (p *Page) Current() *Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc
}

// SetDocument swaps the loaded document, as a re-render would.
func (p *Page) SetDocument(doc *Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = doc
}

func (p *Page) Document(ctx context.Context) (dom.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Current(), nil
}

func (p *Page) Location(ctx context.Context) (string, error) {
	return p.Current().URL(), nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	next := MustParse("<html><head></head><body></body></html>", url)
	if p.loader != nil {
		doc, err := p.loader(url)
		if err != nil {
			return fmt.Errorf("navigate to %s: %w", url, err)
		}
		next = doc
	}
	p.SetDocument(next)
	if p.reload {
		return dom.ErrPageUnloaded
	}
	return nil
}

func (p *Page) ScrollTo(ctx context.Context, x, y float64) error {
	p.mu.Lock()
	p.scroll = models.Point{X: x, Y: y}
	p.mu.Unlock()
	return nil
}

// Scroll returns the last scroll position set by ScrollTo.
func (p *Page) Scroll() models.Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scroll
}

func (p *Page) Dispatch(ctx context.Context, el dom.Element, ev dom.Event) error {
	return p.record(el, ev, false)
}

func (p *Page) Focus(ctx context.Context, el dom.Element) error {
	if err := p.record(el, dom.Event{Type: "focus"}, false); err != nil {
		return err
	}
	p.mu.Lock()
	p.focused = el.(*Element)
	p.mu.Unlock()
	return nil
}

func (p *Page) Click(ctx context.Context, el dom.Element) error {
	return p.record(el, dom.Event{Type: "click", Bubbles: true}, true)
}

func (p *Page) SetValue(ctx context.Context, el dom.Element, value string) error {
	e, ok := el.(*Element)
	if !ok || e == nil {
		return errors.New("htmldom: foreign element")
	}
	e.doc.setValue(e.node, value)
	return nil
}

func (p *Page) record(el dom.Element, ev dom.Event, native bool) error {
	e, ok := el.(*Element)
	if !ok || e == nil {
		return errors.New("htmldom: foreign element")
	}
	d := Dispatched{Target: e, Event: ev, Native: native}
	p.mu.Lock()
	p.events = append(p.events, d)
	hook := p.OnDispatch
	p.mu.Unlock()
	if hook != nil {
		hook(p, d)
	}
	return nil
}

// Events returns every recorded interaction in order.
func (p *Page) Events() []Dispatched {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Dispatched(nil), p.events...)
}

// EventTypes returns the event types recorded on target, in order.
func (p *Page) EventTypes(target *Element) []string {
	var out []string
	for _, d := range p.Events() {
		if d.Target == target {
			out = append(out, d.Event.Type)
		}
	}
	return out
}

// Focused returns the element focused last.
func (p *Page) Focused() *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.focused
}

func (p *Page) Listen(ctx context.Context, handler func(dom.UserEvent)) (func(), error) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = handler
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}, nil
}

// Fire delivers a trusted user event to every listener.
func (p *Page) Fire(ev dom.UserEvent) {
	p.mu.Lock()
	if ev.Document == nil {
		ev.Document = p.doc
	}
	if ev.URL == "" {
		ev.URL = p.doc.URL()
	}
	handlers := make([]func(dom.UserEvent), 0, len(p.listeners))
	for id := 0; id < p.nextID; id++ {
		if h, ok := p.listeners[id]; ok {
			handlers = append(handlers, h)
		}
	}
	p.mu.Unlock()
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	for _, h := range handlers {
		h(ev)
	}
}

// UserClick simulates a trusted click on el at its center.
func (p *Page) UserClick(el *Element) {
	c := dom.Center(el)
	p.Fire(dom.UserEvent{Type: dom.UserClick, Target: el, ClientX: c.X, ClientY: c.Y})
}

// UserType sets the value of el and fires an input event.
func (p *Page) UserType(el *Element, value string) {
	el.doc.setValue(el.node, value)
	p.Fire(dom.UserEvent{Type: dom.UserInput, Target: el, Value: value})
}

// UserChange sets the value of el and fires a change event.
func (p *Page) UserChange(el *Element, value string) {
	el.doc.setValue(el.node, value)
	p.Fire(dom.UserEvent{Type: dom.UserChange, Target: el, Value: value})
}

// UserKey fires a keydown on el.
func (p *Page) UserKey(el *Element, key string, mods models.Modifiers) {
	p.Fire(dom.UserEvent{Type: dom.UserKeydown, Target: el, Key: key, Modifiers: mods})
}

// UserScroll scrolls the page and fires a scroll event.
func (p *Page) UserScroll(x, y float64) {
	p.mu.Lock()
	p.scroll = models.Point{X: x, Y: y}
	p.mu.Unlock()
	p.Fire(dom.UserEvent{Type: dom.UserScroll, ScrollX: x, ScrollY: y})
}

// UserNavigate simulates a client-side route change to url.
func (p *Page) UserNavigate(url string) {
	p.Fire(dom.UserEvent{Type: dom.UserNavigate, URL: url})
}
