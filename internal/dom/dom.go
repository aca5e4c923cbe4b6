// Package dom describes the page the engine works against. The engine only
// reads elements through Document and acts through Page, so the same
// identification and playback code runs against a live browser or an
// in-memory tree.
package dom

import (
	"context"
	"errors"
	"time"

	"indiflow/internal/models"
)

// ErrPageUnloaded is returned by Page.Navigate when the navigation destroyed
// the execution context that issued it (a full page load).
var ErrPageUnloaded = errors.New("page unloaded by navigation")

// Element is a read-only view of a DOM element. Implementations must return
// the same value for the same underlying node so elements compare with ==.
type Element interface {
	// TagName is lowercase.
	TagName() string
	Attr(name string) (string, bool)
	ID() string
	ClassList() []string
	// TextContent is the aggregate text of all descendants.
	TextContent() string
	// OwnText is the text of direct child text nodes only.
	OwnText() string
	InnerHTML() string
	// Parent returns nil for the root element.
	Parent() Element
	Children() []Element
	Rect() models.Rect
	// ComputedStyle returns the resolved value of a CSS property such as
	// cursor or display.
	ComputedStyle(property string) string
	// Value is the current form-control value.
	Value() string
}

type Document interface {
	Root() Element
	Body() Element
	QuerySelectorAll(selector string) ([]Element, error)
	// EvaluateXPath returns the first element matching expr, or nil.
	EvaluateXPath(expr string) (Element, error)
	URL() string
}

// Event is a synthetic event dispatched on an element during playback.
type Event struct {
	Type      string
	Bubbles   bool
	ClientX   float64
	ClientY   float64
	Key       string
	Modifiers models.Modifiers
}

// Page is the interaction surface of one browser tab.
type Page interface {
	// Document returns a fresh view of the current DOM.
	Document(ctx context.Context) (Document, error)
	Location(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	ScrollTo(ctx context.Context, x, y float64) error
	Dispatch(ctx context.Context, el Element, ev Event) error
	Focus(ctx context.Context, el Element) error
	// Click performs the element's native click().
	Click(ctx context.Context, el Element) error
	SetValue(ctx context.Context, el Element, value string) error
}

type UserEventType string

const (
	UserClick    UserEventType = "click"
	UserInput    UserEventType = "input"
	UserChange   UserEventType = "change"
	UserScroll   UserEventType = "scroll"
	UserKeydown  UserEventType = "keydown"
	UserNavigate UserEventType = "navigate"
	UserMutation UserEventType = "mutation"
)

// UserEvent is a trusted event observed on the page while recording.
type UserEvent struct {
	Type     UserEventType
	Target   Element
	Document Document
	Value    string
	ClientX  float64
	ClientY  float64
	ScrollX  float64
	ScrollY  float64
	URL      string
	Key      string
	// Modifiers held during a click or keydown.
	Modifiers     models.Modifiers
	MutationCount int
	Time          time.Time
}

// EventSource streams user events. Listen returns a function that detaches
// the handler.
type EventSource interface {
	Listen(ctx context.Context, handler func(UserEvent)) (stop func(), err error)
}
