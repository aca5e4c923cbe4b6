package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// ActionType is the discriminator of a FlowAction.
type ActionType string

const (
	ActionClick    ActionType = "click"
	ActionInput    ActionType = "input"
	ActionChange   ActionType = "change"
	ActionScroll   ActionType = "scroll"
	ActionNavigate ActionType = "navigate"
	ActionHover    ActionType = "hover"
	ActionWait     ActionType = "wait"
	ActionKeypress ActionType = "keypress"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Modifiers struct {
	Alt   bool `json:"alt,omitempty"`
	Ctrl  bool `json:"ctrl,omitempty"`
	Meta  bool `json:"meta,omitempty"`
	Shift bool `json:"shift,omitempty"`
}

// FlowAction is a closed sum over the recordable action kinds. Only the
// variants in this file implement it.
type FlowAction interface {
	Type() ActionType
	flowAction()
}

// ElementAction is implemented by the variants that target an element.
type ElementAction interface {
	FlowAction
	Target() ElementFingerprint
	Pointer() *Point
}

type ClickAction struct {
	Element   ElementFingerprint
	Position  *Point
	Modifiers Modifiers
}

type InputAction struct {
	Element  ElementFingerprint
	Value    string
	Position *Point
}

type ChangeAction struct {
	Element  ElementFingerprint
	Value    string
	Position *Point
}

type HoverAction struct {
	Element  ElementFingerprint
	Position *Point
}

type KeypressAction struct {
	Element   ElementFingerprint
	Key       string
	Modifiers Modifiers
	Position  *Point
}

type ScrollAction struct {
	ScrollPosition Point
}

type NavigateAction struct {
	URL string
}

type WaitAction struct{}

func (ClickAction) Type() ActionType    { return ActionClick }
func (InputAction) Type() ActionType    { return ActionInput }
func (ChangeAction) Type() ActionType   { return ActionChange }
func (HoverAction) Type() ActionType    { return ActionHover }
func (KeypressAction) Type() ActionType { return ActionKeypress }
func (ScrollAction) Type() ActionType   { return ActionScroll }
func (NavigateAction) Type() ActionType { return ActionNavigate }
func (WaitAction) Type() ActionType     { return ActionWait }

func (ClickAction) flowAction()    {}
func (InputAction) flowAction()    {}
func (ChangeAction) flowAction()   {}
func (HoverAction) flowAction()    {}
func (KeypressAction) flowAction() {}
func (ScrollAction) flowAction()   {}
func (NavigateAction) flowAction() {}
func (WaitAction) flowAction()     {}

func (a ClickAction) Target() ElementFingerprint    { return a.Element }
func (a InputAction) Target() ElementFingerprint    { return a.Element }
func (a ChangeAction) Target() ElementFingerprint   { return a.Element }
func (a HoverAction) Target() ElementFingerprint    { return a.Element }
func (a KeypressAction) Target() ElementFingerprint { return a.Element }

func (a ClickAction) Pointer() *Point    { return a.Position }
func (a InputAction) Pointer() *Point    { return a.Position }
func (a ChangeAction) Pointer() *Point   { return a.Position }
func (a HoverAction) Pointer() *Point    { return a.Position }
func (a KeypressAction) Pointer() *Point { return a.Position }

// actionWire is the flat JSON shape of every action variant.
type actionWire struct {
	Type           ActionType          `json:"type"`
	Element        *ElementFingerprint `json:"element,omitempty"`
	Position       *Point              `json:"position,omitempty"`
	Value          *string             `json:"value,omitempty"`
	Key            string              `json:"key,omitempty"`
	Modifiers      *Modifiers          `json:"modifiers,omitempty"`
	URL            string              `json:"url,omitempty"`
	ScrollPosition *Point              `json:"scrollPosition,omitempty"`
}

func marshalAction(a FlowAction) ([]byte, error) {
	w := actionWire{Type: a.Type()}
	switch v := a.(type) {
	case ClickAction:
		w.Element, w.Position = &v.Element, v.Position
		if v.Modifiers != (Modifiers{}) {
			w.Modifiers = &v.Modifiers
		}
	case InputAction:
		w.Element, w.Position, w.Value = &v.Element, v.Position, &v.Value
	case ChangeAction:
		w.Element, w.Position, w.Value = &v.Element, v.Position, &v.Value
	case HoverAction:
		w.Element, w.Position = &v.Element, v.Position
	case KeypressAction:
		w.Element, w.Position, w.Key = &v.Element, v.Position, v.Key
		if v.Modifiers != (Modifiers{}) {
			w.Modifiers = &v.Modifiers
		}
	case ScrollAction:
		w.ScrollPosition = &v.ScrollPosition
	case NavigateAction:
		w.URL = v.URL
	case WaitAction:
	default:
		return nil, fmt.Errorf("unknown action %T", a)
	}
	return json.Marshal(w)
}

func unmarshalAction(data []byte) (FlowAction, error) {
	var w actionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}

	needElement := func() (ElementFingerprint, error) {
		if w.Element == nil {
			return ElementFingerprint{}, fmt.Errorf("%s action without element", w.Type)
		}
		return *w.Element, nil
	}
	value := ""
	if w.Value != nil {
		value = *w.Value
	}
	mods := Modifiers{}
	if w.Modifiers != nil {
		mods = *w.Modifiers
	}

	switch w.Type {
	case ActionClick:
		el, err := needElement()
		return ClickAction{Element: el, Position: w.Position, Modifiers: mods}, err
	case ActionInput:
		el, err := needElement()
		return InputAction{Element: el, Value: value, Position: w.Position}, err
	case ActionChange:
		el, err := needElement()
		return ChangeAction{Element: el, Value: value, Position: w.Position}, err
	case ActionHover:
		el, err := needElement()
		return HoverAction{Element: el, Position: w.Position}, err
	case ActionKeypress:
		el, err := needElement()
		return KeypressAction{Element: el, Key: w.Key, Modifiers: mods, Position: w.Position}, err
	case ActionScroll:
		pos := Point{}
		if w.ScrollPosition != nil {
			pos = *w.ScrollPosition
		}
		return ScrollAction{ScrollPosition: pos}, nil
	case ActionNavigate:
		if w.URL == "" {
			return nil, fmt.Errorf("navigate action without url")
		}
		return NavigateAction{URL: w.URL}, nil
	case ActionWait:
		return WaitAction{}, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", w.Type)
	}
}
