package browser

import (
	"time"

	"github.com/tidwall/gjson"

	"indiflow/internal/dom"
	"indiflow/internal/models"
)

// pageEvent is one entry drained from the recorder buffer. Path is nil for
// events without a target.
type pageEvent struct {
	Type      dom.UserEventType
	Path      []int
	Value     string
	URL       string
	Key       string
	X, Y      float64
	ScrollX   float64
	ScrollY   float64
	Modifiers models.Modifiers
	Mutations int
	Time      time.Time
}

// decodeEvents parses a drained batch. Unknown event types are dropped.
func decodeEvents(raw []byte) []pageEvent {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil
	}
	var out []pageEvent
	gjson.ParseBytes(raw).ForEach(func(_, v gjson.Result) bool {
		typ := dom.UserEventType(v.Get("type").String())
		switch typ {
		case dom.UserClick, dom.UserInput, dom.UserChange, dom.UserKeydown,
			dom.UserScroll, dom.UserNavigate, dom.UserMutation:
		default:
			return true
		}
		ev := pageEvent{
			Type:    typ,
			Value:   v.Get("value").String(),
			URL:     v.Get("url").String(),
			Key:     v.Get("key").String(),
			X:       v.Get("x").Float(),
			Y:       v.Get("y").Float(),
			ScrollX: v.Get("sx").Float(),
			ScrollY: v.Get("sy").Float(),
			Modifiers: models.Modifiers{
				Ctrl:  v.Get("mods.ctrl").Bool(),
				Shift: v.Get("mods.shift").Bool(),
				Alt:   v.Get("mods.alt").Bool(),
				Meta:  v.Get("mods.meta").Bool(),
			},
			Mutations: int(v.Get("count").Int()),
		}
		if ts := v.Get("ts"); ts.Exists() {
			ev.Time = time.UnixMilli(ts.Int())
		}
		if p := v.Get("path"); p.IsArray() {
			ev.Path = []int{}
			for _, idx := range p.Array() {
				ev.Path = append(ev.Path, int(idx.Int()))
			}
		}
		out = append(out, ev)
		return true
	})
	return out
}

func (e pageEvent) targeted() bool {
	return e.Path != nil
}

func samePath(a, b []int) bool {
	if len(a) != len(b) || a == nil || b == nil {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
