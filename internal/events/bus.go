// Package events carries recording and playback lifecycle notifications from
// the engine to whoever hosts it: the HTTP layer, the CLI, tests.
package events

import (
	"sync"
	"time"

	"indiflow/internal/models"
)

type Type string

const (
	RecordingStarted  Type = "recording-started"
	RecordingStopped  Type = "recording-stopped"
	RecordingStep     Type = "recording-step"
	PlaybackStarted   Type = "playback-started"
	PlaybackResumed   Type = "playback-resumed"
	PlaybackProgress  Type = "playback-progress"
	PlaybackCompleted Type = "playback-completed"
	PlaybackAborted   Type = "playback-aborted"
)

type Event struct {
	Type    Type        `json:"type"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload"`
}

// Publisher is what the engine components depend on.
type Publisher interface {
	Publish(ev Event)
}

type Handler func(Event)

// Bus delivers events synchronously, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers))
	for id := 0; id < b.nextID; id++ {
		if h, ok := b.handlers[id]; ok {
			hs = append(hs, h)
		}
	}
	b.mu.RUnlock()
	for _, h := range hs {
		h(ev)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}

type RecordingPayload struct {
	Session *models.RecordingSession `json:"session"`
}

type StepRecordedPayload struct {
	FlowID string          `json:"flowId"`
	Index  int             `json:"index"`
	Step   models.FlowStep `json:"step"`
}

type PlaybackPayload struct {
	FlowID     string `json:"flowId"`
	FlowName   string `json:"flowName"`
	SessionID  string `json:"sessionId"`
	StartIndex int    `json:"startIndex"`
	TotalSteps int    `json:"totalSteps"`
}

type ProgressPayload struct {
	FlowID     string `json:"flowId"`
	StepIndex  int    `json:"stepIndex"`
	TotalSteps int    `json:"totalSteps"`
	Action     string `json:"action"`
}

type CompletedPayload struct {
	Result *models.FlowPlaybackResult `json:"result"`
}

type AbortedPayload struct {
	FlowID string `json:"flowId"`
	Reason string `json:"reason"`
}

func EmitRecordingStarted(p Publisher, s *models.RecordingSession) {
	p.Publish(Event{Type: RecordingStarted, Payload: RecordingPayload{Session: s}})
}

func EmitRecordingStopped(p Publisher, s *models.RecordingSession) {
	p.Publish(Event{Type: RecordingStopped, Payload: RecordingPayload{Session: s}})
}

func EmitStepRecorded(p Publisher, flowID string, index int, step models.FlowStep) {
	p.Publish(Event{Type: RecordingStep, Payload: StepRecordedPayload{FlowID: flowID, Index: index, Step: step}})
}

func EmitPlaybackStarted(p Publisher, payload PlaybackPayload, resumed bool) {
	t := PlaybackStarted
	if resumed {
		t = PlaybackResumed
	}
	p.Publish(Event{Type: t, Payload: payload})
}

func EmitProgress(p Publisher, payload ProgressPayload) {
	p.Publish(Event{Type: PlaybackProgress, Payload: payload})
}

func EmitCompleted(p Publisher, r *models.FlowPlaybackResult) {
	p.Publish(Event{Type: PlaybackCompleted, Payload: CompletedPayload{Result: r}})
}

func EmitAborted(p Publisher, flowID, reason string) {
	p.Publish(Event{Type: PlaybackAborted, Payload: AbortedPayload{FlowID: flowID, Reason: reason}})
}
