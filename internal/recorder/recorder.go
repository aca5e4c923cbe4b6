// Package recorder turns trusted user events on a page into flow steps.
package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"indiflow/internal/dom"
	"indiflow/internal/events"
	"indiflow/internal/identifier"
	"indiflow/internal/models"
	"indiflow/internal/netlog"
	"indiflow/internal/session"
	"indiflow/internal/storage"
)

const (
	DefaultScrollDebounce   = 500 * time.Millisecond
	DefaultAPIWindow        = 3 * time.Second
	DefaultInteractiveDepth = 5
)

var recordedKeys = map[string]bool{"Enter": true, "Tab": true, "Escape": true}

type Recorder struct {
	page   dom.Page
	source dom.EventSource
	store  *storage.FlowStorage
	coord  *session.Coordinator
	ident  *identifier.Identifier
	calls  *netlog.Cache
	bus    events.Publisher
	logger *zap.Logger
	now    func() time.Time

	scrollDebounce time.Duration
	apiWindow      time.Duration
	depth          int

	mu          sync.Mutex
	ctx         context.Context
	session     *models.RecordingSession
	detach      func()
	debounced   func(func())
	scrollTo    *models.Point
	lastInput   dom.Element
	lastNavURL  string
}

type Option func(*Recorder)

func WithScrollDebounce(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.scrollDebounce = d
		}
	}
}

func WithAPIWindow(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.apiWindow = d
		}
	}
}

// WithInteractiveDepth bounds how many ancestors a click may climb to find
// the interactive element.
func WithInteractiveDepth(n int) Option {
	return func(r *Recorder) {
		if n >= 0 {
			r.depth = n
		}
	}
}

func WithEvents(p events.Publisher) Option {
	return func(r *Recorder) {
		if p != nil {
			r.bus = p
		}
	}
}

// WithNetworkCache shares the recent-calls cache with the player.
func WithNetworkCache(c *netlog.Cache) Option {
	return func(r *Recorder) {
		if c != nil {
			r.calls = c
		}
	}
}

func New(page dom.Page, source dom.EventSource, store *storage.FlowStorage, coord *session.Coordinator,
	ident *identifier.Identifier, logger *zap.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		page:           page,
		source:         source,
		store:          store,
		coord:          coord,
		ident:          ident,
		calls:          netlog.NewCache(0, 0),
		bus:            events.Nop{},
		logger:         logger.Named("recorder"),
		now:            time.Now,
		scrollDebounce: DefaultScrollDebounce,
		apiWindow:      DefaultAPIWindow,
		depth:          DefaultInteractiveDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartRecording begins a new session named name. It fails when a playback
// or another recording is active.
func (r *Recorder) StartRecording(ctx context.Context, name string) (*models.RecordingSession, error) {
	if err := r.coord.BeginRecording(); err != nil {
		return nil, err
	}
	startURL, err := r.page.Location(ctx)
	if err != nil {
		r.logger.Warn("failed to read page location", zap.Error(err))
	}
	rs := &models.RecordingSession{
		FlowID:    uuid.NewString(),
		FlowName:  name,
		StartTime: r.now(),
		StartURL:  startURL,
		Steps:     []models.FlowStep{},
	}
	if err := r.store.SaveRecordingSession(ctx, rs); err != nil {
		r.coord.EndRecording()
		return nil, fmt.Errorf("persist recording session: %w", err)
	}
	if err := r.attach(ctx, rs); err != nil {
		r.coord.EndRecording()
		_ = r.store.ClearRecordingSession(ctx)
		return nil, err
	}
	r.logger.Info("recording started", zap.String("flow_id", rs.FlowID), zap.String("name", name), zap.String("url", startURL))
	snap := r.Session()
	if snap == nil {
		// stopped concurrently
		snap = cloneSession(rs)
	}
	events.EmitRecordingStarted(r.bus, snap)
	return snap, nil
}

// Restore re-attaches to a recording persisted before a reload. It returns
// nil when there is nothing to restore.
func (r *Recorder) Restore(ctx context.Context) (*models.RecordingSession, error) {
	rs, err := r.store.LoadRecordingSession(ctx)
	if err != nil || rs == nil {
		return nil, err
	}
	if err := r.coord.BeginRecording(); err != nil {
		return nil, err
	}
	if rs.Steps == nil {
		rs.Steps = []models.FlowStep{}
	}
	if err := r.attach(ctx, rs); err != nil {
		r.coord.EndRecording()
		return nil, err
	}
	r.logger.Info("recording restored", zap.String("flow_id", rs.FlowID), zap.Int("steps", len(rs.Steps)))
	if snap := r.Session(); snap != nil {
		return snap, nil
	}
	return cloneSession(rs), nil
}

func (r *Recorder) attach(ctx context.Context, rs *models.RecordingSession) error {
	r.mu.Lock()
	r.ctx = ctx
	r.session = rs
	r.debounced = debounce.New(r.scrollDebounce)
	r.scrollTo = nil
	r.lastInput = nil
	r.lastNavURL = rs.StartURL
	r.mu.Unlock()

	detach, err := r.source.Listen(ctx, r.handle)
	if err != nil {
		r.mu.Lock()
		r.session = nil
		r.mu.Unlock()
		return fmt.Errorf("attach listeners: %w", err)
	}
	r.mu.Lock()
	r.detach = detach
	r.mu.Unlock()
	return nil
}

// StopRecording detaches from the page and returns the finished session, or
// nil when nothing was being recorded.
func (r *Recorder) StopRecording(ctx context.Context) (*models.RecordingSession, error) {
	r.mu.Lock()
	rs := r.session
	if rs == nil {
		r.mu.Unlock()
		return nil, nil
	}
	r.flushScrollLocked()
	detach := r.detach
	r.session, r.detach, r.debounced = nil, nil, nil
	r.mu.Unlock()

	if detach != nil {
		detach()
	}
	r.coord.EndRecording()
	if err := r.store.ClearRecordingSession(ctx); err != nil {
		r.logger.Warn("failed to clear recording session", zap.Error(err))
	}
	r.logger.Info("recording stopped", zap.String("flow_id", rs.FlowID), zap.Int("steps", len(rs.Steps)))
	events.EmitRecordingStopped(r.bus, rs)
	return rs, nil
}

func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

// Session returns a copy of the active session, or nil.
func (r *Recorder) Session() *models.RecordingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil
	}
	return cloneSession(r.session)
}

// cloneSession copies rs deep enough that the recorder can keep appending
// steps and API calls while the copy is read elsewhere.
func cloneSession(rs *models.RecordingSession) *models.RecordingSession {
	cp := *rs
	cp.Steps = make([]models.FlowStep, len(rs.Steps))
	for i, s := range rs.Steps {
		s.TriggeredAPIs = append([]models.ExpectedAPI(nil), s.TriggeredAPIs...)
		cp.Steps[i] = s
	}
	return &cp
}

// AddAPICall feeds an observed network call. While recording, a call that
// arrives within the correlation window after the latest step is attached
// to that step as an expected API.
func (r *Recorder) AddAPICall(call models.NetworkCall) models.NetworkCall {
	call = r.calls.Add(call)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil || len(r.session.Steps) == 0 {
		return call
	}
	last := &r.session.Steps[len(r.session.Steps)-1]
	if call.Timestamp.Before(last.Timestamp) || call.Timestamp.Sub(last.Timestamp) > r.apiWindow {
		return call
	}
	exp := netlog.Expect(call)
	for _, have := range last.TriggeredAPIs {
		if have == exp {
			return call
		}
	}
	last.TriggeredAPIs = append(last.TriggeredAPIs, exp)
	r.logger.Debug("api correlated",
		zap.String("step_id", last.ID),
		zap.String("method", exp.Method),
		zap.String("pattern", exp.URLPattern))
	r.persistLocked()
	return call
}

func (r *Recorder) handle(ev dom.UserEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return
	}

	switch ev.Type {
	case dom.UserClick:
		if ev.Target == nil {
			return
		}
		target := InteractiveTarget(ev.Target, r.depth)
		r.lastInput = nil
		r.appendLocked(models.ClickAction{
			Element:   r.capture(target, ev.Document),
			Position:  &models.Point{X: ev.ClientX, Y: ev.ClientY},
			Modifiers: ev.Modifiers,
		})
	case dom.UserInput:
		if ev.Target == nil {
			return
		}
		if ev.Target == r.lastInput {
			// consecutive keystrokes into one field collapse into one step
			steps := r.session.Steps
			if in, ok := steps[len(steps)-1].Action.(models.InputAction); ok {
				in.Value = ev.Value
				steps[len(steps)-1].Action = in
				r.persistLocked()
				return
			}
		}
		r.lastInput = ev.Target
		r.appendLocked(models.InputAction{Element: r.capture(ev.Target, ev.Document), Value: ev.Value})
	case dom.UserChange:
		if ev.Target == nil {
			return
		}
		r.lastInput = nil
		r.appendLocked(models.ChangeAction{Element: r.capture(ev.Target, ev.Document), Value: ev.Value})
	case dom.UserKeydown:
		if ev.Target == nil || !recordedKeys[ev.Key] {
			return
		}
		r.lastInput = nil
		r.appendLocked(models.KeypressAction{
			Element:   r.capture(ev.Target, ev.Document),
			Key:       ev.Key,
			Modifiers: ev.Modifiers,
		})
	case dom.UserScroll:
		r.scrollTo = &models.Point{X: ev.ScrollX, Y: ev.ScrollY}
		r.debounced(r.flushScroll)
	case dom.UserNavigate:
		if ev.URL == "" || ev.URL == r.lastNavURL {
			return
		}
		r.lastNavURL = ev.URL
		r.lastInput = nil
		r.appendLocked(models.NavigateAction{URL: ev.URL})
	case dom.UserMutation:
		r.logger.Debug("dom mutations observed", zap.Int("count", ev.MutationCount))
	}
}

func (r *Recorder) capture(el dom.Element, doc dom.Document) models.ElementFingerprint {
	if doc == nil {
		d, err := r.page.Document(r.ctx)
		if err != nil {
			r.logger.Warn("document unavailable for capture", zap.Error(err))
		} else {
			doc = d
		}
	}
	return r.ident.CaptureElement(el, doc)
}

func (r *Recorder) flushScroll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushScrollLocked()
}

func (r *Recorder) flushScrollLocked() {
	if r.session == nil || r.scrollTo == nil {
		return
	}
	pos := *r.scrollTo
	r.scrollTo = nil
	r.appendLocked(models.ScrollAction{ScrollPosition: pos})
}

func (r *Recorder) appendLocked(action models.FlowAction) {
	step := models.FlowStep{
		ID:        ulid.Make().String(),
		Timestamp: r.now(),
		Action:    action,
	}
	r.session.Steps = append(r.session.Steps, step)
	index := len(r.session.Steps) - 1
	r.logger.Debug("step recorded",
		zap.String("flow_id", r.session.FlowID),
		zap.Int("step_index", index),
		zap.String("action", string(action.Type())))
	r.persistLocked()
	events.EmitStepRecorded(r.bus, r.session.FlowID, index, step)
}

func (r *Recorder) persistLocked() {
	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := r.store.SaveRecordingSession(ctx, r.session); err != nil {
		r.logger.Error("failed to persist recording session", zap.Error(err))
	}
}

var interactiveRoles = map[string]bool{"button": true, "link": true, "tab": true, "menuitem": true}

var interactiveTags = map[string]bool{
	"button": true, "a": true, "input": true, "select": true, "textarea": true, "summary": true,
}

// InteractiveTarget returns el or the nearest of up to depth ancestors that
// a user would perceive as the clicked control, such as the button around
// an icon. It returns el when none qualifies.
func InteractiveTarget(el dom.Element, depth int) dom.Element {
	candidates := append([]dom.Element{el}, dom.Ancestors(el, depth)...)
	for _, c := range candidates {
		if isInteractive(c) {
			return c
		}
	}
	return el
}

func isInteractive(el dom.Element) bool {
	tag := el.TagName()
	if tag == "body" || tag == "html" {
		return false
	}
	if interactiveTags[tag] {
		return true
	}
	if role, ok := el.Attr("role"); ok && interactiveRoles[role] {
		return true
	}
	if _, ok := el.Attr("onclick"); ok {
		return true
	}
	if el.ComputedStyle("cursor") != "pointer" {
		return false
	}
	// cursor is inherited, so only the element that sets it counts
	if p := el.Parent(); p != nil && p.ComputedStyle("cursor") == "pointer" {
		return false
	}
	return true
}
