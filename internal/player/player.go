// Package player replays recorded flows against a page and keeps enough
// state in storage to continue after a navigation reloads the host.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"indiflow/internal/dom"
	"indiflow/internal/events"
	"indiflow/internal/finder"
	"indiflow/internal/models"
	"indiflow/internal/netlog"
	"indiflow/internal/session"
	"indiflow/internal/storage"
	"indiflow/internal/uikit"
)

var (
	ErrFlowDeleted    = errors.New("flow was deleted during playback")
	ErrFlowModified   = errors.New("flow was modified during playback")
	ErrSessionExpired = errors.New("playback session expired")
	ErrInvalidStep    = errors.New("resume step out of range")
)

// Options are the playback timings. Zero values are replaced by defaults.
type Options struct {
	ElementTimeout     time.Duration
	OptionRetryTimeout time.Duration
	OptionRetryDelay   time.Duration
	DropdownWait       time.Duration
	MenuWait           time.Duration
	NavigationSettle   time.Duration
	DefaultWait        time.Duration
	HoverHold          time.Duration
	KeyGap             time.Duration
	EventGap           time.Duration
	PollInterval       time.Duration
	SessionTTL         time.Duration

	// StrictAPIValidation makes a step fail when its expected APIs did not
	// fire. Off by default: API results are reported but do not decide
	// pass or fail.
	StrictAPIValidation bool
}

func DefaultOptions() Options {
	return Options{
		ElementTimeout:     5 * time.Second,
		OptionRetryTimeout: 3 * time.Second,
		OptionRetryDelay:   500 * time.Millisecond,
		DropdownWait:       1500 * time.Millisecond,
		MenuWait:           2 * time.Second,
		NavigationSettle:   2 * time.Second,
		DefaultWait:        time.Second,
		HoverHold:          300 * time.Millisecond,
		KeyGap:             50 * time.Millisecond,
		EventGap:           10 * time.Millisecond,
		PollInterval:       100 * time.Millisecond,
		SessionTTL:         5 * time.Minute,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	fill := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&o.ElementTimeout, d.ElementTimeout)
	fill(&o.OptionRetryTimeout, d.OptionRetryTimeout)
	fill(&o.OptionRetryDelay, d.OptionRetryDelay)
	fill(&o.DropdownWait, d.DropdownWait)
	fill(&o.MenuWait, d.MenuWait)
	fill(&o.NavigationSettle, d.NavigationSettle)
	fill(&o.DefaultWait, d.DefaultWait)
	fill(&o.HoverHold, d.HoverHold)
	fill(&o.KeyGap, d.KeyGap)
	fill(&o.EventGap, d.EventGap)
	fill(&o.PollInterval, d.PollInterval)
	fill(&o.SessionTTL, d.SessionTTL)
	return o
}

type Player struct {
	page   dom.Page
	finder *finder.Finder
	store  *storage.FlowStorage
	coord  *session.Coordinator
	kits   *uikit.Registry
	calls  *netlog.Cache
	bus    events.Publisher
	logger *zap.Logger
	opts   Options
	now    func() time.Time

	mu        sync.Mutex
	stopped   bool
	sessionID string
}

type Option func(*Player)

func WithOptions(o Options) Option {
	return func(p *Player) { p.opts = o.withDefaults() }
}

func WithEvents(pub events.Publisher) Option {
	return func(p *Player) {
		if pub != nil {
			p.bus = pub
		}
	}
}

func WithNetworkCache(c *netlog.Cache) Option {
	return func(p *Player) {
		if c != nil {
			p.calls = c
		}
	}
}

func New(page dom.Page, store *storage.FlowStorage, coord *session.Coordinator, kits *uikit.Registry,
	logger *zap.Logger, opts ...Option) *Player {
	if logger == nil {
		logger = zap.NewNop()
	}
	if kits == nil {
		kits = uikit.Default()
	}
	p := &Player{
		page:   page,
		store:  store,
		coord:  coord,
		kits:   kits,
		calls:  netlog.NewCache(0, 0),
		bus:    events.Nop{},
		logger: logger.Named("player"),
		opts:   DefaultOptions(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.finder = finder.New(page, logger, finder.WithPollInterval(p.opts.PollInterval))
	return p
}

func (p *Player) IsPlaying() bool {
	return p.coord.IsPlaying()
}

// Stop asks the running playback to end at the next step boundary and
// clears the persisted session. It reports whether a playback was running.
func (p *Player) Stop(ctx context.Context) bool {
	if !p.coord.IsPlaying() {
		return false
	}
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.clearSession(ctx)
	p.logger.Info("playback stop requested")
	return true
}

func (p *Player) stopRequested() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// PlayFlow replays flow starting at resumeFrom. It fails only on entry
// guards; step failures are reported in the result.
func (p *Player) PlayFlow(ctx context.Context, flow *models.IndiFlow, resumeFrom int) (*models.FlowPlaybackResult, error) {
	pb, err := p.Prepare(flow, resumeFrom)
	if err != nil {
		return nil, err
	}
	return pb.Play(ctx)
}

// Resume continues the playback persisted before a reload. It returns nil
// when there is nothing to resume.
func (p *Player) Resume(ctx context.Context) (*models.FlowPlaybackResult, error) {
	pb, err := p.PrepareResume(ctx)
	if err != nil || pb == nil {
		return nil, err
	}
	return pb.Play(ctx)
}

// Playback is a run that already holds the page's playback guard. Play must
// be called exactly once.
type Playback struct {
	p       *Player
	flow    *models.IndiFlow
	ps      *models.PlaybackSession
	resumed bool
}

func (pb *Playback) FlowID() string { return pb.flow.ID }

// Play runs the steps and releases the guard.
func (pb *Playback) Play(ctx context.Context) (*models.FlowPlaybackResult, error) {
	defer pb.p.coord.EndPlayback()
	return pb.p.run(ctx, pb.flow, pb.ps, pb.resumed)
}

// Prepare validates flow and takes the playback guard. Entry guard errors
// are returned here, before any step runs.
func (p *Player) Prepare(flow *models.IndiFlow, resumeFrom int) (*Playback, error) {
	if flow == nil {
		return nil, storage.ErrInvalidFlow
	}
	if resumeFrom < 0 || resumeFrom > len(flow.Steps) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidStep, resumeFrom, len(flow.Steps))
	}
	ps := &models.PlaybackSession{
		FlowID:           flow.ID,
		CurrentStepIndex: resumeFrom,
		StartTime:        p.now(),
		Results:          []models.StepResult{},
		SessionID:        uuid.NewString(),
	}
	if err := p.begin(ps); err != nil {
		return nil, err
	}
	return &Playback{p: p, flow: flow, ps: ps, resumed: resumeFrom > 0}, nil
}

// PrepareResume restores the persisted playback and takes the playback
// guard. It returns nil when there is nothing to resume.
func (p *Player) PrepareResume(ctx context.Context) (*Playback, error) {
	restored, err := p.RestorePlaybackState(ctx)
	if err != nil || restored == nil {
		return nil, err
	}
	ps := restored.Session
	if err := p.begin(ps); err != nil {
		return nil, err
	}
	if ps.Results == nil {
		ps.Results = []models.StepResult{}
	}
	return &Playback{p: p, flow: restored.Flow, ps: ps, resumed: true}, nil
}

// begin takes the playback guard for ps. A Stop issued after begin applies
// to this run even when its loop has not started yet.
func (p *Player) begin(ps *models.PlaybackSession) error {
	if err := p.coord.BeginPlayback(); err != nil {
		return err
	}
	p.mu.Lock()
	p.stopped = false
	p.sessionID = ps.SessionID
	p.mu.Unlock()
	return nil
}

// run expects the caller to hold the playback guard.
func (p *Player) run(ctx context.Context, flow *models.IndiFlow, ps *models.PlaybackSession, resumed bool) (*models.FlowPlaybackResult, error) {
	log := p.logger.With(zap.String("flow_id", flow.ID), zap.String("session_id", ps.SessionID))
	result := &models.FlowPlaybackResult{
		FlowID:    flow.ID,
		FlowName:  flow.Name,
		StartTime: ps.StartTime,
	}
	total := len(flow.Steps)

	log.Info("playback started", zap.Int("start_index", ps.CurrentStepIndex), zap.Int("total_steps", total), zap.Bool("resumed", resumed))
	events.EmitPlaybackStarted(p.bus, events.PlaybackPayload{
		FlowID:     flow.ID,
		FlowName:   flow.Name,
		SessionID:  ps.SessionID,
		StartIndex: ps.CurrentStepIndex,
		TotalSteps: total,
	}, resumed)
	p.persist(ctx, ps)

	for i := ps.CurrentStepIndex; i < total; i++ {
		if p.stopRequested() || ctx.Err() != nil {
			result.Stopped = true
			break
		}
		step := flow.Steps[i]
		events.EmitProgress(p.bus, events.ProgressPayload{
			FlowID:     flow.ID,
			StepIndex:  i,
			TotalSteps: total,
			Action:     string(step.Action.Type()),
		})

		if nav, ok := step.Action.(models.NavigateAction); ok {
			res, unloaded := p.navigate(ctx, ps, i, step, nav)
			if unloaded {
				// the session stays persisted; Resume picks it up on the next load
				result.Interrupted = true
				log.Info("playback interrupted by navigation", zap.Int("step_index", i), zap.String("url", nav.URL))
				result.Results = ps.Results
				p.finish(result)
				return result, nil
			}
			p.logStep(log, i, res)
			if !res.Passed && !step.ContinueOnFailure {
				break
			}
		} else {
			res := p.playStep(ctx, step)
			ps.Results = append(ps.Results, res)
			ps.CurrentStepIndex = i + 1
			p.persist(ctx, ps)
			p.logStep(log, i, res)

			if ctx.Err() != nil {
				result.Stopped = true
				break
			}
			if !res.Passed && !step.ContinueOnFailure {
				break
			}
		}
		if _, isWait := step.Action.(models.WaitAction); !isWait && step.WaitAfter > 0 {
			if err := sleep(ctx, time.Duration(step.WaitAfter)*time.Millisecond); err != nil {
				result.Stopped = true
				break
			}
		}
	}

	p.clearSession(ctx)
	result.Results = ps.Results
	result.Success = !result.Stopped && allPassed(result.Results)
	p.finish(result)

	if !result.Stopped {
		run := models.LastRun{
			At:          result.EndTime,
			Success:     result.Success,
			PassedSteps: result.PassedCount(),
			TotalSteps:  total,
			Duration:    result.Duration,
		}
		if err := p.store.UpdateFlowLastRun(ctx, flow.ID, run); err != nil {
			log.Warn("failed to record last run", zap.Error(err))
		}
	}

	log.Info("playback completed",
		zap.Bool("success", result.Success),
		zap.Bool("stopped", result.Stopped),
		zap.Int("passed", result.PassedCount()),
		zap.Int("total_steps", total),
		zap.Int64("duration", result.Duration))
	events.EmitCompleted(p.bus, result)
	return result, nil
}

// navigate persists the session as if the step already succeeded, since a
// full page load ends this execution before Navigate returns.
func (p *Player) navigate(ctx context.Context, ps *models.PlaybackSession, i int, step models.FlowStep, nav models.NavigateAction) (models.StepResult, bool) {
	start := p.now()
	res := models.StepResult{Step: step, ActionPerformed: true, Passed: true, APIResults: []models.APIValidationResult{}}
	ps.Results = append(ps.Results, res)
	ps.CurrentStepIndex = i + 1
	p.persist(ctx, ps)

	err := p.page.Navigate(ctx, nav.URL)
	if errors.Is(err, dom.ErrPageUnloaded) {
		return res, true
	}
	if err != nil {
		res.ActionPerformed, res.Passed = false, false
		res.Error = err.Error()
	} else if err := sleep(ctx, p.opts.NavigationSettle); err != nil {
		res.ActionPerformed, res.Passed = false, false
		res.Error = err.Error()
	}
	res.Duration = p.now().Sub(start).Milliseconds()
	ps.Results[len(ps.Results)-1] = res
	p.persist(ctx, ps)
	return res, false
}

func (p *Player) finish(result *models.FlowPlaybackResult) {
	result.EndTime = p.now()
	result.Duration = result.EndTime.Sub(result.StartTime).Milliseconds()
	if result.Results == nil {
		result.Results = []models.StepResult{}
	}
}

func (p *Player) logStep(log *zap.Logger, i int, res models.StepResult) {
	fields := []zap.Field{
		zap.Int("step_index", i),
		zap.String("action", string(res.Step.Action.Type())),
		zap.Bool("passed", res.Passed),
		zap.Int64("duration", res.Duration),
	}
	if res.MatchedStrategy != "" {
		fields = append(fields, zap.String("strategy", string(res.MatchedStrategy)))
	}
	if res.Passed {
		log.Info("step played", fields...)
		return
	}
	log.Warn("step failed", append(fields, zap.String("error", res.Error))...)
}

func (p *Player) persist(ctx context.Context, ps *models.PlaybackSession) {
	ps.SavedAt = p.now()
	ps.ExpiresAt = ps.SavedAt.Add(p.opts.SessionTTL)
	if err := p.store.SavePlaybackSession(ctx, ps); err != nil {
		p.logger.Error("failed to persist playback session", zap.Error(err))
	}
}

// clearSession also runs after the playback ctx was cancelled, so the
// store call must not inherit that cancellation.
func (p *Player) clearSession(ctx context.Context) {
	if err := p.store.ClearPlaybackSession(context.WithoutCancel(ctx)); err != nil {
		p.logger.Error("failed to clear playback session", zap.Error(err))
	}
}

// Restored is a persisted playback ready to continue.
type Restored struct {
	Flow      *models.IndiFlow
	StepIndex int
	Session   *models.PlaybackSession
}

// RestorePlaybackState loads the persisted playback. It returns nil when
// there is none or when it expired, and ErrFlowDeleted or ErrFlowModified
// when the flow changed underneath it. The persisted session is purged in
// every case that does not resume.
func (p *Player) RestorePlaybackState(ctx context.Context) (*Restored, error) {
	ps, err := p.store.LoadPlaybackSession(ctx)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		return nil, nil
	}
	log := p.logger.With(zap.String("flow_id", ps.FlowID), zap.String("session_id", ps.SessionID))

	if ps.Expired(p.now()) {
		log.Info("discarding expired playback session", zap.Time("expires_at", ps.ExpiresAt))
		p.clearSession(ctx)
		events.EmitAborted(p.bus, ps.FlowID, ErrSessionExpired.Error())
		return nil, nil
	}

	if p.coord.IsPlaying() {
		p.mu.Lock()
		own := p.sessionID
		p.mu.Unlock()
		if own != ps.SessionID {
			log.Warn("ignoring playback session owned by another player", zap.String("active_session", own))
			return nil, nil
		}
	}

	flow, err := p.store.GetFlowByID(ctx, ps.FlowID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		p.clearSession(ctx)
		events.EmitAborted(p.bus, ps.FlowID, ErrFlowDeleted.Error())
		log.Error("flow deleted during playback")
		return nil, fmt.Errorf("%w: %s", ErrFlowDeleted, ps.FlowID)
	}
	if ps.CurrentStepIndex > len(flow.Steps) {
		p.clearSession(ctx)
		events.EmitAborted(p.bus, ps.FlowID, ErrFlowModified.Error())
		log.Error("flow modified during playback", zap.Int("step_index", ps.CurrentStepIndex), zap.Int("total_steps", len(flow.Steps)))
		return nil, fmt.Errorf("%w: step %d of %d", ErrFlowModified, ps.CurrentStepIndex, len(flow.Steps))
	}

	if i := ps.CurrentStepIndex; i > 0 {
		if nav, ok := flow.Steps[i-1].Action.(models.NavigateAction); ok {
			loc, err := p.page.Location(ctx)
			if err != nil {
				log.Warn("failed to read location", zap.Error(err))
			} else if loc != nav.URL {
				log.Warn("page location differs from navigation target", zap.String("expected", nav.URL), zap.String("actual", loc))
			}
		}
	}

	log.Info("playback session restored", zap.Int("step_index", ps.CurrentStepIndex), zap.Int("results", len(ps.Results)))
	return &Restored{Flow: flow, StepIndex: ps.CurrentStepIndex, Session: ps}, nil
}

// PurgeExpired clears the persisted playback when it has expired and
// reports whether it did.
func (p *Player) PurgeExpired(ctx context.Context) (bool, error) {
	ps, err := p.store.LoadPlaybackSession(ctx)
	if err != nil || ps == nil {
		return false, err
	}
	if !ps.Expired(p.now()) {
		return false, nil
	}
	p.clearSession(ctx)
	p.logger.Info("purged expired playback session", zap.String("flow_id", ps.FlowID), zap.String("session_id", ps.SessionID))
	events.EmitAborted(p.bus, ps.FlowID, ErrSessionExpired.Error())
	return true, nil
}

func allPassed(results []models.StepResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
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
