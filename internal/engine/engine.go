// Package engine wires the recorder, player and storage of one page into a
// single host object. The HTTP API, the scheduler and the CLI all drive the
// page through an Engine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"indiflow/internal/config"
	"indiflow/internal/dom"
	"indiflow/internal/events"
	"indiflow/internal/finder"
	"indiflow/internal/identifier"
	"indiflow/internal/models"
	"indiflow/internal/netlog"
	"indiflow/internal/player"
	"indiflow/internal/recorder"
	"indiflow/internal/session"
	"indiflow/internal/storage"
	"indiflow/internal/uikit"
)

var ErrNotRecording = errors.New("no recording in progress")

type Engine struct {
	Flows    *storage.FlowStorage
	Recorder *recorder.Recorder
	Player   *player.Player
	Bus      *events.Bus
	Calls    *netlog.Cache

	page   dom.Page
	coord  *session.Coordinator
	ident  *identifier.Identifier
	logger *zap.Logger

	// ctx outlives individual requests: recordings stay attached and async
	// playbacks keep running after the call that started them returns.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	history *runHistory
}

// New builds an engine for page. source may be nil for hosts that only play
// back. A nil cfg uses the built-in defaults.
func New(ctx context.Context, page dom.Page, source dom.EventSource, kv storage.KV, cfg *config.Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if source == nil {
		source = noSource{}
	}
	kits := uikit.Default()
	bus := events.NewBus()
	calls := netlog.NewCache(0, 0)
	coord := session.NewCoordinator()
	flows := storage.New(kv, logger)
	ident := identifier.New(kits, logger)

	var playOpts player.Options
	recOpts := []recorder.Option{recorder.WithEvents(bus), recorder.WithNetworkCache(calls)}
	if cfg != nil {
		playOpts = PlayerOptions(cfg.Playback)
		recOpts = append(recOpts, RecorderOptions(cfg.Recorder)...)
	} else {
		playOpts = player.DefaultOptions()
	}

	ectx, cancel := context.WithCancel(ctx)
	history := newRunHistory(HistoryLimit)
	bus.Subscribe(history.observe)
	return &Engine{
		Flows:    flows,
		Recorder: recorder.New(page, source, flows, coord, ident, logger, recOpts...),
		Player: player.New(page, flows, coord, kits, logger,
			player.WithOptions(playOpts), player.WithEvents(bus), player.WithNetworkCache(calls)),
		Bus:    bus,
		Calls:  calls,
		page:   page,
		coord:  coord,
		ident:  ident,
		logger: logger.Named("engine"),
		ctx:     ectx,
		cancel:  cancel,
		history: history,
	}
}

// PlayerOptions maps configured playback timings onto player options.
func PlayerOptions(c config.PlaybackConfig) player.Options {
	o := player.DefaultOptions()
	if c.ElementTimeout > 0 {
		o.ElementTimeout = c.ElementTimeout
	}
	if c.OptionRetryTimeout > 0 {
		o.OptionRetryTimeout = c.OptionRetryTimeout
	}
	if c.OptionRetryDelay > 0 {
		o.OptionRetryDelay = c.OptionRetryDelay
	}
	if c.DropdownWait > 0 {
		o.DropdownWait = c.DropdownWait
	}
	if c.NavigationSettle > 0 {
		o.NavigationSettle = c.NavigationSettle
	}
	if c.PollInterval > 0 {
		o.PollInterval = c.PollInterval
	}
	if c.SessionTTL > 0 {
		o.SessionTTL = c.SessionTTL
	}
	o.StrictAPIValidation = c.StrictAPIValidation
	return o
}

func RecorderOptions(c config.RecorderConfig) []recorder.Option {
	opts := []recorder.Option{
		recorder.WithScrollDebounce(c.ScrollDebounce),
		recorder.WithAPIWindow(c.APIWindow),
	}
	if c.InteractiveDepth > 0 {
		opts = append(opts, recorder.WithInteractiveDepth(c.InteractiveDepth))
	}
	return opts
}

// Restore re-attaches a recording or resumes a playback that was persisted
// before the page reloaded. A resumed playback runs to completion before
// Restore returns.
func (e *Engine) Restore(ctx context.Context) (*models.FlowPlaybackResult, error) {
	rs, err := e.Recorder.Restore(e.ctx)
	if err != nil {
		return nil, fmt.Errorf("restore recording: %w", err)
	}
	if rs != nil {
		return nil, nil
	}
	return e.Player.Resume(ctx)
}

func (e *Engine) StartRecording(ctx context.Context, name string) (*models.RecordingSession, error) {
	return e.Recorder.StartRecording(e.ctx, name)
}

// StopRecording ends the active recording and, when save is set, persists it
// as a flow. The flow is nil when save is false.
func (e *Engine) StopRecording(ctx context.Context, save bool) (*models.RecordingSession, *models.IndiFlow, error) {
	rs, err := e.Recorder.StopRecording(ctx)
	if err != nil {
		return nil, nil, err
	}
	if rs == nil {
		return nil, nil, ErrNotRecording
	}
	if !save {
		return rs, nil, nil
	}
	flow, err := e.Flows.SaveFlow(ctx, rs)
	if err != nil {
		return rs, nil, fmt.Errorf("save flow: %w", err)
	}
	return rs, flow, nil
}

// PlayFlowByID replays a stored flow from its first step and waits for the
// result.
func (e *Engine) PlayFlowByID(ctx context.Context, id string) (*models.FlowPlaybackResult, error) {
	flow, err := e.Flows.GetFlowByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.Player.PlayFlow(ctx, flow, 0)
}

// StartPlayback checks the entry guards and replays the flow in the
// background. Progress and the result arrive on Bus.
func (e *Engine) StartPlayback(ctx context.Context, id string) (*models.IndiFlow, error) {
	flow, err := e.Flows.GetFlowByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pb, err := e.Player.Prepare(flow, 0)
	if err != nil {
		return nil, err
	}
	e.goPlay(pb)
	return flow, nil
}

// ResumePlayback continues a persisted playback in the background. It
// reports false when there is nothing to resume.
func (e *Engine) ResumePlayback(ctx context.Context) (bool, error) {
	if e.coord.IsPlaying() {
		return false, session.ErrAlreadyPlaying
	}
	pb, err := e.Player.PrepareResume(ctx)
	if err != nil || pb == nil {
		return false, err
	}
	e.goPlay(pb)
	return true, nil
}

func (e *Engine) goPlay(pb *player.Playback) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if _, err := pb.Play(e.ctx); err != nil {
			e.logger.Error("background playback failed", zap.String("flow_id", pb.FlowID()), zap.Error(err))
		}
	}()
}

func (e *Engine) StopPlayback(ctx context.Context) bool {
	return e.Player.Stop(ctx)
}

// AddAPICall feeds one captured network call to the engine.
func (e *Engine) AddAPICall(call models.NetworkCall) models.NetworkCall {
	return e.Recorder.AddAPICall(call)
}

// Identify captures the fingerprint of the first element on the current page
// matching selector.
func (e *Engine) Identify(ctx context.Context, selector string) (models.ElementFingerprint, error) {
	doc, err := e.page.Document(ctx)
	if err != nil {
		return models.ElementFingerprint{}, err
	}
	els, err := doc.QuerySelectorAll(selector)
	if err != nil {
		return models.ElementFingerprint{}, fmt.Errorf("selector %q: %w", selector, err)
	}
	if len(els) == 0 {
		return models.ElementFingerprint{}, fmt.Errorf("selector %q: %w", selector, finder.ErrElementNotFound)
	}
	return e.ident.CaptureElement(els[0], doc), nil
}

// FragileLocators analyses the step results of the recent completed
// playbacks of a flow.
func (e *Engine) FragileLocators(flowID string) []player.FragileLocator {
	out := player.DetectFragileLocators(e.history.runs(flowID)...)
	if out == nil {
		out = []player.FragileLocator{}
	}
	return out
}

type Status struct {
	Mode      string                   `json:"mode"`
	Recording *models.RecordingSession `json:"recording,omitempty"`
	Playback  *models.PlaybackSession  `json:"playback,omitempty"`
}

func (e *Engine) Status(ctx context.Context) (Status, error) {
	st := Status{Mode: e.coord.Mode().String(), Recording: e.Recorder.Session()}
	ps, err := e.Flows.LoadPlaybackSession(ctx)
	if err != nil {
		return st, err
	}
	st.Playback = ps
	return st, nil
}

// Close stops any running playback and waits for background work to end.
// An active recording is left persisted so a later engine can restore it.
func (e *Engine) Close() {
	e.Player.Stop(context.Background())
	e.cancel()
	e.wg.Wait()
}

type noSource struct{}

func (noSource) Listen(context.Context, func(dom.UserEvent)) (func(), error) {
	return nil, errors.New("page does not stream user events")
}
