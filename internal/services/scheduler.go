package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"indiflow/internal/models"
	"indiflow/internal/session"
	"indiflow/internal/storage"
)

// Verifier replays a stored flow.
type Verifier interface {
	PlayFlowByID(ctx context.Context, id string) (*models.FlowPlaybackResult, error)
}

// Parser accepts standard five-field expressions, an optional leading
// seconds field and descriptors such as @hourly.
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type entry struct {
	id   cron.EntryID
	spec string
}

// SchedulerService replays flows that carry a cron schedule. The playback
// updates the flow's LastRun like any other run.
type SchedulerService struct {
	cron   *cron.Cron
	flows  *storage.FlowStorage
	verify Verifier
	logger *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]entry
}

func NewScheduler(flows *storage.FlowStorage, verify Verifier, logger *zap.Logger) *SchedulerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")
	cl := cronLogger{logger.Sugar()}
	return &SchedulerService{
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		flows:   flows,
		verify:  verify,
		logger:  logger,
		ctx:     context.Background(),
		entries: make(map[string]entry),
	}
}

// Run loads the schedules and fires them until ctx is done.
func (s *SchedulerService) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	if err := s.Sync(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started")
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// Sync reconciles cron entries with the schedules of the stored flows.
// Invalid expressions are logged and skipped.
func (s *SchedulerService) Sync(ctx context.Context) error {
	flows, err := s.flows.GetAllFlows(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]string, len(flows))
	for _, f := range flows {
		if f.Schedule != "" {
			want[f.ID] = f.Schedule
		}
	}
	for id, e := range s.entries {
		if spec, ok := want[id]; !ok || spec != e.spec {
			s.cron.Remove(e.id)
			delete(s.entries, id)
			s.logger.Info("removed schedule", zap.String("flow_id", id))
		}
	}
	for id, spec := range want {
		if _, ok := s.entries[id]; ok {
			continue
		}
		flowID := id
		eid, err := s.cron.AddFunc(spec, func() { s.verifyFlow(flowID) })
		if err != nil {
			s.logger.Warn("invalid flow schedule", zap.String("flow_id", id), zap.String("schedule", spec), zap.Error(err))
			continue
		}
		s.entries[id] = entry{id: eid, spec: spec}
		s.logger.Info("added schedule", zap.String("flow_id", id), zap.String("schedule", spec))
	}
	return nil
}

// Scheduled returns the ids of flows with an active schedule.
func (s *SchedulerService) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *SchedulerService) verifyFlow(flowID string) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	log := s.logger.With(zap.String("flow_id", flowID))

	result, err := s.verify.PlayFlowByID(ctx, flowID)
	switch {
	case errors.Is(err, session.ErrRecordingActive), errors.Is(err, session.ErrAlreadyPlaying):
		log.Info("page busy, skipping scheduled verification", zap.Error(err))
	case errors.Is(err, storage.ErrNotFound):
		log.Warn("scheduled flow no longer exists")
	case err != nil:
		log.Error("scheduled verification failed", zap.Error(err))
	default:
		log.Info("scheduled verification finished",
			zap.Bool("success", result.Success),
			zap.Int("passed", result.PassedCount()),
			zap.Int("total_steps", len(result.Results)))
	}
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
