// Package storage persists flows and the transient recording and playback
// sessions in a key-value store. Each logical record lives under one key and
// is rewritten whole on every change.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"indiflow/internal/models"
)

const (
	KeyFlows            = "flows"
	KeyRecordingSession = "recording_session"
	KeyPlaybackSession  = "playback_session"
)

var ErrInvalidFlow = errors.New("invalid flow")

type FlowStorage struct {
	kv     KV
	logger *zap.Logger
	now    func() time.Time

	// serializes read-modify-write of the flows key within this process
	mu sync.Mutex
}

func New(kv KV, logger *zap.Logger) *FlowStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlowStorage{kv: kv, logger: logger.Named("storage"), now: time.Now}
}

func (s *FlowStorage) GetAllFlows(ctx context.Context) ([]models.IndiFlow, error) {
	var flows []models.IndiFlow
	if err := s.load(ctx, KeyFlows, &flows); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if flows == nil {
		flows = []models.IndiFlow{}
	}
	return flows, nil
}

func (s *FlowStorage) GetFlowByID(ctx context.Context, id string) (*models.IndiFlow, error) {
	flows, err := s.GetAllFlows(ctx)
	if err != nil {
		return nil, err
	}
	for i := range flows {
		if flows[i].ID == id {
			return &flows[i], nil
		}
	}
	return nil, fmt.Errorf("flow %s: %w", id, ErrNotFound)
}

// SaveFlow creates a flow from a finished recording session.
func (s *FlowStorage) SaveFlow(ctx context.Context, session *models.RecordingSession) (*models.IndiFlow, error) {
	if session == nil || session.FlowID == "" {
		return nil, fmt.Errorf("%w: session without flow id", ErrInvalidFlow)
	}
	now := s.now()
	flow := models.IndiFlow{
		ID:        session.FlowID,
		Name:      session.FlowName,
		CreatedAt: now,
		UpdatedAt: now,
		Domain:    domainOf(session.StartURL),
		StartURL:  session.StartURL,
		Steps:     append([]models.FlowStep(nil), session.Steps...),
	}
	if flow.Steps == nil {
		flow.Steps = []models.FlowStep{}
	}
	if err := s.PutFlow(ctx, flow); err != nil {
		return nil, err
	}
	s.logger.Info("flow saved",
		zap.String("flow_id", flow.ID),
		zap.String("name", flow.Name),
		zap.Int("steps", len(flow.Steps)))
	return &flow, nil
}

// PutFlow inserts flow or replaces the flow with the same id.
func (s *FlowStorage) PutFlow(ctx context.Context, flow models.IndiFlow) error {
	if flow.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidFlow)
	}
	return s.mutate(ctx, func(flows []models.IndiFlow) ([]models.IndiFlow, error) {
		for i := range flows {
			if flows[i].ID == flow.ID {
				flows[i] = flow
				return flows, nil
			}
		}
		return append(flows, flow), nil
	})
}

// UpdateFlow replaces an existing flow and bumps UpdatedAt.
func (s *FlowStorage) UpdateFlow(ctx context.Context, flow models.IndiFlow) error {
	flow.UpdatedAt = s.now()
	return s.mutate(ctx, func(flows []models.IndiFlow) ([]models.IndiFlow, error) {
		for i := range flows {
			if flows[i].ID == flow.ID {
				flow.CreatedAt = flows[i].CreatedAt
				flows[i] = flow
				return flows, nil
			}
		}
		return nil, fmt.Errorf("flow %s: %w", flow.ID, ErrNotFound)
	})
}

func (s *FlowStorage) UpdateFlowLastRun(ctx context.Context, id string, run models.LastRun) error {
	return s.mutate(ctx, func(flows []models.IndiFlow) ([]models.IndiFlow, error) {
		for i := range flows {
			if flows[i].ID == id {
				r := run
				flows[i].LastRun = &r
				return flows, nil
			}
		}
		return nil, fmt.Errorf("flow %s: %w", id, ErrNotFound)
	})
}

func (s *FlowStorage) DeleteFlow(ctx context.Context, id string) error {
	err := s.mutate(ctx, func(flows []models.IndiFlow) ([]models.IndiFlow, error) {
		for i := range flows {
			if flows[i].ID == id {
				return append(flows[:i], flows[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("flow %s: %w", id, ErrNotFound)
	})
	if err == nil {
		s.logger.Info("flow deleted", zap.String("flow_id", id))
	}
	return err
}

func (s *FlowStorage) mutate(ctx context.Context, fn func([]models.IndiFlow) ([]models.IndiFlow, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flows, err := s.GetAllFlows(ctx)
	if err != nil {
		return err
	}
	flows, err = fn(flows)
	if err != nil {
		return err
	}
	return s.store(ctx, KeyFlows, flows)
}

func (s *FlowStorage) SaveRecordingSession(ctx context.Context, rs *models.RecordingSession) error {
	return s.store(ctx, KeyRecordingSession, rs)
}

// LoadRecordingSession returns nil when no recording is persisted.
func (s *FlowStorage) LoadRecordingSession(ctx context.Context) (*models.RecordingSession, error) {
	var rs *models.RecordingSession
	if err := s.load(ctx, KeyRecordingSession, &rs); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rs, nil
}

func (s *FlowStorage) ClearRecordingSession(ctx context.Context) error {
	return s.kv.Delete(ctx, KeyRecordingSession)
}

func (s *FlowStorage) SavePlaybackSession(ctx context.Context, ps *models.PlaybackSession) error {
	return s.store(ctx, KeyPlaybackSession, ps)
}

// LoadPlaybackSession returns nil when no playback is persisted. A nullified
// key counts as absent.
func (s *FlowStorage) LoadPlaybackSession(ctx context.Context) (*models.PlaybackSession, error) {
	var ps *models.PlaybackSession
	if err := s.load(ctx, KeyPlaybackSession, &ps); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ps, nil
}

// ClearPlaybackSession deletes the persisted playback. When the delete
// fails it falls back to overwriting the key with null; the error of that
// second attempt is returned for logging only.
func (s *FlowStorage) ClearPlaybackSession(ctx context.Context) error {
	err := s.kv.Delete(ctx, KeyPlaybackSession)
	if err == nil {
		return nil
	}
	s.logger.Warn("clearing playback session failed, nullifying", zap.Error(err))
	if err := s.kv.Set(ctx, KeyPlaybackSession, []byte("null")); err != nil {
		return fmt.Errorf("nullify playback session: %w", err)
	}
	return nil
}

func (s *FlowStorage) store(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *FlowStorage) load(ctx context.Context, key string, v interface{}) error {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
