package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indiflow/internal/models"
)

type failingDeleteKV struct {
	*MemoryKV
	deleteErr error
	setErr    error
}

func (f *failingDeleteKV) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryKV.Delete(ctx, key)
}

func (f *failingDeleteKV) Set(ctx context.Context, key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemoryKV.Set(ctx, key, value)
}

func newTestStorage(kv KV) *FlowStorage {
	s := New(kv, nil)
	s.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }
	return s
}

func sampleSession(id string) *models.RecordingSession {
	return &models.RecordingSession{
		FlowID:    id,
		FlowName:  "checkout",
		StartTime: time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
		StartURL:  "https://shop.example.com:8443/cart?x=1",
		Steps: []models.FlowStep{
			{ID: "s1", Action: models.NavigateAction{URL: "https://shop.example.com/cart"}},
			{ID: "s2", Action: models.WaitAction{}, WaitAfter: 500},
		},
	}
}

func TestFlowLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(NewMemoryKV())

	flows, err := s.GetAllFlows(ctx)
	require.NoError(t, err)
	assert.Empty(t, flows)
	assert.NotNil(t, flows)

	flow, err := s.SaveFlow(ctx, sampleSession("f1"))
	require.NoError(t, err)
	assert.Equal(t, "shop.example.com", flow.Domain)
	assert.Equal(t, s.now(), flow.CreatedAt)

	got, err := s.GetFlowByID(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, got.Steps, 2)
	nav, ok := got.Steps[0].Action.(models.NavigateAction)
	require.True(t, ok)
	assert.Equal(t, "https://shop.example.com/cart", nav.URL)

	later := s.now().Add(time.Hour)
	s.now = func() time.Time { return later }
	got.Name = "renamed"
	require.NoError(t, s.UpdateFlow(ctx, *got))
	got, err = s.GetFlowByID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, later, got.UpdatedAt)
	assert.True(t, got.CreatedAt.Before(later))

	run := models.LastRun{At: later, Success: true, PassedSteps: 2, TotalSteps: 2, Duration: 1200}
	require.NoError(t, s.UpdateFlowLastRun(ctx, "f1", run))
	got, err = s.GetFlowByID(ctx, "f1")
	require.NoError(t, err)
	require.NotNil(t, got.LastRun)
	assert.Equal(t, 2, got.LastRun.PassedSteps)

	require.NoError(t, s.DeleteFlow(ctx, "f1"))
	_, err = s.GetFlowByID(ctx, "f1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteFlow(ctx, "f1"), ErrNotFound)
	assert.ErrorIs(t, s.UpdateFlowLastRun(ctx, "f1", run), ErrNotFound)
}

func TestSaveFlowRejectsMissingID(t *testing.T) {
	s := newTestStorage(NewMemoryKV())
	_, err := s.SaveFlow(context.Background(), &models.RecordingSession{FlowName: "x"})
	assert.ErrorIs(t, err, ErrInvalidFlow)
}

func TestSessionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(NewMemoryKV())

	rs, err := s.LoadRecordingSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, rs)

	require.NoError(t, s.SaveRecordingSession(ctx, sampleSession("f2")))
	rs, err = s.LoadRecordingSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, rs)
	assert.Len(t, rs.Steps, 2)
	require.NoError(t, s.ClearRecordingSession(ctx))
	rs, err = s.LoadRecordingSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, rs)

	ps := &models.PlaybackSession{FlowID: "f2", CurrentStepIndex: 1, SessionID: "p1"}
	require.NoError(t, s.SavePlaybackSession(ctx, ps))
	loaded, err := s.LoadPlaybackSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 1, loaded.CurrentStepIndex)
	require.NoError(t, s.ClearPlaybackSession(ctx))
	loaded, err = s.LoadPlaybackSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestClearPlaybackSessionFallsBackToNull(t *testing.T) {
	ctx := context.Background()
	kv := &failingDeleteKV{MemoryKV: NewMemoryKV()}
	s := newTestStorage(kv)
	require.NoError(t, s.SavePlaybackSession(ctx, &models.PlaybackSession{FlowID: "f"}))

	kv.deleteErr = errors.New("quota")
	require.NoError(t, s.ClearPlaybackSession(ctx))
	raw, err := kv.Get(ctx, KeyPlaybackSession)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))

	ps, err := s.LoadPlaybackSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, ps)

	kv.setErr = errors.New("read only")
	assert.Error(t, s.ClearPlaybackSession(ctx))
}

func TestCorruptFlowsSurfaceDecodeError(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, KeyFlows, []byte("{not json")))
	s := newTestStorage(kv)
	_, err := s.GetAllFlows(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode flows")
}
