package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indiflow/internal/models"
	"indiflow/internal/session"
	"indiflow/internal/storage"
)

type fakeVerifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeVerifier) PlayFlowByID(ctx context.Context, id string) (*models.FlowPlaybackResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if f.err != nil {
		return nil, f.err
	}
	return &models.FlowPlaybackResult{FlowID: id, Success: true}, nil
}

func (f *fakeVerifier) played() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func putFlow(t *testing.T, flows *storage.FlowStorage, id, schedule string) {
	t.Helper()
	require.NoError(t, flows.PutFlow(context.Background(), models.IndiFlow{
		ID:       id,
		Name:     id,
		Schedule: schedule,
		Steps:    []models.FlowStep{{ID: "1", Action: models.WaitAction{}}},
	}))
}

func TestSchedulerSyncTracksFlowSchedules(t *testing.T) {
	ctx := context.Background()
	flows := storage.New(storage.NewMemoryKV(), nil)
	putFlow(t, flows, "nightly", "0 3 * * *")
	putFlow(t, flows, "seconds", "*/30 * * * * *")
	putFlow(t, flows, "manual", "")
	putFlow(t, flows, "broken", "every tuesday")

	s := NewScheduler(flows, &fakeVerifier{}, nil)
	require.NoError(t, s.Sync(ctx))
	assert.Equal(t, []string{"nightly", "seconds"}, s.Scheduled())

	putFlow(t, flows, "nightly", "")
	putFlow(t, flows, "manual", "@hourly")
	require.NoError(t, s.Sync(ctx))
	assert.Equal(t, []string{"manual", "seconds"}, s.Scheduled())
	assert.Len(t, s.cron.Entries(), 2)
}

func TestSchedulerVerifiesFlow(t *testing.T) {
	flows := storage.New(storage.NewMemoryKV(), nil)
	v := &fakeVerifier{}
	s := NewScheduler(flows, v, nil)

	s.verifyFlow("checkout")
	assert.Equal(t, []string{"checkout"}, v.played())

	v.err = session.ErrRecordingActive
	assert.NotPanics(t, func() { s.verifyFlow("checkout") })
}

func TestSchedulerRunStopsWithContext(t *testing.T) {
	flows := storage.New(storage.NewMemoryKV(), nil)
	putFlow(t, flows, "every-second", "* * * * * *")
	v := &fakeVerifier{}
	s := NewScheduler(flows, v, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return len(v.played()) > 0 }, 3*time.Second, 20*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

type countingPurger struct {
	n   atomic.Int32
	err error
}

func (p *countingPurger) PurgeExpired(ctx context.Context) (bool, error) {
	p.n.Add(1)
	return p.n.Load()%2 == 0, p.err
}

func TestJanitorSweepsUntilCancelled(t *testing.T) {
	p := &countingPurger{}
	j := NewJanitor(p, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	require.Eventually(t, func() bool { return p.n.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)

	p.err = errors.New("kv unavailable")
	assert.NotPanics(t, func() { j.Sweep(context.Background()) })
}

func TestJanitorDefaultsInterval(t *testing.T) {
	assert.Equal(t, time.Minute, NewJanitor(&countingPurger{}, 0, nil).interval)
}
