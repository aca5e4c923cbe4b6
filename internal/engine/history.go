package engine

import (
	"sync"

	"indiflow/internal/events"
	"indiflow/internal/models"
)

// HistoryLimit is how many completed playbacks per flow are kept in memory.
const HistoryLimit = 10

type runHistory struct {
	mu    sync.Mutex
	limit int
	byID  map[string][][]models.StepResult
}

func newRunHistory(limit int) *runHistory {
	return &runHistory{limit: limit, byID: make(map[string][][]models.StepResult)}
}

func (h *runHistory) observe(ev events.Event) {
	if ev.Type != events.PlaybackCompleted {
		return
	}
	p, ok := ev.Payload.(events.CompletedPayload)
	if !ok || p.Result == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	runs := append(h.byID[p.Result.FlowID], p.Result.Results)
	if len(runs) > h.limit {
		runs = runs[len(runs)-h.limit:]
	}
	h.byID[p.Result.FlowID] = runs
}

func (h *runHistory) runs(flowID string) [][]models.StepResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]models.StepResult(nil), h.byID[flowID]...)
}
