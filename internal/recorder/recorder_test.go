package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indiflow/internal/dom"
	"indiflow/internal/events"
	"indiflow/internal/identifier"
	"indiflow/internal/models"
	"indiflow/internal/session"
	"indiflow/internal/storage"
	"indiflow/internal/uikit"
	"indiflow/pkg/htmldom"
)

const fixture = `<html><body>
<form id="search">
  <input name="q" placeholder="Search">
  <button type="button" class="toolbar-btn" aria-label="Refresh"><span class="icon">R</span></button>
</form>
<div class="card" style="cursor: pointer"><span class="title">Open card</span></div>
<select name="size"><option value="s">Small</option><option value="m">Medium</option></select>
</body></html>`

type harness struct {
	page  *htmldom.Page
	store *storage.FlowStorage
	coord *session.Coordinator
	bus   *events.Bus
	rec   *Recorder
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	doc := htmldom.MustParse(fixture, "https://app.test/search")
	h := &harness{
		page:  htmldom.NewPage(doc),
		store: storage.New(storage.NewMemoryKV(), nil),
		coord: session.NewCoordinator(),
		bus:   events.NewBus(),
	}
	h.rec = newRecorder(h, opts...)
	return h
}

func newRecorder(h *harness, opts ...Option) *Recorder {
	ident := identifier.New(uikit.Default(), nil)
	opts = append([]Option{WithEvents(h.bus)}, opts...)
	return New(h.page, h.page, h.store, h.coord, ident, nil, opts...)
}

func (h *harness) el(sel string) *htmldom.Element {
	return h.page.Current().Query(sel)
}

func actionTypes(steps []models.FlowStep) []models.ActionType {
	out := make([]models.ActionType, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Action.Type())
	}
	return out
}

func TestRecordsInteractions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var seen []events.Type
	h.bus.Subscribe(func(ev events.Event) { seen = append(seen, ev.Type) })

	rs, err := h.rec.StartRecording(ctx, "search")
	require.NoError(t, err)
	assert.Equal(t, "https://app.test/search", rs.StartURL)
	assert.True(t, h.rec.IsRecording())
	assert.True(t, h.coord.IsRecording())

	h.page.UserType(h.el("input"), "s")
	h.page.UserType(h.el("input"), "shoes")
	h.page.UserKey(h.el("input"), "a", models.Modifiers{})
	h.page.UserKey(h.el("input"), "Enter", models.Modifiers{})
	h.page.UserClick(h.el("span.icon"))
	h.page.UserChange(h.el("select"), "m")
	h.page.Fire(dom.UserEvent{Type: dom.UserMutation, MutationCount: 12})
	h.page.UserNavigate("https://app.test/results")

	got, err := h.rec.StopRecording(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, h.rec.IsRecording())
	assert.False(t, h.coord.IsRecording())

	assert.Equal(t, []models.ActionType{
		models.ActionInput, models.ActionKeypress, models.ActionClick, models.ActionChange, models.ActionNavigate,
	}, actionTypes(got.Steps))

	input := got.Steps[0].Action.(models.InputAction)
	assert.Equal(t, "shoes", input.Value)
	assert.Equal(t, "Enter", got.Steps[1].Action.(models.KeypressAction).Key)

	click := got.Steps[2].Action.(models.ClickAction)
	assert.Equal(t, "button", click.Element.Verification.TagName, "icon click is attributed to its button")
	require.NotNil(t, click.Position)

	assert.Equal(t, "m", got.Steps[3].Action.(models.ChangeAction).Value)
	assert.Equal(t, "https://app.test/results", got.Steps[4].Action.(models.NavigateAction).URL)

	for i := 1; i < len(got.Steps); i++ {
		assert.NotEqual(t, got.Steps[i-1].ID, got.Steps[i].ID)
	}
	assert.Equal(t, events.RecordingStarted, seen[0])
	assert.Equal(t, events.RecordingStopped, seen[len(seen)-1])
	assert.Contains(t, seen, events.RecordingStep)

	persisted, err := h.store.LoadRecordingSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, persisted, "stopping clears the persisted session")

	again, err := h.rec.StopRecording(ctx)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestPointerCursorAncestorIsClickTarget(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.rec.StartRecording(ctx, "cards")
	require.NoError(t, err)

	h.page.UserClick(h.el("span.title"))
	rs, err := h.rec.StopRecording(ctx)
	require.NoError(t, err)
	require.Len(t, rs.Steps, 1)
	assert.Equal(t, "div", rs.Steps[0].Action.(models.ClickAction).Element.Verification.TagName)
}

func TestScrollIsDebounced(t *testing.T) {
	h := newHarness(t, WithScrollDebounce(20*time.Millisecond))
	ctx := context.Background()
	_, err := h.rec.StartRecording(ctx, "scroll")
	require.NoError(t, err)

	h.page.UserScroll(0, 100)
	h.page.UserScroll(0, 200)
	h.page.UserScroll(0, 300)

	require.Eventually(t, func() bool {
		s := h.rec.Session()
		return s != nil && len(s.Steps) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	rs, err := h.rec.StopRecording(ctx)
	require.NoError(t, err)
	require.Len(t, rs.Steps, 1)
	assert.Equal(t, models.Point{X: 0, Y: 300}, rs.Steps[0].Action.(models.ScrollAction).ScrollPosition)
}

func TestStopFlushesPendingScroll(t *testing.T) {
	h := newHarness(t, WithScrollDebounce(time.Hour))
	ctx := context.Background()
	_, err := h.rec.StartRecording(ctx, "scroll")
	require.NoError(t, err)

	h.page.UserScroll(10, 20)
	rs, err := h.rec.StopRecording(ctx)
	require.NoError(t, err)
	require.Len(t, rs.Steps, 1)
	assert.Equal(t, models.ActionScroll, rs.Steps[0].Action.Type())
}

func TestStepsPersistAndRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rs, err := h.rec.StartRecording(ctx, "reload")
	require.NoError(t, err)

	h.page.UserClick(h.el("button"))
	persisted, err := h.store.LoadRecordingSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	require.Len(t, persisted.Steps, 1)

	// a reload loses the in-process recorder but not the store
	h.rec.detach()
	h.coord.EndRecording()
	fresh := newRecorder(h)
	restored, err := fresh.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, rs.FlowID, restored.FlowID)
	assert.True(t, fresh.IsRecording())

	h.page.UserType(h.el("input"), "after reload")
	done, err := fresh.StopRecording(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.ActionType{models.ActionClick, models.ActionInput}, actionTypes(done.Steps))
}

func TestRestoreWithoutSession(t *testing.T) {
	h := newHarness(t)
	rs, err := h.rec.Restore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rs)
	assert.False(t, h.coord.IsRecording())
}

func TestAPICallsCorrelateWithLatestStep(t *testing.T) {
	h := newHarness(t, WithAPIWindow(3*time.Second))
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	h.rec.now = func() time.Time { return now }
	ctx := context.Background()
	_, err := h.rec.StartRecording(ctx, "api")
	require.NoError(t, err)

	h.rec.AddAPICall(models.NetworkCall{Method: "GET", URL: "https://api.test/early", Timestamp: now})
	h.page.UserClick(h.el("button"))
	h.rec.AddAPICall(models.NetworkCall{Method: "post", URL: "https://api.test/search/42", Status: 200, Timestamp: now.Add(time.Second)})
	h.rec.AddAPICall(models.NetworkCall{Method: "POST", URL: "https://api.test/search/43", Status: 200, Timestamp: now.Add(2 * time.Second)})
	h.rec.AddAPICall(models.NetworkCall{Method: "GET", URL: "https://api.test/late", Timestamp: now.Add(5 * time.Second)})

	rs, err := h.rec.StopRecording(ctx)
	require.NoError(t, err)
	require.Len(t, rs.Steps, 1)
	assert.Equal(t, []models.ExpectedAPI{{Method: "POST", URLPattern: "/search/:id", ExpectedStatus: 200}}, rs.Steps[0].TriggeredAPIs)
}

func TestRecordingRefusedDuringPlayback(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.coord.BeginPlayback())

	_, err := h.rec.StartRecording(context.Background(), "nope")
	assert.ErrorIs(t, err, session.ErrPlaybackActive)
	assert.False(t, h.rec.IsRecording())

	h.coord.EndPlayback()
	_, err = h.rec.StartRecording(context.Background(), "ok")
	require.NoError(t, err)
	_, err = h.rec.StartRecording(context.Background(), "twice")
	assert.ErrorIs(t, err, session.ErrAlreadyRecording)
}

func TestStartedSessionIsDetachedFromRecorder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var started *models.RecordingSession
	h.bus.Subscribe(func(ev events.Event) {
		if p, ok := ev.Payload.(events.RecordingPayload); ok && ev.Type == events.RecordingStarted {
			started = p.Session
		}
	})

	rs, err := h.rec.StartRecording(ctx, "clicks")
	require.NoError(t, err)
	require.NotNil(t, started)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_, err := json.Marshal(started)
			assert.NoError(t, err)
		}
	}()
	for i := 0; i < 20; i++ {
		h.page.UserClick(h.el("button"))
	}
	<-done

	assert.Empty(t, rs.Steps)
	assert.Empty(t, started.Steps)
	assert.Len(t, h.rec.Session().Steps, 20)

	got, err := h.rec.StopRecording(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Steps, 20)
}
