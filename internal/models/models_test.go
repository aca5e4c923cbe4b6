package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFingerprint() ElementFingerprint {
	return ElementFingerprint{
		Locators: []Locator{
			{Priority: 4, Strategy: StrategyID, Selector: "#save", Confidence: 8},
			{Priority: 12, Strategy: StrategyXPath, Selector: "//*[@id=\"save\"]", Confidence: 4},
		},
		Verification: Verification{TagName: "button", TextContent: "Save", Role: "button"},
	}
}

func TestFlowStepPreservesActionVariant(t *testing.T) {
	steps := []FlowStep{
		{ID: "1", Action: ClickAction{Element: sampleFingerprint(), Position: &Point{X: 3, Y: 4}}},
		{ID: "2", Action: InputAction{Element: sampleFingerprint(), Value: "hello"}},
		{ID: "3", Action: NavigateAction{URL: "https://example.com/next"}},
		{ID: "4", Action: ScrollAction{ScrollPosition: Point{Y: 400}}},
		{ID: "5", Action: WaitAction{}, WaitAfter: 250},
		{ID: "6", Action: KeypressAction{Element: sampleFingerprint(), Key: "Enter", Modifiers: Modifiers{Shift: true}}},
	}

	data, err := json.Marshal(steps)
	require.NoError(t, err)

	var decoded []FlowStep
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, len(steps))

	click, ok := decoded[0].Action.(ClickAction)
	require.True(t, ok, "got %T", decoded[0].Action)
	assert.Equal(t, "#save", click.Element.Locators[0].Selector)
	assert.Equal(t, &Point{X: 3, Y: 4}, click.Position)

	input := decoded[1].Action.(InputAction)
	assert.Equal(t, "hello", input.Value)

	assert.Equal(t, NavigateAction{URL: "https://example.com/next"}, decoded[2].Action)
	assert.Equal(t, ScrollAction{ScrollPosition: Point{Y: 400}}, decoded[3].Action)
	assert.Equal(t, 250, decoded[4].WaitAfter)

	key := decoded[5].Action.(KeypressAction)
	assert.Equal(t, "Enter", key.Key)
	assert.True(t, key.Modifiers.Shift)
}

func TestNavigateActionCarriesNoElement(t *testing.T) {
	data, err := json.Marshal(FlowStep{ID: "n", Action: NavigateAction{URL: "https://a.test"}})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"element"`)

	_, isElement := FlowAction(NavigateAction{}).(ElementAction)
	assert.False(t, isElement)
	_, isElement = FlowAction(ClickAction{}).(ElementAction)
	assert.True(t, isElement)
}

func TestUnmarshalRejectsMalformedActions(t *testing.T) {
	var step FlowStep
	assert.Error(t, json.Unmarshal([]byte(`{"id":"x","action":{"type":"click"}}`), &step))
	assert.Error(t, json.Unmarshal([]byte(`{"id":"x","action":{"type":"teleport"}}`), &step))
	assert.Error(t, json.Unmarshal([]byte(`{"id":"x","action":{"type":"navigate"}}`), &step))
}

func TestHeaderMapPersistsAsEntries(t *testing.T) {
	call := NetworkCall{Method: "GET", URL: "/api", RequestHeaders: HeaderMap{"b": "2", "a": "1"}}
	data, err := json.Marshal(call)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"requestHeaders":[["a","1"],["b","2"]]`)

	var back NetworkCall
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, HeaderMap{"a": "1", "b": "2"}, back.RequestHeaders)

	var legacy NetworkCall
	require.NoError(t, json.Unmarshal([]byte(`{"requestHeaders":{"x":"y"}}`), &legacy))
	assert.Equal(t, "y", legacy.RequestHeaders["x"])
}

func TestSortLocatorsByPriorityThenConfidence(t *testing.T) {
	locs := []Locator{
		{Priority: 3, Confidence: 5, Selector: "c"},
		{Priority: 1, Confidence: 7, Selector: "a2"},
		{Priority: 1, Confidence: 9, Selector: "a1"},
	}
	SortLocators(locs)
	assert.Equal(t, []string{"a1", "a2", "c"}, []string{locs[0].Selector, locs[1].Selector, locs[2].Selector})
}

func TestPlaybackSessionExpiry(t *testing.T) {
	now := time.Now()
	s := PlaybackSession{SavedAt: now, ExpiresAt: now.Add(5 * time.Minute)}
	assert.False(t, s.Expired(now.Add(time.Minute)))
	assert.True(t, s.Expired(now.Add(6*time.Minute)))
}
