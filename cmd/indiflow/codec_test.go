package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indiflow/internal/models"
)

func sampleFlow() models.IndiFlow {
	return models.IndiFlow{
		ID:       "f-1",
		Name:     "checkout",
		StartURL: "https://shop.test/cart",
		Domain:   "shop.test",
		Schedule: "@hourly",
		Steps: []models.FlowStep{
			{
				ID: "s-1",
				Action: models.ClickAction{Element: models.ElementFingerprint{
					Locators: []models.Locator{
						{Priority: 2, Strategy: models.StrategyRoleWithText, Selector: `button:has-text("Pay")`, Confidence: 9},
					},
					Verification: models.Verification{TagName: "button", TextContent: "Pay"},
				}},
				TriggeredAPIs: []models.ExpectedAPI{{Method: "POST", URLPattern: "https://shop.test/api/orders", ExpectedStatus: 201}},
			},
			{ID: "s-2", Action: models.NavigateAction{URL: "https://shop.test/done"}, WaitAfter: 500},
		},
	}
}

func TestYAMLExportKeepsActions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encodeFlows(&buf, []models.IndiFlow{sampleFlow()}, formatYAML))
	assert.Contains(t, buf.String(), "name: checkout")

	flows, err := decodeFlows(&buf, formatYAML)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	got := flows[0]
	assert.Equal(t, "@hourly", got.Schedule)
	require.Len(t, got.Steps, 2)

	click, ok := got.Steps[0].Action.(models.ClickAction)
	require.True(t, ok, "got %T", got.Steps[0].Action)
	assert.Equal(t, models.StrategyRoleWithText, click.Element.Locators[0].Strategy)
	assert.Equal(t, 201, got.Steps[0].TriggeredAPIs[0].ExpectedStatus)
	assert.Equal(t, models.NavigateAction{URL: "https://shop.test/done"}, got.Steps[1].Action)
	assert.Equal(t, 500, got.Steps[1].WaitAfter)
}

func TestDecodeSingleFlow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encodeFlows(&buf, sampleFlow(), formatJSON))

	flows, err := decodeFlows(&buf, formatJSON)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "f-1", flows[0].ID)
}

func TestDecodeRejectsUnknownAction(t *testing.T) {
	_, err := decodeFlows(strings.NewReader(`[{"id":"x","steps":[{"id":"1","action":{"type":"teleport"}}]}]`), formatJSON)
	assert.Error(t, err)
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path, override, want string
	}{
		{"flows.yaml", "", formatYAML},
		{"flows.YML", "", formatYAML},
		{"flows.json", "", formatJSON},
		{"", "", formatJSON},
		{"flows.json", "yaml", formatYAML},
		{"", "yml", formatYAML},
	}
	for _, tt := range tests {
		got, err := formatFor(tt.path, tt.override)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s/%s", tt.path, tt.override)
	}

	_, err := formatFor("flows.json", "xml")
	assert.Error(t, err)
}

func TestPrepareImportFillsMissingFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-time.Hour)
	in := []models.IndiFlow{
		{Name: "no id"},
		{ID: "keep", Name: "dated", CreatedAt: created},
	}

	out := prepareImport(in, now)
	require.Len(t, out, 2)
	assert.NotEmpty(t, out[0].ID)
	assert.Equal(t, now, out[0].CreatedAt)
	assert.Equal(t, now, out[0].UpdatedAt)
	assert.Equal(t, "keep", out[1].ID)
	assert.Equal(t, created, out[1].CreatedAt)
	assert.Equal(t, created, out[1].UpdatedAt)
	assert.Empty(t, in[0].ID, "input is not modified")
}

func TestPrintFlowTable(t *testing.T) {
	flow := sampleFlow()
	flow.LastRun = &models.LastRun{At: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), Success: true}
	var buf bytes.Buffer
	printFlowTable(&buf, []models.IndiFlow{flow})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "checkout")
	assert.Contains(t, lines[1], "passed 2026-03-01T12:00:00Z")
}
