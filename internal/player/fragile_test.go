package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indiflow/internal/models"
)

func TestDetectFragileLocators(t *testing.T) {
	fp := models.ElementFingerprint{Locators: []models.Locator{
		{Priority: 4, Strategy: models.StrategyID, Selector: "#save", Confidence: 8},
		{Priority: 6, Strategy: models.StrategyTextContent, Selector: `button:has-text("Save")`, Confidence: 7},
		{Priority: 10, Strategy: models.StrategyPosition, Selector: "body > button:nth-child(1)", Confidence: 5},
	}}
	click := models.FlowStep{ID: "1", Action: models.ClickAction{Element: fp}}
	byText := models.StepResult{Step: click, ElementFound: true, MatchedStrategy: models.StrategyTextContent, MatchedSelector: `button:has-text("Save")`}
	byID := models.StepResult{Step: click, ElementFound: true, MatchedStrategy: models.StrategyID, MatchedSelector: "#save"}
	missing := models.StepResult{Step: click}
	scroll := models.StepResult{Step: models.FlowStep{ID: "2", Action: models.ScrollAction{}}, Passed: true}

	fragile := DetectFragileLocators(
		[]models.StepResult{byText, scroll},
		[]models.StepResult{byText},
		[]models.StepResult{byID, missing},
	)

	require.Len(t, fragile, 2)
	assert.Equal(t, models.StrategyPosition, fragile[0].Strategy, "position only ever ran on the failed lookup")
	assert.Equal(t, 1, fragile[0].Attempts)
	assert.Equal(t, FragileLocator{Strategy: models.StrategyID, Attempts: 4, Failures: 3}, fragile[1])

	assert.Empty(t, DetectFragileLocators([]models.StepResult{byID}))
}
