package models

import "sort"

// Strategy names the technique that produced a Locator.
type Strategy string

const (
	StrategyRoleWithName Strategy = "role-with-name"
	StrategyRoleWithText Strategy = "role-with-text"
	StrategyTestID       Strategy = "test-id"
	StrategyID           Strategy = "id"
	StrategyName         Strategy = "name"
	StrategyTextContent  Strategy = "text-content"
	StrategyPlaceholder  Strategy = "placeholder"
	StrategyFramework    Strategy = "framework"
	StrategySmartCSS     Strategy = "smart-css"
	StrategyPosition     Strategy = "position"
	StrategyXPath        Strategy = "xpath"
)

// Locator is one candidate way to find an element again.
type Locator struct {
	Priority   int      `json:"priority"`
	Strategy   Strategy `json:"strategy"`
	Selector   string   `json:"selector"`
	Confidence int      `json:"confidence"`
}

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// VisualSnapshot is kept for debugging only and never used for matching.
type VisualSnapshot struct {
	Rect Rect   `json:"rect"`
	HTML string `json:"html"`
}

// Verification is checked after a locator matched to reject false positives.
type Verification struct {
	TagName     string `json:"tagName"`
	TextContent string `json:"textContent,omitempty"`
	Role        string `json:"role,omitempty"`
	InputType   string `json:"inputType,omitempty"`
}

// ElementFingerprint is the durable identity of a captured element.
type ElementFingerprint struct {
	Locators     []Locator      `json:"locators"`
	Visual       VisualSnapshot `json:"visual"`
	Verification Verification   `json:"verification"`
}

// SortLocators orders locators ascending by priority, breaking ties by
// descending confidence. The sort is stable so generation order survives.
func SortLocators(locators []Locator) {
	sort.SliceStable(locators, func(i, j int) bool {
		if locators[i].Priority != locators[j].Priority {
			return locators[i].Priority < locators[j].Priority
		}
		return locators[i].Confidence > locators[j].Confidence
	})
}

// WithOnly returns a copy of the fingerprint keeping only the locator at index i.
func (fp ElementFingerprint) WithOnly(i int) ElementFingerprint {
	out := fp
	out.Locators = []Locator{fp.Locators[i]}
	return out
}
