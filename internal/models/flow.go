package models

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// ExpectedAPI is an API call a step is expected to trigger.
type ExpectedAPI struct {
	Method         string `json:"method"`
	URLPattern     string `json:"urlPattern"`
	ExpectedStatus int    `json:"expectedStatus,omitempty"`
}

// FlowStep is one recorded action. Steps are immutable once recorded except
// for TriggeredAPIs, which is filled by post-hoc API correlation.
type FlowStep struct {
	ID                string
	Timestamp         time.Time
	Action            FlowAction
	TriggeredAPIs     []ExpectedAPI
	ContinueOnFailure bool
	WaitAfter         int // milliseconds
}

type flowStepWire struct {
	ID                string          `json:"id"`
	Timestamp         time.Time       `json:"timestamp"`
	Action            json.RawMessage `json:"action"`
	TriggeredAPIs     []ExpectedAPI   `json:"triggeredAPIs"`
	ContinueOnFailure bool            `json:"continueOnFailure,omitempty"`
	WaitAfter         int             `json:"waitAfter,omitempty"`
}

func (s FlowStep) MarshalJSON() ([]byte, error) {
	if s.Action == nil {
		return nil, errors.New("flow step without action")
	}
	action, err := marshalAction(s.Action)
	if err != nil {
		return nil, err
	}
	apis := s.TriggeredAPIs
	if apis == nil {
		apis = []ExpectedAPI{}
	}
	return json.Marshal(flowStepWire{
		ID:                s.ID,
		Timestamp:         s.Timestamp,
		Action:            action,
		TriggeredAPIs:     apis,
		ContinueOnFailure: s.ContinueOnFailure,
		WaitAfter:         s.WaitAfter,
	})
}

func (s *FlowStep) UnmarshalJSON(data []byte) error {
	var w flowStepWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	action, err := unmarshalAction(w.Action)
	if err != nil {
		return err
	}
	*s = FlowStep{
		ID:                w.ID,
		Timestamp:         w.Timestamp,
		Action:            action,
		TriggeredAPIs:     w.TriggeredAPIs,
		ContinueOnFailure: w.ContinueOnFailure,
		WaitAfter:         w.WaitAfter,
	}
	return nil
}

// LastRun summarizes the most recent completed playback of a flow.
type LastRun struct {
	At          time.Time `json:"at"`
	Success     bool      `json:"success"`
	PassedSteps int       `json:"passedSteps"`
	TotalSteps  int       `json:"totalSteps"`
	Duration    int64     `json:"duration"` // milliseconds
}

// IndiFlow is a named, persisted sequence of steps.
type IndiFlow struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Domain    string     `json:"domain"`
	StartURL  string     `json:"startUrl"`
	Steps     []FlowStep `json:"steps"`
	LastRun   *LastRun   `json:"lastRun,omitempty"`
	Schedule  string     `json:"schedule,omitempty"` // cron expression for scheduled verification
}

// RecordingSession exists only while a recording is active.
type RecordingSession struct {
	FlowID    string     `json:"flowId"`
	FlowName  string     `json:"flowName"`
	StartTime time.Time  `json:"startTime"`
	StartURL  string     `json:"startUrl,omitempty"`
	Steps     []FlowStep `json:"steps"`
}

// PlaybackSession is the persisted progress of an in-flight playback.
type PlaybackSession struct {
	FlowID           string       `json:"flowId"`
	CurrentStepIndex int          `json:"currentStepIndex"`
	StartTime        time.Time    `json:"startTime"`
	Results          []StepResult `json:"results"`
	SessionID        string       `json:"sessionId"`
	SavedAt          time.Time    `json:"savedAt"`
	ExpiresAt        time.Time    `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *PlaybackSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// APIValidationResult reports whether an expected API fired.
type APIValidationResult struct {
	Expected     ExpectedAPI  `json:"expected"`
	Matched      bool         `json:"matched"`
	ActualStatus int          `json:"actualStatus,omitempty"`
	Call         *NetworkCall `json:"call,omitempty"`
	Message      string       `json:"message,omitempty"`
}

type StepResult struct {
	Step            FlowStep              `json:"step"`
	Passed          bool                  `json:"passed"`
	ElementFound    bool                  `json:"elementFound"`
	ActionPerformed bool                  `json:"actionPerformed"`
	APIResults      []APIValidationResult `json:"apiResults"`
	Error           string                `json:"error,omitempty"`
	Duration        int64                 `json:"duration"` // milliseconds
	MatchedStrategy Strategy              `json:"matchedStrategy,omitempty"`
	MatchedSelector string                `json:"matchedSelector,omitempty"`
}

// FlowPlaybackResult aggregates the results of one playback invocation.
type FlowPlaybackResult struct {
	FlowID      string       `json:"flowId"`
	FlowName    string       `json:"flowName"`
	Success     bool         `json:"success"`
	Results     []StepResult `json:"results"`
	StartTime   time.Time    `json:"startTime"`
	EndTime     time.Time    `json:"endTime"`
	Duration    int64        `json:"duration"` // milliseconds
	Interrupted bool         `json:"interrupted,omitempty"`
	Stopped     bool         `json:"stopped,omitempty"`
}

// PassedCount returns how many step results passed.
func (r *FlowPlaybackResult) PassedCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Passed {
			n++
		}
	}
	return n
}
