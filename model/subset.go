package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GoalKind selects the active variant of a SubsetGoal.
type GoalKind int

const (
	GoalServerDefault GoalKind = iota
	GoalPercentage
	GoalAbsoluteTime
	GoalConfidence
)

// SubsetGoal is the optimization target of a subset request. Exactly one
// variant is active; construct it with the helpers below.
type SubsetGoal struct {
	kind  GoalKind
	value float64
}

// Percentage subsets to a fraction (0..1) of the estimated total duration.
func Percentage(p float64) SubsetGoal { return SubsetGoal{kind: GoalPercentage, value: p} }

// AbsoluteTime subsets to a fixed time budget in seconds.
func AbsoluteTime(seconds float64) SubsetGoal {
	return SubsetGoal{kind: GoalAbsoluteTime, value: seconds}
}

// Confidence subsets to a fraction (0..1) of confidence that a failure is caught.
func Confidence(p float64) SubsetGoal { return SubsetGoal{kind: GoalConfidence, value: p} }

// ServerDefault lets the service pick the target configured for the workspace.
func ServerDefault() SubsetGoal { return SubsetGoal{kind: GoalServerDefault} }

func (g SubsetGoal) Kind() GoalKind { return g.kind }
func (g SubsetGoal) Value() float64 { return g.value }

// Wire returns the "goal" object of the subset request, or nil for the
// server default.
func (g SubsetGoal) Wire() *Goal {
	switch g.kind {
	case GoalPercentage:
		return &Goal{Type: "subset-by-percentage", Percentage: ptr(g.value)}
	case GoalAbsoluteTime:
		return &Goal{Type: "subset-by-absolute-time", Duration: ptr(g.value)}
	case GoalConfidence:
		return &Goal{Type: "subset-by-confidence", Percentage: ptr(g.value)}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

// GoalFromFlags builds the goal from the three mutually exclusive options.
// Empty strings mean "not set".
func GoalFromFlags(target, duration, confidence string) (SubsetGoal, error) {
	set := 0
	for _, v := range []string{target, duration, confidence} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return SubsetGoal{}, Usagef("only one of --target, --time and --confidence can be specified")
	}

	switch {
	case target != "":
		p, err := ParsePercentage(target)
		if err != nil {
			return SubsetGoal{}, &UsageError{Msg: fmt.Sprintf("invalid --target: %v", err)}
		}
		return Percentage(p), nil
	case duration != "":
		d, err := ParseDurationSeconds(duration)
		if err != nil {
			return SubsetGoal{}, &UsageError{Msg: fmt.Sprintf("invalid --time: %v", err)}
		}
		return AbsoluteTime(d), nil
	case confidence != "":
		p, err := ParsePercentage(confidence)
		if err != nil {
			return SubsetGoal{}, &UsageError{Msg: fmt.Sprintf("invalid --confidence: %v", err)}
		}
		return Confidence(p), nil
	}
	return ServerDefault(), nil
}

// ParsePercentage parses "10%" into 0.1. The percent sign is required.
func ParsePercentage(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("%q doesn't look like a percentage, e.g. 10%%", s)
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("%q doesn't look like a percentage: %w", s, err)
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("%q is out of range 0%%..100%%", s)
	}
	return v / 100, nil
}

// ParseDurationSeconds accepts a plain number of seconds ("300") or a Go
// duration ("5m", "1h30m") and returns seconds.
func ParseDurationSeconds(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("duration %q is negative", s)
		}
		return v, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%q doesn't look like a duration, e.g. 300 or 5m", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q is negative", s)
	}
	return d.Seconds(), nil
}

// Goal is the wire form of SubsetGoal.
type Goal struct {
	Type       string   `json:"type"`
	Percentage *float64 `json:"percentage,omitempty"`
	Duration   *float64 `json:"duration,omitempty"`
}

// SessionRef addresses a test session in requests.
type SessionRef struct {
	ID string `json:"id"`
}

// SubsetRequest is the payload of POST subset.
type SubsetRequest struct {
	TestPaths                       []TestPath     `json:"testPaths"`
	TestRunner                      string         `json:"testRunner"`
	Session                         SessionRef     `json:"session"`
	IgnoreNewTests                  bool           `json:"ignoreNewTests"`
	GetTestsFromPreviousSessions    bool           `json:"getTestsFromPreviousSessions"`
	Goal                            *Goal          `json:"goal,omitempty"`
	UseServerSideOptimizationTarget bool           `json:"useServerSideOptimizationTarget,omitempty"`
	DropFlakinessThreshold          *float64       `json:"dropFlakinessThreshold,omitempty"`
	HoursToPrioritizeFailedTest     *int           `json:"hoursToPrioritizeFailedTest,omitempty"`
	PrioritizedTestsMapping         map[string]any `json:"prioritizedTestsMapping,omitempty"`
}

// GroupSummary is the estimate reported for the subset or the remainder.
type GroupSummary struct {
	Candidates int     `json:"candidates,omitempty"`
	Rate       float64 `json:"rate"`
	Duration   float64 `json:"duration"`
}

// Summary holds the estimates for both groups.
type Summary struct {
	Subset *GroupSummary `json:"subset,omitempty"`
	Rest   *GroupSummary `json:"rest,omitempty"`
}

// Complete reports whether both groups were reported.
func (s Summary) Complete() bool { return s.Subset != nil && s.Rest != nil }

// SubsetResponse is returned by both POST subset and POST subset/<id>/slice.
type SubsetResponse struct {
	TestPaths     []TestPath `json:"testPaths"`
	Rest          []TestPath `json:"rest"`
	SubsettingID  int64      `json:"subsettingId"`
	Summary       Summary    `json:"summary"`
	IsBrainless   bool       `json:"isBrainless"`
	IsObservation bool       `json:"isObservation"`
}

// Bin addresses one of Count parallel partitions; Index is 1-based.
type Bin struct {
	Index int `json:"index"`
	Count int `json:"count"`
}

// SliceRequest is the payload of POST subset/<id>/slice.
type SliceRequest struct {
	Bin     Bin          `json:"bin"`
	SameBin [][]TestPath `json:"sameBin,omitempty"`
}

// EventsPayload is the body of POST .../events.
type EventsPayload struct {
	Events     []CaseEvent    `json:"events"`
	TestRunner string         `json:"testRunner"`
	Group      string         `json:"group"`
	NoBuild    bool           `json:"noBuild"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ErrorResponse is the body returned alongside 4xx responses.
type ErrorResponse struct {
	Reason string `json:"reason"`
}
