package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// EventTypeCase is the only event type emitted by the recorder.
const EventTypeCase = "case"

// Status is the outcome of a single test execution. The numeric values are
// part of the wire format.
type Status int

const (
	StatusFailed  Status = 0
	StatusPassed  Status = 1
	StatusSkipped Status = 2
)

var statusTokens = map[string]Status{
	"TEST_PASSED":  StatusPassed,
	"TEST_FAILED":  StatusFailed,
	"TEST_SKIPPED": StatusSkipped,
}

// StatusTokens lists the accepted textual statuses in a stable order.
func StatusTokens() []string {
	return []string{"TEST_PASSED", "TEST_FAILED", "TEST_SKIPPED"}
}

// ParseStatus converts a textual status token into a Status.
func ParseStatus(token string) (Status, error) {
	if s, ok := statusTokens[token]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("status should be one of %v (was %s)", StatusTokens(), token)
}

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "TEST_PASSED"
	case StatusFailed:
		return "TEST_FAILED"
	case StatusSkipped:
		return "TEST_SKIPPED"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// CaseEvent is one recorded test outcome.
type CaseEvent struct {
	Type      string         `json:"type"`
	TestPath  TestPath       `json:"testPath"`
	Duration  float64        `json:"duration"`
	Status    Status         `json:"status"`
	Stdout    string         `json:"stdout"`
	Stderr    string         `json:"stderr"`
	CreatedAt time.Time      `json:"createdAt"`
	Data      map[string]any `json:"data"`
}

// NewCaseEvent builds a CaseEvent, normalizing the duration (negative or
// NaN becomes 0) and the timestamp (zero becomes the current time).
func NewCaseEvent(tp TestPath, durationSecs float64, status Status, stdout, stderr string, createdAt time.Time, data map[string]any) CaseEvent {
	if durationSecs < 0 || math.IsNaN(durationSecs) || math.IsInf(durationSecs, 0) {
		durationSecs = 0
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return CaseEvent{
		Type:      EventTypeCase,
		TestPath:  tp,
		Duration:  durationSecs,
		Status:    status,
		Stdout:    stdout,
		Stderr:    stderr,
		CreatedAt: createdAt,
		Data:      data,
	}
}

// Layouts with an explicit zone offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z0700",
	time.RFC1123Z,
	time.RFC1123,
}

// Layouts without zone information; these are interpreted in time.Local.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"20060102 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats found in test reports.
// Timestamps without zone information are assumed to be in the local
// timezone of the machine running the tool.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
