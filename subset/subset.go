// Package subset asks the optimization service which of the candidate tests
// to run. A subset request that fails for any reason other than a rejected
// payload falls back to running every candidate.
package subset

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/perfgo/subsetter/client"
	"github.com/perfgo/subsetter/model"
	"github.com/perfgo/subsetter/session"
)

const (
	MaxPrioritizeHours = 720

	fallbackWarning = "the service failed to subset. Falling back to running all tests"
)

// Client is the part of the service client the orchestrator needs.
type Client interface {
	Subset(ctx context.Context, req *model.SubsetRequest) (*model.SubsetResponse, error)
}

// Flags are the modifiers of a subset request.
type Flags struct {
	IgnoreNewTests   bool
	Observation      bool
	PreviousSessions bool
	ExclusionRules   bool
	Split            bool

	// IgnoreFlakyAbove drops tests whose flakiness exceeds the threshold
	// (0..1). Nil means not set.
	IgnoreFlakyAbove *float64
	// PrioritizeFailedWithinHours (0..720) moves recently failed tests to
	// the front. Nil means not set.
	PrioritizeFailedWithinHours *int
}

// Validate rejects conflicting combinations. It never does I/O.
func (f Flags) Validate() error {
	if f.Observation && f.PreviousSessions {
		return model.Usagef("cannot use --observation and --get-tests-from-previous-sessions options at the same time")
	}
	if f.Observation && f.ExclusionRules {
		return model.Usagef("cannot use --observation and --output-exclusion-rules options at the same time")
	}
	if f.IgnoreFlakyAbove != nil && (*f.IgnoreFlakyAbove < 0 || *f.IgnoreFlakyAbove > 1) {
		return model.Usagef("--ignore-flaky-tests-above must be between 0 and 1 (was %v)", *f.IgnoreFlakyAbove)
	}
	if h := f.PrioritizeFailedWithinHours; h != nil {
		if *h < 0 || *h > MaxPrioritizeHours {
			return model.Usagef("--prioritize-tests-failed-within-hours must be between 0 and %d (was %d)", MaxPrioritizeHours, *h)
		}
		if *h > 0 && (f.IgnoreNewTests || (f.IgnoreFlakyAbove != nil && *f.IgnoreFlakyAbove > 0)) {
			return model.Usagef("cannot use --ignore-new-tests or --ignore-flaky-tests-above options with --prioritize-tests-failed-within-hours")
		}
	}
	return nil
}

// Request is one subset computation.
type Request struct {
	Candidates []model.TestPath
	Goal       model.SubsetGoal
	// Session is builds/<build>/test_sessions/<id>. Without a session no
	// request is made and every candidate is selected.
	Session                 string
	TestRunner              string
	PrioritizedTestsMapping map[string]any
	Flags                   Flags
}

// Result is the outcome of a subset computation. Subset and Rest are as
// returned by the service, before observation or exclusion handling.
type Result struct {
	Subset        []model.TestPath
	Rest          []model.TestPath
	SubsettingID  int64
	Summary       model.Summary
	IsBrainless   bool
	IsObservation bool
	// FellBack is set when the service could not be asked and every
	// candidate was selected.
	FellBack bool
}

// Selected returns the tests to run and the tests to leave out, with
// observation mode applied.
func (r *Result) Selected() (run, skip []model.TestPath) {
	if r.IsObservation {
		run = make([]model.TestPath, 0, len(r.Subset)+len(r.Rest))
		run = append(run, r.Subset...)
		run = append(run, r.Rest...)
		return run, nil
	}
	return r.Subset, r.Rest
}

type Orchestrator struct {
	logger      zerolog.Logger
	client      Client
	reportError bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithReportError makes service failures fatal instead of falling back.
func WithReportError(reportError bool) Option {
	return func(o *Orchestrator) {
		o.reportError = reportError
	}
}

func New(logger zerolog.Logger, c Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{logger: logger, client: c}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Compute validates the request and asks the service for a subset.
func (o *Orchestrator) Compute(ctx context.Context, req Request) (*Result, error) {
	if err := req.Flags.Validate(); err != nil {
		return nil, err
	}
	if len(req.Candidates) == 0 && !req.Flags.PreviousSessions {
		return nil, model.Usagef("subset candidates are empty: provide candidates or use the --get-tests-from-previous-sessions option")
	}

	fallback := &Result{
		Subset:        req.Candidates,
		Rest:          []model.TestPath{},
		IsObservation: req.Flags.Observation,
		FellBack:      true,
	}

	if req.Session == "" {
		o.logger.Warn().Msg("No test session available. Falling back to running all tests")
		return fallback, nil
	}

	payload := o.payload(req)
	o.logger.Debug().Int("candidates", len(payload.TestPaths)).Str("session", req.Session).Msg("Requesting subset")

	resp, err := o.client.Subset(ctx, payload)
	if err != nil {
		var verr *model.ServerValidationError
		switch {
		case errors.As(err, &verr):
			return nil, err
		case errors.Is(err, client.ErrDryRun):
			return fallback, nil
		case o.reportError:
			return nil, fmt.Errorf("failed to subset: %w", err)
		}
		o.logger.Warn().Err(err).Msg(fallbackWarning)
		return fallback, nil
	}

	res := &Result{
		Subset:        resp.TestPaths,
		Rest:          resp.Rest,
		SubsettingID:  resp.SubsettingID,
		Summary:       resp.Summary,
		IsBrainless:   resp.IsBrainless,
		IsObservation: resp.IsObservation || req.Flags.Observation,
	}
	if res.Rest == nil {
		res.Rest = []model.TestPath{}
	}
	o.logger.Debug().
		Int64("subsetting_id", res.SubsettingID).
		Int("subset", len(res.Subset)).
		Int("rest", len(res.Rest)).
		Msg("Subset computed")
	return res, nil
}

func (o *Orchestrator) payload(req Request) *model.SubsetRequest {
	p := &model.SubsetRequest{
		TestPaths:                    req.Candidates,
		TestRunner:                   req.TestRunner,
		Session:                      model.SessionRef{ID: session.ID(req.Session)},
		IgnoreNewTests:               req.Flags.IgnoreNewTests,
		GetTestsFromPreviousSessions: req.Flags.PreviousSessions,
		Goal:                         req.Goal.Wire(),
		PrioritizedTestsMapping:      req.PrioritizedTestsMapping,
	}
	if p.TestPaths == nil {
		p.TestPaths = []model.TestPath{}
	}
	if p.Goal == nil {
		p.UseServerSideOptimizationTarget = true
	}
	if f := req.Flags.IgnoreFlakyAbove; f != nil && *f > 0 {
		p.DropFlakinessThreshold = f
	}
	if h := req.Flags.PrioritizeFailedWithinHours; h != nil && *h > 0 {
		p.HoursToPrioritizeFailedTest = h
	}
	return p
}
