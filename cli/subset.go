package cli

// This file contains the subset and split-subset commands.

import (
	"github.com/urfave/cli/v2"

	"github.com/perfgo/subsetter/model"
	"github.com/perfgo/subsetter/output"
	"github.com/perfgo/subsetter/runner"
	"github.com/perfgo/subsetter/session"
	"github.com/perfgo/subsetter/split"
	"github.com/perfgo/subsetter/subset"
)

func subsetFlags(ctx *cli.Context) subset.Flags {
	f := subset.Flags{
		IgnoreNewTests:   ctx.Bool("ignore-new-tests"),
		Observation:      ctx.Bool("observation"),
		PreviousSessions: ctx.Bool("get-tests-from-previous-sessions"),
		ExclusionRules:   ctx.Bool("output-exclusion-rules"),
		Split:            ctx.Bool("split"),
	}
	if ctx.IsSet("ignore-flaky-tests-above") {
		v := ctx.Float64("ignore-flaky-tests-above")
		f.IgnoreFlakyAbove = &v
	}
	if ctx.IsSet("prioritize-tests-failed-within-hours") {
		v := ctx.Int("prioritize-tests-failed-within-hours")
		f.PrioritizeFailedWithinHours = &v
	}
	return f
}

func (a *App) emitter(ctx *cli.Context, adapter runner.Adapter) *subset.Emitter {
	e := &subset.Emitter{
		Logger:   a.logger,
		Writer:   output.NewWriter(a.stdout, adapter.Render()),
		RestFile: ctx.Path("rest"),
	}
	if er, ok := adapter.(runner.ExclusionRenderer); ok {
		e.Exclusion = er
	}
	return e
}

func (a *App) subset(runnerName string) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		// everything that can be rejected without I/O is checked first
		flags := subsetFlags(ctx)
		if err := flags.Validate(); err != nil {
			return err
		}
		goal, err := model.GoalFromFlags(ctx.String("target"), ctx.String("time"), ctx.String("confidence"))
		if err != nil {
			return err
		}
		mapping, err := readMapping(ctx.Path("prioritized-tests-mapping"))
		if err != nil {
			return err
		}
		if _, err := parseKeyValues("flavor", ctx.StringSlice("flavor")); err != nil {
			return err
		}
		if explicit := ctx.String("session"); explicit != "" {
			if err := session.Validate(explicit); err != nil {
				return err
			}
		}

		adapter, err := a.adapter(ctx, runnerName)
		if err != nil {
			return err
		}
		candidates, err := adapter.Candidates(removeFirstDashDash(ctx.Args().Slice()), a.stdin)
		if err != nil {
			return err
		}
		a.logger.Debug().Str("runner", runnerName).Int("candidates", len(candidates)).Msg("Collected candidates")

		c, err := a.newClient(ctx, runnerName)
		if err != nil {
			return err
		}

		// a missing session must not keep the tests from running
		build, sess, err := "", "", a.config.Validate()
		if err == nil {
			build, sess, err = a.resolveSession(ctx, c, flags.Observation)
		}
		if err != nil {
			if a.config.ReportError {
				return err
			}
			a.logger.Warn().Err(err).Msg("Failed to find a test session")
			build, sess = "", ""
		}

		o := subset.New(a.logger, c, subset.WithReportError(a.config.ReportError))
		res, err := o.Compute(ctx.Context, subset.Request{
			Candidates:              candidates,
			Goal:                    goal,
			Session:                 sess,
			TestRunner:              runnerName,
			PrioritizedTestsMapping: mapping,
			Flags:                   flags,
		})
		if err != nil {
			return err
		}

		if err := a.emitter(ctx, adapter).Emit(res, flags); err != nil {
			return err
		}
		return output.PrintSummary(a.stderr, output.SubsetReport{
			SubsettingID:  res.SubsettingID,
			Build:         build,
			Session:       session.ID(sess),
			Organization:  a.config.Organization,
			Workspace:     a.config.Workspace,
			SubsetCount:   len(res.Subset),
			RestCount:     len(res.Rest),
			Summary:       res.Summary,
			IsBrainless:   res.IsBrainless,
			IsObservation: res.IsObservation,
		})
	}
}

func (a *App) splitSubset(runnerName string) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		id, err := split.ParseSubsetID(ctx.String("subset-id"))
		if err != nil {
			return err
		}
		bin, err := split.ParseBin(ctx.String("bin"))
		if err != nil {
			return err
		}
		adapter, err := a.adapter(ctx, runnerName)
		if err != nil {
			return err
		}
		groups, err := split.LoadSameBin(adapter, ctx.StringSlice("same-bin"))
		if err != nil {
			return err
		}

		if err := a.config.Validate(); err != nil {
			return err
		}
		c, err := a.newClient(ctx, runnerName)
		if err != nil {
			return err
		}

		res, err := split.New(a.logger, c).Split(ctx.Context, split.Request{
			SubsettingID: id,
			Bin:          bin,
			SameBin:      groups,
		})
		if err != nil {
			return err
		}

		flags := subset.Flags{ExclusionRules: ctx.Bool("output-exclusion-rules")}
		return a.emitter(ctx, adapter).Emit(&subset.Result{Subset: res.Subset, Rest: res.Rest, SubsettingID: id}, flags)
	}
}
