package cli

// This file contains the record tests command.

import (
	"github.com/urfave/cli/v2"

	"github.com/perfgo/subsetter/model"
	"github.com/perfgo/subsetter/output"
	"github.com/perfgo/subsetter/record"
	"github.com/perfgo/subsetter/session"
)

func (a *App) recordTests(runnerName string) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		paths := removeFirstDashDash(ctx.Args().Slice())
		if len(paths) == 0 {
			return model.Usagef("no report files given: pass one or more report files, directories or globs")
		}
		if ctx.Int("post-chunk") <= 0 {
			return model.Usagef("--post-chunk must be positive (was %d)", ctx.Int("post-chunk"))
		}
		adapter, err := a.adapter(ctx, runnerName)
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
		build, sess, err := a.resolveSession(ctx, c, false)
		if err != nil {
			return err
		}

		r := record.New(a.logger, c, adapter, record.Options{
			Session:   sess,
			Group:     ctx.String("group"),
			NoBuild:   ctx.Bool("no-build"),
			Metadata:  map[string]any{"version": a.version},
			PostChunk: ctx.Int("post-chunk"),
		})
		stats, err := r.Record(ctx.Context, paths)
		if err != nil {
			return err
		}
		if stats.NoMatch != "" || stats.Events == 0 {
			return nil
		}

		a.logger.Debug().Int("chunks", stats.Chunks).Msg("Recording done")
		_, err = a.stderr.Write([]byte(output.FormatRecordSummary(output.RecordReport{
			Build:    build,
			Session:  session.ID(sess),
			Files:    stats.Files,
			Events:   stats.Events,
			Passed:   stats.Passed,
			Failed:   stats.Failed,
			Skipped:  stats.Skipped,
			Duration: stats.Duration,
		})))
		return err
	}
}
