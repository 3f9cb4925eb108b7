package cli

import (
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/perfgo/subsetter/runner"
)

func (a *App) runners(ctx *cli.Context) error {
	sameBin := runner.SupportsSameBin()

	t := table.NewWriter()
	t.SetOutputMirror(a.stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Runner", "Description", "Same bin", "Report files"})
	for _, name := range runner.Names() {
		adapter, err := runner.Lookup(name, runner.Options{})
		if err != nil {
			return err
		}
		same := ""
		if slices.Contains(sameBin, name) {
			same = "yes"
		}
		t.AppendRow(table.Row{name, runnerUsage[name], same, adapter.ReportPattern()})
	}
	t.Render()
	return nil
}
