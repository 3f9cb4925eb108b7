package output

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/perfgo/subsetter/model"
)

// SubsetReport describes a computed subset for the summary printed after
// the test list.
type SubsetReport struct {
	SubsettingID  int64
	Build         string
	Session       string
	Organization  string
	Workspace     string
	SubsetCount   int
	RestCount     int
	Summary       model.Summary
	IsBrainless   bool
	IsObservation bool
}

// FormatSummary renders the summary table. It returns "" when the service
// did not report estimates for both groups, e.g. after a fallback.
func FormatSummary(r SubsetReport) string {
	if !r.Summary.Complete() {
		return ""
	}

	var buf bytes.Buffer
	if r.IsBrainless {
		fmt.Fprintln(&buf, "Your model is currently in training")
	}
	fmt.Fprintf(&buf, "Created subset %d for build %s (test session %s) in workspace %s/%s\n",
		r.SubsettingID, r.Build, r.Session, r.Organization, r.Workspace)
	if r.IsObservation {
		fmt.Fprintln(&buf, "(This test session is under observation mode)")
	}
	fmt.Fprintln(&buf)

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "Candidates", "Estimated duration (%)", "Estimated duration (min)"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Candidates", Align: text.AlignRight},
		{Name: "Estimated duration (%)", Align: text.AlignRight, Transformer: formatFloat, TransformerFooter: formatFloat},
		{Name: "Estimated duration (min)", Align: text.AlignRight, Transformer: formatFloat, TransformerFooter: formatFloat},
	})

	subset, rest := r.Summary.Subset, r.Summary.Rest
	t.AppendRow(table.Row{"Subset", r.SubsetCount, subset.Rate, subset.Duration})
	t.AppendRow(table.Row{"Remainder", r.RestCount, rest.Rate, rest.Duration})
	t.AppendFooter(table.Row{
		"Total",
		r.SubsetCount + r.RestCount,
		subset.Rate + rest.Rate,
		subset.Duration + rest.Duration,
	})
	t.Render()

	return buf.String()
}

// PrintSummary writes the summary table to w when there is one.
func PrintSummary(w io.Writer, r SubsetReport) error {
	s := FormatSummary(r)
	if s == "" {
		return nil
	}
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

func formatFloat(v any) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.2f", f)
	}
	return fmt.Sprint(v)
}

// RecordReport describes an upload of case events.
type RecordReport struct {
	Build    string
	Session  string
	Files    int
	Events   int
	Passed   int
	Failed   int
	Skipped  int
	Duration float64
}

// FormatRecordSummary renders the outcome of record tests.
func FormatRecordSummary(r RecordReport) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Recorded tests for build %s (test session %s)\n\n", r.Build, r.Session)

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Files found", "Tests found", "Tests passed", "Tests failed", "Tests skipped", "Total duration (min)"})
	t.AppendRow(table.Row{r.Files, r.Events, r.Passed, r.Failed, r.Skipped, fmt.Sprintf("%.2f", r.Duration/60)})
	t.Render()

	return buf.String()
}
