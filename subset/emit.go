package subset

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/perfgo/subsetter/model"
	"github.com/perfgo/subsetter/output"
	"github.com/perfgo/subsetter/runner"
)

// Emitter prints a subset result in the syntax of the test framework.
type Emitter struct {
	Logger zerolog.Logger
	Writer *output.Writer
	// Exclusion renders exclusion rules for frameworks with a dedicated
	// syntax. Nil means the rest is printed like a regular test list.
	Exclusion runner.ExclusionRenderer
	// RestFile receives the tests that are not printed.
	RestFile string
}

// Emit prints the selected tests, or in exclusion rule mode the tests to
// leave out. With --split only the subset id is printed.
func (e *Emitter) Emit(res *Result, flags Flags) error {
	if len(res.Subset) == 0 {
		e.Logger.Warn().Msg("No tests found matching the path")
		return nil
	}

	if flags.Split {
		if res.FellBack {
			e.Logger.Warn().Msg("No subset was computed, splitting it will fail")
		}
		_, err := fmt.Fprintf(e.Writer.Out, "subset/%d\n", res.SubsettingID)
		return err
	}

	run, skip := res.Selected()
	if flags.ExclusionRules {
		return e.emit(skip, run, true)
	}
	return e.emit(run, skip, false)
}

func (e *Emitter) emit(printed, rest []model.TestPath, exclusion bool) error {
	if e.RestFile != "" {
		if err := e.Writer.WriteFile(e.RestFile, rest); err != nil {
			return err
		}
	}
	if exclusion && e.Exclusion != nil {
		return e.Writer.PrintString(e.Exclusion.RenderExclusion(printed))
	}
	return e.Writer.Print(printed)
}
