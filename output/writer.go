// Package output renders test paths and subset summaries for the user.
// Test identifiers go to standard output, everything else to standard
// error.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/perfgo/subsetter/model"
	"github.com/perfgo/subsetter/runner"
)

// Writer prints test paths in the syntax of one test framework.
type Writer struct {
	Out    io.Writer
	Render runner.RenderSpec
}

func NewWriter(out io.Writer, render runner.RenderSpec) *Writer {
	return &Writer{Out: out, Render: render}
}

// Print writes the rendered paths followed by a newline. Nothing is written
// for an empty list.
func (w *Writer) Print(paths []model.TestPath) error {
	if len(paths) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w.Out, w.Render.Join(paths)); err != nil {
		return fmt.Errorf("failed to write test paths: %w", err)
	}
	return nil
}

// PrintString writes a preformatted line, e.g. an exclusion rule.
func (w *Writer) PrintString(s string) error {
	if s == "" {
		return nil
	}
	if _, err := fmt.Fprintln(w.Out, s); err != nil {
		return fmt.Errorf("failed to write test paths: %w", err)
	}
	return nil
}

// WriteFile writes the rendered paths to file, replacing its content.
func (w *Writer) WriteFile(file string, paths []model.TestPath) error {
	if err := os.WriteFile(file, []byte(w.Render.Join(paths)), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	return nil
}
