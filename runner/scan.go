package runner

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/perfgo/subsetter/junit"
	"github.com/perfgo/subsetter/model"
)

// scanFiles walks root and hands every regular file matching pattern to fn
// as a slash separated path relative to root. A nil TestPath skips the file.
func scanFiles(root, pattern string, fn func(rel string) model.TestPath) ([]model.TestPath, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("failed to scan %s: not a directory", root)
	}

	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s with %q: %w", root, pattern, err)
	}

	var paths []model.TestPath
	for _, rel := range matches {
		if tp := fn(rel); tp != nil {
			paths = append(paths, tp)
		}
	}
	return paths, nil
}

// fileScanner is the default Scan implementation: every matching file
// becomes a single file=<path> component.
type fileScanner struct {
	basePath string
}

func (s fileScanner) Scan(root, pattern string) ([]model.TestPath, error) {
	return scanFiles(root, pattern, func(rel string) model.TestPath {
		return model.NewTestPath(model.TypeFile, s.relativize(filepath.Join(root, filepath.FromSlash(rel))))
	})
}

func (s fileScanner) relativize(file string) string {
	if s.basePath != "" {
		if abs, err := filepath.Abs(file); err == nil {
			file = junit.Relativize(s.basePath, abs)
		}
	}
	return filepath.ToSlash(file)
}

// junitReports is the ParseReport implementation shared by frameworks that
// write JUnit XML.
type junitReports struct {
	decoder *junit.Decoder
}

func newJUnitReports(opts Options) junitReports {
	return junitReports{decoder: junit.NewDecoder(absBase(opts.BasePath))}
}

func (r junitReports) ParseReport(path string) ([]model.CaseEvent, error) {
	return r.decoder.DecodeFile(path)
}

func (junitReports) ReportPattern() string { return "*.xml" }

func absBase(base string) string {
	if base == "" {
		return ""
	}
	if abs, err := filepath.Abs(base); err == nil {
		return abs
	}
	return base
}

// readLines returns the trimmed lines of r, skipping blank lines and lines
// starting with '#'.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read test list: %w", err)
	}
	return lines, nil
}

// openArg opens a positional argument, treating "-" as stdin.
func openArg(arg string, stdin io.Reader) (io.ReadCloser, error) {
	if arg == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", arg, err)
	}
	return f, nil
}
