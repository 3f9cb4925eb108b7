package runner

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/perfgo/subsetter/model"
)

// file treats every test file as a test. Arguments are files, directories
// (scanned recursively), "@-" to read names from stdin or "@<file>" to read
// names from a response file.
type file struct {
	fileScanner
	junitReports
}

func newFile(opts Options) *file {
	return &file{
		fileScanner:  fileScanner{basePath: opts.BasePath},
		junitReports: newJUnitReports(opts),
	}
}

func (*file) Name() string { return "file" }

func (f *file) Render() RenderSpec {
	return RenderSpec{
		Format: func(tp model.TestPath) string {
			name, ok := tp.Find(model.TypeFile)
			if !ok {
				return ""
			}
			if f.basePath != "" {
				return filepath.Join(f.basePath, filepath.FromSlash(name))
			}
			return name
		},
		Separator: "\n",
	}
}

func (f *file) Candidates(args []string, stdin io.Reader) ([]model.TestPath, error) {
	var paths []model.TestPath
	for _, arg := range args {
		found, err := f.candidates(arg, stdin, map[string]bool{})
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

// candidates expands one argument. open holds the response files being
// read, to catch files that include themselves.
func (f *file) candidates(arg string, stdin io.Reader, open map[string]bool) ([]model.TestPath, error) {
	switch {
	case arg == "@-":
		if stdin == nil {
			return nil, model.Usagef("@- can only be given on the command line")
		}
		return f.responseFile(stdin, open)
	case strings.HasPrefix(arg, "@"):
		name, err := filepath.Abs(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to resolve response file %s: %w", arg[1:], err)
		}
		if open[name] {
			return nil, model.Usagef("response file %s includes itself", arg[1:])
		}
		r, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open response file: %w", err)
		}
		defer r.Close()

		open[name] = true
		defer delete(open, name)
		return f.responseFile(r, open)
	}

	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		return f.Scan(arg, "**/*")
	}
	return []model.TestPath{model.NewTestPath(model.TypeFile, f.relativize(arg))}, nil
}

func (f *file) responseFile(r io.Reader, open map[string]bool) ([]model.TestPath, error) {
	var paths []model.TestPath
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// response files may reference directories and other response files
		found, err := f.candidates(line, nil, open)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read response file: %w", err)
	}
	return paths, nil
}
