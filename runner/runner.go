// Package runner translates between the native test listings and report
// formats of test frameworks and model.TestPath. Every supported framework
// is an Adapter; orchestrators only ever see the Adapter interface and the
// RenderSpec it returns.
package runner

import (
	"io"
	"sort"
	"strings"

	"github.com/perfgo/subsetter/model"
)

// RenderSpec turns test paths back into the invocation syntax of a test
// framework.
type RenderSpec struct {
	Format    func(model.TestPath) string
	Separator string
}

// Join formats every path and joins the results with the separator. Paths
// the formatter renders as "" are left out.
func (r RenderSpec) Join(paths []model.TestPath) string {
	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		if s := r.Format(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, r.Separator)
}

// Adapter is the capability set every test framework provides.
type Adapter interface {
	Name() string
	Render() RenderSpec

	// Candidates collects the subset candidates from the positional
	// arguments of the subset command and, for frameworks that list their
	// tests on standard output, from stdin.
	Candidates(args []string, stdin io.Reader) ([]model.TestPath, error)

	// Scan walks root and maps every file matching pattern to a test path.
	Scan(root, pattern string) ([]model.TestPath, error)

	// ParseReport reads one report file. It does no network I/O.
	ParseReport(path string) ([]model.CaseEvent, error)

	// ReportPattern is the file mask used when a report path is a directory.
	ReportPattern() string
}

// SameBinFormatter is implemented by adapters that can keep named tests
// together in one split bin. The name is a line of a same-bin file.
type SameBinFormatter interface {
	SameBin(name string) model.TestPath
}

// ExclusionRenderer is implemented by adapters whose framework expresses
// exclusion rules with a dedicated syntax.
type ExclusionRenderer interface {
	RenderExclusion(rest []model.TestPath) string
}

// Inverse is implemented by adapters that can parse their own rendered
// output back into a test path.
type Inverse interface {
	Parse(s string) (model.TestPath, error)
}

// Options are the adapter specific switches of the command line.
type Options struct {
	// BasePath makes file names relative (when scanning and decoding
	// reports) and absolute again (when rendering file paths).
	BasePath string
	// Bare renders gradle class names without the --tests prefix.
	Bare bool
	// JSONReport makes pytest read pytest-reportlog files instead of JUnit
	// XML.
	JSONReport bool
}

// Factory creates an adapter.
type Factory func(Options) Adapter

var factories = map[string]Factory{
	"raw":        func(o Options) Adapter { return newRaw(o) },
	"file":       func(o Options) Adapter { return newFile(o) },
	"googletest": func(o Options) Adapter { return newGoogleTest(o) },
	"gotest":     func(o Options) Adapter { return newGoTest(o) },
	"gradle":     func(o Options) Adapter { return newGradle(o) },
	"maven":      func(o Options) Adapter { return newMaven(o) },
	"pytest":     func(o Options) Adapter { return newPytest(o) },
	"robot":      func(o Options) Adapter { return newRobot(o) },
}

// Lookup returns the adapter registered under name.
func Lookup(name string, opts Options) (Adapter, error) {
	f, ok := factories[name]
	if !ok {
		return nil, model.Usagef("unknown test runner %q, available runners: %s", name, strings.Join(Names(), ", "))
	}
	return f(opts), nil
}

// Names lists the registered adapters in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SupportsSameBin lists the adapters implementing SameBinFormatter.
func SupportsSameBin() []string {
	var names []string
	for _, name := range Names() {
		if _, ok := factories[name](Options{}).(SameBinFormatter); ok {
			names = append(names, name)
		}
	}
	return names
}
