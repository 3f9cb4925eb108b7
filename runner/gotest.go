package runner

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"al.essio.dev/pkg/shellescape"

	"github.com/perfgo/subsetter/model"
)

// goTest reads the output of `go test -list . ./...`. The test names of a
// package are printed before the "ok <package>" line that closes it.
type goTest struct {
	fileScanner
	junitReports
}

func newGoTest(opts Options) *goTest {
	return &goTest{
		fileScanner:  fileScanner{basePath: opts.BasePath},
		junitReports: newJUnitReports(opts),
	}
}

func (*goTest) Name() string { return "gotest" }

// Render produces the alternatives of a -run pattern, so the output can be
// used as `go test -run "$(subsetter subset gotest ...)"`.
func (*goTest) Render() RenderSpec {
	return RenderSpec{Format: formatGoTest, Separator: "|"}
}

func formatGoTest(tp model.TestPath) string {
	name, ok := tp.Find(model.TypeTestCase)
	if !ok {
		return ""
	}
	return "^" + regexp.QuoteMeta(name) + "$"
}

// RenderExclusion produces a -skip flag matching the given tests.
func (g *goTest) RenderExclusion(rest []model.TestPath) string {
	pattern := g.Render().Join(rest)
	if pattern == "" {
		return ""
	}
	return "-skip " + shellescape.Quote(pattern)
}

func (*goTest) SameBin(name string) model.TestPath {
	return model.NewTestPath(model.TypeTestCase, name)
}

func (*goTest) Candidates(_ []string, stdin io.Reader) ([]model.TestPath, error) {
	var (
		paths   []model.TestPath
		pending []string
	)
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "ok "), strings.HasPrefix(line, "ok\t"):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, fmt.Errorf("unexpected go test output: %q", line)
			}
			for _, name := range pending {
				paths = append(paths, model.NewTestPath(model.TypeClass, fields[1], model.TypeTestCase, name))
			}
			pending = pending[:0]
		case strings.HasPrefix(line, "?"), strings.HasPrefix(line, "FAIL"):
			// packages without tests or failing to build
			pending = pending[:0]
		case isGoTestName(line):
			pending = append(pending, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read test list: %w", err)
	}
	if len(pending) > 0 {
		return nil, fmt.Errorf("test list ended without a package line for %d tests", len(pending))
	}
	return paths, nil
}

func isGoTestName(s string) bool {
	for _, prefix := range []string{"Test", "Benchmark", "Example", "Fuzz"} {
		if strings.HasPrefix(s, prefix) && !strings.ContainsAny(s, " \t") {
			return true
		}
	}
	return false
}
