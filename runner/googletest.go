package runner

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/perfgo/subsetter/model"
)

// googleTest reads the output of a test binary run with --gtest_list_tests:
//
//	FooTest.
//	  Bar
//	  Baz  # GetParam() = 1
type googleTest struct {
	fileScanner
	junitReports
}

func newGoogleTest(opts Options) *googleTest {
	return &googleTest{
		fileScanner:  fileScanner{basePath: opts.BasePath},
		junitReports: newJUnitReports(opts),
	}
}

func (*googleTest) Name() string { return "googletest" }

func (*googleTest) Render() RenderSpec {
	return RenderSpec{Format: formatGoogleTest, Separator: "\n"}
}

func formatGoogleTest(tp model.TestPath) string {
	cls, _ := tp.Find(model.TypeClass)
	tc, _ := tp.Find(model.TypeTestCase)
	if cls == "" || tc == "" {
		return ""
	}
	return cls + "." + tc
}

var (
	gtestClassPattern = regexp.MustCompile(`^([^.\s]+(?:/[^.\s]+)*)\.`)
	gtestCasePattern  = regexp.MustCompile(`^  ([^ ]+)`)
)

func (*googleTest) Candidates(_ []string, stdin io.Reader) ([]model.TestPath, error) {
	var (
		paths []model.TestPath
		cls   string
	)
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if m := gtestClassPattern.FindStringSubmatch(line); m != nil {
			cls = m[1]
			continue
		}
		if m := gtestCasePattern.FindStringSubmatch(line); m != nil && cls != "" {
			paths = append(paths, model.NewTestPath(model.TypeClass, cls, model.TypeTestCase, m[1]))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read test list: %w", err)
	}
	return paths, nil
}
