package runner

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/perfgo/subsetter/junit"
	"github.com/perfgo/subsetter/model"
)

// pytest converts between node ids such as
// tests/test_mod.py::TestClass::test_a and the file/class/testcase paths
// found in pytest's JUnit reports (classname tests.test_mod.TestClass).
type pytest struct {
	fileScanner
	junitReports
	jsonReport bool
}

func newPytest(opts Options) *pytest {
	reports := newJUnitReports(opts)
	reports.decoder.DataBuilder = pytestData
	return &pytest{
		fileScanner:  fileScanner{basePath: opts.BasePath},
		junitReports: reports,
		jsonReport:   opts.JSONReport,
	}
}

func (*pytest) Name() string { return "pytest" }

func (*pytest) Render() RenderSpec {
	return RenderSpec{Format: formatPytestNodeID, Separator: "\n"}
}

func (*pytest) Parse(s string) (model.TestPath, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty node id")
	}
	return parsePytestNodeID(s), nil
}

// Candidates reads `pytest --collect-only -q` output from stdin. The list
// ends at the first blank line, before pytest's summary.
func (*pytest) Candidates(_ []string, stdin io.Reader) ([]model.TestPath, error) {
	var paths []model.TestPath
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" {
			break
		}
		paths = append(paths, parsePytestNodeID(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read test list: %w", err)
	}
	return paths, nil
}

func parsePytestNodeID(nodeID string) model.TestPath {
	parts := strings.Split(nodeID, "::")
	file := path.Clean(filepath.ToSlash(parts[0]))
	cls := pytestModule(file)

	if len(parts) == 1 {
		return model.NewTestPath(model.TypeFile, file, model.TypeClass, cls)
	}
	if len(parts) > 2 {
		cls += "." + strings.Join(parts[1:len(parts)-1], ".")
	}
	return model.NewTestPath(
		model.TypeFile, file,
		model.TypeClass, cls,
		model.TypeTestCase, parts[len(parts)-1],
	)
}

// pytestModule turns tests/foo/func4_test.py into tests.foo.func4_test.
func pytestModule(file string) string {
	return strings.ReplaceAll(strings.TrimSuffix(file, path.Ext(file)), "/", ".")
}

func formatPytestNodeID(tp model.TestPath) string {
	file, _ := tp.Find(model.TypeFile)
	cls, _ := tp.Find(model.TypeClass)
	tc, hasCase := tp.Find(model.TypeTestCase)
	if file == "" {
		return ""
	}
	if !hasCase {
		return file
	}

	// the JUnit class name carries the module, pytest's node id does not
	module := pytestModule(file)
	if cls == "" || cls == module {
		return file + "::" + tc
	}
	inner := strings.TrimPrefix(cls, module+".")
	if inner == cls {
		inner = cls[strings.LastIndex(cls, ".")+1:]
	}
	return file + "::" + strings.ReplaceAll(inner, ".", "::") + "::" + tc
}

// pytestData records markers and the line number. pytest reports 0-based
// line numbers.
func pytestData(c *junit.Case) map[string]any {
	data := map[string]any{}
	if len(c.Properties) > 0 {
		markers := make([]map[string]string, 0, len(c.Properties))
		for _, p := range c.Properties {
			markers = append(markers, map[string]string{"name": p.Name, "value": p.Value})
		}
		data["markers"] = markers
	}
	if c.Line != nil {
		data["lineNumber"] = *c.Line + 1
	}
	if len(data) == 0 {
		return nil
	}
	return data
}

func (p *pytest) ReportPattern() string {
	if p.jsonReport {
		return "*.json"
	}
	return "*.xml"
}

func (p *pytest) ParseReport(file string) ([]model.CaseEvent, error) {
	if !p.jsonReport {
		return p.junitReports.ParseReport(file)
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	events, err := parseReportLog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return events, nil
}

// reportLogEntry is one line of a pytest-reportlog file.
type reportLogEntry struct {
	NodeID   string          `json:"nodeid"`
	When     string          `json:"when"`
	Outcome  string          `json:"outcome"`
	Duration float64         `json:"duration"`
	LongRepr json.RawMessage `json:"longrepr"`
}

type longRepr struct {
	ReprCrash *struct {
		Message string `json:"message"`
	} `json:"reprcrash"`
	ReprTraceback *struct {
		ReprEntries []struct {
			Data *struct {
				Lines []string `json:"lines"`
			} `json:"data"`
		} `json:"reprentries"`
	} `json:"reprtraceback"`
}

func parseReportLog(r io.Reader) ([]model.CaseEvent, error) {
	var events []model.CaseEvent
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry reportLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("can't read JSON report at line %d: %w", lineNo, err)
		}
		if entry.NodeID == "" {
			continue
		}
		if entry.When != "call" && !(entry.When == "setup" && entry.Outcome == "skipped") {
			continue
		}

		status := model.StatusFailed
		switch entry.Outcome {
		case "passed":
			status = model.StatusPassed
		case "skipped":
			status = model.StatusSkipped
		}

		events = append(events, model.NewCaseEvent(
			parsePytestNodeID(entry.NodeID), entry.Duration, status, "", entry.stderr(), time.Time{}, nil,
		))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSON report: %w", err)
	}
	return events, nil
}

func (e reportLogEntry) stderr() string {
	if len(e.LongRepr) == 0 || e.LongRepr[0] != '{' {
		return ""
	}
	var repr longRepr
	if err := json.Unmarshal(e.LongRepr, &repr); err != nil {
		return ""
	}

	var message, text string
	if repr.ReprCrash != nil {
		message = repr.ReprCrash.Message
	}
	if repr.ReprTraceback != nil {
		for _, entry := range repr.ReprTraceback.ReprEntries {
			if entry.Data != nil {
				text = strings.Join(entry.Data.Lines, "\n")
			}
		}
	}

	switch {
	case message != "" && text != "":
		return message + "\n" + text
	case message != "":
		return message
	}
	return text
}
