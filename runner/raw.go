package runner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/perfgo/subsetter/model"
)

// raw is the generic adapter: candidates are test paths in their text form,
// one per line, and reports are either JUnit XML or a JSON document with a
// testCases array.
type raw struct {
	fileScanner
	junitReports
}

func newRaw(opts Options) *raw {
	return &raw{
		fileScanner:  fileScanner{basePath: opts.BasePath},
		junitReports: newJUnitReports(opts),
	}
}

func (*raw) Name() string { return "raw" }

func (*raw) Render() RenderSpec {
	return RenderSpec{Format: model.TestPath.String, Separator: "\n"}
}

func (*raw) Parse(s string) (model.TestPath, error) {
	return model.ParseTestPath(s)
}

// Candidates reads the test path file given as the only argument ("-" for
// stdin). Without an argument there are no candidates, which is only valid
// when the tests are taken from previous sessions.
func (r *raw) Candidates(args []string, stdin io.Reader) ([]model.TestPath, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if len(args) > 1 {
		return nil, model.Usagef("raw expects a single test path file, got %d arguments", len(args))
	}

	f, err := openArg(args[0], stdin)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines, err := readLines(f)
	if err != nil {
		return nil, err
	}

	paths := make([]model.TestPath, 0, len(lines))
	for _, line := range lines {
		tp, err := model.ParseTestPath(line)
		if err != nil {
			return nil, &model.ValidationError{File: args[0], Msg: err.Error()}
		}
		paths = append(paths, tp.Canonical())
	}
	return paths, nil
}

func (*raw) ReportPattern() string { return "*.json" }

// ParseReport picks the dialect from the file extension.
func (r *raw) ParseReport(path string) ([]model.CaseEvent, error) {
	if strings.HasSuffix(path, ".xml") {
		return r.junitReports.ParseReport(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	events, err := parseRawJSON(data)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			verr.File = path
			return nil, verr
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

type rawReport struct {
	TestCases *[]rawCase `json:"testCases"`
}

type rawCase struct {
	TestPath           *string               `json:"testPath"`
	TestPathComponents []model.PathComponent `json:"testPathComponents"`
	Duration           json.RawMessage       `json:"duration"`
	Status             *string               `json:"status"`
	Stdout             string                `json:"stdout"`
	Stderr             string                `json:"stderr"`
	CreatedAt          *string               `json:"createdAt"`
	Data               map[string]any        `json:"data"`
}

func parseRawJSON(data []byte) ([]model.CaseEvent, error) {
	var doc rawReport
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON report: %w", err)
	}
	if doc.TestCases == nil {
		return nil, &model.ValidationError{Msg: "missing testCases field"}
	}

	events := make([]model.CaseEvent, 0, len(*doc.TestCases))
	for i, c := range *doc.TestCases {
		ev, err := c.event()
		if err != nil {
			return nil, err
		}
		if len(ev.TestPath) == 0 {
			return nil, &model.ValidationError{Msg: fmt.Sprintf("test case #%d has an empty test path", i)}
		}
		events = append(events, ev)
	}
	return events, nil
}

func (c rawCase) event() (model.CaseEvent, error) {
	var tp model.TestPath
	switch {
	case c.TestPath == nil && c.TestPathComponents == nil:
		return model.CaseEvent{}, &model.ValidationError{Msg: "missing testPath or testPathComponents field in the test case"}
	case c.TestPath != nil && c.TestPathComponents != nil:
		return model.CaseEvent{}, &model.ValidationError{Msg: "specifying both testPath and testPathComponents fields is invalid"}
	case c.TestPath != nil:
		parsed, err := model.ParseTestPath(*c.TestPath)
		if err != nil {
			return model.CaseEvent{}, &model.ValidationError{Msg: err.Error()}
		}
		tp = parsed
	default:
		tp = model.TestPath(c.TestPathComponents)
	}
	tp = tp.Canonical()

	if c.Status == nil {
		return model.CaseEvent{}, &model.ValidationError{TestPath: tp, Msg: "missing status field"}
	}
	status, err := model.ParseStatus(*c.Status)
	if err != nil {
		return model.CaseEvent{}, &model.ValidationError{TestPath: tp, Msg: err.Error()}
	}

	duration, err := parseDuration(c.Duration)
	if err != nil {
		return model.CaseEvent{}, &model.ValidationError{TestPath: tp, Msg: err.Error()}
	}

	var createdAt time.Time
	if c.CreatedAt != nil {
		ts, err := model.ParseTimestamp(*c.CreatedAt)
		if err != nil {
			return model.CaseEvent{}, &model.ValidationError{TestPath: tp, Msg: err.Error()}
		}
		createdAt = ts
	}

	return model.NewCaseEvent(tp, duration, status, c.Stdout, c.Stderr, createdAt, c.Data), nil
}

// parseDuration accepts a JSON number or a numeric string. An absent
// duration is 0; a negative one is an error.
func parseDuration(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("invalid duration %s", text)
		}
		text = strings.TrimSpace(s)
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("the duration isn't a valid format (was %s)", text)
	}
	if v < 0 {
		return 0, fmt.Errorf("the duration should be positive (was %s)", text)
	}
	return v, nil
}
