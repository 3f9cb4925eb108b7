package runner

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"

	"github.com/perfgo/subsetter/model"
	"github.com/perfgo/subsetter/xmlstream"
)

// robot reads Robot Framework output.xml files, both for candidates (a
// previous run lists every test) and for results.
type robot struct {
	fileScanner
}

func newRobot(opts Options) *robot {
	return &robot{fileScanner: fileScanner{basePath: opts.BasePath}}
}

func (*robot) Name() string { return "robot" }

func (*robot) Render() RenderSpec {
	return RenderSpec{
		Format: func(tp model.TestPath) string {
			suite, _ := tp.Find(model.TypeClass)
			test, _ := tp.Find(model.TypeTestCase)
			if suite == "" || test == "" {
				return ""
			}
			return fmt.Sprintf("-s %s -t %s", shellescape.Quote(suite), shellescape.Quote(test))
		},
		Separator: " ",
	}
}

func (r *robot) Candidates(args []string, _ io.Reader) ([]model.TestPath, error) {
	var paths []model.TestPath
	for _, report := range args {
		events, err := r.ParseReport(report)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			paths = append(paths, ev.TestPath)
		}
	}
	return paths, nil
}

func (*robot) ReportPattern() string { return "output.xml" }

func (*robot) ParseReport(path string) ([]model.CaseEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	events, err := parseRobotOutput(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// robotTest accumulates the children of a <test> element.
type robotTest struct {
	suite     string
	name      string
	status    string
	notRun    bool
	message   string
	start     time.Time
	end       time.Time
	elapsed   float64
	hasTiming bool
}

// Robot Framework before 7.0 writes starttime/endtime, later versions write
// start and elapsed. Fractional seconds are accepted without being in the
// layout.
const robotTimeLayout = "20060102 15:04:05"

var robotMatchers = xmlstream.MustParseTagMatchers("suite/@name={suite}")

func parseRobotOutput(r io.Reader) ([]model.CaseEvent, error) {
	var (
		events  []model.CaseEvent
		current *robotTest
		err     error
	)

	onStart := func(e *xmlstream.Element) {
		if e.Name == "test" {
			current = &robotTest{suite: e.Tags["suite"], name: e.Attr("name")}
		}
	}

	onEnd := func(e *xmlstream.Element) {
		if current == nil || err != nil {
			return
		}
		switch {
		case e.Name == "test":
			if current.status != "" {
				events = append(events, current.event())
			}
			current = nil
		case e.Name == "status" && e.Parent != nil && e.Parent.Name == "test":
			current.status = e.Attr("status")
			if current.message == "" {
				current.message = strings.TrimSpace(e.Text())
			}
			err = current.timing(e)
		case e.Name == "status" && e.Parent != nil && e.Parent.Name == "kw":
			if e.Attr("status") == "NOT_RUN" {
				current.notRun = true
			}
		case e.Name == "msg" && e.Parent != nil && e.Parent.Name == "kw" && current.message == "":
			current.message = e.Text()
		}
	}

	if perr := xmlstream.New(robotMatchers, onStart, xmlstream.WithEndReceiver(onEnd)).Parse(r); perr != nil {
		return nil, perr
	}
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (t *robotTest) timing(e *xmlstream.Element) error {
	if start, end := e.Attr("starttime"), e.Attr("endtime"); start != "" && end != "" && start != "N/A" {
		s, err := time.ParseInLocation(robotTimeLayout, start, time.Local)
		if err != nil {
			return fmt.Errorf("invalid starttime %q of test %s: %w", start, t.name, err)
		}
		en, err := time.ParseInLocation(robotTimeLayout, end, time.Local)
		if err != nil {
			return fmt.Errorf("invalid endtime %q of test %s: %w", end, t.name, err)
		}
		t.start, t.end, t.hasTiming = s, en, true
		return nil
	}

	if start := e.Attr("start"); start != "" {
		s, err := model.ParseTimestamp(start)
		if err != nil {
			return fmt.Errorf("invalid start %q of test %s: %w", start, t.name, err)
		}
		elapsed, err := strconv.ParseFloat(e.Attr("elapsed"), 64)
		if err != nil {
			return fmt.Errorf("invalid elapsed %q of test %s: %w", e.Attr("elapsed"), t.name, err)
		}
		t.start, t.elapsed, t.hasTiming = s, elapsed, true
	}
	return nil
}

func (t *robotTest) event() model.CaseEvent {
	status := model.StatusPassed
	stderr := ""
	switch {
	case t.status == "FAIL":
		status = model.StatusFailed
		stderr = t.message
	case t.status == "NOT_RUN", t.status == "SKIP", t.notRun:
		status = model.StatusSkipped
	}

	duration := t.elapsed
	if !t.end.IsZero() {
		duration = t.end.Sub(t.start).Seconds()
	}

	var createdAt time.Time
	if t.hasTiming {
		createdAt = t.start
	}

	tp := model.NewTestPath(model.TypeClass, t.suite, model.TypeTestCase, t.name)
	return model.NewCaseEvent(tp, duration, status, "", stderr, createdAt, nil)
}
