// Package junit turns JUnit-style XML reports into case events. Reports are
// read with the streaming tag extractor, so multi-gigabyte reports produced
// by large suites do not have to fit in memory.
package junit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/perfgo/subsetter/model"
	"github.com/perfgo/subsetter/xmlstream"
)

// Result is the outcome recorded by the child elements of a testcase.
type Result int

const (
	ResultPassed Result = iota
	ResultSkipped
	ResultFailed
)

// Property is a <property name="" value=""/> attached to a test case.
type Property struct {
	Name  string
	Value string
}

// Case is a single <testcase> together with the attributes inherited from
// its enclosing <testsuite>.
type Case struct {
	Name      string
	ClassName string
	File      string
	Line      *int
	Time      string
	Attrs     map[string]string

	SuiteName      string
	SuiteClassName string
	SuiteFile      string
	SuiteTimestamp string

	Result     Result
	Stdout     string
	Stderr     string
	Properties []Property

	// detail accumulates failure/error text when there is no <system-err>
	detail strings.Builder
}

// PathBuilder computes the TestPath of a case.
type PathBuilder func(c *Case) model.TestPath

// DataBuilder computes the optional metadata of a case.
type DataBuilder func(c *Case) map[string]any

// DefaultPathBuilder maps a case to file/class/testcase components. File
// names are made relative to basePath when one is given.
func DefaultPathBuilder(basePath string) PathBuilder {
	return func(c *Case) model.TestPath {
		className := c.ClassName
		if className == "" {
			className = c.SuiteClassName
		}
		file := c.File
		if file == "" {
			file = c.SuiteFile
		}

		var tp model.TestPath
		if file != "" {
			tp = append(tp, model.PathComponent{Type: model.TypeFile, Name: filepath.ToSlash(Relativize(basePath, file))})
		}
		if className != "" {
			tp = append(tp, model.PathComponent{Type: model.TypeClass, Name: className})
		}
		if c.Name != "" {
			tp = append(tp, model.PathComponent{Type: model.TypeTestCase, Name: c.Name})
		}
		return tp
	}
}

// DefaultDataBuilder records the line attribute, if present.
func DefaultDataBuilder(c *Case) map[string]any {
	if c.Line == nil {
		return nil
	}
	return map[string]any{"lineNumber": *c.Line}
}

// Relativize makes an absolute file name relative to basePath.
func Relativize(basePath, file string) string {
	if basePath == "" || !filepath.IsAbs(file) {
		return file
	}
	rel, err := filepath.Rel(basePath, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return file
	}
	return rel
}

// Decoder converts reports into case events.
type Decoder struct {
	PathBuilder PathBuilder
	DataBuilder DataBuilder
}

// NewDecoder returns a decoder with the default builders.
func NewDecoder(basePath string) *Decoder {
	return &Decoder{
		PathBuilder: DefaultPathBuilder(basePath),
		DataBuilder: DefaultDataBuilder,
	}
}

var suiteMatchers = xmlstream.MustParseTagMatchers(
	"testsuite/@name={suiteName}",
	"testsuite/@classname={suiteClassName}",
	"testsuite/@filepath={suiteFile}",
	"testsuite/@timestamp={suiteTimestamp}",
)

// DecodeFile decodes the report stored at path.
func (d *Decoder) DecodeFile(path string) ([]model.CaseEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	events, err := d.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// Decode reads a whole report. On malformed XML no events are returned.
func (d *Decoder) Decode(r io.Reader) ([]model.CaseEvent, error) {
	var (
		events   []model.CaseEvent
		current  *Case
		buildErr error
	)

	onStart := func(e *xmlstream.Element) {
		if e.Name != "testcase" {
			return
		}
		current = &Case{
			Name:           e.Attr("name"),
			ClassName:      e.Attr("classname"),
			File:           e.Attr("file"),
			Time:           e.Attr("time"),
			Attrs:          e.Attrs,
			SuiteName:      e.Tags["suiteName"],
			SuiteClassName: e.Tags["suiteClassName"],
			SuiteFile:      e.Tags["suiteFile"],
			SuiteTimestamp: e.Tags["suiteTimestamp"],
		}
		if line, err := strconv.Atoi(e.Attr("line")); err == nil {
			current.Line = &line
		}
	}

	onEnd := func(e *xmlstream.Element) {
		if current == nil {
			return
		}
		switch e.Name {
		case "failure", "error":
			current.Result = ResultFailed
			current.appendDetail(e)
		case "skipped":
			if current.Result != ResultFailed {
				current.Result = ResultSkipped
			}
			current.appendDetail(e)
		case "system-out":
			current.Stdout = e.Text()
		case "system-err":
			current.Stderr = e.Text()
		case "property":
			current.Properties = append(current.Properties, Property{Name: e.Attr("name"), Value: e.Attr("value")})
		case "testcase":
			ev, err := d.event(current)
			if err != nil && buildErr == nil {
				buildErr = err
			}
			events = append(events, ev)
			current = nil
		}
	}

	if err := xmlstream.New(suiteMatchers, onStart, xmlstream.WithEndReceiver(onEnd)).Parse(r); err != nil {
		return nil, err
	}
	if buildErr != nil {
		return nil, buildErr
	}
	return events, nil
}

func (c *Case) appendDetail(e *xmlstream.Element) {
	// the message attribute summarizes the text, so prefer the text
	if text := e.Text(); strings.TrimSpace(text) != "" {
		c.detail.WriteString(text)
	} else if msg := e.Attr("message"); msg != "" {
		c.detail.WriteString(msg + "\n")
	}
}

func (d *Decoder) event(c *Case) (model.CaseEvent, error) {
	tp := d.PathBuilder(c).Canonical()
	if len(tp) == 0 {
		return model.CaseEvent{}, &model.ValidationError{Msg: "test case has no name, classname or file"}
	}

	duration, err := parseSeconds(c.Time)
	if err != nil {
		return model.CaseEvent{}, &model.ValidationError{TestPath: tp, Msg: fmt.Sprintf("invalid time %q", c.Time)}
	}

	var createdAt time.Time
	if c.SuiteTimestamp != "" {
		// an unreadable suite timestamp falls back to the capture time
		if ts, err := model.ParseTimestamp(c.SuiteTimestamp); err == nil {
			createdAt = ts
		}
	}

	status := model.StatusPassed
	switch c.Result {
	case ResultFailed:
		status = model.StatusFailed
	case ResultSkipped:
		status = model.StatusSkipped
	}

	stderr := c.Stderr
	if stderr == "" {
		stderr = c.detail.String()
	}

	var data map[string]any
	if d.DataBuilder != nil {
		data = d.DataBuilder(c)
	}

	return model.NewCaseEvent(tp, duration, status, c.Stdout, stderr, createdAt, data), nil
}

func parseSeconds(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	// some reporters format times above 1000s with thousands separators
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}
