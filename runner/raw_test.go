package runner

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfgo/subsetter/model"
)

func TestRaw_RoundTrip(t *testing.T) {
	a := newRaw(Options{})
	render := a.Render()

	paths := []model.TestPath{
		model.NewTestPath(model.TypeFile, "a.py", model.TypeClass, "classA"),
		model.NewTestPath(model.TypeClass, "com.example.FooTest", model.TypeTestCase, "test[a=1#2]"),
		model.NewTestPath(model.TypeTestCase, "100% done"),
	}
	for _, p := range paths {
		formatted := render.Format(p)
		parsed, err := a.Parse(formatted)
		require.NoError(t, err)
		require.True(t, p.Equal(parsed), "%v != %v", p, parsed)
		require.Equal(t, formatted, render.Format(parsed))
	}
}

func TestRaw_Candidates(t *testing.T) {
	a := newRaw(Options{})

	in := `# generated by the build
file=a.py#class=classA

file=b.py#class=classB
`
	paths, err := a.Candidates([]string{"-"}, strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []model.TestPath{
		model.NewTestPath(model.TypeFile, "a.py", model.TypeClass, "classA"),
		model.NewTestPath(model.TypeFile, "b.py", model.TypeClass, "classB"),
	}, paths)

	paths, err = a.Candidates(nil, nil)
	require.NoError(t, err)
	require.Empty(t, paths)

	_, err = a.Candidates([]string{"-"}, strings.NewReader("not a test path\n"))
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = a.Candidates([]string{"a", "b"}, nil)
	require.True(t, model.IsUsage(err))
}

func TestRaw_ParseReportJSON(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"report.json": `{
  "testCases": [
    {
      "testPath": "file=a.py#class=classA",
      "duration": 42,
      "status": "TEST_PASSED",
      "stdout": "This is stdout",
      "stderr": "This is stderr",
      "createdAt": "2021-10-05T12:34:00"
    },
    {
      "testPathComponents": [{"type": "file", "name": "b.py"}],
      "duration": "1.5",
      "status": "TEST_FAILED",
      "data": {"lineNumber": 7}
    },
    {
      "testPath": "file=c.py",
      "status": "TEST_SKIPPED",
      "createdAt": "2021-10-05T12:34:00+09:00"
    }
  ]
}`,
	})

	events, err := newRaw(Options{}).ParseReport(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, model.NewTestPath(model.TypeFile, "a.py", model.TypeClass, "classA"), events[0].TestPath)
	assert.Equal(t, 42.0, events[0].Duration)
	assert.Equal(t, model.StatusPassed, events[0].Status)
	assert.Equal(t, "This is stdout", events[0].Stdout)
	assert.True(t, time.Date(2021, 10, 5, 12, 34, 0, 0, time.Local).Equal(events[0].CreatedAt))

	assert.Equal(t, 1.5, events[1].Duration)
	assert.Equal(t, model.StatusFailed, events[1].Status)
	assert.NotNil(t, events[1].Data["lineNumber"])
	assert.False(t, events[1].CreatedAt.IsZero())

	assert.Equal(t, 0.0, events[2].Duration)
	assert.Equal(t, model.StatusSkipped, events[2].Status)
	assert.True(t, time.Date(2021, 10, 5, 3, 34, 0, 0, time.UTC).Equal(events[2].CreatedAt))
}

func TestRaw_FixtureAndSuiteCollapse(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"report.json": `{"testCases": [
			{"testPathComponents": [{"type": "assembly", "name": "a.dll"}, {"type": "testfixture", "name": "Fx"}, {"type": "testcase", "name": "c"}], "status": "TEST_PASSED"},
			{"testPath": "assembly=a.dll#TestSuite=Fx#testcase=d", "status": "TEST_PASSED"}
		]}`,
	})
	a := newRaw(Options{})

	events, err := a.ParseReport(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.NewTestPath(model.TypeAssembly, "a.dll", model.TypeTestSuite, "Fx", model.TypeTestCase, "c"), events[0].TestPath)
	assert.Equal(t, model.NewTestPath(model.TypeAssembly, "a.dll", model.TypeTestSuite, "Fx", model.TypeTestCase, "d"), events[1].TestPath)

	paths, err := a.Candidates([]string{"-"}, strings.NewReader("assembly=a.dll#testfixture=Fx#testcase=c\n"))
	require.NoError(t, err)
	require.Equal(t, []model.TestPath{events[0].TestPath}, paths)
}

func TestRaw_ParseReportJSONInvalid(t *testing.T) {
	tests := []struct {
		name    string
		report  string
		wantMsg []string
	}{
		{
			name:    "unknown status",
			report:  `{"testCases": [{"testPath": "file=a.py#class=classA", "status": "UNKNOWN"}]}`,
			wantMsg: []string{"UNKNOWN", "file=a.py#class=classA"},
		},
		{
			name:    "negative duration",
			report:  `{"testCases": [{"testPath": "file=a.py", "status": "TEST_PASSED", "duration": -1}]}`,
			wantMsg: []string{"should be positive", "file=a.py"},
		},
		{
			name:    "duration is not a number",
			report:  `{"testCases": [{"testPath": "file=a.py", "status": "TEST_PASSED", "duration": "soon"}]}`,
			wantMsg: []string{"soon"},
		},
		{
			name:    "both test path forms",
			report:  `{"testCases": [{"testPath": "file=a.py", "testPathComponents": [{"type": "file", "name": "a.py"}], "status": "TEST_PASSED"}]}`,
			wantMsg: []string{"both"},
		},
		{
			name:    "no test path",
			report:  `{"testCases": [{"status": "TEST_PASSED"}]}`,
			wantMsg: []string{"missing testPath"},
		},
		{
			name:    "bad timestamp",
			report:  `{"testCases": [{"testPath": "file=a.py", "status": "TEST_PASSED", "createdAt": "yesterday"}]}`,
			wantMsg: []string{"yesterday"},
		},
		{
			name:    "no testCases",
			report:  `{}`,
			wantMsg: []string{"testCases"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFiles(t, map[string]string{"report.json": tt.report})
			path := filepath.Join(dir, "report.json")

			events, err := newRaw(Options{}).ParseReport(path)
			require.Nil(t, events)

			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, path, verr.File)
			for _, msg := range tt.wantMsg {
				require.Contains(t, err.Error(), msg)
			}
		})
	}
}

func TestRaw_ParseReportXML(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"report.xml": `<testsuite><testcase classname="classA" name="case1" time="0.1"/></testsuite>`,
	})

	events, err := newRaw(Options{}).ParseReport(filepath.Join(dir, "report.xml"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "class=classA#testcase=case1", events[0].TestPath.String())
}
