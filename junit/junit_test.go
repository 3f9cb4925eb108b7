package junit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfgo/subsetter/model"
)

const report = `<?xml version="1.0" encoding="UTF-8"?>
<testsuites name="test_suite_name1" tests="4" failures="1" errors="0" time="10.123">
  <testsuite name="test_suite_name2" timestamp="2021-10-05T12:34:00" time="10.123" tests="4">
    <testcase classname="test_class_name" name="test_case_name" time="10.123" file="tests/test_a.py" line="3">
    </testcase>
    <testcase classname="test_class_name" name="failing" time="0.5">
      <failure message="assert 1 == 2">Traceback line 1
Traceback line 2</failure>
      <system-out>captured</system-out>
    </testcase>
    <testcase classname="test_class_name" name="skipped" time="0">
      <skipped message="not today"/>
    </testcase>
    <testcase classname="test_class_name" name="errored" time="1,234.5">
      <error message="only message"/>
      <system-err>explicit stderr</system-err>
    </testcase>
  </testsuite>
</testsuites>
`

func TestDecode(t *testing.T) {
	events, err := NewDecoder("").Decode(strings.NewReader(report))
	require.NoError(t, err)
	require.Len(t, events, 4)

	want := time.Date(2021, 10, 5, 12, 34, 0, 0, time.Local)

	first := events[0]
	assert.Equal(t, model.NewTestPath(
		model.TypeFile, "tests/test_a.py",
		model.TypeClass, "test_class_name",
		model.TypeTestCase, "test_case_name",
	), first.TestPath)
	assert.Equal(t, 10.123, first.Duration)
	assert.Equal(t, model.StatusPassed, first.Status)
	assert.True(t, want.Equal(first.CreatedAt))
	assert.Equal(t, map[string]any{"lineNumber": 3}, first.Data)

	failing := events[1]
	assert.Equal(t, model.StatusFailed, failing.Status)
	assert.Equal(t, "captured", failing.Stdout)
	assert.Equal(t, "Traceback line 1\nTraceback line 2", failing.Stderr)
	assert.Nil(t, failing.Data)

	skipped := events[2]
	assert.Equal(t, model.StatusSkipped, skipped.Status)
	assert.Equal(t, "not today\n", skipped.Stderr)

	errored := events[3]
	assert.Equal(t, model.StatusFailed, errored.Status)
	assert.Equal(t, "explicit stderr", errored.Stderr)
	assert.Equal(t, 1234.5, errored.Duration)
}

func TestDecodeSuiteAttributesAreInherited(t *testing.T) {
	in := `<testsuite name="s" classname="SuiteClass" filepath="/repo/src/a_test.rb">
  <testcase name="works"/>
</testsuite>`

	events, err := NewDecoder("/repo").Decode(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, model.NewTestPath(
		model.TypeFile, "src/a_test.rb",
		model.TypeClass, "SuiteClass",
		model.TypeTestCase, "works",
	), events[0].TestPath)
}

func TestDecodeMalformedReturnsNoEvents(t *testing.T) {
	in := `<testsuite><testcase name="a"/><testcase name="b">`
	events, err := NewDecoder("").Decode(strings.NewReader(in))
	require.Error(t, err)
	require.Nil(t, events)
}

func TestDecodeInvalidTime(t *testing.T) {
	in := `<testsuite><testcase classname="A" name="b" time="soon"/></testsuite>`
	_, err := NewDecoder("").Decode(strings.NewReader(in))

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, err.Error(), "class=A#testcase=b")
}

func TestDecodeCaseWithoutNameIsInvalid(t *testing.T) {
	in := `<testsuite><testcase time="1"/></testsuite>`
	_, err := NewDecoder("").Decode(strings.NewReader(in))

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, err.Error(), "no name")
}

func TestDecodeFoldsFixtureIntoSuite(t *testing.T) {
	d := NewDecoder("")
	d.PathBuilder = func(c *Case) model.TestPath {
		return model.NewTestPath(model.TypeAssembly, "a.dll", "TestFixture", c.ClassName, model.TypeTestCase, c.Name)
	}

	in := `<testsuite><testcase classname="Fx" name="works"/></testsuite>`
	events, err := d.Decode(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, model.NewTestPath(
		model.TypeAssembly, "a.dll",
		model.TypeTestSuite, "Fx",
		model.TypeTestCase, "works",
	), events[0].TestPath)
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.xml")
	require.NoError(t, os.WriteFile(path, []byte(report), 0644))

	events, err := NewDecoder("").DecodeFile(path)
	require.NoError(t, err)
	require.Len(t, events, 4)

	_, err = NewDecoder("").DecodeFile(filepath.Join(dir, "missing.xml"))
	require.Error(t, err)
}

func TestRelativize(t *testing.T) {
	require.Equal(t, "a/b.py", Relativize("", "a/b.py"))
	require.Equal(t, "b.py", Relativize("/repo", "/repo/b.py"))
	require.Equal(t, "/elsewhere/b.py", Relativize("/repo", "/elsewhere/b.py"))
}
