package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perfgo/subsetter/model"
)

func TestGoTest_Candidates(t *testing.T) {
	out := `TestParse
TestParse_Malformed
ExampleParser
ok  	github.com/perfgo/subsetter/xmlstream	0.002s
?   	github.com/perfgo/subsetter/cmd	[no test files]
TestLookup
ok  	github.com/perfgo/subsetter/runner	(cached)
`
	paths, err := newGoTest(Options{}).Candidates(nil, strings.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, []model.TestPath{
		model.NewTestPath(model.TypeClass, "github.com/perfgo/subsetter/xmlstream", model.TypeTestCase, "TestParse"),
		model.NewTestPath(model.TypeClass, "github.com/perfgo/subsetter/xmlstream", model.TypeTestCase, "TestParse_Malformed"),
		model.NewTestPath(model.TypeClass, "github.com/perfgo/subsetter/xmlstream", model.TypeTestCase, "ExampleParser"),
		model.NewTestPath(model.TypeClass, "github.com/perfgo/subsetter/runner", model.TypeTestCase, "TestLookup"),
	}, paths)

	_, err = newGoTest(Options{}).Candidates(nil, strings.NewReader("TestOrphan\n"))
	require.Error(t, err)
}

func TestGoTest_Render(t *testing.T) {
	a := newGoTest(Options{})
	paths := []model.TestPath{
		model.NewTestPath(model.TypeClass, "pkg", model.TypeTestCase, "TestA"),
		model.NewTestPath(model.TypeClass, "pkg", model.TypeTestCase, "TestB/case[1]"),
	}

	require.Equal(t, `^TestA$|^TestB/case\[1\]$`, a.Render().Join(paths))
	require.Equal(t, `-skip '^TestA$|^TestB/case\[1\]$'`, a.RenderExclusion(paths))
	require.Equal(t, "", a.RenderExclusion(nil))
	require.Equal(t, model.NewTestPath(model.TypeTestCase, "TestA"), a.SameBin("TestA"))
}

func TestGoogleTest_Candidates(t *testing.T) {
	out := `FooTest.
  Bar
  Baz
Instantiation/ParamTest.
  Works/0  # GetParam() = 1.5
  Works/1  # GetParam() = 2.5
`
	a := newGoogleTest(Options{})
	paths, err := a.Candidates(nil, strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, paths, 4)
	require.Equal(t, model.NewTestPath(model.TypeClass, "FooTest", model.TypeTestCase, "Bar"), paths[0])
	require.Equal(t, model.NewTestPath(model.TypeClass, "Instantiation/ParamTest", model.TypeTestCase, "Works/1"), paths[3])

	require.Equal(t, "FooTest.Bar\nFooTest.Baz", a.Render().Join(paths[:2]))
}
