package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perfgo/subsetter/model"
)

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			a, err := Lookup(name, Options{})
			require.NoError(t, err)
			require.Equal(t, name, a.Name())
			require.NotNil(t, a.Render().Format)
			require.NotEmpty(t, a.ReportPattern())
		})
	}

	_, err := Lookup("nosuchrunner", Options{})
	require.True(t, model.IsUsage(err))
	require.Contains(t, err.Error(), "pytest")
}

func TestSupportsSameBin(t *testing.T) {
	require.Equal(t, []string{"gotest", "gradle"}, SupportsSameBin())
}

func TestInverse_RoundTrip(t *testing.T) {
	rendered := map[string][]string{
		"raw": {
			"file=a.py#class=A#testcase=b",
			"file=a%23b.py#testcase=x%3Dy",
		},
		"pytest": {
			"tests/test_mod.py::TestClass::test_a",
			"tests/test_param.py::test_eval[3+5-8]",
		},
	}

	var inverses []string
	for _, name := range Names() {
		a, err := Lookup(name, Options{})
		require.NoError(t, err)
		inv, ok := a.(Inverse)
		if !ok {
			continue
		}
		inverses = append(inverses, name)

		t.Run(name, func(t *testing.T) {
			require.NotEmpty(t, rendered[name], "no rendered samples for %s", name)
			for _, s := range rendered[name] {
				tp, err := inv.Parse(s)
				require.NoError(t, err)
				require.Equal(t, s, a.Render().Format(tp))
			}
		})
	}
	require.ElementsMatch(t, []string{"pytest", "raw"}, inverses)
}

func TestRenderSpec_Join(t *testing.T) {
	r := RenderSpec{
		Format: func(tp model.TestPath) string {
			name, _ := tp.Find(model.TypeTestCase)
			return name
		},
		Separator: ",",
	}
	paths := []model.TestPath{
		model.NewTestPath(model.TypeTestCase, "a"),
		model.NewTestPath(model.TypeFile, "skipped.py"),
		model.NewTestPath(model.TypeTestCase, "b"),
	}
	require.Equal(t, "a,b", r.Join(paths))
	require.Equal(t, "", r.Join(nil))
}

// writeFiles creates the given files (with empty content unless provided)
// below a temporary directory and returns it.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func TestFileScanner_Scan(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"spec/a_spec.rb":        "",
		"spec/nested/b_spec.rb": "",
		"spec/helper.rb":        "",
	})

	paths, err := fileScanner{}.Scan(filepath.Join(dir, "spec"), "**/*_spec.rb")
	require.NoError(t, err)
	require.Len(t, paths, 2)

	base := fileScanner{basePath: dir}
	paths, err = base.Scan(filepath.Join(dir, "spec"), "**/*_spec.rb")
	require.NoError(t, err)
	require.ElementsMatch(t, []model.TestPath{
		model.NewTestPath(model.TypeFile, "spec/a_spec.rb"),
		model.NewTestPath(model.TypeFile, "spec/nested/b_spec.rb"),
	}, paths)

	_, err = base.Scan(filepath.Join(dir, "missing"), "**/*")
	require.Error(t, err)
}
