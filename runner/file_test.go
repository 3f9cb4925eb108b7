package runner

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perfgo/subsetter/model"
)

func TestFile_Candidates(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"spec/a_spec.rb":   "",
		"spec/b/c_spec.rb": "",
		"list.txt":         "spec/a_spec.rb\n\nextra_spec.rb\n",
	})
	t.Chdir(dir)

	a := newFile(Options{BasePath: dir})

	paths, err := a.Candidates([]string{"spec"}, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []model.TestPath{
		model.NewTestPath(model.TypeFile, "spec/a_spec.rb"),
		model.NewTestPath(model.TypeFile, "spec/b/c_spec.rb"),
	}, paths)

	paths, err = a.Candidates([]string{"@list.txt"}, nil)
	require.NoError(t, err)
	require.Equal(t, []model.TestPath{
		model.NewTestPath(model.TypeFile, "spec/a_spec.rb"),
		model.NewTestPath(model.TypeFile, "extra_spec.rb"),
	}, paths)

	paths, err = a.Candidates([]string{"@-"}, strings.NewReader("spec/b/c_spec.rb\n"))
	require.NoError(t, err)
	require.Len(t, paths, 1)

	_, err = a.Candidates([]string{"@missing.txt"}, nil)
	require.Error(t, err)
}

func TestFile_NestedResponseFiles(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"outer.txt": "a_test.py\n@inner.txt\n@inner.txt\n",
		"inner.txt": "b_test.py\n",
		"stdin.txt": "a_test.py\n@-\n",
		"self.txt":  "a_test.py\n@self.txt\n",
		"loop1.txt": "@loop2.txt\n",
		"loop2.txt": "@loop1.txt\n",
	})
	t.Chdir(dir)

	tests := []struct {
		name    string
		arg     string
		want    []model.TestPath
		wantErr bool
	}{
		{
			name: "included twice",
			arg:  "@outer.txt",
			want: []model.TestPath{
				model.NewTestPath(model.TypeFile, "a_test.py"),
				model.NewTestPath(model.TypeFile, "b_test.py"),
				model.NewTestPath(model.TypeFile, "b_test.py"),
			},
		},
		{name: "stdin inside a response file", arg: "@stdin.txt", wantErr: true},
		{name: "includes itself", arg: "@self.txt", wantErr: true},
		{name: "include cycle", arg: "@loop1.txt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths, err := newFile(Options{}).Candidates([]string{tt.arg}, strings.NewReader("c_test.py\n"))
			if tt.wantErr {
				require.True(t, model.IsUsage(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, paths)
		})
	}
}

func TestFile_RenderJoinsBasePath(t *testing.T) {
	tp := model.NewTestPath(model.TypeFile, "spec/a_spec.rb")

	require.Equal(t, "spec/a_spec.rb", newFile(Options{}).Render().Format(tp))
	require.Equal(t, filepath.Join("/repo", "spec", "a_spec.rb"), newFile(Options{BasePath: "/repo"}).Render().Format(tp))
	require.Equal(t, "", newFile(Options{}).Render().Format(model.NewTestPath(model.TypeClass, "A")))
}
