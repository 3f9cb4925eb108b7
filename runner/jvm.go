package runner

import (
	"io"
	"path"
	"regexp"
	"strings"

	"al.essio.dev/pkg/shellescape"

	"github.com/perfgo/subsetter/junit"
	"github.com/perfgo/subsetter/model"
)

var jvmTestPattern = regexp.MustCompile(`^.*(Test|Tests|TestCase|Spec|IT)\.(java|kt|scala|groovy)$`)

// jvmScanner maps JVM test sources to class=<fully qualified name>, so
// src/test/java is expected to be given as the source root.
type jvmScanner struct{}

func (jvmScanner) Scan(root, pattern string) ([]model.TestPath, error) {
	return scanFiles(root, pattern, func(rel string) model.TestPath {
		if !jvmTestPattern.MatchString(path.Base(rel)) {
			return nil
		}
		cls := strings.TrimSuffix(rel, path.Ext(rel))
		return model.NewTestPath(model.TypeClass, strings.ReplaceAll(cls, "/", "."))
	})
}

func (s jvmScanner) sourceRoots(roots []string) ([]model.TestPath, error) {
	var paths []model.TestPath
	for _, root := range roots {
		found, err := s.Scan(root, "**/*")
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

// newJVMReports decodes JUnit reports with nested classes collapsed into
// their outer class. JUnit 5 reports @Nested tests as Outer$Inner, which
// cannot be selected on their own.
func newJVMReports(opts Options) junitReports {
	decoder := junit.NewDecoder(absBase(opts.BasePath))
	base := decoder.PathBuilder
	decoder.PathBuilder = func(c *junit.Case) model.TestPath {
		tp := base(c)
		for i := range tp {
			if tp[i].Type == model.TypeClass {
				tp[i].Name, _, _ = strings.Cut(tp[i].Name, "$")
			}
		}
		return tp
	}
	return junitReports{decoder: decoder}
}

func className(tp model.TestPath) string {
	name, _ := tp.Find(model.TypeClass)
	return name
}

// gradle renders --tests filters, or bare class names with --bare.
type gradle struct {
	jvmScanner
	junitReports
	bare bool
}

func newGradle(opts Options) *gradle {
	return &gradle{junitReports: newJVMReports(opts), bare: opts.Bare}
}

func (*gradle) Name() string { return "gradle" }

func (g *gradle) Render() RenderSpec {
	if g.bare {
		return RenderSpec{Format: className, Separator: "\n"}
	}
	return RenderSpec{
		Format: func(tp model.TestPath) string {
			cls := className(tp)
			if cls == "" {
				return ""
			}
			return "--tests " + shellescape.Quote(cls)
		},
		Separator: " ",
	}
}

func (g *gradle) Candidates(args []string, _ io.Reader) ([]model.TestPath, error) {
	return g.sourceRoots(args)
}

// RenderExclusion produces the class file list expected by an excludeTests
// property in the build script.
func (g *gradle) RenderExclusion(rest []model.TestPath) string {
	classes := make([]string, 0, len(rest))
	for _, tp := range rest {
		if cls := className(tp); cls != "" {
			classes = append(classes, strings.ReplaceAll(cls, ".", "/")+".class")
		}
	}
	if g.bare {
		return strings.Join(classes, ",")
	}
	return "-PexcludeTests=" + strings.Join(classes, ",")
}

func (*gradle) SameBin(name string) model.TestPath {
	return model.NewTestPath(model.TypeClass, name)
}

// maven renders a comma separated list for -Dtest=.
type maven struct {
	jvmScanner
	junitReports
}

func newMaven(opts Options) *maven {
	return &maven{junitReports: newJVMReports(opts)}
}

func (*maven) Name() string { return "maven" }

func (*maven) Render() RenderSpec {
	return RenderSpec{Format: className, Separator: ","}
}

func (m *maven) Candidates(args []string, _ io.Reader) ([]model.TestPath, error) {
	return m.sourceRoots(args)
}

// RenderExclusion produces the negated patterns surefire understands.
func (*maven) RenderExclusion(rest []model.TestPath) string {
	classes := make([]string, 0, len(rest))
	for _, tp := range rest {
		if cls := className(tp); cls != "" {
			classes = append(classes, "!"+cls)
		}
	}
	return strings.Join(classes, ",")
}
