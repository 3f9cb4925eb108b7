package model

import (
	"fmt"
	"strings"
)

// Well-known path component types. Adapters are free to use others.
const (
	TypeFile                = "file"
	TypeClass               = "class"
	TypeTestCase            = "testcase"
	TypeAssembly            = "assembly"
	TypeTestSuite           = "testsuite"
	TypeTestFixture         = "testfixture"
	TypeParameterizedMethod = "parameterizedmethod"
)

// PathComponent is one segment of a TestPath.
type PathComponent struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// TestPath identifies a single test as an ordered list of typed names,
// outermost first (e.g. file, then class, then test case).
type TestPath []PathComponent

// NewTestPath builds a TestPath from alternating type/name pairs.
func NewTestPath(typeAndNames ...string) TestPath {
	if len(typeAndNames)%2 != 0 {
		panic("model: NewTestPath requires type/name pairs")
	}
	tp := make(TestPath, 0, len(typeAndNames)/2)
	for i := 0; i < len(typeAndNames); i += 2 {
		tp = append(tp, PathComponent{Type: typeAndNames[i], Name: typeAndNames[i+1]})
	}
	return tp
}

// Validate reports whether the path can be sent to the service.
func (tp TestPath) Validate() error {
	if len(tp) == 0 {
		return fmt.Errorf("test path has no components")
	}
	return nil
}

// Equal compares two paths segment by segment.
func (tp TestPath) Equal(other TestPath) bool {
	if len(tp) != len(other) {
		return false
	}
	for i := range tp {
		if tp[i] != other[i] {
			return false
		}
	}
	return true
}

// Key returns a string that is identical for structurally equal paths.
func (tp TestPath) Key() string {
	return tp.String()
}

// Find returns the name of the first component with the given type.
func (tp TestPath) Find(componentType string) (string, bool) {
	for _, c := range tp {
		if c.Type == componentType {
			return c.Name, true
		}
	}
	return "", false
}

// Clone returns a deep copy so callers can rewrite names safely.
func (tp TestPath) Clone() TestPath {
	if tp == nil {
		return nil
	}
	out := make(TestPath, len(tp))
	copy(out, tp)
	return out
}

// String renders the path in its flattened text form, e.g.
// "file=a.py#class=classA". Use ParseTestPath for the inverse.
func (tp TestPath) String() string {
	parts := make([]string, len(tp))
	for i, c := range tp {
		parts[i] = encodeComponent(c.Type) + "=" + encodeComponent(c.Name)
	}
	return strings.Join(parts, "#")
}

// ParseTestPath parses the flattened text form produced by TestPath.String.
func ParseTestPath(s string) (TestPath, error) {
	if s == "" {
		return nil, fmt.Errorf("test path is empty")
	}

	var tp TestPath
	for _, part := range strings.Split(s, "#") {
		typ, name, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid test path %q: component %q has no '='", s, part)
		}
		tp = append(tp, PathComponent{
			Type: decodeComponent(typ),
			Name: decodeComponent(name),
		})
	}
	return tp, nil
}

var (
	componentEncoder = strings.NewReplacer("%", "%25", "=", "%3D", "#", "%23")
	componentDecoder = strings.NewReplacer("%23", "#", "%3D", "=", "%25", "%")
)

func encodeComponent(s string) string { return componentEncoder.Replace(s) }

func decodeComponent(s string) string { return componentDecoder.Replace(s) }

// CanonicalType folds framework-specific synonyms onto one component type.
// NUnit calls a suite a "TestFixture" while xUnit-style reports call it a
// "TestSuite"; both describe the same level of the hierarchy.
func CanonicalType(t string) string {
	switch strings.ToLower(t) {
	case TypeTestFixture, TypeTestSuite:
		return TypeTestSuite
	case TypeParameterizedMethod:
		return TypeParameterizedMethod
	default:
		return t
	}
}

// Canonical returns a copy of the path with synonym types folded.
func (tp TestPath) Canonical() TestPath {
	out := tp.Clone()
	for i := range out {
		out[i].Type = CanonicalType(out[i].Type)
	}
	return out
}
