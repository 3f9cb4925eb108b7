// Package xmlstream parses large XML documents without building a DOM. It
// keeps only the chain of currently open elements, so memory use follows
// the nesting depth of the document rather than its size.
package xmlstream

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"maps"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
)

// Element is an open XML element. It knows its ancestors but not its
// siblings or children.
type Element struct {
	Name   string
	Attrs  map[string]string
	Parent *Element
	// Tags holds the values captured at this element and its ancestors.
	Tags map[string]string

	text strings.Builder
}

// Attr returns the value of an attribute, or "" if absent.
func (e *Element) Attr(name string) string {
	return e.Attrs[name]
}

// Text returns the character data seen directly inside the element so far.
// It is complete once the element's end event is delivered.
func (e *Element) Text() string {
	return e.text.String()
}

func (e *Element) String() string {
	return fmt.Sprintf("%s %v", e.Name, e.Tags)
}

// TagMatcher captures the value of an attribute of matching elements into
// a named tag.
type TagMatcher struct {
	// Element is the element name to match, or "*" for any element.
	Element string
	Attr    string
	Var     string
}

var tagMatcherPattern = regexp.MustCompile(`^(\w+|\*)/@([a-zA-Z_\-]+)=\{(\w+)\}$`)

// ParseTagMatcher parses a pattern such as "testcase/@name={testcaseName}".
func ParseTagMatcher(spec string) (TagMatcher, error) {
	m := tagMatcherPattern.FindStringSubmatch(spec)
	if m == nil {
		return TagMatcher{}, fmt.Errorf("invalid tag spec: %s", spec)
	}
	return TagMatcher{Element: m[1], Attr: m[2], Var: m[3]}, nil
}

// MustParseTagMatchers is ParseTagMatcher for specs known at compile time.
func MustParseTagMatchers(specs ...string) []TagMatcher {
	out := make([]TagMatcher, 0, len(specs))
	for _, s := range specs {
		m, err := ParseTagMatcher(s)
		if err != nil {
			panic(err)
		}
		out = append(out, m)
	}
	return out
}

// Match returns the captured value if the matcher applies to e.
func (m TagMatcher) Match(e *Element) (string, bool) {
	if m.Element != "*" && m.Element != e.Name {
		return "", false
	}
	v, ok := e.Attrs[m.Attr]
	return v, ok
}

// Parser walks an XML document and reports every element start to
// Receiver, with the tags captured along the path to it.
type Parser struct {
	matchers []TagMatcher
	receiver func(*Element)
	onEnd    func(*Element)
}

// Option configures a Parser.
type Option func(*Parser)

// WithEndReceiver registers a callback invoked when an element closes, after
// its text content has been collected.
func WithEndReceiver(fn func(*Element)) Option {
	return func(p *Parser) {
		p.onEnd = fn
	}
}

// New creates a parser with the given matchers and start-element receiver.
func New(matchers []TagMatcher, receiver func(*Element), opts ...Option) *Parser {
	p := &Parser{
		matchers: matchers,
		receiver: receiver,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse consumes the whole document. A malformed document aborts the parse
// with an error.
func (p *Parser) Parse(r io.Reader) error {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel

	var current *Element
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to parse XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			current = p.start(current, t)
		case xml.EndElement:
			if current == nil {
				return fmt.Errorf("failed to parse XML: unexpected end element %s", t.Name.Local)
			}
			if p.onEnd != nil {
				p.onEnd(current)
			}
			current = current.Parent
		case xml.CharData:
			if current != nil {
				current.text.Write(t)
			}
		}
	}

	if current != nil {
		return fmt.Errorf("failed to parse XML: element %s is not closed", current.Name)
	}
	return nil
}

func (p *Parser) start(parent *Element, t xml.StartElement) *Element {
	e := &Element{
		Name:   t.Name.Local,
		Attrs:  make(map[string]string, len(t.Attr)),
		Parent: parent,
	}
	for _, a := range t.Attr {
		e.Attrs[a.Name.Local] = a.Value
	}

	// start with a copy of the parent's tags, then apply our own matches
	if parent != nil {
		e.Tags = maps.Clone(parent.Tags)
	} else {
		e.Tags = make(map[string]string)
	}
	for _, m := range p.matchers {
		if v, ok := m.Match(e); ok {
			e.Tags[m.Var] = v
		}
	}

	if p.receiver != nil {
		p.receiver(e)
	}
	return e
}
