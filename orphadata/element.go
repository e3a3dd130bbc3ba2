package orphadata

import (
	"fmt"
	"regexp"
	"strings"
)

// Element is the read-only view of an XML element the extractors work on.
// Any tree library can back it; Node is the implementation built by Scan.
type Element interface {
	// Tag returns the local element name.
	Tag() string

	// Attr returns the value of the named attribute and whether it exists.
	Attr(name string) (string, bool)

	// Text returns the character data preceding the first child element.
	Text() string

	// Children returns the child elements in document order.
	Children() []Element
}

// Node is an in-memory XML element.
type Node struct {
	name     string
	attrs    map[string]string
	text     strings.Builder
	children []Element
}

// NewNode creates a detached element. attrs may be nil.
func NewNode(name string, attrs map[string]string) *Node {
	return &Node{name: name, attrs: attrs}
}

// Append adds a child element and returns it.
func (n *Node) Append(child *Node) *Node {
	n.children = append(n.children, child)
	return child
}

// AppendText adds character data. Text after the first child is ignored.
func (n *Node) AppendText(s string) {
	if len(n.children) == 0 {
		n.text.WriteString(s)
	}
}

func (n *Node) Tag() string { return n.name }

func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

func (n *Node) Text() string { return n.text.String() }

func (n *Node) Children() []Element { return n.children }

// Path is a compiled child-axis query such as
// "HPOFrequency/Name[@lang='en']". Each step names a child tag and may carry
// one attribute equality predicate.
type Path struct {
	expr  string
	steps []step
}

type step struct {
	tag   string
	attr  string
	value string
}

var stepPattern = regexp.MustCompile(`^([A-Za-z_][\w.-]*)(?:\[@([A-Za-z_][\w:.-]*)=(?:'([^']*)'|"([^"]*)")\])?$`)

// CompilePath parses a query expression.
func CompilePath(expr string) (*Path, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty path")
	}
	p := &Path{expr: expr}
	for _, part := range strings.Split(expr, "/") {
		m := stepPattern.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("invalid path step %q in %q", part, expr)
		}
		s := step{tag: m[1], attr: m[2], value: m[3]}
		if m[4] != "" {
			s.value = m[4]
		}
		p.steps = append(p.steps, s)
	}
	return p, nil
}

// MustCompilePath is like CompilePath but panics on a malformed expression.
func MustCompilePath(expr string) *Path {
	p, err := CompilePath(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Path) String() string { return p.expr }

func (s step) matches(e Element) bool {
	if e.Tag() != s.tag {
		return false
	}
	if s.attr == "" {
		return true
	}
	v, ok := e.Attr(s.attr)
	return ok && v == s.value
}

// FindAll returns every element reached from e, in document order.
func (p *Path) FindAll(e Element) []Element {
	if e == nil {
		return nil
	}
	current := []Element{e}
	for _, s := range p.steps {
		var next []Element
		for _, el := range current {
			for _, child := range el.Children() {
				if s.matches(child) {
					next = append(next, child)
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

// Find returns the first element reached from e, or nil.
func (p *Path) Find(e Element) Element {
	if all := p.FindAll(e); len(all) > 0 {
		return all[0]
	}
	return nil
}

// FindText returns the text of the first match and whether one exists.
func (p *Path) FindText(e Element) (string, bool) {
	el := p.Find(e)
	if el == nil {
		return "", false
	}
	return el.Text(), true
}

// Text returns the text of the first match, or "" when there is none.
func (p *Path) Text(e Element) string {
	s, _ := p.FindText(e)
	return s
}
