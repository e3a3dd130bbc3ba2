package orphadata

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html/charset"

	"github.com/c360studio/orphasnap/codeset"
)

// ErrMalformedXML is returned when a feed cannot be parsed.
var ErrMalformedXML = errors.New("malformed orphadata xml")

const disorderTag = "Disorder"

var orphaCodePath = MustCompilePath("OrphaCode")

// Collector receives every retained disorder of a scan.
type Collector interface {
	Collect(code string, disorder Element)
}

// CollectorFunc adapts a function to Collector.
type CollectorFunc func(code string, disorder Element)

// Collect calls f.
func (f CollectorFunc) Collect(code string, disorder Element) { f(code, disorder) }

// Scan streams an Orphadata document and hands each <Disorder> whose
// <OrphaCode> is in codes to every collector, in document order. Disorders
// nested inside other disorders are visited after their parent. Only one
// top-level disorder subtree is held in memory at a time. Scan returns the
// number of retained disorders.
func Scan(r io.Reader, codes *codeset.Set, collectors ...Collector) (int, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var (
		stack    []*Node
		retained int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return retained, fmt.Errorf("%w: %v", ErrMalformedXML, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && t.Name.Local != disorderTag {
				continue
			}
			node := NewNode(t.Name.Local, attrMap(t.Attr))
			if len(stack) > 0 {
				stack[len(stack)-1].Append(node)
			}
			stack = append(stack, node)

		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			root := stack[0]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				retained += visit(root, codes, collectors)
			}

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].AppendText(string(t))
			}
		}
	}

	if len(stack) > 0 {
		return retained, fmt.Errorf("%w: unterminated <%s>", ErrMalformedXML, stack[0].Tag())
	}
	return retained, nil
}

// visit walks a disorder subtree in pre-order and dispatches every retained
// disorder element, including nested ones.
func visit(e Element, codes *codeset.Set, collectors []Collector) int {
	n := 0
	if e.Tag() == disorderTag {
		if code, ok := orphaCodePath.FindText(e); ok && codes.Contains(code) {
			for _, c := range collectors {
				c.Collect(code, e)
			}
			n++
		}
	}
	for _, child := range e.Children() {
		n += visit(child, codes, collectors)
	}
	return n
}

func attrMap(attrs []xml.Attr) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}
