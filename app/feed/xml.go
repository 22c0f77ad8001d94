package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

const xmlNamespaceURI = "http://www.w3.org/XML/1998/namespace"

type elementBuilder struct {
	el       *Element
	text     strings.Builder
	children []*Element
}

// ParseXML builds an element tree from an XML document. Parsing is lenient:
// unknown entities and unquoted attributes do not abort the parse. Closing
// tags that do not match the open element do.
func ParseXML(data []byte) (*Element, error) {
	if err := checkNesting(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	p := xpp.NewXMLPullParser(bytes.NewReader(data), false, charsetReader)

	var stack []*elementBuilder
	var root *Element

	for {
		event, err := p.Next()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}

		switch event {
		case xpp.StartTag:
			scope := map[string]string{}
			if len(stack) > 0 {
				scope = stack[len(stack)-1].el.namespaces
			}
			stack = append(stack, &elementBuilder{el: newParsedElement(p, scope)})

		case xpp.Text:
			if len(stack) > 0 {
				stack[len(stack)-1].text.WriteString(p.Text)
			}

		case xpp.EndTag:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unexpected closing tag </%s>", ErrParseFailed, p.Name)
			}
			b := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			b.el.text = b.text.String()
			b.el.children = b.children

			if len(stack) == 0 {
				root = b.el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, b.el)
			}

		case xpp.EndDocument:
			if len(stack) > 0 {
				return nil, fmt.Errorf("%w: unclosed element <%s>", ErrParseFailed, stack[len(stack)-1].el.name)
			}
			if root == nil {
				return nil, fmt.Errorf("%w: no root element", ErrParseFailed)
			}
			return root, nil
		}
	}
}

// checkNesting rejects mismatched closing tags, which the lenient decoder
// would otherwise close implicitly.
func checkNesting(data []byte) error {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = false
	d.CharsetReader = charsetReader

	var open []xml.Name
	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			open = append(open, t.Name)
		case xml.EndElement:
			if len(open) == 0 {
				return fmt.Errorf("unexpected closing tag </%s>", qualifiedName(t.Name))
			}
			if top := open[len(open)-1]; top != t.Name {
				return fmt.Errorf("closing tag </%s> does not match <%s>", qualifiedName(t.Name), qualifiedName(top))
			}
			open = open[:len(open)-1]
		}
	}
}

func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func newParsedElement(p *xpp.XMLPullParser, parentScope map[string]string) *Element {
	scope := parentScope
	cloned := false
	for _, a := range p.Attrs {
		prefix, ok := namespaceDeclaration(a)
		if !ok {
			continue
		}
		if !cloned {
			scope = maps.Clone(parentScope)
			cloned = true
		}
		scope[prefix] = strings.TrimSpace(a.Value)
	}

	el := &Element{
		name:       p.Name,
		space:      p.Space,
		namespaces: scope,
	}

	// encoding/xml leaves an undeclared prefix in place of the URI; such
	// elements keep their qualified name as a plain tag.
	if el.space != "" && !isBound(scope, el.space) {
		el.name = el.space + ":" + el.name
		el.space = ""
	}

	for _, a := range p.Attrs {
		if _, ok := namespaceDeclaration(a); ok {
			continue
		}
		el.attrs = append(el.attrs, Attr{Name: attrName(a.Name, scope), Value: a.Value})
	}

	return el
}

func namespaceDeclaration(a xml.Attr) (string, bool) {
	switch {
	case a.Name.Space == "xmlns":
		return a.Name.Local, true
	case a.Name.Space == "" && a.Name.Local == "xmlns":
		return "", true
	}
	return "", false
}

func attrName(n xml.Name, scope map[string]string) string {
	switch n.Space {
	case "":
		return n.Local
	case xmlNamespaceURI:
		return "xml:" + n.Local
	}

	prefixes := slices.Sorted(maps.Keys(scope))
	for _, prefix := range prefixes {
		if prefix != "" && scope[prefix] == n.Space {
			return prefix + ":" + n.Local
		}
	}
	return n.Space + ":" + n.Local
}

func isBound(scope map[string]string, uri string) bool {
	for _, v := range scope {
		if v == uri {
			return true
		}
	}
	return false
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}
