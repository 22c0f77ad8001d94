package feed

import (
	"maps"
	"slices"
	"strconv"
	"time"
)

const timestampField = "timestamp"

type Attr struct {
	Name  string
	Value string
}

// Element is a node of the normalized document tree. It is never modified
// once returned from this package; every augmentation produces a copy.
type Element struct {
	name       string
	space      string
	attrs      []Attr
	children   []*Element
	text       string
	namespaces map[string]string
}

func (e *Element) Name() string {
	return e.name
}

// Space returns the namespace URI of the element, empty when unqualified.
func (e *Element) Space() string {
	return e.space
}

func (e *Element) Text() string {
	return e.text
}

func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (e *Element) Attrs() []Attr {
	return slices.Clone(e.attrs)
}

// Children returns all child elements in document order, namespaced ones included.
func (e *Element) Children() []*Element {
	return slices.Clone(e.children)
}

// Namespaces returns the prefix to URI bindings visible at this element.
// The default namespace is stored under the empty prefix.
func (e *Element) Namespaces() map[string]string {
	return maps.Clone(e.namespaces)
}

// Child returns the first plain child with the given tag name.
func (e *Element) Child(name string) (*Element, bool) {
	for _, c := range e.children {
		if c.name == name && isPlain(c) {
			return c, true
		}
	}
	return nil, false
}

func (e *Element) ChildrenNamed(name string) []*Element {
	var out []*Element
	for _, c := range e.children {
		if c.name == name && isPlain(c) {
			out = append(out, c)
		}
	}
	return out
}

// IsLeaf reports whether the element has no plain children.
func (e *Element) IsLeaf() bool {
	for _, c := range e.children {
		if isPlain(c) {
			return false
		}
	}
	return true
}

// Timestamp reads the normalized timestamp field of an item or entry.
func (e *Element) Timestamp() (time.Time, bool) {
	ts, ok := e.Child(timestampField)
	if !ok {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(ts.text, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0).UTC(), true
}

// plainChildren are the children addressable by bare tag name: unqualified
// ones, default namespace ones and synthetic flattened fields.
func (e *Element) plainChildren() []*Element {
	out := make([]*Element, 0, len(e.children))
	for _, c := range e.children {
		if isPlain(c) {
			out = append(out, c)
		}
	}
	return out
}

func isPlain(c *Element) bool {
	return c.space == "" || c.space == c.namespaces[""]
}

func (e *Element) clone() *Element {
	return &Element{
		name:       e.name,
		space:      e.space,
		attrs:      slices.Clone(e.attrs),
		children:   slices.Clone(e.children),
		text:       e.text,
		namespaces: e.namespaces,
	}
}

// withField returns a copy of e where the plain child named name is replaced
// by field, or field is appended when no such child exists.
func (e *Element) withField(name string, field *Element) *Element {
	out := e.clone()
	field = field.renamed(name, e.namespaces)
	for i, c := range out.children {
		if c.name == name && isPlain(c) {
			out.children[i] = field
			return out
		}
	}
	out.children = append(out.children, field)
	return out
}

func (e *Element) withChildren(children []*Element) *Element {
	out := e.clone()
	out.children = children
	return out
}

// renamed copies e under a new unqualified name. The copy keeps the
// attributes, text and subtree of e.
func (e *Element) renamed(name string, scope map[string]string) *Element {
	out := e.clone()
	out.name = name
	out.space = ""
	out.namespaces = scope
	return out
}

func textElement(name, text string, scope map[string]string) *Element {
	return &Element{name: name, text: text, namespaces: scope}
}
