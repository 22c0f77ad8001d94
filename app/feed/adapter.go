package feed

import (
	"fmt"
	"strconv"
)

const (
	AtomNamespace       = "http://www.w3.org/2005/Atom"
	LegacyAtomNamespace = "http://purl.org/atom/ns#"
)

// Classify detects the format of a parsed document and builds the Feed.
// A root with a channel child is RSS, anything else must be Atom.
func Classify(root *Element) (*Feed, error) {
	if _, ok := root.Child("channel"); ok {
		return FromRSS(root)
	}
	return FromAtom(root)
}

func FromRSS(root *Element) (*Feed, error) {
	channel, ok := root.Child("channel")
	if !ok {
		return nil, fmt.Errorf("%w: missing channel element in <%s>", ErrInvalid, root.name)
	}

	channel = flattenNamespaces(channel)

	children := make([]*Element, len(channel.children))
	for i, c := range channel.children {
		if c.name == "item" && isPlain(c) {
			c = adaptRSSItem(c)
		}
		children[i] = c
	}

	return &Feed{root: channel.withChildren(children), format: FormatRSS}, nil
}

// FromAtom builds an Atom feed wrapping the document root. Each entry gets a
// timestamp from its updated field.
//
// The root and every entry are namespace-flattened like RSS channels and
// items, so extensions such as media:thumbnail appear as extra prefix:local
// fields in Get and in the projection.
func FromAtom(root *Element) (*Feed, error) {
	uris := documentNamespaces(root)
	if !uris[AtomNamespace] && !uris[LegacyAtomNamespace] {
		return nil, fmt.Errorf("%w: no Atom namespace declared in <%s>", ErrInvalid, root.name)
	}

	root = flattenNamespaces(root)

	children := make([]*Element, len(root.children))
	for i, c := range root.children {
		if c.name == "entry" && isPlain(c) {
			c = flattenNamespaces(c)
			if t, ok := normalizeAtomDate(c); ok {
				c = withTimestamp(c, t.Unix())
			}
		}
		children[i] = c
	}

	return &Feed{root: root.withChildren(children), format: FormatAtom}, nil
}

func adaptRSSItem(item *Element) *Element {
	item = flattenNamespaces(item)

	if t, ok := normalizeDate(item); ok {
		item = withTimestamp(item, t.Unix())
	}

	if abstract, ok := item.Child("abstract"); ok {
		if _, ok := item.Child("description"); !ok {
			item = item.withField("description", abstract)
		}
	}

	return item
}

func withTimestamp(el *Element, unix int64) *Element {
	return el.withField(timestampField, textElement(timestampField, strconv.FormatInt(unix, 10), el.namespaces))
}
