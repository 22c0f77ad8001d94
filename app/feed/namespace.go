package feed

import (
	"maps"
	"slices"
)

// flattenNamespaces returns a copy of el where every namespaced child is also
// exposed as a plain sibling named "prefix:local". When several children
// produce the same name, the last one wins. Only direct children are
// considered; the subtree below them is copied as is.
func flattenNamespaces(el *Element) *Element {
	out := el
	for _, c := range el.children {
		if isPlain(c) {
			continue
		}
		for _, prefix := range prefixesFor(c) {
			out = out.withField(prefix+":"+c.name, c)
		}
	}
	return out
}

// prefixesFor lists the non-empty prefixes bound to c's namespace in the
// scope of c, which includes any declaration made on c itself.
func prefixesFor(c *Element) []string {
	var prefixes []string
	for _, prefix := range slices.Sorted(maps.Keys(c.namespaces)) {
		if prefix != "" && c.namespaces[prefix] == c.space {
			prefixes = append(prefixes, prefix)
		}
	}
	return prefixes
}

// documentNamespaces collects every namespace URI declared anywhere in the tree.
func documentNamespaces(root *Element) map[string]bool {
	uris := map[string]bool{}
	var walk func(*Element)
	walk = func(e *Element) {
		for _, uri := range e.namespaces {
			uris[uri] = true
		}
		for _, c := range e.children {
			walk(c)
		}
	}
	walk(root)
	return uris
}
