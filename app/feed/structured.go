package feed

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is the projected form of an element with children. Keys keep the
// order in which tag names first appear.
type Object = orderedmap.OrderedMap[string, any]

// ToStructured projects an element into strings, *Object values and []any
// lists. Without an argument the feed element itself is projected.
//
// A tag appearing once under a parent becomes a single value, a tag
// appearing more than once becomes a list, at every level of the tree.
func (f *Feed) ToStructured(el ...*Element) any {
	target := f.root
	if len(el) > 0 && el[0] != nil {
		target = el[0]
	}
	return project(target)
}

func project(el *Element) any {
	children := el.plainChildren()
	if len(children) == 0 {
		return el.text
	}

	counts := make(map[string]int, len(children))
	for _, c := range children {
		counts[c.name]++
	}

	obj := orderedmap.New[string, any](orderedmap.WithCapacity[string, any](len(counts)))
	for _, c := range children {
		value := project(c)
		if counts[c.name] == 1 {
			obj.Set(c.name, value)
			continue
		}
		list, _ := obj.Get(c.name)
		items, _ := list.([]any)
		obj.Set(c.name, append(items, value))
	}
	return obj
}
