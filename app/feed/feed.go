package feed

type Format string

const (
	FormatAuto Format = "auto"
	FormatRSS  Format = "rss"
	FormatAtom Format = "atom"
)

// Feed is the read-only view over a normalized RSS channel or Atom feed
// element. It is safe for concurrent use.
type Feed struct {
	root   *Element
	format Format
}

func (f *Feed) Format() Format {
	return f.format
}

// Root returns the channel element for RSS and the document root for Atom.
func (f *Feed) Root() *Element {
	return f.root
}

// Get returns the first child of the feed element with the given name.
func (f *Feed) Get(name string) (*Element, bool) {
	return f.root.Child(name)
}

// Set always fails: feeds can only be shaped by the loading pipeline.
func (f *Feed) Set(name string, value any) error {
	return &ReadOnlyError{Field: name}
}

// Items returns the item elements of an RSS feed or the entry elements of an
// Atom feed, in document order.
func (f *Feed) Items() []*Element {
	if f.format == FormatAtom {
		return f.root.ChildrenNamed("entry")
	}
	return f.root.ChildrenNamed("item")
}
