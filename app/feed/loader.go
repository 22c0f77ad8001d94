package feed

import (
	"bytes"
	"context"
	"fmt"

	"github.com/lysyi3m/rss-tree/app/fetcher"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Fetcher retrieves the raw body of a feed document.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts fetcher.Options) ([]byte, error)
}

var _ Fetcher = (*fetcher.Client)(nil)

type Loader struct {
	fetcher Fetcher
}

func NewLoader(f Fetcher) *Loader {
	return &Loader{fetcher: f}
}

// Load fetches a feed and detects whether it is RSS or Atom.
func (l *Loader) Load(ctx context.Context, url string, opts fetcher.Options) (*Feed, error) {
	return l.LoadFormat(ctx, url, FormatAuto, opts)
}

func (l *Loader) LoadRSS(ctx context.Context, url string, opts fetcher.Options) (*Feed, error) {
	return l.LoadFormat(ctx, url, FormatRSS, opts)
}

func (l *Loader) LoadAtom(ctx context.Context, url string, opts fetcher.Options) (*Feed, error) {
	return l.LoadFormat(ctx, url, FormatAtom, opts)
}

func (l *Loader) LoadFormat(ctx context.Context, url string, format Format, opts fetcher.Options) (*Feed, error) {
	data, err := l.fetcher.Fetch(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return ParseFormat(data, format)
}

func Parse(data []byte) (*Feed, error) {
	return ParseFormat(data, FormatAuto)
}

func ParseRSS(data []byte) (*Feed, error) {
	return ParseFormat(data, FormatRSS)
}

func ParseAtom(data []byte) (*Feed, error) {
	return ParseFormat(data, FormatAtom)
}

// ParseFormat builds a Feed from a raw document body. An empty or
// whitespace-only body is reported as ErrLoadFailed.
func ParseFormat(data []byte, format Format) (*Feed, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty response body", ErrLoadFailed)
	}

	root, err := ParseXML(data)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatRSS:
		return FromRSS(root)
	case FormatAtom:
		return FromAtom(root)
	case FormatAuto, "":
		return Classify(root)
	default:
		return nil, fmt.Errorf("unknown feed format %q", format)
	}
}
