package feed

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run normalizes a raw feed document and extracts its metadata and items.
// Items are read from the normalized tree; gofeed only contributes the
// channel level metadata, which the tree is used for when gofeed fails.
func (p *Parser) Run(data []byte, format Format) (*Feed, *Metadata, []Item, error) {
	f, err := ParseFormat(data, format)
	if err != nil {
		return nil, nil, nil, err
	}

	metadata, err := p.parseMetadata(data)
	if err != nil {
		slog.Debug("Falling back to normalized tree for metadata", "error", err)
		metadata = metadataFromTree(f)
	}

	elements := f.Items()
	items := make([]Item, 0, len(elements))
	for _, el := range elements {
		item, err := p.extractItem(f, el)
		if err != nil {
			return nil, nil, nil, err
		}
		items = append(items, item)
	}

	return f, metadata, items, nil
}

func (p *Parser) parseMetadata(data []byte) (*Metadata, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed metadata: %w", err)
	}

	metadata := &Metadata{
		Title:           parsed.Title,
		Link:            parsed.Link,
		Description:     parsed.Description,
		Language:        parsed.Language,
		FeedPublishedAt: parsed.PublishedParsed,
	}
	if parsed.Image != nil {
		metadata.ImageURL = parsed.Image.URL
	}
	if metadata.FeedPublishedAt == nil {
		metadata.FeedPublishedAt = parsed.UpdatedParsed
	}

	return metadata, nil
}

func metadataFromTree(f *Feed) *Metadata {
	root := f.Root()
	metadata := &Metadata{
		Title:    childText(root, "title"),
		Language: childText(root, "language"),
	}

	if f.Format() == FormatAtom {
		metadata.Link = atomLink(root, "alternate")
		metadata.Description = childText(root, "subtitle")
		metadata.ImageURL = cmp.Or(childText(root, "logo"), childText(root, "icon"))
		if t, ok := parseISO8601(childText(root, "updated")); ok {
			metadata.FeedPublishedAt = &t
		}
		return metadata
	}

	metadata.Link = childText(root, "link")
	metadata.Description = childText(root, "description")
	if metadata.Language == "" {
		metadata.Language = childText(root, "dc:language")
	}
	if image, ok := root.Child("image"); ok {
		metadata.ImageURL = childText(image, "url")
	}
	if t, ok := parseRFC822(childText(root, "pubDate")); ok {
		metadata.FeedPublishedAt = &t
	}
	return metadata
}

func (p *Parser) extractItem(f *Feed, el *Element) (Item, error) {
	var item Item
	if f.Format() == FormatAtom {
		item = atomItem(el)
	} else {
		item = rssItem(el)
	}

	if ts, ok := el.Timestamp(); ok {
		item.PublishedAt = &ts
	}

	raw, err := json.Marshal(f.ToStructured(el))
	if err != nil {
		return Item{}, fmt.Errorf("failed to encode item projection: %w", err)
	}
	item.Raw = raw
	item.ContentHash = p.generateContentHash(item)

	return item, nil
}

func (p *Parser) generateContentHash(item Item) string {
	content := fmt.Sprintf("%s|%s",
		item.Title,
		item.Link)

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
