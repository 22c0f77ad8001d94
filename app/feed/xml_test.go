package feed

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseXMLTree(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Example</title>
    <item>
      <title>First</title>
      <dc:creator>Alice</dc:creator>
      <enclosure url="http://example.com/a.mp3" length="42" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`

	root, err := ParseXML([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "rss", root.Name())
	version, ok := root.Attr("version")
	assert.True(t, ok)
	assert.Equal(t, "2.0", version)
	assert.Equal(t, "http://purl.org/dc/elements/1.1/", root.Namespaces()["dc"])

	channel, ok := root.Child("channel")
	require.True(t, ok)
	title, ok := channel.Child("title")
	require.True(t, ok)
	assert.Equal(t, "Example", title.Text())

	item, ok := channel.Child("item")
	require.True(t, ok)

	_, ok = item.Child("creator")
	assert.False(t, ok, "namespaced child must not be reachable by its bare name")

	var creator *Element
	for _, c := range item.Children() {
		if c.Name() == "creator" {
			creator = c
		}
	}
	require.NotNil(t, creator)
	assert.Equal(t, "http://purl.org/dc/elements/1.1/", creator.Space())
	assert.Equal(t, "Alice", creator.Text())

	enclosure, ok := item.Child("enclosure")
	require.True(t, ok)
	assert.True(t, enclosure.IsLeaf())
	assert.Equal(t, []Attr{
		{Name: "url", Value: "http://example.com/a.mp3"},
		{Name: "length", Value: "42"},
		{Name: "type", Value: "audio/mpeg"},
	}, enclosure.Attrs())
}

func TestParseXMLNamespaceScope(t *testing.T) {
	doc := `<feed xmlns="http://www.w3.org/2005/Atom">
  <entry xmlns:media="http://search.yahoo.com/mrss/">
    <title>Entry</title>
    <media:thumbnail url="http://example.com/t.png"/>
  </entry>
  <link href="http://example.com/" xml:lang="en"/>
</feed>`

	root, err := ParseXML([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "http://www.w3.org/2005/Atom", root.Space())
	assert.Equal(t, map[string]string{"": "http://www.w3.org/2005/Atom"}, root.Namespaces())

	entry, ok := root.Child("entry")
	require.True(t, ok, "default namespace children are plain")
	assert.Equal(t, "http://search.yahoo.com/mrss/", entry.Namespaces()["media"])

	link, ok := root.Child("link")
	require.True(t, ok)
	_, ok = link.Namespaces()["media"]
	assert.False(t, ok, "declarations must not leak to siblings")
	lang, ok := link.Attr("xml:lang")
	assert.True(t, ok)
	assert.Equal(t, "en", lang)
}

func TestParseXMLUndeclaredPrefix(t *testing.T) {
	doc := `<rss><channel><item><dc:date>2024-01-01T00:00:00Z</dc:date></item></channel></rss>`

	root, err := ParseXML([]byte(doc))
	require.NoError(t, err)

	channel, _ := root.Child("channel")
	item, _ := channel.Child("item")
	date, ok := item.Child("dc:date")
	require.True(t, ok)
	assert.Equal(t, "", date.Space())
	assert.Equal(t, "2024-01-01T00:00:00Z", date.Text())
}

func TestParseXMLCDATAAndEntities(t *testing.T) {
	doc := `<rss><channel><description><![CDATA[<p>Hello</p>]]></description><title>A &amp; B &nbsp;</title></channel></rss>`

	root, err := ParseXML([]byte(doc))
	require.NoError(t, err)

	channel, _ := root.Child("channel")
	description, _ := channel.Child("description")
	assert.Equal(t, "<p>Hello</p>", description.Text())

	title, _ := channel.Child("title")
	assert.Contains(t, title.Text(), "A & B")
}

func TestParseXMLCharset(t *testing.T) {
	// "café" in ISO-8859-1
	doc := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><rss><channel><title>caf`), 0xe9)
	doc = append(doc, []byte(`</title></channel></rss>`)...)

	root, err := ParseXML(doc)
	require.NoError(t, err)

	channel, _ := root.Child("channel")
	title, _ := channel.Child("title")
	assert.Equal(t, "café", title.Text())
}

func TestParseXMLErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not xml", "this is not a feed"},
		{"unclosed", "<rss><channel>"},
		{"unknown charset", `<?xml version="1.0" encoding="x-unknown-charset"?><rss/>`},
		{"mismatched closing tag", "<a><b></a>"},
		{"mismatched prefix", `<rss xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:date></date></rss>`},
		{"stray closing tag", "<a></a></b>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseXML([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParseFailed), "expected ErrParseFailed, got %v", err)
		})
	}
}

func TestParseMismatchedTagsAreParseFailures(t *testing.T) {
	_, err := Parse([]byte("<a><b></a>"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParseFailed), "expected ErrParseFailed, got %v", err)
	assert.False(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "</a> does not match <b>")
}
