package feed

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func toJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestToStructuredCardinality(t *testing.T) {
	doc := `<rss><channel>
<title>Channel</title>
<link>http://example.com/</link>
<item><title>A</title><category>x</category></item>
<item><title>B</title><category>y</category><category>z</category></item>
<item><title>C</title></item>
</channel></rss>`

	f, err := ParseRSS([]byte(doc))
	require.NoError(t, err)

	obj, ok := f.ToStructured().(*Object)
	require.True(t, ok)

	title, _ := obj.Get("title")
	assert.Equal(t, "Channel", title)

	items, _ := obj.Get("item")
	list, ok := items.([]any)
	require.True(t, ok, "a repeated tag projects to a list")
	require.Len(t, list, 3)

	first := list[0].(*Object)
	category, _ := first.Get("category")
	assert.Equal(t, "x", category, "a single tag projects to a scalar")

	second := list[1].(*Object)
	categories, _ := second.Get("category")
	assert.Equal(t, []any{"y", "z"}, categories)

	third := list[2].(*Object)
	_, ok = third.Get("category")
	assert.False(t, ok)
}

func TestToStructuredKeyOrder(t *testing.T) {
	doc := `<rss><channel>
<title>T</title>
<item><title>1</title></item>
<link>L</link>
<item><title>2</title></item>
<description>D</description>
</channel></rss>`

	f, err := ParseRSS([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t,
		`{"title":"T","item":[{"title":"1"},{"title":"2"}],"link":"L","description":"D"}`,
		toJSON(t, f.ToStructured()))
}

func TestToStructuredSubElement(t *testing.T) {
	doc := `<rss><channel><title>T</title><item><title>Only</title><guid>1</guid></item></channel></rss>`

	f, err := ParseRSS([]byte(doc))
	require.NoError(t, err)

	item, ok := f.Get("item")
	require.True(t, ok)
	assert.Equal(t, `{"title":"Only","guid":"1"}`, toJSON(t, f.ToStructured(item)))

	title, _ := item.Child("title")
	assert.Equal(t, "Only", f.ToStructured(title), "a leaf projects to its text")

	assert.Equal(t, toJSON(t, f.ToStructured()), toJSON(t, f.ToStructured(nil)))
}

func TestToStructuredDeterministic(t *testing.T) {
	f, err := Parse([]byte(namespacedItem))
	require.NoError(t, err)

	first := toJSON(t, f.ToStructured())
	for range 5 {
		assert.Equal(t, first, toJSON(t, f.ToStructured()))
	}
}

func TestToStructuredYAML(t *testing.T) {
	doc := `<rss><channel><title>T</title><item><title>one</title></item><item><title>two</title></item></channel></rss>`

	f, err := ParseRSS([]byte(doc))
	require.NoError(t, err)

	out, err := yaml.Marshal(f.ToStructured())
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "title: T")
	assert.Contains(t, text, "- title: two")
	assert.Less(t, strings.Index(text, "title: T"), strings.Index(text, "item:"))
}
