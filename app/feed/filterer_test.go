package feed

import (
	"strings"
	"testing"
	"time"
)

func TestFilterer_Run(t *testing.T) {
	items := []Item{
		{Title: "Breaking News: Important Update", Description: "News", Authors: []string{"john@example.com"}, Categories: []string{"Politics"}},
		{Title: "Sports Update", Description: "Spam inside", Authors: []string{"jane@example.com"}, Categories: []string{"Sports"}},
		{Title: "Weather Report", Description: "Sunny", Categories: []string{"Weather", "Local"}},
	}

	tests := []struct {
		name     string
		filters  []ConfigFilter
		filtered []bool
	}{
		{
			name:     "no filters",
			filters:  nil,
			filtered: []bool{false, false, false},
		},
		{
			name:     "title include",
			filters:  []ConfigFilter{{Field: "title", Includes: []string{"news", "update"}}},
			filtered: []bool{false, false, true},
		},
		{
			name:     "title exclude",
			filters:  []ConfigFilter{{Field: "title", Excludes: []string{"sports"}}},
			filtered: []bool{false, true, false},
		},
		{
			name:     "include and exclude",
			filters:  []ConfigFilter{{Field: "title", Includes: []string{"update"}, Excludes: []string{"sports"}}},
			filtered: []bool{false, true, true},
		},
		{
			name: "multiple fields",
			filters: []ConfigFilter{
				{Field: "title", Includes: []string{"update", "report"}},
				{Field: "description", Excludes: []string{"spam"}},
			},
			filtered: []bool{false, true, false},
		},
		{
			name:     "authors",
			filters:  []ConfigFilter{{Field: "authors", Includes: []string{"JOHN"}}},
			filtered: []bool{false, true, true},
		},
		{
			name:     "categories",
			filters:  []ConfigFilter{{Field: "categories", Includes: []string{"local"}}},
			filtered: []bool{true, true, false},
		},
		{
			name:     "unknown field",
			filters:  []ConfigFilter{{Field: "unknown_field", Includes: []string{"news"}}},
			filtered: []bool{true, true, true},
		},
	}

	filterer := NewFilterer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := filterer.Run(items, &Config{Filters: tt.filters})
			if len(result) != len(items) {
				t.Fatalf("Expected %d items, got %d", len(items), len(result))
			}
			for i, item := range result {
				if item.IsFiltered != tt.filtered[i] {
					t.Errorf("Item %d: expected filtered=%v, got %v (%s)", i, tt.filtered[i], item.IsFiltered, item.FilterReason)
				}
				if !item.IsFiltered && item.FilterReason != "" {
					t.Errorf("Item %d: expected empty filter reason, got '%s'", i, item.FilterReason)
				}
			}
		})
	}
}

func TestFilterer_FilterReason(t *testing.T) {
	filterer := NewFilterer()
	items := []Item{{Title: "Sports Update"}, {Title: "Weather"}}

	result := filterer.Run(items, &Config{Filters: []ConfigFilter{
		{Field: "title", Includes: []string{"update"}, Excludes: []string{"sports"}},
	}})

	if !strings.Contains(result[0].FilterReason, "contains 'sports'") {
		t.Errorf("Unexpected reason for excluded item: %s", result[0].FilterReason)
	}
	if !strings.Contains(result[1].FilterReason, "does not contain any of") {
		t.Errorf("Unexpected reason for unmatched item: %s", result[1].FilterReason)
	}
}

func TestFilterer_NamespacedField(t *testing.T) {
	_, _, items, err := NewParser().Run([]byte(`<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>T</title>
  <item><title>One</title><dc:subject>golang</dc:subject><dc:subject>xml</dc:subject></item>
  <item><title>Two</title><dc:subject>rust</dc:subject></item>
  <item><title>Three</title></item>
</channel>
</rss>`), FormatRSS)
	if err != nil {
		t.Fatal(err)
	}

	result := NewFilterer().Run(items, &Config{Filters: []ConfigFilter{
		{Field: "dc:subject", Includes: []string{"XML", "rust"}},
	}})

	expected := []bool{false, false, true}
	for i, item := range result {
		if item.IsFiltered != expected[i] {
			t.Errorf("Item %d: expected filtered=%v, got %v", i, expected[i], item.IsFiltered)
		}
	}
}

func TestFilterer_PreservesOriginalData(t *testing.T) {
	published := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	items := []Item{{
		GUID:        "test-guid-1",
		Title:       "Test Article",
		Link:        "https://example.com/1",
		Content:     "Test content",
		PublishedAt: &published,
		Raw:         []byte(`{"title":"Test Article"}`),
		ContentHash: "hash123",
	}}

	result := NewFilterer().Run(items, &Config{Filters: []ConfigFilter{{Field: "title", Includes: []string{"test"}}}})

	item := result[0]
	if item.GUID != "test-guid-1" || item.Link != "https://example.com/1" || item.Content != "Test content" {
		t.Errorf("Item fields not preserved: %+v", item)
	}
	if item.PublishedAt == nil || !item.PublishedAt.Equal(published) {
		t.Errorf("PublishedAt not preserved")
	}
	if string(item.Raw) != `{"title":"Test Article"}` || item.ContentHash != "hash123" {
		t.Errorf("Raw projection or hash not preserved")
	}
	if item.IsFiltered {
		t.Errorf("Item should not be filtered")
	}
}

func TestFilterer_MatchesFilter(t *testing.T) {
	filterer := NewFilterer()

	tests := []struct {
		value    string
		pattern  string
		expected bool
	}{
		{"Hello World", "hello", true},
		{"Hello World", "WORLD", true},
		{"Hello World", "xyz", false},
		{"", "test", false},
		{"test", "", true},
	}

	for _, test := range tests {
		if result := filterer.matchesFilter(test.value, test.pattern); result != test.expected {
			t.Errorf("matchesFilter('%s', '%s'): expected %v, got %v", test.value, test.pattern, test.expected, result)
		}
	}
}

func TestIsNamespacedField(t *testing.T) {
	for field, expected := range map[string]bool{
		"dc:subject": true,
		"title":      false,
		":local":     false,
		"dc:":        false,
	} {
		if got := isNamespacedField(field); got != expected {
			t.Errorf("isNamespacedField(%q): expected %v, got %v", field, expected, got)
		}
	}
}
