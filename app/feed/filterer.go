package feed

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run marks items rejected by the feed's filters. Items are never dropped;
// a filtered item keeps its data and carries the reason it was rejected.
func (f *Filterer) Run(items []Item, feedConfig *Config) []Item {
	result := make([]Item, 0, len(items))
	for _, item := range items {
		item.IsFiltered, item.FilterReason = f.applyFilters(item, feedConfig.Filters)
		result = append(result, item)
	}

	return result
}

func (f *Filterer) applyFilters(item Item, filters []ConfigFilter) (bool, string) {
	var projected map[string]any

	for _, filter := range filters {
		var value string
		if isNamespacedField(filter.Field) {
			if projected == nil {
				projected = decodeProjection(item.Raw)
			}
			value = projectedText(projected[filter.Field])
		} else {
			value = f.getFieldValue(item, filter.Field)
		}

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) == 0 {
			continue
		}
		matched := false
		for _, include := range filter.Includes {
			if f.matchesFilter(value, include) {
				matched = true
				break
			}
		}
		if !matched {
			return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(item Item, field string) string {
	switch field {
	case "title":
		return item.Title
	case "description":
		return item.Description
	case "content":
		return item.Content
	case "authors":
		return strings.Join(item.Authors, " ")
	case "link":
		return item.Link
	case "categories":
		return strings.Join(item.Categories, " ")
	default:
		return ""
	}
}

// isNamespacedField reports whether field names a flattened prefix:local
// field of the normalized item, such as dc:subject.
func isNamespacedField(field string) bool {
	prefix, local, ok := strings.Cut(field, ":")
	return ok && prefix != "" && local != ""
}

func decodeProjection(raw []byte) map[string]any {
	projected := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &projected)
	}
	return projected
}

// projectedText flattens a projected value into searchable text. Leaves
// are strings, repeated fields are lists and sub-elements are objects.
func projectedText(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, e := range v {
			parts = append(parts, projectedText(e))
		}
		return strings.Join(parts, " ")
	case map[string]any:
		parts := make([]string, 0, len(v))
		for _, e := range v {
			parts = append(parts, projectedText(e))
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}
