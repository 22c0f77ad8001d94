package feed

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var rfc822Layouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04 MST",
	"Mon, 02 Jan 2006 15:04 -0700",
	"Mon, 2 Jan 2006 15:04 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"02 Jan 2006 15:04:05 MST",
	"02 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04:05",
	"Mon, 2 Jan 2006 15:04:05",
	time.RFC822,
	time.RFC822Z,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
	time.RFC3339,
	time.RFC3339Nano,
}

// rfc822Zones holds the North American zone names of RFC 822 section 5.
var rfc822Zones = map[string]int{
	"EST": -5, "EDT": -4,
	"CST": -6, "CDT": -5,
	"MST": -7, "MDT": -6,
	"PST": -8, "PDT": -7,
}

// normalizeDate derives the canonical timestamp of an RSS item.
// dc:date takes precedence over pubDate.
func normalizeDate(item *Element) (time.Time, bool) {
	if el, ok := item.Child("dc:date"); ok {
		if t, ok := parseISO8601(el.text); ok {
			return t, true
		}
	}

	el, ok := item.Child("pubDate")
	if !ok {
		return time.Time{}, false
	}

	value := strings.ReplaceAll(el.text, "Pubdate:", "")
	if t, ok := parseCalendar(value); ok {
		return t, true
	}

	// Some feeds append PM to a 24-hour time.
	return parseCalendar(strings.ReplaceAll(value, "PM", ""))
}

func parseCalendar(value string) (time.Time, bool) {
	if t, ok := parseRFC822(value); ok {
		return t, true
	}
	return parseLenient(value)
}

// normalizeAtomDate reads the updated field of an Atom entry.
func normalizeAtomDate(entry *Element) (time.Time, bool) {
	el, ok := entry.Child("updated")
	if !ok {
		return time.Time{}, false
	}
	return parseISO8601(el.text)
}

func parseRFC822(value string) (time.Time, bool) {
	value = collapseSpaces(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range rfc822Layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return resolveZone(t), true
		}
	}
	return time.Time{}, false
}

// resolveZone applies the offset of an RFC 822 zone name that time.Parse
// could not resolve from the local zone database and left at UTC.
func resolveZone(t time.Time) time.Time {
	name, offset := t.Zone()
	if offset != 0 {
		return t
	}
	hours, ok := rfc822Zones[strings.ToUpper(name)]
	if !ok {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
		time.FixedZone(name, hours*3600))
}

func parseISO8601(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return parseLenient(value)
}

func parseLenient(value string) (time.Time, bool) {
	value = collapseSpaces(value)
	if value == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return resolveZone(t), true
}

func collapseSpaces(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
