package feed

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

func rssItem(el *Element) Item {
	link := childText(el, "link")
	item := Item{
		GUID:        cmp.Or(childText(el, "guid"), link),
		Title:       childText(el, "title"),
		Link:        link,
		Description: childText(el, "description"),
		Content:     childText(el, "content:encoded"),
	}

	for _, name := range []string{"author", "dc:creator"} {
		for _, a := range el.ChildrenNamed(name) {
			if author := strings.TrimSpace(a.Text()); author != "" {
				item.Authors = append(item.Authors, author)
			}
		}
	}

	for _, name := range []string{"category", "dc:subject"} {
		for _, c := range el.ChildrenNamed(name) {
			if category := strings.TrimSpace(c.Text()); category != "" {
				item.Categories = append(item.Categories, category)
			}
		}
	}

	if enclosure, ok := el.Child("enclosure"); ok {
		item.EnclosureURL, _ = enclosure.Attr("url")
		item.EnclosureType, _ = enclosure.Attr("type")
		if length, ok := enclosure.Attr("length"); ok {
			item.EnclosureLength, _ = strconv.ParseInt(strings.TrimSpace(length), 10, 64)
		}
	}

	return item
}

func atomItem(el *Element) Item {
	link := atomLink(el, "alternate")
	item := Item{
		GUID:        cmp.Or(childText(el, "id"), link),
		Title:       childText(el, "title"),
		Link:        link,
		Description: childText(el, "summary"),
		Content:     childText(el, "content"),
	}

	for _, a := range el.ChildrenNamed("author") {
		if author := formatAuthor(childText(a, "name"), childText(a, "email")); author != "" {
			item.Authors = append(item.Authors, author)
		}
	}

	for _, c := range el.ChildrenNamed("category") {
		term, _ := c.Attr("term")
		if category := strings.TrimSpace(term); category != "" {
			item.Categories = append(item.Categories, category)
		}
	}

	for _, l := range el.ChildrenNamed("link") {
		if rel, _ := l.Attr("rel"); rel != "enclosure" {
			continue
		}
		item.EnclosureURL, _ = l.Attr("href")
		item.EnclosureType, _ = l.Attr("type")
		if length, ok := l.Attr("length"); ok {
			item.EnclosureLength, _ = strconv.ParseInt(strings.TrimSpace(length), 10, 64)
		}
		break
	}

	return item
}

// atomLink returns the href of the first link with the given rel. A link
// without rel counts as alternate. Falls back to the first link with an href.
func atomLink(el *Element, rel string) string {
	var fallback string
	for _, l := range el.ChildrenNamed("link") {
		href, ok := l.Attr("href")
		if !ok {
			continue
		}
		linkRel, _ := l.Attr("rel")
		if linkRel == rel || (linkRel == "" && rel == "alternate") {
			return strings.TrimSpace(href)
		}
		if fallback == "" {
			fallback = strings.TrimSpace(href)
		}
	}
	return fallback
}

func childText(el *Element, name string) string {
	c, ok := el.Child(name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(c.Text())
}

func formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", email, name)
	} else if name != "" {
		return name
	} else if email != "" {
		return email
	}

	return ""
}
