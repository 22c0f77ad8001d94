package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lysyi3m/rss-tree/app/database"
	"github.com/lysyi3m/rss-tree/app/feed"
	"github.com/lysyi3m/rss-tree/app/fetcher"
	"github.com/lysyi3m/rss-tree/app/tasks"
)

type FeedLoader interface {
	LoadFormat(ctx context.Context, url string, format feed.Format, opts fetcher.Options) (*feed.Feed, error)
}

var _ FeedLoader = (*feed.Loader)(nil)

type Handler struct {
	feedRepo    database.FeedRepository
	itemRepo    database.ItemRepository
	configCache *feed.ConfigCache
	filterer    *feed.Filterer
	loader      FeedLoader
	scheduler   tasks.TaskSchedulerInterface
	userAgent   string
	caBundle    string
}

type FeedResponse struct {
	Name        string         `json:"name"`
	Title       string         `json:"title"`
	Link        string         `json:"link"`
	Description string         `json:"description"`
	ImageURL    string         `json:"image_url,omitempty"`
	Language    string         `json:"language,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Items       []ItemResponse `json:"items"`
}

type ItemResponse struct {
	GUID        string          `json:"guid"`
	Title       string          `json:"title"`
	Link        string          `json:"link"`
	Description string          `json:"description,omitempty"`
	Content     string          `json:"content,omitempty"`
	PublishedAt *time.Time      `json:"published_at"`
	Authors     []string        `json:"authors"`
	Categories  []string        `json:"categories"`
	Enclosure   *Enclosure      `json:"enclosure,omitempty"`
	Raw         json.RawMessage `json:"raw"`
}

type Enclosure struct {
	URL    string `json:"url"`
	Length int64  `json:"length"`
	Type   string `json:"type"`
}

func newItemResponse(item database.Item) ItemResponse {
	resp := ItemResponse{
		GUID:        item.GUID,
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Content:     item.Content,
		PublishedAt: item.PublishedAt,
		Authors:     item.Authors,
		Categories:  item.Categories,
		Raw:         item.Raw,
	}
	if item.EnclosureURL != "" {
		resp.Enclosure = &Enclosure{
			URL:    item.EnclosureURL,
			Length: item.EnclosureLength,
			Type:   item.EnclosureType,
		}
	}
	if len(resp.Raw) == 0 {
		resp.Raw = json.RawMessage("{}")
	}
	return resp
}
