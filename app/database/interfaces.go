package database

import (
	"time"
)

type FeedItem struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt *time.Time
	Authors     []string // Multiple authors in format "email (name)" or "name"
	Categories  []string
	Raw         []byte

	ContentHash     string
	IsFiltered      bool
	FilterReason    string
	EnclosureURL    string
	EnclosureLength int64
	EnclosureType   string
}

type FeedMetadata struct {
	Title           string
	Link            string
	Description     string
	ImageURL        string
	Language        string
	FeedPublishedAt *time.Time
}

type FeedRepository interface {
	GetFeed(feedName string) (*Feed, error)
	GetFeeds() ([]Feed, error)
	GetFeedCount() (int, error)

	UpsertFeed(feedName, feedURL, format string) error
	UpdateFeedMetadata(feedName string, metadata FeedMetadata, nextFetch time.Time) error
	MarkFetchFailed(feedName string, reason string, nextFetch time.Time) error
}

type ItemForExtraction struct {
	ID   int64
	Link string
}

type ItemRepository interface {
	GetVisibleItems(feedName string, limit int) ([]Item, error)
	GetAllItems(feedName string) ([]Item, error)
	GetItemCount(feedName string) (int, error)
	GetItemStats(feedName string) (int, int, int, error)

	UpsertItem(feedName string, item FeedItem) error
	UpdateItemFilterStatus(itemID int64, isFiltered bool, reason string) error

	CheckDuplicate(contentHash, feedName string) (bool, *int64, error)

	GetItemsForExtraction(feedName string, limit int) ([]ItemForExtraction, error)
	UpdateExtractionStatus(itemID int64, status string, extractedAt *time.Time, errorMsg string) error
	UpdateExtractedContentAndStatus(itemID int64, content string, status string, extractedAt *time.Time, errorMsg string) error
}
