package database

import (
	"encoding/json"
	"time"
)

type Feed struct {
	ID              int64
	Name            string // Configuration feed identifier derived from filename
	FeedURL         string
	Format          string // auto, rss or atom
	Link            string // Homepage URL from the feed's own link
	Title           string
	Description     string
	ImageURL        string
	Language        string
	FeedPublishedAt *time.Time
	LastFetchedAt   *time.Time
	NextFetchAt     *time.Time
	LastError       string // Empty after a successful fetch
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Item struct {
	ID                      int64
	FeedName                string
	GUID                    string
	Link                    string
	Title                   string
	Description             string
	Content                 string
	PublishedAt             *time.Time
	Authors                 []string
	Categories              []string
	Raw                     json.RawMessage // Structured projection of the normalized item
	IsFiltered              bool
	FilterReason            string
	ContentHash             string
	EnclosureURL            string
	EnclosureLength         int64
	EnclosureType           string
	ContentExtractionStatus string // pending, success, failed
	ContentExtractionError  string
	ContentExtractedAt      *time.Time
	ExtractionAttempts      int
	CreatedAt               time.Time
}

const (
	ExtractionPending = "pending"
	ExtractionSuccess = "success"
	ExtractionFailed  = "failed"
)

// MaxExtractionAttempts bounds how often a failed extraction is retried.
const MaxExtractionAttempts = 3
