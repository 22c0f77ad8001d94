package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var _ ItemRepository = (*ItemStore)(nil)

// ItemStore handles database operations for feed items
type ItemStore struct {
	db *DB
}

func NewItemStore(db *DB) *ItemStore {
	return &ItemStore{db: db}
}

const itemColumns = `id, feed_name, guid, link, title, description, content, published_at,
	authors, categories, raw, is_filtered, filter_reason, content_hash,
	enclosure_url, enclosure_length, enclosure_type,
	content_extraction_status, content_extraction_error, content_extracted_at,
	extraction_attempts, created_at`

func scanItem(row interface{ Scan(...any) error }) (*Item, error) {
	var item Item
	var published sql.NullInt64
	var extractedAt sql.NullTime
	var authors, categories, raw string

	err := row.Scan(
		&item.ID, &item.FeedName, &item.GUID, &item.Link, &item.Title,
		&item.Description, &item.Content, &published,
		&authors, &categories, &raw, &item.IsFiltered, &item.FilterReason, &item.ContentHash,
		&item.EnclosureURL, &item.EnclosureLength, &item.EnclosureType,
		&item.ContentExtractionStatus, &item.ContentExtractionError, &extractedAt,
		&item.ExtractionAttempts, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(authors), &item.Authors); err != nil {
		return nil, fmt.Errorf("failed to decode authors: %w", err)
	}
	if err := json.Unmarshal([]byte(categories), &item.Categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	item.Raw = json.RawMessage(raw)
	item.PublishedAt = fromUnix(published)
	item.ContentExtractedAt = nullTime(extractedAt)

	return &item, nil
}

func (r *ItemStore) queryItems(query string, args ...any) ([]Item, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

// GetVisibleItems returns non-filtered items, newest first. Items without a
// publication date sort after dated ones.
func (r *ItemStore) GetVisibleItems(feedName string, limit int) ([]Item, error) {
	items, err := r.queryItems(`
		SELECT `+itemColumns+`
		FROM items
		WHERE feed_name = ? AND is_filtered = 0
		ORDER BY published_at DESC, id DESC
		LIMIT ?
	`, feedName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get visible items: %w", err)
	}
	return items, nil
}

// GetAllItems returns all items for a feed, including filtered ones
func (r *ItemStore) GetAllItems(feedName string) ([]Item, error) {
	items, err := r.queryItems(`
		SELECT `+itemColumns+`
		FROM items
		WHERE feed_name = ?
		ORDER BY published_at DESC, id DESC
	`, feedName)
	if err != nil {
		return nil, fmt.Errorf("failed to get all items: %w", err)
	}
	return items, nil
}

func (r *ItemStore) GetItemCount(feedName string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM items WHERE feed_name = ?", feedName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

// GetItemStats returns the total, visible and filtered item counts
func (r *ItemStore) GetItemStats(feedName string) (int, int, int, error) {
	var total, visible, filtered int
	err := r.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_filtered = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_filtered = 1 THEN 1 ELSE 0 END), 0)
		FROM items
		WHERE feed_name = ?
	`, feedName).Scan(&total, &visible, &filtered)

	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get item stats: %w", err)
	}

	return total, visible, filtered, nil
}

// UpsertItem stores an item keyed by (feed, guid). An updated item keeps
// its extracted content and extraction state.
func (r *ItemStore) UpsertItem(feedName string, item FeedItem) error {
	authors, err := json.Marshal(nonNil(item.Authors))
	if err != nil {
		return fmt.Errorf("failed to encode authors: %w", err)
	}
	categories, err := json.Marshal(nonNil(item.Categories))
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}
	raw := string(item.Raw)
	if raw == "" {
		raw = "{}"
	}

	_, err = r.db.Exec(`
		INSERT INTO items (
			feed_name, guid, link, title, description, content, published_at,
			authors, categories, raw, is_filtered, filter_reason, content_hash,
			enclosure_url, enclosure_length, enclosure_type, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (feed_name, guid) DO UPDATE SET
			link = excluded.link,
			title = excluded.title,
			description = excluded.description,
			content = CASE WHEN items.content_extraction_status = 'success' THEN items.content ELSE excluded.content END,
			published_at = excluded.published_at,
			authors = excluded.authors,
			categories = excluded.categories,
			raw = excluded.raw,
			is_filtered = excluded.is_filtered,
			filter_reason = excluded.filter_reason,
			content_hash = excluded.content_hash,
			enclosure_url = excluded.enclosure_url,
			enclosure_length = excluded.enclosure_length,
			enclosure_type = excluded.enclosure_type
	`, feedName, item.GUID, item.Link, item.Title, item.Description, item.Content, toUnix(item.PublishedAt),
		string(authors), string(categories), raw, item.IsFiltered, item.FilterReason, item.ContentHash,
		item.EnclosureURL, item.EnclosureLength, item.EnclosureType, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}

	return nil
}

func (r *ItemStore) UpdateItemFilterStatus(itemID int64, isFiltered bool, reason string) error {
	_, err := r.db.Exec(`
		UPDATE items
		SET is_filtered = ?, filter_reason = ?
		WHERE id = ?
	`, isFiltered, reason, itemID)

	if err != nil {
		return fmt.Errorf("failed to update item filter status: %w", err)
	}

	return nil
}

// CheckDuplicate reports whether the feed already holds an item with the
// given content hash, and returns its ID when it does.
func (r *ItemStore) CheckDuplicate(contentHash, feedName string) (bool, *int64, error) {
	var id int64
	err := r.db.QueryRow(`
		SELECT id FROM items WHERE feed_name = ? AND content_hash = ? LIMIT 1
	`, feedName, contentHash).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("failed to check duplicate: %w", err)
	}

	return true, &id, nil
}

// GetItemsForExtraction returns visible items with a link whose content has
// not been extracted yet, including failed ones below the attempt limit.
func (r *ItemStore) GetItemsForExtraction(feedName string, limit int) ([]ItemForExtraction, error) {
	rows, err := r.db.Query(`
		SELECT id, link
		FROM items
		WHERE feed_name = ?
		  AND is_filtered = 0
		  AND link != ''
		  AND (content_extraction_status = ?
		       OR (content_extraction_status = ? AND extraction_attempts < ?))
		ORDER BY published_at DESC, id DESC
		LIMIT ?
	`, feedName, ExtractionPending, ExtractionFailed, MaxExtractionAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get items for extraction: %w", err)
	}
	defer rows.Close()

	var items []ItemForExtraction
	for rows.Next() {
		var item ItemForExtraction
		if err := rows.Scan(&item.ID, &item.Link); err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

func (r *ItemStore) UpdateExtractionStatus(itemID int64, status string, extractedAt *time.Time, errorMsg string) error {
	_, err := r.db.Exec(`
		UPDATE items
		SET content_extraction_status = ?, content_extracted_at = ?, content_extraction_error = ?,
		    extraction_attempts = extraction_attempts + 1
		WHERE id = ?
	`, status, extractedAt, errorMsg, itemID)

	if err != nil {
		return fmt.Errorf("failed to update extraction status: %w", err)
	}

	return nil
}

func (r *ItemStore) UpdateExtractedContentAndStatus(itemID int64, content string, status string, extractedAt *time.Time, errorMsg string) error {
	_, err := r.db.Exec(`
		UPDATE items
		SET content = ?, content_extraction_status = ?, content_extracted_at = ?, content_extraction_error = ?,
		    extraction_attempts = extraction_attempts + 1
		WHERE id = ?
	`, content, status, extractedAt, errorMsg, itemID)

	if err != nil {
		return fmt.Errorf("failed to update extracted content: %w", err)
	}

	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
