package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var _ FeedRepository = (*FeedStore)(nil)

// FeedStore handles database operations for feeds
type FeedStore struct {
	db *DB
}

func NewFeedStore(db *DB) *FeedStore {
	return &FeedStore{db: db}
}

const feedColumns = `id, name, feed_url, format, link, title, description, image_url, language,
	feed_published_at, last_fetched_at, next_fetch_at, last_error, created_at, updated_at`

func scanFeed(row interface{ Scan(...any) error }) (*Feed, error) {
	var feed Feed
	var published sql.NullInt64
	var lastFetched, nextFetch sql.NullTime

	err := row.Scan(
		&feed.ID, &feed.Name, &feed.FeedURL, &feed.Format, &feed.Link, &feed.Title,
		&feed.Description, &feed.ImageURL, &feed.Language,
		&published, &lastFetched, &nextFetch, &feed.LastError,
		&feed.CreatedAt, &feed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	feed.FeedPublishedAt = fromUnix(published)
	feed.LastFetchedAt = nullTime(lastFetched)
	feed.NextFetchAt = nullTime(nextFetch)

	return &feed, nil
}

// GetFeed returns nil without an error when the feed is unknown
func (r *FeedStore) GetFeed(feedName string) (*Feed, error) {
	row := r.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE name = ?`, feedName)

	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return feed, nil
}

func (r *FeedStore) GetFeeds() ([]Feed, error) {
	rows, err := r.db.Query(`SELECT ` + feedColumns + ` FROM feeds ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *FeedStore) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

// UpsertFeed registers a configured feed. A changed URL or format resets
// the next fetch time so the feed is processed on the next tick.
func (r *FeedStore) UpsertFeed(feedName, feedURL, format string) error {
	now := time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO feeds (name, feed_url, format, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			next_fetch_at = CASE
				WHEN feeds.feed_url != excluded.feed_url OR feeds.format != excluded.format THEN NULL
				ELSE feeds.next_fetch_at
			END,
			feed_url = excluded.feed_url,
			format = excluded.format,
			updated_at = excluded.updated_at
	`, feedName, feedURL, format, now, now)

	if err != nil {
		return fmt.Errorf("failed to upsert feed: %w", err)
	}

	return nil
}

func (r *FeedStore) UpdateFeedMetadata(feedName string, metadata FeedMetadata, nextFetch time.Time) error {
	now := time.Now().UTC()

	result, err := r.db.Exec(`
		UPDATE feeds
		SET title = ?, link = ?, description = ?, image_url = ?, language = ?,
		    feed_published_at = ?, last_fetched_at = ?, next_fetch_at = ?,
		    last_error = '', updated_at = ?
		WHERE name = ?
	`, metadata.Title, metadata.Link, metadata.Description, metadata.ImageURL, metadata.Language,
		toUnix(metadata.FeedPublishedAt), now, nextFetch.UTC(), now, feedName)

	if err != nil {
		return fmt.Errorf("failed to update feed metadata: %w", err)
	}

	return requireAffected(result, feedName)
}

// MarkFetchFailed records a failed fetch and pushes the next attempt out so
// a broken feed does not get picked up on every scheduler tick.
func (r *FeedStore) MarkFetchFailed(feedName string, reason string, nextFetch time.Time) error {
	now := time.Now().UTC()

	result, err := r.db.Exec(`
		UPDATE feeds
		SET last_fetched_at = ?, next_fetch_at = ?, last_error = ?
		WHERE name = ?
	`, now, nextFetch.UTC(), reason, feedName)

	if err != nil {
		return fmt.Errorf("failed to mark feed fetch failure: %w", err)
	}

	return requireAffected(result, feedName)
}

func requireAffected(result sql.Result, feedName string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("feed not found: %s", feedName)
	}
	return nil
}

func toUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func fromUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
