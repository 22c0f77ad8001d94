package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-tree/app/database"
	"github.com/lysyi3m/rss-tree/app/feed"
)

type ProcessFeedTask struct {
	Task
	FeedConfig *feed.Config
	fetcher    Fetcher
	parser     *feed.Parser
	filterer   *feed.Filterer
	feedRepo   database.FeedRepository
	itemRepo   database.ItemRepository
	userAgent  string
	caBundle   string
}

func NewProcessFeedTask(feedName string, feedConfig *feed.Config, fetcher Fetcher, parser *feed.Parser, filterer *feed.Filterer, feedRepo database.FeedRepository, itemRepo database.ItemRepository, userAgent, caBundle string) *ProcessFeedTask {
	return &ProcessFeedTask{
		Task:       NewTask(TaskTypeProcessFeed, feedName),
		FeedConfig: feedConfig,
		fetcher:    fetcher,
		parser:     parser,
		filterer:   filterer,
		feedRepo:   feedRepo,
		itemRepo:   itemRepo,
		userAgent:  userAgent,
		caBundle:   caBundle,
	}
}

func (t *ProcessFeedTask) Execute(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	if !t.FeedConfig.Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.FeedName)
		return nil
	}

	data, err := t.fetcher.Fetch(ctx, t.FeedConfig.URL, t.FeedConfig.FetchOptions(t.userAgent, t.caBundle))
	if err != nil {
		t.markFailed(err)
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	parsed, metadata, items, err := t.parser.Run(data, t.FeedConfig.Format)
	if err != nil {
		t.markFailed(err)
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	if err := t.storeFeedMetadata(metadata); err != nil {
		return fmt.Errorf("failed to store feed metadata: %w", err)
	}

	duplicateCount := 0
	filteredCount := 0
	newCount := 0

	var nonDuplicateItems []feed.Item
	for _, item := range items {
		isDuplicate, _, err := t.itemRepo.CheckDuplicate(item.ContentHash, t.FeedName)
		if err != nil {
			return fmt.Errorf("failed to check for duplicates: %w", err)
		}

		if isDuplicate {
			duplicateCount++
			continue
		}
		nonDuplicateItems = append(nonDuplicateItems, item)
	}

	if len(nonDuplicateItems) > 0 {
		filteredItems := t.filterer.Run(nonDuplicateItems, t.FeedConfig)

		for _, item := range filteredItems {
			if item.IsFiltered {
				filteredCount++
			} else {
				newCount++
			}
		}

		if err := t.storeItems(filteredItems); err != nil {
			return fmt.Errorf("failed to store items: %w", err)
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed", t.FeedName,
		"format", parsed.Format(),
		"duration", t.GetDuration(),
		"total", len(items),
		"duplicates", duplicateCount,
		"filtered", filteredCount,
		"new", newCount)

	return nil
}

func (t *ProcessFeedTask) nextFetch() time.Time {
	return time.Now().UTC().Add(time.Duration(t.FeedConfig.Settings.RefreshInterval) * time.Second)
}

func (t *ProcessFeedTask) markFailed(cause error) {
	if err := t.feedRepo.MarkFetchFailed(t.FeedName, cause.Error(), t.nextFetch()); err != nil {
		slog.Warn("Failed to record fetch failure", "feed", t.FeedName, "error", err)
	}
}

func (t *ProcessFeedTask) storeFeedMetadata(metadata *feed.Metadata) error {
	err := t.feedRepo.UpdateFeedMetadata(t.FeedName, database.FeedMetadata{
		Title:           metadata.Title,
		Link:            metadata.Link,
		Description:     metadata.Description,
		ImageURL:        metadata.ImageURL,
		Language:        metadata.Language,
		FeedPublishedAt: metadata.FeedPublishedAt,
	}, t.nextFetch())
	if err != nil {
		return fmt.Errorf("failed to update feed metadata and next fetch time: %w", err)
	}

	return nil
}

func (t *ProcessFeedTask) storeItems(items []feed.Item) error {
	for _, item := range items {
		dbItem := database.FeedItem{
			GUID:            item.GUID,
			Link:            item.Link,
			Title:           item.Title,
			Description:     item.Description,
			Content:         item.Content,
			PublishedAt:     item.PublishedAt,
			Authors:         item.Authors,
			Categories:      item.Categories,
			Raw:             item.Raw,
			IsFiltered:      item.IsFiltered,
			FilterReason:    item.FilterReason,
			ContentHash:     item.ContentHash,
			EnclosureURL:    item.EnclosureURL,
			EnclosureLength: item.EnclosureLength,
			EnclosureType:   item.EnclosureType,
		}

		if err := t.itemRepo.UpsertItem(t.FeedName, dbItem); err != nil {
			return fmt.Errorf("failed to upsert item: %w", err)
		}
	}

	return nil
}
