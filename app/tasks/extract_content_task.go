package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-tree/app/database"
	"github.com/lysyi3m/rss-tree/app/feed"
)

type ExtractContentTask struct {
	Task
	FeedConfig       *feed.Config
	fetcher          Fetcher
	contentExtractor *feed.ContentExtractor
	itemRepo         database.ItemRepository
	userAgent        string
	caBundle         string
}

func NewExtractContentTask(feedName string, feedConfig *feed.Config, fetcher Fetcher, contentExtractor *feed.ContentExtractor, itemRepo database.ItemRepository, userAgent, caBundle string) *ExtractContentTask {
	return &ExtractContentTask{
		Task:             NewTask(TaskTypeExtractContent, feedName),
		FeedConfig:       feedConfig,
		fetcher:          fetcher,
		contentExtractor: contentExtractor,
		itemRepo:         itemRepo,
		userAgent:        userAgent,
		caBundle:         caBundle,
	}
}

func (t *ExtractContentTask) Execute(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	if !t.FeedConfig.Settings.ExtractContent {
		slog.Debug("Content extraction disabled for feed", "feed", t.FeedName)
		return nil
	}

	items, err := t.itemRepo.GetItemsForExtraction(t.FeedName, t.FeedConfig.Settings.MaxItems)
	if err != nil {
		return fmt.Errorf("failed to get items for content extraction: %w", err)
	}

	if len(items) == 0 {
		slog.Debug("No items need content extraction", "feed", t.FeedName)
		return nil
	}

	successCount := 0
	errorCount := 0

	for _, item := range items {
		if err := checkContext(ctx); err != nil {
			return err
		}

		if err := t.extractContentForItem(ctx, item); err != nil {
			slog.Error("Failed to extract content for item", "item_id", item.ID, "url", item.Link, "error", err)
			errorCount++

			now := time.Now().UTC()
			if err := t.itemRepo.UpdateExtractionStatus(item.ID, database.ExtractionFailed, &now, err.Error()); err != nil {
				slog.Error("Failed to update content extraction status", "item_id", item.ID, "error", err)
			}
			continue
		}
		successCount++
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"success", successCount,
		"errors", errorCount)

	return nil
}

func (t *ExtractContentTask) extractContentForItem(ctx context.Context, item database.ItemForExtraction) error {
	opts := t.FeedConfig.FetchOptions(t.userAgent, t.caBundle)
	// Feed credentials are never sent to article hosts.
	opts.Username, opts.Password = "", ""

	data, err := t.fetcher.FetchHTML(ctx, item.Link, opts)
	if err != nil {
		return fmt.Errorf("failed to fetch article content: %w", err)
	}

	extractedContent, err := t.contentExtractor.Run(data, item.Link)
	if err != nil {
		return fmt.Errorf("failed to extract content: %w", err)
	}

	now := time.Now().UTC()
	err = t.itemRepo.UpdateExtractedContentAndStatus(item.ID, extractedContent, database.ExtractionSuccess, &now, "")
	if err != nil {
		return fmt.Errorf("failed to update extracted content and status: %w", err)
	}

	slog.Debug("Content extracted successfully", "item_id", item.ID, "url", item.Link, "content_length", len(extractedContent))
	return nil
}
