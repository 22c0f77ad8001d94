package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-tree/app/database"
	"github.com/lysyi3m/rss-tree/app/feed"
	"github.com/lysyi3m/rss-tree/app/fetcher"
	"github.com/lysyi3m/rss-tree/app/tasks"
)

func NewHandler(configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	itemRepo database.ItemRepository, filterer *feed.Filterer, loader FeedLoader,
	scheduler tasks.TaskSchedulerInterface, userAgent, caBundle string) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		itemRepo:    itemRepo,
		configCache: configCache,
		filterer:    filterer,
		loader:      loader,
		scheduler:   scheduler,
		userAgent:   userAgent,
		caBundle:    caBundle,
	}
}

// GetFeed serves the stored feed with its visible items as JSON
func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("name")

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	dbFeed, err := h.feedRepo.GetFeed(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if dbFeed == nil {
		slog.Error("Feed not found in database", "feed", name)
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	items, err := h.itemRepo.GetVisibleItems(name, feedConfig.Settings.MaxItems)
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	resp := FeedResponse{
		Name:        name,
		Title:       dbFeed.Title,
		Link:        dbFeed.Link,
		Description: dbFeed.Description,
		ImageURL:    dbFeed.ImageURL,
		Language:    dbFeed.Language,
		PublishedAt: dbFeed.FeedPublishedAt,
		UpdatedAt:   dbFeed.UpdatedAt,
		Items:       make([]ItemResponse, 0, len(items)),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, newItemResponse(item))
	}

	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Feed-Name", name)
	c.Header("X-Last-Updated", dbFeed.UpdatedAt.Format(time.RFC3339))

	c.JSON(http.StatusOK, resp)
}

// Preview loads a feed live and returns its structured projection, or the
// projection of a single item when item is given.
func (h *Handler) Preview(c *gin.Context) {
	rawURL := c.Query("url")
	u, err := url.Parse(rawURL)
	if rawURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Parameter url must be an absolute http(s) URL"})
		return
	}

	format := feed.Format(c.DefaultQuery("format", string(feed.FormatAuto)))
	switch format {
	case feed.FormatAuto, feed.FormatRSS, feed.FormatAtom:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Parameter format must be one of auto, rss, atom"})
		return
	}

	index := -1
	if v, ok := c.GetQuery("item"); ok {
		index, err = strconv.Atoi(v)
		if err != nil || index < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Parameter item must be a non-negative integer"})
			return
		}
	}

	opts := fetcher.Options{UserAgent: h.userAgent, CABundle: h.caBundle}
	f, err := h.loader.LoadFormat(c.Request.Context(), rawURL, format, opts)
	if err != nil {
		status := previewStatus(err)
		slog.Warn("Preview failed", "url", rawURL, "format", format, "status", status, "error", err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if index < 0 {
		c.JSON(http.StatusOK, f.ToStructured())
		return
	}

	items := f.Items()
	if index >= len(items) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item index out of range", "items": len(items)})
		return
	}
	c.JSON(http.StatusOK, f.ToStructured(items[index]))
}

func previewStatus(err error) int {
	switch {
	case errors.Is(err, feed.ErrLoadFailed):
		return http.StatusBadGateway
	case errors.Is(err, feed.ErrParseFailed), errors.Is(err, feed.ErrInvalid):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	} else {
		slog.Error("Database error", "operation", "get_feed_count", "error", err)
		health["status"] = "degraded"
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	feeds := make([]gin.H, 0, len(configs))

	for _, feedConfig := range configs {
		feedInfo := gin.H{
			"name":             feedConfig.Name,
			"url":              feedConfig.URL,
			"format":           feedConfig.Format,
			"title":            "",
			"enabled":          feedConfig.Settings.Enabled,
			"max_items":        feedConfig.Settings.MaxItems,
			"refresh_interval": (time.Duration(feedConfig.Settings.RefreshInterval) * time.Second).String(),
			"filters":          len(feedConfig.Filters),
		}

		if dbFeed, err := h.feedRepo.GetFeed(feedConfig.Name); err == nil && dbFeed != nil {
			feedInfo["title"] = dbFeed.Title
			feedInfo["last_fetched_at"] = dbFeed.LastFetchedAt
			feedInfo["next_fetch_at"] = dbFeed.NextFetchAt
			feedInfo["last_error"] = dbFeed.LastError
		}

		if itemCount, err := h.itemRepo.GetItemCount(feedConfig.Name); err == nil {
			feedInfo["item_count"] = itemCount
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIGetFeedDetails(c *gin.Context) {
	name := c.Param("name")

	feedConfig, dbFeed, ok := h.lookupFeed(c, name)
	if !ok {
		return
	}

	details := gin.H{
		"name":             name,
		"url":              feedConfig.URL,
		"format":           feedConfig.Format,
		"title":            dbFeed.Title,
		"enabled":          feedConfig.Settings.Enabled,
		"max_items":        feedConfig.Settings.MaxItems,
		"refresh_interval": (time.Duration(feedConfig.Settings.RefreshInterval) * time.Second).String(),
		"timeout":          (time.Duration(feedConfig.Settings.Timeout) * time.Second).String(),
		"extract_content":  feedConfig.Settings.ExtractContent,
		"authenticated":    feedConfig.Auth.Username != "",
		"filters":          feedConfig.Filters,
	}

	details["database"] = gin.H{
		"id":              dbFeed.ID,
		"last_fetched_at": dbFeed.LastFetchedAt,
		"next_fetch_at":   dbFeed.NextFetchAt,
		"last_error":      dbFeed.LastError,
		"created_at":      dbFeed.CreatedAt,
		"updated_at":      dbFeed.UpdatedAt,
	}

	if total, visible, filtered, err := h.itemRepo.GetItemStats(name); err == nil {
		details["items"] = gin.H{
			"total":    total,
			"visible":  visible,
			"filtered": filtered,
		}
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIRefilterFeed(c *gin.Context) {
	name := c.Param("name")

	feedConfig, _, ok := h.lookupFeed(c, name)
	if !ok {
		return
	}

	refilterFeedTask := tasks.NewRefilterFeedTask(name, feedConfig, h.filterer, h.itemRepo)
	if err := h.scheduler.EnqueueTask(refilterFeedTask); err != nil {
		slog.Error("Error enqueueing refilter task", "feed", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue refilter task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   refilterFeedTask.ID,
			"type": refilterFeedTask.Type,
		},
	})
}

func (h *Handler) APIReloadFeed(c *gin.Context) {
	name := c.Param("name")

	_, dbFeed, ok := h.lookupFeed(c, name)
	if !ok {
		return
	}

	feedConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "feed", name, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	syncFeedTask := tasks.NewSyncFeedConfigTask(name, feedConfig, h.feedRepo)
	if err := h.scheduler.EnqueueTask(syncFeedTask); err != nil {
		slog.Error("Error enqueueing sync task", "feed", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	refilterFeedTask := tasks.NewRefilterFeedTask(name, feedConfig, h.filterer, h.itemRepo)
	if err := h.scheduler.EnqueueTask(refilterFeedTask); err != nil {
		slog.Error("Error enqueueing refilter task", "feed", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue refilter task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and tasks enqueued successfully",
		"feed": gin.H{
			"name":   name,
			"title":  dbFeed.Title,
			"url":    feedConfig.URL,
			"format": feedConfig.Format,
		},
		"tasks": []gin.H{
			{"id": syncFeedTask.ID, "type": syncFeedTask.Type},
			{"id": refilterFeedTask.ID, "type": refilterFeedTask.Type},
		},
	})
}

// lookupFeed resolves a configured feed and its database record, writing
// the error response itself when either is missing.
func (h *Handler) lookupFeed(c *gin.Context, name string) (*feed.Config, *database.Feed, bool) {
	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return nil, nil, false
	}

	dbFeed, err := h.feedRepo.GetFeed(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, nil, false
	}

	if dbFeed == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found in database"})
		return nil, nil, false
	}

	return feedConfig, dbFeed, true
}
