package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-tree/app/api"
	"github.com/lysyi3m/rss-tree/app/cfg"
	"github.com/lysyi3m/rss-tree/app/database"
	"github.com/lysyi3m/rss-tree/app/feed"
	"github.com/lysyi3m/rss-tree/app/fetcher"
	"github.com/lysyi3m/rss-tree/app/tasks"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	appCfg, err := cfg.Load()
	if err != nil {
		return err
	}
	if appCfg == nil {
		return nil
	}

	setupLogger(appCfg.Debug)
	if !appCfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	slog.Info("Starting RSS Tree", "version", appCfg.Version, "port", appCfg.Port)

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load feed configurations: %w", err)
	}
	slog.Info("Feed configurations loaded", "dir", appCfg.FeedsDir, "count", configCache.GetConfigCount())

	feedRepo := database.NewFeedStore(db)
	itemRepo := database.NewItemStore(db)

	client := fetcher.NewClient(appCfg.UserAgent).WithTimeout(appCfg.HTTPTimeout)
	parser := feed.NewParser()
	filterer := feed.NewFilterer()
	contentExtractor := feed.NewContentExtractor()

	scheduler := tasks.NewScheduler(configCache, feedRepo, itemRepo, client, parser, filterer, contentExtractor)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(configCache, feedRepo, itemRepo, filterer, feed.NewLoader(client), scheduler, appCfg.UserAgent, appCfg.CABundle)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * appCfg.HTTPTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErr:
		return fmt.Errorf("HTTP server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("RSS Tree shutdown complete")
	return nil
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}
