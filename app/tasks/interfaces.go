package tasks

import (
	"context"

	"github.com/lysyi3m/rss-tree/app/fetcher"
)

// TaskSchedulerInterface is what the API layer needs from the scheduler.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// Fetcher downloads feed documents and article pages.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts fetcher.Options) ([]byte, error)
	FetchHTML(ctx context.Context, url string, opts fetcher.Options) ([]byte, error)
}

var _ Fetcher = (*fetcher.Client)(nil)
