package tasks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/rss-tree/app/database"
	"github.com/lysyi3m/rss-tree/app/feed"
	"github.com/lysyi3m/rss-tree/app/fetcher"
)

const testFeed = `<?xml version="1.0"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Test Feed</title>
  <link>https://example.com</link>
  <item>
    <title>Go release</title>
    <link>LINK/articles/go</link>
    <guid>go</guid>
    <dc:date>2024-01-02T10:00:00Z</dc:date>
  </item>
  <item>
    <title>Sponsored post</title>
    <link>LINK/articles/ad</link>
    <guid>ad</guid>
    <pubDate>Pubdate:Mon, 01 Jan 2024 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>No date</title>
    <link>LINK/articles/nodate</link>
    <guid>nodate</guid>
  </item>
</channel>
</rss>`

const testArticle = `<!DOCTYPE html>
<html><head><title>Go release</title></head>
<body>
<nav>Menu</nav>
<article>
<h1>Go release</h1>
<p>The new release brings a number of improvements to the toolchain, the runtime and the standard library. This paragraph is long enough to count as content.</p>
<p>Another paragraph explains the details of the release at length so the readability scorer picks this article element as the main content block.</p>
<p>A third paragraph with more text makes the article comfortably pass the character threshold used by the extractor.</p>
<p>The fourth paragraph walks through the changes to the compiler, the linker and the garbage collector, with notes on what changed for users of the standard library.</p>
<p>Finally, a closing paragraph summarizes the release, thanks the contributors and points readers at the release notes for the complete list of changes.</p>
</article>
<footer>Copyright</footer>
</body></html>`

type testEnv struct {
	server   *httptest.Server
	feedRepo *database.FeedStore
	itemRepo *database.ItemStore
	client   *fetcher.Client
	config   *feed.Config
	hits     atomic.Int32
	status   atomic.Int32
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{}
	env.status.Store(http.StatusOK)

	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		env.hits.Add(1)
		if user, pass, ok := r.BasicAuth(); !ok || user != "reader" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(int(env.status.Load()))
		w.Write([]byte(strings.ReplaceAll(testFeed, "LINK", "http://"+r.Host)))
	})
	mux.HandleFunc("/articles/go", func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); ok {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(testArticle))
	})
	mux.HandleFunc("/articles/nodate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{}"))
	})
	env.server = httptest.NewServer(mux)
	t.Cleanup(env.server.Close)

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatal(err)
	}

	env.feedRepo = database.NewFeedStore(db)
	env.itemRepo = database.NewItemStore(db)
	env.client = fetcher.NewClient("test-agent")
	env.config = &feed.Config{
		Name:   "test",
		URL:    env.server.URL + "/feed.xml",
		Format: feed.FormatRSS,
		Auth:   feed.ConfigAuth{Username: "reader", Password: "secret"},
		Settings: feed.ConfigSettings{
			Enabled:         true,
			RefreshInterval: 3600,
			MaxItems:        100,
			Timeout:         5,
			ExtractContent:  true,
		},
		Filters: []feed.ConfigFilter{{Field: "title", Excludes: []string{"sponsored"}}},
	}

	return env
}

func (env *testEnv) sync(t *testing.T) {
	t.Helper()
	if err := NewSyncFeedConfigTask("test", env.config, env.feedRepo).Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func (env *testEnv) process(t *testing.T) error {
	t.Helper()
	task := NewProcessFeedTask("test", env.config, env.client, feed.NewParser(), feed.NewFilterer(), env.feedRepo, env.itemRepo, "test-agent", "")
	task.Start()
	return task.Execute(context.Background())
}

func TestProcessFeedTask(t *testing.T) {
	env := newTestEnv(t)
	env.sync(t)

	if err := env.process(t); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	dbFeed, err := env.feedRepo.GetFeed("test")
	if err != nil {
		t.Fatal(err)
	}
	if dbFeed.Title != "Test Feed" {
		t.Errorf("Expected title 'Test Feed', got '%s'", dbFeed.Title)
	}
	if dbFeed.NextFetchAt == nil || !dbFeed.NextFetchAt.After(time.Now().Add(50*time.Minute)) {
		t.Errorf("Expected next fetch about an hour out, got %v", dbFeed.NextFetchAt)
	}

	total, visible, filtered, err := env.itemRepo.GetItemStats("test")
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || visible != 2 || filtered != 1 {
		t.Errorf("Expected stats 3/2/1, got %d/%d/%d", total, visible, filtered)
	}

	items, err := env.itemRepo.GetAllItems("test")
	if err != nil {
		t.Fatal(err)
	}
	published := map[string]*time.Time{}
	for _, item := range items {
		published[item.GUID] = item.PublishedAt
	}
	if p := published["go"]; p == nil || !p.Equal(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected dc:date to be used, got %v", p)
	}
	if p := published["ad"]; p == nil || p.Unix() != 1704103200 {
		t.Errorf("Expected Pubdate prefix to be recovered, got %v", p)
	}
	if published["nodate"] != nil {
		t.Errorf("Expected undated item to stay undated, got %v", published["nodate"])
	}

	// Second run finds only duplicates
	if err := env.process(t); err != nil {
		t.Fatal(err)
	}
	if count, _ := env.itemRepo.GetItemCount("test"); count != 3 {
		t.Errorf("Expected 3 items after second run, got %d", count)
	}
}

func TestProcessFeedTaskFailures(t *testing.T) {
	env := newTestEnv(t)
	env.sync(t)

	env.status.Store(http.StatusBadGateway)
	err := env.process(t)
	var statusErr *fetcher.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("Expected status error, got: %v", err)
	}

	dbFeed, _ := env.feedRepo.GetFeed("test")
	if !strings.Contains(dbFeed.LastError, "502") {
		t.Errorf("Expected failure to be recorded, got '%s'", dbFeed.LastError)
	}
	if dbFeed.NextFetchAt == nil {
		t.Error("Expected next fetch to be pushed out")
	}

	env.status.Store(http.StatusOK)
	env.config.Format = feed.FormatAtom
	if err := env.process(t); !errors.Is(err, feed.ErrInvalid) {
		t.Errorf("Expected ErrInvalid for RSS document requested as Atom, got: %v", err)
	}
}

func TestProcessFeedTaskDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.config.Settings.Enabled = false

	if err := env.process(t); err != nil {
		t.Fatal(err)
	}
	if env.hits.Load() != 0 {
		t.Errorf("Expected disabled feed not to be fetched, got %d requests", env.hits.Load())
	}
}

func TestRefilterFeedTask(t *testing.T) {
	env := newTestEnv(t)
	env.sync(t)
	if err := env.process(t); err != nil {
		t.Fatal(err)
	}

	env.config.Filters = []feed.ConfigFilter{{Field: "title", Includes: []string{"go"}}}
	if err := NewRefilterFeedTask("test", env.config, feed.NewFilterer(), env.itemRepo).Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	visible, err := env.itemRepo.GetVisibleItems("test", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 1 || visible[0].GUID != "go" {
		t.Errorf("Expected only the Go item to stay visible, got %d items", len(visible))
	}
}

func TestExtractContentTask(t *testing.T) {
	env := newTestEnv(t)
	env.sync(t)
	if err := env.process(t); err != nil {
		t.Fatal(err)
	}

	task := NewExtractContentTask("test", env.config, env.client, feed.NewContentExtractor(), env.itemRepo, "test-agent", "")
	task.Start()
	if err := task.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	items, _ := env.itemRepo.GetAllItems("test")
	for _, item := range items {
		switch item.GUID {
		case "go":
			if item.ContentExtractionStatus != database.ExtractionSuccess {
				t.Errorf("Expected extraction success, got '%s' (%s)", item.ContentExtractionStatus, item.ContentExtractionError)
			}
			if !strings.Contains(item.Content, "improvements to the toolchain") {
				t.Errorf("Expected extracted article content, got '%s'", item.Content)
			}
		case "nodate":
			if item.ContentExtractionStatus != database.ExtractionFailed {
				t.Errorf("Expected non-HTML page to fail extraction, got '%s'", item.ContentExtractionStatus)
			}
		case "ad":
			if item.ContentExtractionStatus != database.ExtractionPending {
				t.Errorf("Expected filtered item to be skipped, got '%s'", item.ContentExtractionStatus)
			}
		}
	}
}

type countingTask struct {
	Task
	failures int
	runs     atomic.Int32
	done     chan struct{}
}

func (c *countingTask) Execute(ctx context.Context) error {
	n := int(c.runs.Add(1))
	if n <= c.failures {
		return errors.New("transient")
	}
	close(c.done)
	return nil
}

func newTestScheduler(workers int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		configCache: feed.NewConfigCache(""),
		interval:    time.Hour,
		workerCount: workers,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, taskQueueSize),
	}
}

func TestSchedulerRetriesFailedTask(t *testing.T) {
	s := newTestScheduler(1)
	s.Start()
	defer s.Stop()

	task := &countingTask{Task: NewTask(TaskTypeProcessFeed, "test"), failures: 1, done: make(chan struct{})}
	if err := s.EnqueueTask(task); err != nil {
		t.Fatal(err)
	}

	select {
	case <-task.done:
	case <-time.After(5 * time.Second):
		t.Fatal("Expected task to succeed after a retry")
	}
	if task.GetRetryCount() != 1 {
		t.Errorf("Expected 1 retry, got %d", task.GetRetryCount())
	}
}

func TestSchedulerQueue(t *testing.T) {
	s := newTestScheduler(0)

	for i := 0; i < taskQueueSize; i++ {
		if err := s.EnqueueTask(&countingTask{Task: NewTask(TaskTypeRefilterFeed, "test")}); err != nil {
			t.Fatalf("Unexpected error at %d: %v", i, err)
		}
	}
	if err := s.EnqueueTask(&countingTask{Task: NewTask(TaskTypeRefilterFeed, "test")}); err == nil {
		t.Error("Expected full queue error")
	}

	s.Stop()
	if err := s.EnqueueTask(&countingTask{Task: NewTask(TaskTypeRefilterFeed, "test")}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled after stop, got: %v", err)
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		retry    int
		expected time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := retryDelay(tt.retry); got != tt.expected {
			t.Errorf("retryDelay(%d): expected %v, got %v", tt.retry, tt.expected, got)
		}
	}
}

func TestIsDue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	if !isDue(&database.Feed{}, now) {
		t.Error("Expected feed without next fetch to be due")
	}
	if !isDue(&database.Feed{NextFetchAt: &past}, now) {
		t.Error("Expected past next fetch to be due")
	}
	if isDue(&database.Feed{NextFetchAt: &future}, now) {
		t.Error("Expected future next fetch not to be due")
	}
}
