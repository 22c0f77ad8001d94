package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./data/rss-tree.db" description:"Path to the SQLite database file"`
	FeedsDir string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed configuration files"`

	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for feed processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	UserAgent   string `long:"user-agent" env:"USER_AGENT" default:"RSS Tree/1.0" description:"User agent string for HTTP requests"`
	CABundle    string `long:"ca-bundle" env:"CA_BUNDLE" description:"PEM bundle trusted for HTTPS fetches when a feed names none"`
	HTTPTimeout int    `long:"http-timeout" env:"HTTP_TIMEOUT" default:"30" description:"Default HTTP timeout in seconds"`

	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

// Load parses flags and environment. It returns nil without an error when
// help was requested.
func Load() (*Cfg, error) {
	return load(nil)
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := raw.validate(); err != nil {
		return nil, err
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		FeedsDir:          raw.FeedsDir,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		UserAgent:         raw.UserAgent,
		CABundle:          raw.CABundle,
		HTTPTimeout:       time.Duration(raw.HTTPTimeout) * time.Second,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	globalCfg = cfg

	return cfg, nil
}

func (r *rawCfg) validate() error {
	if r.WorkerCount < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", r.WorkerCount)
	}
	if r.SchedulerInterval < 1 {
		return fmt.Errorf("scheduler interval must be at least 1 second, got %d", r.SchedulerInterval)
	}
	if r.HTTPTimeout < 1 {
		return fmt.Errorf("HTTP timeout must be at least 1 second, got %d", r.HTTPTimeout)
	}
	return nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc
	return nil
}
