package feed

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	defaultRefreshInterval = 3600
	defaultMaxItems        = 100
	defaultFetchTimeout    = 30
)

var configExtensions = []string{".yml", ".yaml"}

var itemFields = map[string]bool{
	"title":       true,
	"description": true,
	"content":     true,
	"authors":     true,
	"link":        true,
	"categories":  true,
}

// ConfigCache holds the per-feed YAML configurations of a directory. The
// feed name is the file name without its extension.
type ConfigCache struct {
	feedsDir string
	cache    map[string]*Config
	mu       sync.RWMutex
}

func NewConfigCache(feedsDir string) *ConfigCache {
	return &ConfigCache{
		feedsDir: feedsDir,
		cache:    make(map[string]*Config),
	}
}

// Run loads every configuration in the feeds directory. A missing
// directory yields an empty cache.
func (cc *ConfigCache) Run() error {
	entries, err := os.ReadDir(cc.feedsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read feeds directory: %w", err)
	}

	for _, entry := range entries {
		feedName, ok := configName(entry)
		if !ok {
			continue
		}

		feedConfig, err := cc.LoadConfig(feedName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", entry.Name(), err)
		}

		slog.Debug("Configuration loaded",
			"feed", feedName,
			"format", feedConfig.Format,
			"enabled", feedConfig.Settings.Enabled,
			"refresh_interval", feedConfig.Settings.RefreshInterval)
	}

	return nil
}

// LoadConfig reads, validates and caches the configuration of one feed,
// replacing any cached version.
func (cc *ConfigCache) LoadConfig(feedName string) (*Config, error) {
	configFile := cc.getConfigFilePath(feedName)
	feedConfig, err := parseConfig(configFile)
	if err != nil {
		return nil, err
	}
	feedConfig.Name = feedName

	if err := feedConfig.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	cc.cache[feedName] = feedConfig
	cc.mu.Unlock()

	return feedConfig, nil
}

func (cc *ConfigCache) GetConfig(feedName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	if feedConfig, ok := cc.cache[feedName]; ok {
		return feedConfig, nil
	}
	return nil, fmt.Errorf("feed config with name '%s' not found", feedName)
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return maps.Clone(cc.cache)
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	configs := cc.GetConfigs()
	maps.DeleteFunc(configs, func(_ string, c *Config) bool {
		return !c.Settings.Enabled
	})
	return configs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) getConfigFilePath(feedName string) string {
	for _, ext := range configExtensions {
		path := filepath.Join(cc.feedsDir, feedName+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join(cc.feedsDir, feedName+configExtensions[0])
}

func configName(entry fs.DirEntry) (string, bool) {
	if entry.IsDir() {
		return "", false
	}
	ext := filepath.Ext(entry.Name())
	for _, known := range configExtensions {
		if ext == known {
			return strings.TrimSuffix(entry.Name(), ext), true
		}
	}
	return "", false
}

func parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var feedConfig Config
	if err := yaml.Unmarshal(data, &feedConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	s := &feedConfig.Settings
	if s.RefreshInterval == 0 {
		s.RefreshInterval = defaultRefreshInterval
	}
	if s.MaxItems == 0 {
		s.MaxItems = defaultMaxItems
	}
	if s.Timeout == 0 {
		s.Timeout = defaultFetchTimeout
	}
	if feedConfig.Format == "" {
		feedConfig.Format = FormatAuto
	}

	return &feedConfig, nil
}

func (c *Config) validate() error {
	if c.Name == "" {
		return errors.New("feed name is required")
	}
	if c.URL == "" {
		return errors.New("feed URL is required")
	}
	if u, err := url.Parse(c.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("feed URL %q must be an absolute http(s) URL", c.URL)
	}

	for name, value := range map[string]int{
		"refresh interval": c.Settings.RefreshInterval,
		"max items":        c.Settings.MaxItems,
		"timeout":          c.Settings.Timeout,
	} {
		if value < 0 {
			return fmt.Errorf("%s must be non-negative", name)
		}
	}

	switch c.Format {
	case FormatAuto, FormatRSS, FormatAtom:
	default:
		return fmt.Errorf("invalid format %q: expected auto, rss or atom", c.Format)
	}

	if c.Auth.Password != "" && c.Auth.Username == "" {
		return errors.New("auth password requires a username")
	}

	if c.CABundle != "" {
		if _, err := os.Stat(c.CABundle); err != nil {
			return fmt.Errorf("CA bundle %s is not readable: %w", c.CABundle, err)
		}
	}

	for name := range c.Headers {
		if strings.TrimSpace(name) == "" {
			return errors.New("header names must not be empty")
		}
	}

	for i, filter := range c.Filters {
		if !itemFields[filter.Field] && !isNamespacedField(filter.Field) {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}
