package feed

import (
	"time"

	"github.com/lysyi3m/rss-tree/app/fetcher"
)

// Feed processing types

type Metadata struct {
	Title           string
	Link            string
	Description     string
	ImageURL        string
	Language        string
	FeedPublishedAt *time.Time
}

type Item struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt *time.Time // nil when the item carried no usable date
	Authors     []string
	Categories  []string

	// Raw is the JSON projection of the normalized item element.
	Raw []byte

	ContentHash     string
	IsFiltered      bool
	FilterReason    string
	EnclosureURL    string
	EnclosureLength int64
	EnclosureType   string
}

// Configuration types

type Config struct {
	Name               string            // Derived from filename (without .yml extension)
	URL                string            `yaml:"url"`
	Format             Format            `yaml:"format"`
	Auth               ConfigAuth        `yaml:"auth"`
	CABundle           string            `yaml:"ca_bundle"`
	InsecureSkipVerify bool              `yaml:"insecure_skip_verify"`
	Headers            map[string]string `yaml:"headers"`
	Settings           ConfigSettings    `yaml:"settings"`
	Filters            []ConfigFilter    `yaml:"filters"`
}

type ConfigAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	MaxItems        int  `yaml:"max_items"`
	Timeout         int  `yaml:"timeout"`         // seconds
	ExtractContent  bool `yaml:"extract_content"` // enable content extraction
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// FetchOptions translates the feed configuration into HTTP options.
// defaultCABundle applies when the feed does not name its own bundle.
func (c *Config) FetchOptions(userAgent, defaultCABundle string) fetcher.Options {
	caBundle := c.CABundle
	if caBundle == "" {
		caBundle = defaultCABundle
	}
	return fetcher.Options{
		Username:           c.Auth.Username,
		Password:           c.Auth.Password,
		CABundle:           caBundle,
		InsecureSkipVerify: c.InsecureSkipVerify,
		Timeout:            time.Duration(c.Settings.Timeout) * time.Second,
		UserAgent:          userAgent,
		Headers:            c.Headers,
	}
}
