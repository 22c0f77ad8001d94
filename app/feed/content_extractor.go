package feed

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-shiori/go-readability"
)

var ErrNoContent = errors.New("no content extracted")

// ContentExtractor turns an article page into its readable HTML body.
type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

// Run extracts the main content of an HTML page. Relative links in the
// result are resolved against pageURL when it parses.
func (e *ContentExtractor) Run(data []byte, pageURL string) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", fmt.Errorf("%w: HTML data is empty", ErrNoContent)
	}

	var base *url.URL
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil && u.IsAbs() {
			base = u
		}
	}

	article, err := readability.FromReader(bytes.NewReader(data), base)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	if article.Content == "" {
		return "", fmt.Errorf("%w: readability found no article", ErrNoContent)
	}

	slog.Debug("Content extracted",
		"url", pageURL,
		"title", article.Title,
		"content_length", len(article.Content))

	return article.Content, nil
}
