package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 10 << 20

	feedAcceptHeader = "application/rss+xml, application/atom+xml, application/xml, text/xml;q=0.9, */*;q=0.8"
	htmlAcceptHeader = "text/html, application/xhtml+xml;q=0.9, */*;q=0.8"
)

type transportKey struct {
	caBundle           string
	insecureSkipVerify bool
	disableCompression bool
}

// Client is the HTTP side of feed loading. Transports are built lazily per
// TLS and compression setup and reused across requests.
type Client struct {
	userAgent   string
	maxBodySize int64
	timeout     time.Duration

	mu         sync.Mutex
	transports map[transportKey]http.RoundTripper
}

func NewClient(userAgent string) *Client {
	return &Client{
		userAgent:   userAgent,
		maxBodySize: DefaultMaxBodySize,
		timeout:     DefaultTimeout,
		transports:  make(map[transportKey]http.RoundTripper),
	}
}

// WithMaxBodySize overrides the response size limit.
func (c *Client) WithMaxBodySize(n int64) *Client {
	c.maxBodySize = n
	return c
}

// WithTimeout sets the timeout used when a request's options carry none.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// Fetch downloads a feed document. Any non-2xx response is returned as a
// *StatusError.
func (c *Client) Fetch(ctx context.Context, url string, opts Options) ([]byte, error) {
	return c.fetch(ctx, url, opts, feedAcceptHeader, nil)
}

// FetchHTML downloads an article page and rejects non-HTML responses.
func (c *Client) FetchHTML(ctx context.Context, url string, opts Options) ([]byte, error) {
	return c.fetch(ctx, url, opts, htmlAcceptHeader, func(resp *http.Response) error {
		contentType := resp.Header.Get("Content-Type")
		if !strings.Contains(strings.ToLower(contentType), "text/html") {
			return fmt.Errorf("content type is not HTML: %s", contentType)
		}
		return nil
	})
}

func (c *Client) fetch(ctx context.Context, url string, opts Options, accept string, check func(*http.Response) error) ([]byte, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.applyHeaders(req, opts, accept)

	transport, err := c.transport(opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := (&http.Client{Transport: transport}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	slog.Debug("Got response",
		"url", url,
		"status_code", resp.StatusCode,
		"content_length", resp.ContentLength,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if check != nil {
		if err := check(resp); err != nil {
			return nil, err
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > c.maxBodySize {
		return nil, fmt.Errorf("response body exceeds %d bytes", c.maxBodySize)
	}

	return data, nil
}

func (c *Client) applyHeaders(req *http.Request, opts Options, accept string) {
	req.Header.Set("Accept", accept)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = c.userAgent
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	if opts.Username != "" || opts.Password != "" {
		req.SetBasicAuth(opts.Username, opts.Password)
	}
}

func (c *Client) transport(opts Options) (http.RoundTripper, error) {
	key := transportKey{
		caBundle:           opts.CABundle,
		insecureSkipVerify: opts.InsecureSkipVerify,
		disableCompression: opts.DisableCompression,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if rt, ok := c.transports[key]; ok {
		return rt, nil
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	if key.caBundle != "" || key.insecureSkipVerify {
		tlsConfig := &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: key.insecureSkipVerify,
		}
		if key.caBundle != "" {
			pool, err := loadCABundle(key.caBundle)
			if err != nil {
				return nil, err
			}
			tlsConfig.RootCAs = pool
		}
		base.TLSClientConfig = tlsConfig
	}

	var rt http.RoundTripper = base
	if !key.disableCompression {
		rt = gzhttp.Transport(base)
	}

	c.transports[key] = rt
	return rt, nil
}

// loadCABundle reads a PEM bundle used as the only set of trusted roots.
func loadCABundle(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA bundle: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in CA bundle %s", path)
	}
	return pool, nil
}
