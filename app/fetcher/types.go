package fetcher

import (
	"fmt"
	"time"
)

// Options configures a single fetch.
type Options struct {
	Username string
	Password string

	// CABundle is a path to a PEM file used to verify the server certificate.
	CABundle           string
	InsecureSkipVerify bool

	Timeout            time.Duration
	UserAgent          string
	Headers            map[string]string
	DisableCompression bool
}

type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, e.Status)
}
