package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRobotsDisallowed marks a page excluded by the host's robots.txt.
	ErrRobotsDisallowed = errors.New("robots.txt forbids access")
	// ErrDatasetCorrupt marks an existing dataset file that cannot be read safely.
	ErrDatasetCorrupt = errors.New("dataset unreadable")
	// ErrNoTargets is returned when a run is started without any targets.
	ErrNoTargets = errors.New("no targets provided")
	// ErrInvalidTarget marks a target that yields no usable slug.
	ErrInvalidTarget = errors.New("invalid target")
)

// HTTPStatusError is returned for responses outside the 2xx range.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	text := http.StatusText(e.StatusCode)
	if text == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, text)
}

// Retryable reports whether another attempt may succeed. Client errors are
// terminal except 429.
func (e *HTTPStatusError) Retryable() bool {
	if e == nil {
		return false
	}
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode < 400 || e.StatusCode >= 500
}

// FetchError wraps the last failure of a request once retries are exhausted.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError describes a structured-data block that is not valid JSON.
type ParseError struct {
	Block int
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("json-ld block %d: %v", e.Block, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AssetError describes a cover download or write failure.
type AssetError struct {
	URL string
	Err error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset %s: %v", e.URL, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }
