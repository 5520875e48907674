package catalog

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves pages and binary assets over HTTP.
type Fetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, http.Header, error)
	FetchBinary(ctx context.Context, rawURL string) ([]byte, http.Header, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// RecordStore mirrors captured records into an external keyed store.
type RecordStore interface {
	UpsertRecord(ctx context.Context, record Record) error
}

// Publisher pushes capture events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// RunLedger tracks capture runs in an external store.
type RunLedger interface {
	StartRun(ctx context.Context, runID string, startedAt time.Time, targets int) error
	CompleteRun(ctx context.Context, runID string, finishedAt time.Time, summary RunSummary) error
}

// SystemClock implements Clock with the wall clock in UTC.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
