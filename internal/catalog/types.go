package catalog

import (
	"strings"
	"time"
)

// Record is the canonical unit of output, one per catalog slug.
type Record struct {
	Slug          string    `json:"slug"`
	CanonicalURL  string    `json:"canonical_url"`
	Name          *string   `json:"name"`
	Description   *string   `json:"description"`
	Publisher     *string   `json:"publisher"`
	CoverImageURL *string   `json:"cover_image_url"`
	PlayURL       *string   `json:"play_url"`
	Tags          []string  `json:"tags"`
	FetchedAt     time.Time `json:"fetched_at"`
	Error         *string   `json:"error"`
}

// Failed reports whether the record captures a fetch or extraction failure.
func (r Record) Failed() bool {
	return r.Error != nil
}

// FailedRecord builds the record persisted when a target could not be captured.
// Only the key, the best-effort canonical URL, and the capture time survive.
func FailedRecord(slug, canonicalURL string, fetchedAt time.Time, err error) Record {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Record{
		Slug:         slug,
		CanonicalURL: canonicalURL,
		FetchedAt:    fetchedAt.UTC(),
		Error:        &msg,
	}
}

// OptionalString trims s and returns nil when nothing is left.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CaptureEvent is published after each target is merged into the dataset.
type CaptureEvent struct {
	RunID     string    `json:"run_id"`
	Slug      string    `json:"slug"`
	URL       string    `json:"canonical_url"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Capture status values carried by CaptureEvent.
const (
	CaptureStatusOK     = "ok"
	CaptureStatusFailed = "failed"
)

// RunSummary tallies the outcome of one capture run.
type RunSummary struct {
	Targets   int `json:"targets"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Assets    int `json:"assets"`
}
