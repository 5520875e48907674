package catalog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func TestRecordJSONUsesNullsForAbsentFields(t *testing.T) {
	t.Parallel()

	rec := Record{
		Slug:         "snake-io",
		CanonicalURL: "https://gamedistribution.com/games/snake-io/",
		Name:         OptionalString("  Snake.io "),
		FetchedAt:    fixedTime,
	}
	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(payload, &fields))
	assert.Equal(t, "Snake.io", fields["name"])
	assert.Nil(t, fields["tags"])
	assert.Nil(t, fields["error"])
	assert.Contains(t, fields, "publisher")
	assert.Equal(t, "2024-05-01T12:30:00Z", fields["fetched_at"])
}

func TestOptionalString(t *testing.T) {
	t.Parallel()

	assert.Nil(t, OptionalString("   "))
	assert.Equal(t, "x", Deref(OptionalString(" x ")))
	assert.Equal(t, "", Deref(nil))
}

func TestSystemClockIsUTC(t *testing.T) {
	t.Parallel()

	now := SystemClock{}.Now()
	if now.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", now.Location())
	}
	if time.Since(now) > time.Minute {
		t.Fatalf("clock returned a stale time: %v", now)
	}
}
