package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/gamecatalog/internal/catalog"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "captures", catalog.CaptureEvent{RunID: "r1", Slug: "a", Status: catalog.CaptureStatusOK})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)

	id2, err := pub.Publish(context.Background(), "captures", catalog.CaptureEvent{RunID: "r1", Slug: "b", Status: catalog.CaptureStatusFailed, Error: "HTTP 404 Not Found"})
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)

	var event catalog.CaptureEvent
	require.NoError(t, msgs[1].Decode(&event))
	assert.Equal(t, "b", event.Slug)
	assert.Equal(t, "HTTP 404 Not Found", event.Error)

	msgs[0].Topic = "modified"
	assert.Equal(t, "captures", pub.Messages()[0].Topic, "Messages returns a copy")
}

func TestPublisherRejectsUnencodablePayload(t *testing.T) {
	t.Parallel()

	_, err := New().Publish(context.Background(), "captures", func() {})
	assert.Error(t, err)
	assert.Empty(t, New().Messages())
}
