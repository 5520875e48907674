package gcs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	bytes.Buffer
	contentType string
	closed      bool
	closeErr    error
}

func (w *fakeWriter) SetContentType(ct string) { w.contentType = ct }

func (w *fakeWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func TestPutObjectUploadsUnderPrefix(t *testing.T) {
	t.Parallel()

	var (
		gotBucket, gotObject string
		writer               = &fakeWriter{}
	)
	store, err := newBlobStore(func(_ context.Context, bucket, object string) objectWriter {
		gotBucket, gotObject = bucket, object
		return writer
	}, Config{Bucket: "catalog-assets", Prefix: "/covers/"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "Snake_io.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "gs://catalog-assets/covers/Snake_io.png", uri)
	assert.Equal(t, "catalog-assets", gotBucket)
	assert.Equal(t, "covers/Snake_io.png", gotObject)
	assert.Equal(t, "image/png", writer.contentType)
	assert.Equal(t, "png", writer.String())
	assert.True(t, writer.closed)
}

func TestPutObjectSurfacesCloseError(t *testing.T) {
	t.Parallel()

	store, err := newBlobStore(func(context.Context, string, string) objectWriter {
		return &fakeWriter{closeErr: errors.New("precondition failed")}
	}, Config{Bucket: "b"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "x.jpg", "", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "precondition failed")
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)

	_, err = newBlobStore(func(context.Context, string, string) objectWriter { return &fakeWriter{} }, Config{})
	assert.Error(t, err)

	store, err := newBlobStore(func(context.Context, string, string) objectWriter { return &fakeWriter{} }, Config{Bucket: "b"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), " ", "", strings.NewReader(""))
	assert.Error(t, err)
}
