// Package asset downloads cover images and stores them under stable,
// filesystem-safe names.
package asset

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/gamecatalog/internal/catalog"
	"github.com/JakeFAU/gamecatalog/internal/metrics"
	"github.com/JakeFAU/gamecatalog/internal/storage/local"
)

// Asset outcome labels.
const (
	statusSaved  = "saved"
	statusFailed = "failed"
)

// Acquirer fetches images and writes them to a local directory, optionally
// copying each one to a mirror store.
type Acquirer struct {
	fetcher catalog.Fetcher
	mirror  catalog.BlobStore
	logger  *zap.Logger
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithMirror uploads every saved image to store under its file name.
func WithMirror(store catalog.BlobStore) Option {
	return func(a *Acquirer) {
		a.mirror = store
	}
}

// New builds an Acquirer that downloads through fetcher.
func New(fetcher catalog.Fetcher, logger *zap.Logger, opts ...Option) *Acquirer {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Acquirer{fetcher: fetcher, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire downloads imageURL into dir as <sanitized nameHint><ext> and
// returns the written path. Failures come back as *catalog.AssetError.
func (a *Acquirer) Acquire(ctx context.Context, imageURL, dir, nameHint string) (string, error) {
	payload, headers, err := a.fetcher.FetchBinary(ctx, imageURL)
	if err != nil {
		metrics.ObserveAsset(statusFailed)
		return "", &catalog.AssetError{URL: imageURL, Err: err}
	}

	contentType := headers.Get("Content-Type")
	name := SanitizeFilename(nameHint) + Extension(imageURL, contentType)

	store, err := local.New(local.Config{BaseDir: dir})
	if err != nil {
		metrics.ObserveAsset(statusFailed)
		return "", &catalog.AssetError{URL: imageURL, Err: err}
	}
	written, err := store.PutObject(ctx, name, contentType, bytes.NewReader(payload))
	if err != nil {
		metrics.ObserveAsset(statusFailed)
		return "", &catalog.AssetError{URL: imageURL, Err: fmt.Errorf("write %s: %w", name, err)}
	}
	metrics.ObserveAsset(statusSaved)

	if a.mirror != nil {
		if _, err := a.mirror.PutObject(ctx, name, contentType, bytes.NewReader(payload)); err != nil {
			a.logger.Warn("asset mirror upload failed",
				zap.String("name", name),
				zap.Error(err),
			)
		}
	}
	return written, nil
}
