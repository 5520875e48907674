// Package pipeline drives one capture run: fetch, resolve, acquire, merge.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/gamecatalog/internal/catalog"
	"github.com/JakeFAU/gamecatalog/internal/dataset"
	"github.com/JakeFAU/gamecatalog/internal/id/uuid"
	"github.com/JakeFAU/gamecatalog/internal/metrics"
)

const (
	phaseFetch   = "fetch"
	phaseResolve = "resolve"
	phaseAsset   = "asset"
	phaseMirror  = "mirror"
)

// Config controls Pipeline behavior.
type Config struct {
	// BaseURL expands bare slugs into detail page URLs.
	BaseURL string
	// ImageDir receives cover images.
	ImageDir string
	// Topic names the Pub/Sub topic for capture events. Empty disables publishing.
	Topic string
}

// Resolver turns fetched HTML into a record.
type Resolver interface {
	ResolveTarget(slug, html, pageURL string, fetchedAt time.Time) catalog.Record
}

// AssetAcquirer downloads a cover image and returns its local path.
type AssetAcquirer interface {
	Acquire(ctx context.Context, imageURL, dir, nameHint string) (string, error)
}

// DatasetStore loads and persists the merged dataset.
type DatasetStore interface {
	Load() (dataset.Dataset, error)
	Save(ds dataset.Dataset) error
	Path() string
}

// Capture is the outcome of processing one target.
type Capture struct {
	Record    catalog.Record
	ImagePath string
}

// Pipeline captures targets sequentially and merges them into a dataset.
type Pipeline struct {
	fetcher   catalog.Fetcher
	resolver  Resolver
	assets    AssetAcquirer
	clock     catalog.Clock
	ids       catalog.IDGenerator
	records   catalog.RecordStore
	ledger    catalog.RunLedger
	publisher catalog.Publisher
	cfg       Config
	logger    *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRecordStore mirrors every merged record into store.
func WithRecordStore(store catalog.RecordStore) Option {
	return func(p *Pipeline) { p.records = store }
}

// WithRunLedger records run start and completion in ledger.
func WithRunLedger(ledger catalog.RunLedger) Option {
	return func(p *Pipeline) { p.ledger = ledger }
}

// WithPublisher announces each capture on cfg.Topic.
func WithPublisher(publisher catalog.Publisher) Option {
	return func(p *Pipeline) { p.publisher = publisher }
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(ids catalog.IDGenerator) Option {
	return func(p *Pipeline) { p.ids = ids }
}

// New constructs a Pipeline.
func New(
	cfg Config,
	fetcher catalog.Fetcher,
	resolver Resolver,
	assets AssetAcquirer,
	clock catalog.Clock,
	logger *zap.Logger,
	opts ...Option,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = catalog.SystemClock{}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = catalog.DefaultBaseURL
	}
	if cfg.ImageDir == "" {
		cfg.ImageDir = "img"
	}
	p := &Pipeline{
		fetcher:  fetcher,
		resolver: resolver,
		assets:   assets,
		clock:    clock,
		ids:      uuid.New(),
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Capture fetches and resolves one target. Failures are carried on the
// returned record; Capture itself never fails.
func (p *Pipeline) Capture(ctx context.Context, target string) Capture {
	fetchedAt := p.clock.Now().UTC()
	target = strings.TrimSpace(target)

	slug, err := catalog.Slug(target)
	if err != nil {
		return Capture{Record: catalog.FailedRecord(strings.Trim(target, "/"), target, fetchedAt, err)}
	}
	pageURL, err := catalog.PageURL(target, p.cfg.BaseURL)
	if err != nil {
		return Capture{Record: catalog.FailedRecord(slug, target, fetchedAt, err)}
	}

	start := time.Now()
	html, _, err := p.fetcher.FetchText(ctx, pageURL)
	metrics.ObservePhase(phaseFetch, time.Since(start))
	if err != nil {
		return Capture{Record: catalog.FailedRecord(slug, pageURL, fetchedAt, err)}
	}

	start = time.Now()
	record := p.resolver.ResolveTarget(slug, html, pageURL, fetchedAt)
	metrics.ObservePhase(phaseResolve, time.Since(start))

	out := Capture{Record: record}
	if record.CoverImageURL == nil || p.assets == nil {
		return out
	}

	hint := catalog.Deref(record.Name)
	if hint == "" {
		hint = slug
	}
	start = time.Now()
	path, err := p.assets.Acquire(ctx, *record.CoverImageURL, p.cfg.ImageDir, hint)
	metrics.ObservePhase(phaseAsset, time.Since(start))
	if err != nil {
		p.logger.Warn("cover image not saved",
			zap.String("slug", slug),
			zap.String("image_url", *record.CoverImageURL),
			zap.Error(err),
		)
		return out
	}
	out.ImagePath = path
	return out
}

// Run captures every target in order, merges the results into store, and
// saves it once. A cancelled context stops the run between targets; the
// records captured so far are still saved and the context error returned.
func (p *Pipeline) Run(ctx context.Context, targets []string, store DatasetStore) (catalog.RunSummary, error) {
	summary := catalog.RunSummary{Targets: len(targets)}
	if len(targets) == 0 {
		return summary, catalog.ErrNoTargets
	}

	ds, err := store.Load()
	if err != nil {
		return summary, fmt.Errorf("load dataset: %w", err)
	}

	runID, err := p.ids.NewID()
	if err != nil {
		return summary, fmt.Errorf("generate run id: %w", err)
	}
	logger := p.logger.With(zap.String("run_id", runID))
	logger.Info("capture run started",
		zap.Int("targets", len(targets)),
		zap.Int("existing_records", len(ds)),
		zap.String("dataset", store.Path()),
	)
	p.startRun(ctx, logger, runID, len(targets))

	var runErr error
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if strings.TrimSpace(target) == "" {
			summary.Skipped++
			continue
		}

		capture := p.Capture(ctx, target)
		if err := ctx.Err(); err != nil && capture.Record.Failed() {
			// The target was interrupted, not captured.
			runErr = err
			break
		}

		record := capture.Record
		ds.Upsert(record)
		p.mirror(ctx, logger, runID, record)

		fields := []zap.Field{
			zap.Int("index", i+1),
			zap.Int("total", len(targets)),
			zap.String("slug", record.Slug),
		}
		if record.Failed() {
			summary.Failed++
			metrics.ObserveCapture(catalog.CaptureStatusFailed)
			logger.Error("capture failed", append(fields, zap.String("error", catalog.Deref(record.Error)))...)
			continue
		}
		summary.Succeeded++
		metrics.ObserveCapture(catalog.CaptureStatusOK)
		if capture.ImagePath != "" {
			summary.Assets++
			fields = append(fields, zap.String("image_path", capture.ImagePath))
		}
		logger.Info("captured", fields...)
	}

	if err := store.Save(ds); err != nil {
		return summary, fmt.Errorf("save dataset: %w", err)
	}
	logger.Info("wrote dataset",
		zap.String("path", store.Path()),
		zap.Int("records", len(ds)),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)

	p.completeRun(ctx, logger, runID, summary)
	if runErr != nil {
		return summary, fmt.Errorf("capture run interrupted: %w", runErr)
	}
	return summary, nil
}

// mirror pushes a merged record to the optional record store and publisher.
// Mirror failures are logged; the local dataset stays authoritative.
func (p *Pipeline) mirror(ctx context.Context, logger *zap.Logger, runID string, record catalog.Record) {
	if p.records == nil && (p.publisher == nil || p.cfg.Topic == "") {
		return
	}
	start := time.Now()
	defer func() { metrics.ObservePhase(phaseMirror, time.Since(start)) }()

	if p.records != nil {
		if err := p.records.UpsertRecord(ctx, record); err != nil {
			logger.Warn("record mirror failed", zap.String("slug", record.Slug), zap.Error(err))
		}
	}
	if p.publisher == nil || p.cfg.Topic == "" {
		return
	}
	event := catalog.CaptureEvent{
		RunID:     runID,
		Slug:      record.Slug,
		URL:       record.CanonicalURL,
		Status:    catalog.CaptureStatusOK,
		FetchedAt: record.FetchedAt,
	}
	if record.Failed() {
		event.Status = catalog.CaptureStatusFailed
		event.Error = catalog.Deref(record.Error)
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.Topic, event); err != nil {
		logger.Warn("publish capture event failed", zap.String("slug", record.Slug), zap.Error(err))
	}
}

func (p *Pipeline) startRun(ctx context.Context, logger *zap.Logger, runID string, targets int) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.StartRun(ctx, runID, p.clock.Now().UTC(), targets); err != nil {
		logger.Warn("run ledger start failed", zap.Error(err))
	}
}

func (p *Pipeline) completeRun(ctx context.Context, logger *zap.Logger, runID string, summary catalog.RunSummary) {
	if p.ledger == nil {
		return
	}
	// The run context may already be cancelled; the ledger row should still close.
	ctx = context.WithoutCancel(ctx)
	if err := p.ledger.CompleteRun(ctx, runID, p.clock.Now().UTC(), summary); err != nil {
		logger.Warn("run ledger completion failed", zap.Error(err))
	}
}

// IsUsageError reports whether err stems from how the run was invoked rather
// than from what happened while capturing.
func IsUsageError(err error) bool {
	return errors.Is(err, catalog.ErrNoTargets)
}
