// Package app initializes and holds the long-lived services of a capture
// run, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/gamecatalog/internal/asset"
	"github.com/JakeFAU/gamecatalog/internal/catalog"
	"github.com/JakeFAU/gamecatalog/internal/config"
	"github.com/JakeFAU/gamecatalog/internal/dataset"
	collyfetcher "github.com/JakeFAU/gamecatalog/internal/fetcher/colly"
	"github.com/JakeFAU/gamecatalog/internal/id/uuid"
	"github.com/JakeFAU/gamecatalog/internal/pipeline"
	"github.com/JakeFAU/gamecatalog/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/gamecatalog/internal/publisher/pubsub"
	"github.com/JakeFAU/gamecatalog/internal/resolver"
	gcsstore "github.com/JakeFAU/gamecatalog/internal/storage/gcs"
	"github.com/JakeFAU/gamecatalog/internal/storage/postgres"
)

// Client factories are variables so tests can run without cloud credentials.
var (
	newStorageClient = func(ctx context.Context) (*storage.Client, error) {
		return storage.NewClient(ctx)
	}
	newPubSubClient = func(ctx context.Context, projectID string) (*pubsub.Client, error) {
		return pubsub.NewClient(ctx, projectID)
	}
	connectPostgres = postgres.Connect
)

// App holds all the shared services for a capture run.
type App struct {
	Logger   *zap.Logger
	Pipeline *pipeline.Pipeline
	Dataset  *dataset.Store

	gcsClient    *storage.Client
	pubsubClient *pubsub.Client
	topic        *pubsub.Topic
	pool         *pgxpool.Pool
}

// New builds the capture services described by cfg. Optional mirrors (GCS,
// Postgres, Pub/Sub) are only created when configured.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Initializing capture services...")

	a := &App{Logger: logger}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	format, err := dataset.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	precedence, err := resolver.ParseImagePrecedence(cfg.Resolver.ImagePrecedence)
	if err != nil {
		return nil, err
	}
	a.Dataset = dataset.NewStore(cfg.Output.Path, format, logger.Named("dataset"))

	limiter := ratelimit.New(ratelimit.Config{
		MinInterval: cfg.HTTP.MinInterval,
		HostRPS:     cfg.HTTP.HostRPS,
		HostBurst:   cfg.HTTP.HostBurst,
	})
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.HTTP.UserAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.HTTP.Timeout,
		MaxAttempts:   cfg.HTTP.MaxAttempts,
		BackoffFactor: cfg.HTTP.BackoffFactor,
		MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
	}, limiter, logger.Named("fetcher"))

	clock := catalog.SystemClock{}
	res := resolver.New(resolver.Options{
		EmbedHost:       cfg.Catalog.EmbedHost,
		ImagePrecedence: precedence,
	}, clock, logger.Named("resolver"))

	var assetOpts []asset.Option
	if cfg.Storage.GCSBucket != "" {
		mirror, err := a.openGCS(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		assetOpts = append(assetOpts, asset.WithMirror(mirror))
	}
	acquirer := asset.New(fetcher, logger.Named("asset"), assetOpts...)

	opts := []pipeline.Option{pipeline.WithIDGenerator(uuid.New())}
	if cfg.DB.DSN != "" {
		dbOpts, err := a.openPostgres(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dbOpts...)
	}
	if cfg.PubSub.TopicName != "" {
		publisher, err := a.openPubSub(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithPublisher(publisher))
	}

	a.Pipeline = pipeline.New(
		pipeline.Config{
			BaseURL:  cfg.Catalog.BaseURL,
			ImageDir: cfg.Assets.Dir,
			Topic:    cfg.PubSub.TopicName,
		},
		fetcher,
		res,
		acquirer,
		clock,
		logger.Named("pipeline"),
		opts...,
	)

	logger.Info("Capture services initialized.")
	ready = true
	return a, nil
}

func (a *App) openGCS(ctx context.Context, cfg config.StorageConfig) (*gcsstore.BlobStore, error) {
	a.Logger.Info("Mirroring cover images to GCS", zap.String("bucket", cfg.GCSBucket))
	client, err := newStorageClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	a.gcsClient = client
	store, err := gcsstore.New(client, gcsstore.Config{Bucket: cfg.GCSBucket, Prefix: cfg.GCSPrefix})
	if err != nil {
		return nil, fmt.Errorf("init gcs blob store: %w", err)
	}
	return store, nil
}

func (a *App) openPostgres(ctx context.Context, cfg config.DBConfig) ([]pipeline.Option, error) {
	a.Logger.Info("Mirroring records to PostgreSQL", zap.String("table", cfg.Table))
	pool, err := connectPostgres(ctx, postgres.Config{DSN: cfg.DSN, MaxConns: int32(cfg.MaxConns)}) //nolint:gosec // small config value
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool
	records, err := postgres.NewRecordStore(pool, cfg.Table)
	if err != nil {
		return nil, fmt.Errorf("init record store: %w", err)
	}
	runs, err := postgres.NewRunStore(pool, cfg.RunTable)
	if err != nil {
		return nil, fmt.Errorf("init run store: %w", err)
	}
	return []pipeline.Option{pipeline.WithRecordStore(records), pipeline.WithRunLedger(runs)}, nil
}

func (a *App) openPubSub(ctx context.Context, cfg config.PubSubConfig) (*pubsubpublisher.Publisher, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("pubsub.project_id is required when pubsub.topic_name is set")
	}
	a.Logger.Info("Publishing capture events to Pub/Sub", zap.String("topic", cfg.TopicName))
	client, err := newPubSubClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	a.pubsubClient = client
	a.topic = client.Topic(cfg.TopicName)
	return pubsubpublisher.New(a.topic), nil
}

// Close releases every client opened by New. It is safe to call more than once.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.topic != nil {
		a.topic.Stop()
		a.topic = nil
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.Logger.Warn("Error closing pubsub client", zap.Error(err))
		}
		a.pubsubClient = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.Logger.Warn("Error closing storage client", zap.Error(err))
		}
		a.gcsClient = nil
	}
}
