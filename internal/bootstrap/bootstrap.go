// Package bootstrap connects the stores and clients shared by the API server
// and the ingestion worker.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"study-notes-platform/internal/ai"
	"study-notes-platform/internal/blobstore"
	"study-notes-platform/internal/chunker"
	"study-notes-platform/internal/config"
	"study-notes-platform/internal/docstore"
	"study-notes-platform/internal/extractor"
	"study-notes-platform/internal/jobs"
	"study-notes-platform/internal/logger"
	"study-notes-platform/internal/telemetry"
	"study-notes-platform/internal/vectorindex"
	"study-notes-platform/services"
)

const (
	tempIndexMaxAge     = time.Hour
	indexSweepEvery     = 10 * time.Minute
	memoryJobSweepEvery = time.Minute
)

// Deps holds everything both binaries build from configuration.
type Deps struct {
	Config     *config.Config
	Metrics    *telemetry.Metrics
	Blobs      blobstore.Store
	Docs       docstore.Store
	IndexStore *vectorindex.FileStore
	Indexes    *vectorindex.Manager
	Embedder   ai.Embedder
	Redis      *redis.Client
	Janitor    *jobs.Janitor

	closers []func(context.Context) error
}

// Open connects every backend selected by cfg. Redis is connected only for
// the asynq queue backend.
func Open(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*Deps, error) {
	d := &Deps{Config: cfg, Metrics: metrics, Janitor: jobs.NewJanitor()}
	ok := false
	defer func() {
		if !ok {
			d.Close(context.Background())
		}
	}()

	switch cfg.DocStoreBackend {
	case "memory":
		d.Docs = docstore.NewMemoryStore()
		logger.Warn("Using in-memory document store, documents are lost on restart")
	default:
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func(ctx context.Context) error { return client.Disconnect(ctx) })
		d.Docs = docstore.NewMongoStore(client.Database(cfg.DBName), config.DocumentsCollection)
	}

	blobs, err := blobstore.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	d.Blobs = blobs

	d.IndexStore, err = vectorindex.NewFileStore(cfg.IndexStorageDir)
	if err != nil {
		return nil, err
	}
	d.Indexes = vectorindex.NewManager(d.IndexStore)
	if err := d.Janitor.Every("index-temp-sweep", indexSweepEvery, func() (int, error) {
		return d.IndexStore.SweepTemp(tempIndexMaxAge)
	}); err != nil {
		return nil, err
	}

	embedder, closeEmbedder, err := ai.NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	d.Embedder = embedder
	d.closers = append(d.closers, func(context.Context) error { return closeEmbedder() })

	if cfg.QueueBackend == "asynq" {
		rdb, err := config.NewRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		d.Redis = rdb
		d.closers = append(d.closers, func(context.Context) error { return rdb.Close() })
	}

	ok = true
	return d, nil
}

// JobStore returns the Redis-backed store when Redis is connected and an
// in-memory store swept by the janitor otherwise.
func (d *Deps) JobStore() (jobs.Store, error) {
	if d.Redis != nil {
		return jobs.NewRedisStore(d.Redis, d.Config.JobRetention), nil
	}
	store := jobs.NewMemoryStore(d.Config.JobRetention)
	if err := d.Janitor.Every("job-retention-sweep", memoryJobSweepEvery, jobs.MemorySweep(store)); err != nil {
		return nil, err
	}
	return store, nil
}

// NewIngestor wires the extraction, chunking and indexing stages.
func (d *Deps) NewIngestor(jobStore jobs.Store) *services.Ingestor {
	chk := chunker.New(
		chunker.WithChunkSize(d.Config.ChunkSize),
		chunker.WithOverlap(d.Config.ChunkOverlap),
	)
	return services.NewIngestor(d.Blobs, extractor.New(), chk, d.Indexes, d.Embedder, d.Docs, jobStore, d.Metrics)
}

// Close releases connections in reverse order of opening.
func (d *Deps) Close(ctx context.Context) error {
	d.Janitor.Stop()
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
