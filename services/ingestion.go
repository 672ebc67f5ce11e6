package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"study-notes-platform/internal/blobstore"
	"study-notes-platform/internal/chunker"
	"study-notes-platform/internal/docstore"
	"study-notes-platform/internal/extractor"
	"study-notes-platform/internal/jobs"
	"study-notes-platform/internal/logger"
	"study-notes-platform/internal/telemetry"
	"study-notes-platform/internal/vectorindex"
	"study-notes-platform/models"
	"study-notes-platform/utils"
)

// Progress milestones reported while a job runs.
const (
	progressStarted   = 10
	progressExtracted = 50
	progressChunked   = 70
	progressIndexed   = 90
)

// IndexBuilder builds and removes per-document vector indexes.
type IndexBuilder interface {
	Build(ctx context.Context, documentID string, chunks []models.Chunk, embed vectorindex.Embedder) (*vectorindex.Index, error)
	Delete(ctx context.Context, documentID string) error
}

// Ingestor runs extraction, chunking and indexing for one job and commits
// the document only when all three succeeded.
type Ingestor struct {
	blobs     blobstore.Store
	extractor *extractor.Extractor
	chunker   *chunker.Chunker
	indexes   IndexBuilder
	embedder  vectorindex.Embedder
	docs      docstore.Store
	jobs      jobs.Store
	metrics   *telemetry.Metrics
	log       *slog.Logger
}

func NewIngestor(
	blobs blobstore.Store,
	ext *extractor.Extractor,
	chk *chunker.Chunker,
	indexes IndexBuilder,
	embedder vectorindex.Embedder,
	docs docstore.Store,
	jobStore jobs.Store,
	metrics *telemetry.Metrics,
) *Ingestor {
	return &Ingestor{
		blobs:     blobs,
		extractor: ext,
		chunker:   chk,
		indexes:   indexes,
		embedder:  embedder,
		docs:      docs,
		jobs:      jobStore,
		metrics:   metrics,
		log:       logger.With("ingestion"),
	}
}

// Handle is a jobs.Handler. A failing delivery marks the job failed only
// when final is set or the error is permanent; otherwise the job stays
// active and the error is returned so the queue redelivers it.
func (in *Ingestor) Handle(ctx context.Context, task jobs.Task, final bool) (err error) {
	log := in.log.With("job_id", task.JobID, "document_id", task.Payload.DocumentID)

	if err := in.jobs.MarkActive(ctx, task.JobID); err != nil {
		if errors.Is(err, jobs.ErrJobTerminal) || errors.Is(err, utils.ErrJobNotFound) {
			log.Warn("skipping delivery", "reason", err.Error())
			return jobs.ErrJobTerminal
		}
		return err
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("ingestion panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: panic: %v", utils.ErrExtractionFailed, r)
		}
		if err == nil {
			return
		}
		if !final && !utils.IsPermanent(err) {
			log.Warn("ingestion attempt failed, will retry", "error", err)
			return
		}
		in.fail(ctx, task, err, log)
		in.metrics.RecordIngestion(time.Since(start).Seconds(), string(models.JobFailed), task.Payload.MimeType)
		err = fmt.Errorf("%w: %w", utils.ErrJobFailed, err)
	}()

	result, err := in.run(ctx, task, log)
	if err != nil {
		return err
	}

	if err := in.jobs.Complete(ctx, task.JobID, *result); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	in.metrics.RecordIngestion(time.Since(start).Seconds(), string(models.JobCompleted), task.Payload.MimeType)

	if err := in.blobs.Delete(ctx, task.Payload.FilePath); err != nil {
		log.Warn("failed to delete uploaded file", "key", task.Payload.FilePath, "error", err)
	}
	log.Info("ingestion completed", "stage", "done", "progress", 100, "chunks", result.ChunkCount, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (in *Ingestor) run(ctx context.Context, task jobs.Task, log *slog.Logger) (*models.JobResult, error) {
	ctx, span := otel.Tracer("ingestion").Start(ctx, "ingestion.Run")
	defer span.End()
	p := task.Payload
	span.SetAttributes(
		attribute.String("job.id", task.JobID),
		attribute.String("document.id", p.DocumentID),
		attribute.String("file.mime", p.MimeType),
	)

	in.progress(ctx, task.JobID, progressStarted, "extract", log)
	data, err := in.blobs.Get(ctx, p.FilePath)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: uploaded file %s is gone", utils.ErrExtractionFailed, p.FilePath)
	}
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	ext, err := in.extractor.Extract(ctx, extractor.Input{Data: data, FileName: p.FileName, MimeType: p.MimeType})
	if err != nil {
		return nil, err
	}
	in.progress(ctx, task.JobID, progressExtracted, "chunk", log)

	chunks := in.chunker.Split(p.DocumentID, p.FileName, ext.Pages)
	in.progress(ctx, task.JobID, progressChunked, "index", log)

	if _, err := in.indexes.Build(ctx, p.DocumentID, chunks, in.embedder); err != nil {
		return nil, err
	}
	in.progress(ctx, task.JobID, progressIndexed, "commit", log)

	doc := &models.Document{
		ID:            p.DocumentID,
		FileName:      p.FileName,
		MimeType:      ext.MimeType,
		FileHash:      utils.ContentHash(data),
		ExtractedText: ext.Text,
		Chunks:        chunks,
		Structure:     ext.Structure,
		Topics:        ext.Topics,
	}
	if err := in.docs.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	return &models.JobResult{
		DocumentID: p.DocumentID,
		ChunkCount: len(chunks),
		PageCount:  len(ext.Structure),
		TopicCount: len(ext.Topics),
	}, nil
}

func (in *Ingestor) progress(ctx context.Context, jobID string, pct int, stage string, log *slog.Logger) {
	if err := in.jobs.SetProgress(ctx, jobID, pct); err != nil {
		log.Warn("progress update failed", "stage", stage, "error", err)
		return
	}
	log.Info("ingestion stage", "stage", stage, "progress", pct)
}

// fail records the terminal failure. The document id belongs to this job
// alone, so anything an attempt committed under it is removed and a failed
// job never leaves a readable document behind.
func (in *Ingestor) fail(ctx context.Context, task jobs.Task, cause error, log *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	if err := in.jobs.Fail(ctx, task.JobID, cause.Error()); err != nil {
		if errors.Is(err, jobs.ErrJobTerminal) {
			if job, getErr := in.jobs.Get(ctx, task.JobID); getErr == nil && job.State == models.JobCompleted {
				log.Warn("job already completed, keeping its document", "error", cause)
				return
			}
		} else {
			log.Error("failed to record job failure", "error", err)
		}
	}
	if err := in.docs.Delete(ctx, task.Payload.DocumentID); err != nil && !errors.Is(err, utils.ErrDocumentNotFound) {
		log.Warn("failed to remove document of failed job", "error", err)
	}
	if err := in.indexes.Delete(ctx, task.Payload.DocumentID); err != nil {
		log.Warn("failed to remove orphaned index", "error", err)
	}
	log.Error("ingestion failed", "stage", "failed", "error", cause)
}
