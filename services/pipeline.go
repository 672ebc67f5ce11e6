package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"study-notes-platform/internal/blobstore"
	"study-notes-platform/internal/docstore"
	"study-notes-platform/internal/extractor"
	"study-notes-platform/internal/jobs"
	"study-notes-platform/internal/logger"
	"study-notes-platform/internal/merge"
	"study-notes-platform/internal/scraper"
	"study-notes-platform/internal/telemetry"
	"study-notes-platform/models"
	"study-notes-platform/utils"
)

// PageFetcher downloads a web page for HTML ingestion.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*scraper.Page, error)
}

// IndexRemover drops a document's vector index.
type IndexRemover interface {
	Delete(ctx context.Context, documentID string) error
}

// Pipeline is the entry point used by the HTTP layer.
type Pipeline struct {
	blobs     blobstore.Store
	jobs      jobs.Store
	publisher jobs.Publisher
	docs      docstore.Store
	indexes   IndexRemover
	scope     *ScopeResolver
	gen       *GenerationService
	fetcher   PageFetcher
	metrics   *telemetry.Metrics
	log       *slog.Logger
}

type PipelineDeps struct {
	Blobs      blobstore.Store
	Jobs       jobs.Store
	Publisher  jobs.Publisher
	Docs       docstore.Store
	Indexes    IndexRemover
	Generation *GenerationService
	Fetcher    PageFetcher
	Metrics    *telemetry.Metrics
}

func NewPipeline(d PipelineDeps) *Pipeline {
	return &Pipeline{
		blobs:     d.Blobs,
		jobs:      d.Jobs,
		publisher: d.Publisher,
		docs:      d.Docs,
		indexes:   d.Indexes,
		scope:     NewScopeResolver(d.Docs),
		gen:       d.Generation,
		fetcher:   d.Fetcher,
		metrics:   d.Metrics,
		log:       logger.With("pipeline"),
	}
}

// Ingest stores the upload and enqueues its ingestion job. It returns once
// the job is queued; extraction happens in a worker.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, fileName, mimeType string) (*models.IngestResponse, error) {
	detected, err := extractor.DetectMIME(data, mimeType)
	if err != nil {
		return nil, err
	}

	documentID := uuid.NewString()
	key := path.Join("uploads", documentID, safeFileName(fileName))

	putCtx, cancel := utils.WithLongTimeout(ctx)
	err = p.blobs.Put(putCtx, key, data, detected)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	payload := models.JobPayload{FilePath: key, FileName: fileName, MimeType: detected, DocumentID: documentID}
	job, err := p.jobs.Create(ctx, payload)
	if err != nil {
		return nil, err
	}

	if err := p.publisher.Publish(ctx, jobs.Task{JobID: job.ID, Payload: payload}); err != nil {
		reason := fmt.Sprintf("enqueue failed: %v", err)
		if ferr := p.jobs.Fail(context.WithoutCancel(ctx), job.ID, reason); ferr != nil {
			p.log.Error("failed to mark unqueued job", "job_id", job.ID, "error", ferr)
		}
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	p.log.Info("document queued", "job_id", job.ID, "document_id", documentID, "mime", detected, "bytes", len(data))
	return &models.IngestResponse{
		JobID:      job.ID,
		DocumentID: documentID,
		Status:     string(job.State),
		Message:    "Document queued for processing",
	}, nil
}

// IngestHTML ingests pasted HTML, or the page at req.URL when no HTML is given.
func (p *Pipeline) IngestHTML(ctx context.Context, req models.HTMLIngestRequest) (*models.IngestResponse, error) {
	html := req.HTML
	name := req.FileName
	if strings.TrimSpace(html) == "" {
		if req.URL == "" {
			return nil, fmt.Errorf("%w: html or url is required", utils.ErrInvalidRequest)
		}
		if p.fetcher == nil {
			return nil, fmt.Errorf("%w: url ingestion is disabled", utils.ErrInvalidRequest)
		}
		page, err := p.fetcher.Fetch(ctx, req.URL)
		if err != nil {
			if errors.Is(err, scraper.ErrNotHTML) {
				return nil, fmt.Errorf("%w: %v", utils.ErrUnsupportedFileType, err)
			}
			return nil, fmt.Errorf("%w: fetch %s: %v", utils.ErrExtractionFailed, req.URL, err)
		}
		html = string(page.HTML)
		if name == "" {
			name = pageFileName(page.URL)
		}
	}
	if name == "" {
		name = "pasted.html"
	}
	return p.Ingest(ctx, []byte(html), name, extractor.MIMEHTML)
}

func (p *Pipeline) JobStatus(ctx context.Context, jobID string) (*models.Job, error) {
	return p.jobs.Get(ctx, jobID)
}

func (p *Pipeline) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	return p.docs.Get(ctx, documentID)
}

func (p *Pipeline) ListDocuments(ctx context.Context, limit int) ([]models.DocumentSummary, error) {
	return p.docs.List(ctx, limit)
}

// DeleteDocument removes the document and its index.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) error {
	if err := p.docs.Delete(ctx, documentID); err != nil {
		return err
	}
	if err := p.indexes.Delete(ctx, documentID); err != nil {
		p.log.Warn("failed to delete index", "document_id", documentID, "error", err)
	}
	return nil
}

func (p *Pipeline) ResolveScope(ctx context.Context, documentID string, scope models.Scope) (string, error) {
	return p.scope.Resolve(ctx, documentID, scope)
}

// Generate runs a full-document generation over the scoped text and stores
// the result. With appendMode the result is merged into what was stored
// before. A response no JSON could be recovered from returns the raw text
// together with ErrGenerationParseFailed and stores nothing.
func (p *Pipeline) Generate(ctx context.Context, documentID string, contentType models.ContentType, req models.GenerateRequest, appendMode bool) (*models.GenerateResponse, error) {
	text, err := p.scope.Resolve(ctx, documentID, req.Scope)
	if err != nil {
		return nil, err
	}
	prompt, err := BuildPrompt(contentType, text, req.Settings)
	if err != nil {
		return nil, err
	}

	result, err := p.gen.GenerateFullDocument(ctx, prompt)
	if err != nil {
		return nil, err
	}

	resp := &models.GenerateResponse{DocumentID: documentID, ContentType: contentType, Raw: result.Raw}
	if !result.Parsed() {
		p.metrics.RecordParseFailure(string(contentType))
		p.log.Warn("unparseable model response", "document_id", documentID, "content_type", contentType, "chars", len(result.Raw))
		return resp, utils.ErrGenerationParseFailed
	}
	resp.Raw = ""
	data := result.Data

	field := contentType.Field()
	if appendMode {
		old, found, err := p.docs.GetContent(ctx, documentID, field)
		if err != nil {
			return nil, err
		}
		if found {
			var oldData any
			if err := json.Unmarshal(old, &oldData); err != nil {
				p.log.Warn("stored content is not JSON, replacing it", "document_id", documentID, "field", field, "error", err)
			} else {
				data = merge.Content(oldData, data, contentType)
				resp.Merged = true
			}
		}
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	if err := p.docs.PutContent(ctx, documentID, field, encoded); err != nil {
		return nil, err
	}
	resp.Data = data
	return resp, nil
}

// StoredContent returns the last stored result for contentType.
func (p *Pipeline) StoredContent(ctx context.Context, documentID string, contentType models.ContentType) (json.RawMessage, error) {
	raw, found, err := p.docs.GetContent(ctx, documentID, contentType.Field())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: no %s stored", utils.ErrDocumentNotFound, contentType)
	}
	return raw, nil
}

func (p *Pipeline) Chat(ctx context.Context, documentID string, req models.ChatRequest) (*models.ChatResponse, error) {
	return p.gen.GenerateChunked(ctx, documentID, req.Query, req.Settings)
}

func (p *Pipeline) ChatStream(ctx context.Context, documentID string, req models.ChatRequest) (iter.Seq2[string, error], []models.Source, error) {
	return p.gen.GenerateChunkedStream(ctx, documentID, req.Query, req.Settings)
}

// Merge combines two JSON values with the merge rules of contentType.
func (p *Pipeline) Merge(oldRaw, newRaw json.RawMessage, contentType models.ContentType) (any, error) {
	decode := func(raw json.RawMessage) (any, error) {
		if len(raw) == 0 {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", utils.ErrInvalidRequest, err)
		}
		return v, nil
	}
	oldData, err := decode(oldRaw)
	if err != nil {
		return nil, err
	}
	newData, err := decode(newRaw)
	if err != nil {
		return nil, err
	}
	return merge.Content(oldData, newData, contentType), nil
}

func safeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}

func pageFileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "page.html"
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." || base == "" {
		return u.Host + ".html"
	}
	if !strings.Contains(base, ".") {
		base += ".html"
	}
	return base
}
