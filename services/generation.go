package services

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"study-notes-platform/internal/ai"
	"study-notes-platform/internal/aijson"
	"study-notes-platform/internal/logger"
	"study-notes-platform/internal/telemetry"
	"study-notes-platform/internal/vectorindex"
	"study-notes-platform/models"
	"study-notes-platform/utils"
)

// Generator is the external text model.
type Generator interface {
	Generate(ctx context.Context, prompt string, format ai.OutputFormat) (string, error)
	// GenerateStream yields fragments in order. Breaking out of the range
	// stops the upstream call.
	GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// IndexLoader reads a document's vector index.
type IndexLoader interface {
	Load(ctx context.Context, documentID string) (*vectorindex.Index, bool, error)
}

// GenerationResult is the outcome of a full-document call. Data is nil when
// a JSON response could not be recovered; Raw always holds the model text.
type GenerationResult struct {
	Data any
	Raw  string
}

// Parsed reports whether Data holds a usable value.
func (r *GenerationResult) Parsed() bool {
	return r != nil && r.Data != nil
}

type GenerationService struct {
	generator Generator
	indexes   IndexLoader
	embedder  vectorindex.Embedder
	timeout   time.Duration
	metrics   *telemetry.Metrics
	log       *slog.Logger
}

func NewGenerationService(generator Generator, indexes IndexLoader, embedder vectorindex.Embedder, timeout time.Duration, metrics *telemetry.Metrics) *GenerationService {
	return &GenerationService{
		generator: generator,
		indexes:   indexes,
		embedder:  embedder,
		timeout:   timeout,
		metrics:   metrics,
		log:       logger.With("generation"),
	}
}

func (g *GenerationService) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return utils.WithCustomTimeout(ctx, g.timeout)
}

// GenerateFullDocument sends one prompt over the whole scoped text. For JSON
// prompts an unrecoverable response is not an error: the result carries the
// raw text and a nil Data for the caller to check.
func (g *GenerationService) GenerateFullDocument(ctx context.Context, prompt Prompt) (*GenerationResult, error) {
	ctx, span := otel.Tracer("generation").Start(ctx, "generation.FullDocument")
	defer span.End()
	span.SetAttributes(attribute.String("generation.format", string(prompt.Format)))

	ctx, cancel := g.withDeadline(ctx)
	defer cancel()

	raw, err := g.generator.Generate(ctx, prompt.Text, prompt.Format)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &GenerationResult{Raw: raw}
	switch prompt.Format {
	case ai.FormatJSON:
		if v, ok := aijson.SafeParse(raw); ok {
			result.Data = v
		}
		span.SetAttributes(attribute.Bool("generation.parsed", result.Data != nil))
	default:
		result.Data = stripFence(raw)
	}
	return result, nil
}

// GenerateChunked answers query from the top-k chunks of the document index.
func (g *GenerationService) GenerateChunked(ctx context.Context, documentID, query string, settings models.ChatSettings) (*models.ChatResponse, error) {
	ctx, span := otel.Tracer("generation").Start(ctx, "generation.Chunked")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	ctx, cancel := g.withDeadline(ctx)
	defer cancel()

	prompt, sources, err := g.retrieve(ctx, documentID, query, settings)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	answer, err := g.generator.Generate(ctx, prompt, ai.FormatText)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &models.ChatResponse{DocumentID: documentID, Answer: strings.TrimSpace(answer), Sources: sources}, nil
}

// GenerateChunkedStream retrieves context eagerly, so a missing document is
// reported before any fragment, then returns the fragment sequence.
func (g *GenerationService) GenerateChunkedStream(ctx context.Context, documentID, query string, settings models.ChatSettings) (iter.Seq2[string, error], []models.Source, error) {
	prompt, sources, err := g.retrieve(ctx, documentID, query, settings)
	if err != nil {
		return nil, nil, err
	}

	seq := func(yield func(string, error) bool) {
		ctx, cancel := g.withDeadline(ctx)
		defer cancel()

		fragments := 0
		for fragment, err := range g.generator.GenerateStream(ctx, prompt) {
			if err != nil {
				yield("", err)
				return
			}
			fragments++
			if !yield(fragment, nil) {
				g.log.Debug("stream consumer stopped", "document_id", documentID, "fragments", fragments)
				return
			}
		}
	}
	return seq, sources, nil
}

func (g *GenerationService) retrieve(ctx context.Context, documentID, query string, settings models.ChatSettings) (string, []models.Source, error) {
	settings = settings.WithDefaults()

	idx, found, err := g.indexes.Load(ctx, documentID)
	if err != nil {
		return "", nil, fmt.Errorf("load index: %w", err)
	}
	if !found {
		return "", nil, utils.ErrDocumentNotFound
	}

	matches, err := idx.SimilaritySearch(ctx, g.embedder, query, settings.TopK)
	if err != nil {
		return "", nil, fmt.Errorf("%w: similarity search: %w", utils.ErrGenerationUpstreamFailed, err)
	}

	chunks := make([]models.Chunk, len(matches))
	sources := make([]models.Source, len(matches))
	for i, m := range matches {
		chunks[i] = m.Chunk
		sources[i] = models.Source{PageIndex: m.Chunk.Metadata.PageIndex, SlideTitle: m.Chunk.Metadata.SlideTitle, Score: m.Score}
	}
	return buildChatPrompt(query, chunks, settings), sources, nil
}

// stripFence removes a wrapping ``` block from HTML or text output.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], " <") {
		s = s[nl+1:]
	}
	return strings.TrimSpace(s)
}
