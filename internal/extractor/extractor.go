// Package extractor turns uploaded bytes into cleaned text, per-page text and
// a page/node structure tree.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"study-notes-platform/internal/logger"
	"study-notes-platform/models"
	"study-notes-platform/utils"
)

// Input is one file to extract. MimeType is a hint; the bytes decide.
type Input struct {
	Data     []byte
	FileName string
	MimeType string
}

// Extraction is the cleaned output of one file.
type Extraction struct {
	MimeType  string
	Text      string
	Pages     []models.PageText
	Structure []models.Page
	Topics    []models.Topic
}

// Extractor dispatches to a format reader by sniffed type.
type Extractor struct {
	log *slog.Logger
}

func New() *Extractor {
	return &Extractor{log: logger.With("extractor")}
}

// Extract detects the input type and runs the matching reader. Unsupported
// inputs return ErrUnsupportedFileType and unreadable ones ErrExtractionFailed.
// Zero extractable text is a valid, empty extraction.
func (e *Extractor) Extract(ctx context.Context, in Input) (result *Extraction, err error) {
	ctx, span := otel.Tracer("extractor").Start(ctx, "extractor.Extract")
	defer span.End()

	mime, err := DetectMIME(in.Data, in.MimeType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unsupported type")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("file.name", in.FileName),
		attribute.String("file.mime", mime),
		attribute.Int("file.size", len(in.Data)),
	)

	// Format libraries may panic on malformed input.
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("extractor panic", "mime", mime, "file", in.FileName, "panic", r, "stack", string(debug.Stack()))
			result = nil
			err = fmt.Errorf("%w: %s reader panicked: %v", utils.ErrExtractionFailed, mime, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	switch mime {
	case MIMEPDF:
		result, err = extractPDF(in.Data)
	case MIMEPPTX:
		result, err = extractSlides(in.Data)
	case MIMEDOCX:
		result, err = extractDOCX(in.Data)
	case MIMEXLSX:
		result, err = extractSheets(in.Data)
	case MIMEHTML:
		result, err = extractHTML(in.Data)
	case MIMEPlain:
		result, err = extractPlain(in.Data)
	default:
		return nil, fmt.Errorf("%w: %s", utils.ErrUnsupportedFileType, mime)
	}
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("extract.pages", len(result.Pages)),
		attribute.Int("extract.topics", len(result.Topics)),
		attribute.Int("extract.chars", len(result.Text)),
	)
	e.log.Debug("extraction finished",
		"file", in.FileName,
		"mime", mime,
		"pages", len(result.Pages),
		"topics", len(result.Topics),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func extractPlain(data []byte) (*Extraction, error) {
	text := Clean(string(data))
	b := &builder{}
	if text != "" {
		b.addPage("", text, textBlocks(text))
	}
	return b.result(MIMEPlain), nil
}

func extractionError(format string, err error) error {
	return fmt.Errorf("%w: %s: %w", utils.ErrExtractionFailed, format, err)
}
