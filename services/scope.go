package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"study-notes-platform/internal/docstore"
	"study-notes-platform/models"
	"study-notes-platform/utils"
)

// ScopeResolver turns a scope selector into the text handed to generation.
type ScopeResolver struct {
	docs docstore.Store
}

func NewScopeResolver(docs docstore.Store) *ScopeResolver {
	return &ScopeResolver{docs: docs}
}

// Resolve loads the document and applies scope to it.
func (r *ScopeResolver) Resolve(ctx context.Context, documentID string, scope models.Scope) (string, error) {
	ctx, span := otel.Tracer("scope").Start(ctx, "scope.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.id", documentID),
		attribute.String("scope.type", string(scope.Kind)),
	)

	doc, err := r.docs.Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	text, err := ApplyScope(doc, scope)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.Int("scope.chars", len(text)))
	return text, nil
}

// ApplyScope selects text from doc.
//
//   - all (or no kind): ExtractedText verbatim.
//   - pages: chunks whose 1-based page is requested, in chunk order, joined
//     by a blank line. Out-of-range pages select nothing.
//   - topics: text nodes referenced by any requested topic, in document
//     order, joined by single spaces. Unknown topic or node ids select
//     nothing.
//
// An empty page or topic list selects the whole document.
func ApplyScope(doc *models.Document, scope models.Scope) (string, error) {
	switch scope.Kind {
	case "", models.ScopeAll:
		return doc.ExtractedText, nil

	case models.ScopePages:
		if len(scope.Pages) == 0 {
			return doc.ExtractedText, nil
		}
		want := make(map[int]bool, len(scope.Pages))
		for _, p := range scope.Pages {
			want[p] = true
		}
		var parts []string
		for _, c := range doc.Chunks {
			if want[c.Metadata.PageIndex+1] {
				parts = append(parts, c.Content)
			}
		}
		return strings.Join(parts, "\n\n"), nil

	case models.ScopeTopics:
		if len(scope.Topics) == 0 {
			return doc.ExtractedText, nil
		}
		requested := make(map[string]bool, len(scope.Topics))
		for _, id := range scope.Topics {
			requested[id] = true
		}
		nodes := make(map[string]bool)
		for _, t := range doc.Topics {
			if !requested[t.ID] {
				continue
			}
			for _, id := range t.Nodes {
				nodes[id] = true
			}
		}
		var parts []string
		for _, page := range doc.Structure {
			for _, n := range page.Nodes {
				if n.Type == models.NodeTypeText && nodes[n.ID] {
					parts = append(parts, n.Content.Text)
				}
			}
		}
		return strings.Join(parts, " "), nil

	default:
		return "", fmt.Errorf("%w: unknown scope type %q", utils.ErrInvalidScope, scope.Kind)
	}
}
