// Package vectorindex builds, persists and searches one similarity index per
// document.
package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"study-notes-platform/models"
)

// Embedder maps texts to vectors, one per text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Record is one indexed chunk.
type Record struct {
	Content  string               `json:"content"`
	Metadata models.ChunkMetadata `json:"metadata"`
	Vector   []float32            `json:"vector"`
}

// Index is the searchable form of a document's chunks.
type Index struct {
	DocumentID string    `json:"documentId"`
	Dimension  int       `json:"dimension"`
	BuiltAt    time.Time `json:"builtAt"`
	Records    []Record  `json:"records"`
}

// Match is a search hit.
type Match struct {
	Chunk models.Chunk
	Score float64
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	return len(idx.Records)
}

// SimilaritySearch returns up to k chunks ranked by cosine similarity to
// query. An empty query ranks every chunk equally and returns them in chunk
// order, so k >= Len returns the whole document.
func (idx *Index) SimilaritySearch(ctx context.Context, embed Embedder, query string, k int) ([]Match, error) {
	if k <= 0 || len(idx.Records) == 0 {
		return []Match{}, nil
	}
	if k > len(idx.Records) {
		k = len(idx.Records)
	}

	if strings.TrimSpace(query) == "" {
		out := make([]Match, 0, k)
		for _, r := range idx.Records[:k] {
			out = append(out, Match{Chunk: r.chunk()})
		}
		return out, nil
	}

	vecs, err := embed.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vecs))
	}
	q := vecs[0]

	scores := make([]float64, len(idx.Records))
	for i, r := range idx.Records {
		scores[i] = cosine(r.Vector, q)
	}
	order := argsortDesc(scores)

	out := make([]Match, 0, k)
	for _, i := range order[:k] {
		out = append(out, Match{Chunk: idx.Records[i].chunk(), Score: scores[i]})
	}
	return out, nil
}

func (r Record) chunk() models.Chunk {
	return models.Chunk{Content: r.Content, Metadata: r.Metadata}
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// argsortDesc orders indexes by descending score; ties keep chunk order.
func argsortDesc(scores []float64) []int {
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(i, j int) bool { return scores[idxs[i]] > scores[idxs[j]] })
	return idxs
}
