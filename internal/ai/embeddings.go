package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	genai "github.com/google/generative-ai-go/genai"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"study-notes-platform/internal/config"
)

const (
	embedBatchSize   = 100
	embedConcurrency = 4
	hashDimension    = 256
)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewEmbedder picks the embedding backend from EMBEDDINGS_PROVIDER.
func NewEmbedder(ctx context.Context, cfg *config.Config) (Embedder, func() error, error) {
	switch cfg.EmbeddingsProvider {
	case "google", "":
		if cfg.GeminiAPIKey == "" {
			return nil, nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
		}
		e, err := NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.GeminiEmbeddingModel)
		if err != nil {
			return nil, nil, err
		}
		return e, e.Close, nil
	case "local":
		return HashEmbedder{Dimension: hashDimension}, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}

// GeminiEmbedder calls the batch embedding endpoint.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	em := g.client.EmbeddingModel(g.model)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(embedConcurrency)
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		eg.Go(func() error {
			b := em.NewBatch()
			for _, t := range texts[start:end] {
				b.AddContent(genai.Text(t))
			}
			resp, err := em.BatchEmbedContents(ctx, b)
			if err != nil {
				return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			if len(resp.Embeddings) != end-start {
				return fmt.Errorf("embed batch %d-%d: got %d embeddings", start, end, len(resp.Embeddings))
			}
			for i, e := range resp.Embeddings {
				if e == nil {
					return fmt.Errorf("embed batch %d-%d: no embedding for item %d", start, end, i)
				}
				out[start+i] = e.Values
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *GeminiEmbedder) Close() error {
	return g.client.Close()
}

// HashEmbedder is a deterministic bag-of-words embedder with no network
// dependency. Tokens are lowercased and hashed onto Dimension buckets.
type HashEmbedder struct {
	Dimension int
}

func (h HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dim := h.Dimension
	if dim <= 0 {
		dim = hashDimension
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, dim)
		for _, tok := range strings.FieldsFunc(strings.ToLower(t), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		}) {
			f := fnv.New32a()
			f.Write([]byte(tok))
			v[f.Sum32()%uint32(dim)]++
		}
		normalize(v)
		out[i] = v
	}
	return out, nil
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}
