package ai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"study-notes-platform/internal/logger"
	"study-notes-platform/internal/telemetry"
	"study-notes-platform/utils"
)

// OutputFormat hints the response shape the caller expects.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatHTML OutputFormat = "html"
)

type GeminiClient struct {
	client      *genai.Client
	model       string
	tier        string
	breaker     *gobreaker.TwoStepCircuitBreaker
	rateLimiter *rate.Limiter
	metrics     *telemetry.Metrics
	log         *slog.Logger
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func NewGeminiClient(ctx context.Context, apiKey, model, tier string, metrics *telemetry.Metrics) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	log := logger.With("gemini")
	limits := getRateLimits(tier)

	breaker := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), max(limits.RPM/10, 1))

	return &GeminiClient{
		client:      client,
		model:       model,
		tier:        tier,
		breaker:     breaker,
		rateLimiter: rateLimiter,
		metrics:     metrics,
		log:         log,
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

func (gc *GeminiClient) newModel(format OutputFormat) *genai.GenerativeModel {
	model := gc.client.GenerativeModel(gc.model)
	model.SetTemperature(0.4)
	model.SetMaxOutputTokens(8192)
	if format == FormatJSON {
		model.ResponseMIMEType = "application/json"
	}
	return model
}

// admit waits for the rate limiter and the breaker. The returned func must be
// called with the outcome of the upstream call.
func (gc *GeminiClient) admit(ctx context.Context) (func(error), error) {
	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", utils.ErrGenerationUpstreamFailed, err)
	}
	done, err := gc.breaker.Allow()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrGenerationUpstreamFailed, err)
	}
	return func(callErr error) {
		// A caller hanging up says nothing about upstream health.
		done(callErr == nil || errors.Is(callErr, context.Canceled))
	}, nil
}

// Generate sends one prompt and returns the full response text.
func (gc *GeminiClient) Generate(ctx context.Context, prompt string, format OutputFormat) (string, error) {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.generate_content")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", gc.model),
		attribute.String("gemini.format", string(format)),
		attribute.Int("gemini.prompt_chars", len(prompt)),
	)

	done, err := gc.admit(ctx)
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.rejected", true))
		span.RecordError(err)
		return "", err
	}

	resp, err := gc.newModel(format).GenerateContent(ctx, genai.Text(prompt))
	done(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%w: %w", utils.ErrGenerationUpstreamFailed, err)
	}

	gc.recordUsage(resp)
	text := responseText(resp)
	if text == "" {
		err := fmt.Errorf("%w: empty response (%s)", utils.ErrGenerationUpstreamFailed, finishReason(resp))
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.Int("gemini.response_chars", len(text)))
	return text, nil
}

// GenerateStream yields response fragments in generation order. Errors are
// yielded once, after which the sequence ends. Stopping the range early
// cancels the upstream request.
func (gc *GeminiClient) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.generate_stream")
		defer span.End()
		span.SetAttributes(attribute.String("gemini.model", gc.model))

		done, err := gc.admit(ctx)
		if err != nil {
			span.RecordError(err)
			yield("", err)
			return
		}

		var streamErr error
		defer func() { done(streamErr) }()

		it := gc.newModel(FormatText).GenerateContentStream(ctx, genai.Text(prompt))
		fragments := 0
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				span.SetAttributes(attribute.Int("gemini.fragments", fragments))
				return
			}
			if err != nil {
				streamErr = err
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				yield("", fmt.Errorf("%w: %w", utils.ErrGenerationUpstreamFailed, err))
				return
			}
			gc.recordUsage(resp)
			text := responseText(resp)
			if text == "" {
				continue
			}
			fragments++
			if !yield(text, nil) {
				span.SetAttributes(attribute.Bool("gemini.consumer_stopped", true))
				return
			}
		}
	}
}

func (gc *GeminiClient) recordUsage(resp *genai.GenerateContentResponse) {
	if resp != nil && resp.UsageMetadata != nil {
		gc.metrics.RecordTokensUsed(int64(resp.UsageMetadata.TotalTokenCount), gc.model)
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

func finishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return "no candidates"
	}
	return resp.Candidates[0].FinishReason.String()
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
