package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	TokensUsed          metric.Int64Counter
	IngestionDuration   metric.Float64Histogram
	JobsFinished        metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
	ParseFailures       metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("study-notes-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	ingestionDuration, err := meter.Float64Histogram(
		"ingestion.duration",
		metric.WithDescription("Extraction, chunking and indexing time per job in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	jobsFinished, err := meter.Int64Counter(
		"ingestion.jobs.finished",
		metric.WithDescription("Ingestion jobs reaching a terminal state"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	parseFailures, err := meter.Int64Counter(
		"generation.parse_failures",
		metric.WithDescription("Model responses no JSON could be recovered from"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		TokensUsed:          tokensUsed,
		IngestionDuration:   ingestionDuration,
		JobsFinished:        jobsFinished,
		CircuitBreakerState: circuitBreakerState,
		ParseFailures:       parseFailures,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	if m == nil {
		return
	}
	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(
		attribute.String("gemini.model", model),
	))
}

// RecordIngestion records one finished job and how long it ran.
func (m *Metrics) RecordIngestion(duration float64, state, mime string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("job.state", state),
		attribute.String("file.mime", mime),
	}
	m.IngestionDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
	m.JobsFinished.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("state", state),
	))
}

// RecordParseFailure counts an unrecoverable model response.
func (m *Metrics) RecordParseFailure(contentType string) {
	if m == nil {
		return
	}
	m.ParseFailures.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("content.type", contentType),
	))
}
