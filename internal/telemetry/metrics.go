package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	UploadDuration      metric.Float64Histogram
	ChunksIngested      metric.Int64Counter
	EmbeddingCalls      metric.Int64Counter
	ChatRequests        metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
	VectorStoreOps      metric.Int64Counter
}

// InitMetrics initializes all application metrics against the global meter provider
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("pdf-chat-service")

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

	uploadDuration, err := meter.Float64Histogram(
		"pdf.ingest.duration",
		metric.WithDescription("PDF ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksIngested, err := meter.Int64Counter(
		"pdf.chunks.ingested",
		metric.WithDescription("Chunks written to the vector store"),
	)
	if err != nil {
		return nil, err
	}

	embeddingCalls, err := meter.Int64Counter(
		"embedding.calls.total",
		metric.WithDescription("Embedding provider calls"),
	)
	if err != nil {
		return nil, err
	}

	chatRequests, err := meter.Int64Counter(
		"chat.requests.total",
		metric.WithDescription("Chat requests answered or failed"),
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

	vectorStoreOps, err := meter.Int64Counter(
		"vectorstore.operations.total",
		metric.WithDescription("Total vector store operations"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		UploadDuration:      uploadDuration,
		ChunksIngested:      chunksIngested,
		EmbeddingCalls:      embeddingCalls,
		ChatRequests:        chatRequests,
		CircuitBreakerState: circuitBreakerState,
		VectorStoreOps:      vectorStoreOps,
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

// RecordIngest records one finished ingestion
func (m *Metrics) RecordIngest(duration float64, chunks int, status string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("pdf.status", status))

	m.UploadDuration.Record(context.Background(), duration, attrs)
	if chunks > 0 {
		m.ChunksIngested.Add(context.Background(), int64(chunks), attrs)
	}
}

func (m *Metrics) RecordEmbedding(provider string, success bool) {
	if m == nil {
		return
	}
	m.EmbeddingCalls.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("embedding.provider", provider),
		attribute.Bool("embedding.success", success),
	))
}

func (m *Metrics) RecordChat(status string) {
	if m == nil {
		return
	}
	m.ChatRequests.Add(context.Background(), 1, metric.WithAttributes(attribute.String("chat.status", status)))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordVectorStoreOperation records vector store operation metrics
func (m *Metrics) RecordVectorStoreOperation(operation, provider string, success bool) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("vectorstore.operation", operation),
		attribute.String("vectorstore.provider", provider),
		attribute.Bool("vectorstore.success", success),
	}

	m.VectorStoreOps.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
