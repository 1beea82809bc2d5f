package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all application metrics covering the golden 4 signals:
// - Latency: how long requests, waits, and runs take
// - Traffic: request/run throughput
// - Errors: rate of failures
// - Saturation: active runs, notification queue depth
type Metrics struct {
	meter metric.Meter

	// HTTP metrics
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Gateway protocol metrics
	SubmissionsTotal metric.Int64Counter
	HeartbeatsTotal  metric.Int64Counter
	WaitDuration     metric.Float64Histogram

	// Run pipeline metrics
	RunDuration    metric.Float64Histogram
	RunsTotal      metric.Int64Counter
	RunErrorsTotal metric.Int64Counter
	RunsActive     metric.Int64UpDownCounter
	ArtifactsTotal metric.Int64Counter

	// Notification delivery metrics
	NotifyDuration  metric.Float64Histogram
	NotifyDelivered metric.Int64Counter
	NotifyFailed    metric.Int64Counter
	NotifyDropped   metric.Int64Counter
	NotifyRequeued  metric.Int64Counter
	NotifyQueueSize metric.Int64Gauge
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("gateclient")
	m := &Metrics{meter: meter}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SubmissionsTotal, err = meter.Int64Counter(
		"gatekeeper_submissions_total",
		metric.WithDescription("Total job submissions to gatekeepers"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HeartbeatsTotal, err = meter.Int64Counter(
		"gatekeeper_heartbeats_total",
		metric.WithDescription("Total heartbeat frames received on duplex sessions"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Waits run from seconds to hours depending on the tool.
	m.WaitDuration, err = meter.Float64Histogram(
		"gatekeeper_wait_duration_seconds",
		metric.WithDescription("Duplex wait duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 30, 60, 300, 900, 1800, 3600, 7200, 10800),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunDuration, err = meter.Float64Histogram(
		"run_duration_seconds",
		metric.WithDescription("End-to-end run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 30, 60, 300, 900, 1800, 3600, 7200, 10800),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunsTotal, err = meter.Int64Counter(
		"runs_total",
		metric.WithDescription("Total runs processed"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunErrorsTotal, err = meter.Int64Counter(
		"run_errors_total",
		metric.WithDescription("Total failed runs"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunsActive, err = meter.Int64UpDownCounter(
		"runs_active",
		metric.WithDescription("Number of currently executing runs (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ArtifactsTotal, err = meter.Int64Counter(
		"artifacts_finalized_total",
		metric.WithDescription("Total result artifacts finalized"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifyDuration, err = meter.Float64Histogram(
		"notify_duration_seconds",
		metric.WithDescription("Outcome notification delivery latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifyDelivered, err = meter.Int64Counter(
		"notify_delivered_total",
		metric.WithDescription("Total outcome notifications successfully delivered"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifyFailed, err = meter.Int64Counter(
		"notify_failed_total",
		metric.WithDescription("Total outcome notifications failed after retries"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifyDropped, err = meter.Int64Counter(
		"notify_dropped_total",
		metric.WithDescription("Total outcome notifications dropped (buffer full or max requeues)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifyRequeued, err = meter.Int64Counter(
		"notify_requeued_total",
		metric.WithDescription("Total outcome notifications requeued due to open circuit"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifyQueueSize, err = meter.Int64Gauge(
		"notify_queue_size",
		metric.WithDescription("Current number of notifications in the delivery queue (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordSubmission records one job submission attempt.
func (m *Metrics) RecordSubmission(ctx context.Context, toolName string, ok bool) {
	m.SubmissionsTotal.Add(ctx, 1, metric.WithAttributes(toolAttr(toolName), successAttr(ok)))
}

// RecordHeartbeat records one heartbeat frame.
func (m *Metrics) RecordHeartbeat(ctx context.Context, toolName string) {
	m.HeartbeatsTotal.Add(ctx, 1, metric.WithAttributes(toolAttr(toolName)))
}

// RecordWait records one duplex wait with its outcome.
func (m *Metrics) RecordWait(ctx context.Context, toolName, outcome string, durationSeconds float64) {
	m.WaitDuration.Record(ctx, durationSeconds, metric.WithAttributes(toolAttr(toolName), outcomeAttr(outcome)))
}

// RecordRunStarted records a run entering execution.
func (m *Metrics) RecordRunStarted(ctx context.Context, toolName string) {
	m.RunsActive.Add(ctx, 1, metric.WithAttributes(toolAttr(toolName)))
}

// RecordRun records a finished run with its outcome.
func (m *Metrics) RecordRun(ctx context.Context, toolName, outcome string, durationSeconds float64) {
	attrs := metric.WithAttributes(toolAttr(toolName), outcomeAttr(outcome))
	m.RunDuration.Record(ctx, durationSeconds, attrs)
	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunsActive.Add(ctx, -1, metric.WithAttributes(toolAttr(toolName)))
	if outcome == "failed" {
		m.RunErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordArtifacts records finalized artifacts of one run.
func (m *Metrics) RecordArtifacts(ctx context.Context, toolName string, count int) {
	m.ArtifactsTotal.Add(ctx, int64(count), metric.WithAttributes(toolAttr(toolName)))
}

// RecordNotifyDelivered records a successful notification delivery.
func (m *Metrics) RecordNotifyDelivered(ctx context.Context, durationSeconds float64) {
	m.NotifyDelivered.Add(ctx, 1)
	m.NotifyDuration.Record(ctx, durationSeconds)
}

// RecordNotifyFailed records a failed notification delivery.
func (m *Metrics) RecordNotifyFailed(ctx context.Context) {
	m.NotifyFailed.Add(ctx, 1)
}

// RecordNotifyDropped records a dropped notification.
func (m *Metrics) RecordNotifyDropped(ctx context.Context) {
	m.NotifyDropped.Add(ctx, 1)
}

// RecordNotifyRequeued records a requeued notification.
func (m *Metrics) RecordNotifyRequeued(ctx context.Context) {
	m.NotifyRequeued.Add(ctx, 1)
}

// RecordNotifyQueueSize records the current delivery queue size.
func (m *Metrics) RecordNotifyQueueSize(ctx context.Context, size int64) {
	m.NotifyQueueSize.Record(ctx, size)
}
