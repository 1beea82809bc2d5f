package observability

import (
	"context"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, handler, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	if metrics == nil {
		t.Fatal("Expected metrics to be non-nil")
	}

	if handler == nil {
		t.Fatal("Expected handler to be non-nil")
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordHTTPRequest(ctx, "GET", "/healthz", 200, 0.001)
	metrics.RecordHTTPRequest(ctx, "POST", "/v1/runs", 200, 0.050)
	metrics.RecordHTTPRequest(ctx, "GET", "/v1/tools/musetalk", 200, 0.010)
	metrics.RecordHTTPRequest(ctx, "GET", "/v1/tools/nope", 404, 0.005)
	metrics.RecordHTTPRequest(ctx, "POST", "/v1/runs", 502, 0.001)
}

func TestRecordRunMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordRunStarted(ctx, "musetalk")
	metrics.RecordRun(ctx, "musetalk", "completed", 312.5)
	metrics.RecordRunStarted(ctx, "wan2gp")
	metrics.RecordRun(ctx, "wan2gp", "failed", 8221.0)
	metrics.RecordArtifacts(ctx, "comfyui", 4)
	metrics.RecordSubmission(ctx, "musetalk", true)
	metrics.RecordSubmission(ctx, "wan2gp", false)
	metrics.RecordHeartbeat(ctx, "wan2gp")
	metrics.RecordWait(ctx, "wan2gp", "received", 7200.0)
	metrics.RecordWait(ctx, "musetalk", "timed_out", 1200.0)
}

func TestRecordNotifyMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordNotifyDelivered(ctx, 0.05)
	metrics.RecordNotifyFailed(ctx)
	metrics.RecordNotifyDropped(ctx)
	metrics.RecordNotifyRequeued(ctx)
	metrics.RecordNotifyQueueSize(ctx, 12)
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		expected string
	}{
		{"/healthz", "/healthz"},
		{"/metrics", "/metrics"},
		{"/v1/runs", "/v1/runs"},
		{"/v1/tools", "/v1/tools"},
		{"/v1/tools/musetalk", "/v1/tools/{tool}"},
		{"/v1/tools/comfyui", "/v1/tools/{tool}"},
		{"/other/path", "/other/path"},
	}

	for _, tt := range tests {
		result := normalizePath(tt.input)
		if result != tt.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
