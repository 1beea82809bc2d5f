package dispatcher

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"gateclient/internal/runner"
	"gateclient/internal/testutil"
	"gateclient/pkg/circuitbreaker"
)

func testConfig() MemoryConfig {
	return MemoryConfig{BufferSize: 16, Workers: 2, HTTPTimeout: 2 * time.Second}
}

func testOutcome(status string) runner.Outcome {
	return runner.Outcome{
		RunID:       "run-1",
		JobID:       "job-1",
		Tool:        "musetalk",
		Status:      status,
		CompletedAt: time.Now().UTC(),
	}
}

func TestNotifyOutcomeDeliversCloudEvent(t *testing.T) {
	t.Parallel()
	type received struct {
		body    []byte
		headers http.Header
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{body: body, headers: r.Header}
	}))
	defer srv.Close()

	d := NewMemory(testConfig(), nil)
	defer d.Close(context.Background())

	d.NotifyOutcome(srv.URL, testOutcome("completed"))

	var rec received
	select {
	case rec = <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("notification never arrived")
	}

	if ct := rec.headers.Get("Ce-Type"); ct != "com.gateclient.run.completed" {
		t.Errorf("Ce-Type = %q", ct)
	}
	if id := rec.headers.Get("Ce-Id"); id != "run-1" {
		t.Errorf("Ce-Id = %q", id)
	}

	var event struct {
		Subject string         `json:"subject"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.body, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Subject != "musetalk" {
		t.Errorf("subject = %q", event.Subject)
	}
	if event.Data["jobId"] != "job-1" || event.Data["status"] != "completed" {
		t.Errorf("data = %v", event.Data)
	}
}

func TestDeliveryRetriesServerError(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
	}))
	defer srv.Close()

	d := NewMemory(testConfig(), nil)
	defer d.Close(context.Background())

	d.NotifyOutcome(srv.URL, testOutcome("failed"))

	testutil.MustWaitFor(t, func() bool { return d.Stats().Delivered == 1 })
	if calls.Load() != 3 {
		t.Errorf("server calls = %d, want 3", calls.Load())
	}
	if d.Stats().RetriesTotal != 2 {
		t.Errorf("retries = %d, want 2", d.Stats().RetriesTotal)
	}
}

func TestDeliveryDoesNotRetryClientError(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewMemory(testConfig(), nil)
	defer d.Close(context.Background())

	d.NotifyOutcome(srv.URL, testOutcome("completed"))

	testutil.MustWaitFor(t, func() bool { return d.Stats().Failed == 1 })
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1 (no retry on 4xx)", calls.Load())
	}
}

func TestDispatchFullBufferDrops(t *testing.T) {
	t.Parallel()
	// No workers pull from the queue in this test: buffer size 1, the second
	// dispatch must be rejected.
	d := &Memory{
		queue:    make(chan *Notification, 1),
		shutdown: make(chan struct{}),
		logger:   slog.Default(),
		breakers: circuitbreaker.NewRegistry(circuitbreaker.Config{}),
	}

	if err := d.Dispatch(&Notification{Outcome: testOutcome("completed"), Destination: "http://x/cb"}); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if err := d.Dispatch(&Notification{Outcome: testOutcome("completed"), Destination: "http://x/cb"}); err != ErrBufferFull {
		t.Errorf("second dispatch error = %v, want ErrBufferFull", err)
	}
	if d.Stats().Dropped != 1 {
		t.Errorf("dropped = %d, want 1", d.Stats().Dropped)
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	d := NewMemory(testConfig(), nil)
	for i := 0; i < 5; i++ {
		d.NotifyOutcome(srv.URL, testOutcome("completed"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if calls.Load() != 5 {
		t.Errorf("delivered = %d, want all 5 before shutdown completed", calls.Load())
	}
}

func TestDispatchAfterCloseFails(t *testing.T) {
	t.Parallel()
	d := NewMemory(testConfig(), nil)
	if err := d.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := d.Dispatch(&Notification{Outcome: testOutcome("completed")}); err == nil {
		t.Error("Dispatch() after Close() should fail")
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := MemoryConfig{}.withDefaults()
	if cfg.BufferSize != 1000 || cfg.Workers != 4 || cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Source != "/gateclient/runner" {
		t.Errorf("source = %q", cfg.Source)
	}
}
