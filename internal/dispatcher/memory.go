package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"gateclient/internal/runner"
	"gateclient/pkg/backoff"
	"gateclient/pkg/circuitbreaker"
	"gateclient/pkg/cloudevent"
)

// eventTypePrefix namespaces outcome event types; the run status is appended,
// e.g. com.gateclient.run.completed.
const eventTypePrefix = "com.gateclient.run."

// Memory is an in-memory outcome dispatcher. Notifications are queued in a
// bounded channel and delivered by a worker pool. If the buffer is full,
// outcomes are dropped (logged + metric incremented).
type Memory struct {
	queue    chan *Notification
	sender   *cloudevent.Sender
	breakers *circuitbreaker.Registry
	config   MemoryConfig
	logger   *slog.Logger
	metrics  MetricsRecorder

	queued       atomic.Int64
	delivered    atomic.Int64
	failed       atomic.Int64
	dropped      atomic.Int64
	requeued     atomic.Int64
	retriesTotal atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// MetricsRecorder is an optional interface for recording delivery metrics.
type MetricsRecorder interface {
	RecordNotifyDelivered(ctx context.Context, durationSeconds float64)
	RecordNotifyFailed(ctx context.Context)
	RecordNotifyDropped(ctx context.Context)
	RecordNotifyRequeued(ctx context.Context)
	RecordNotifyQueueSize(ctx context.Context, size int64)
}

// NewMemory creates a new in-memory dispatcher and starts its workers.
func NewMemory(cfg MemoryConfig, metrics MetricsRecorder) *Memory {
	cfg = cfg.withDefaults()

	d := &Memory{
		queue:  make(chan *Notification, cfg.BufferSize),
		sender: cloudevent.NewSender(cfg.HTTPTimeout),
		breakers: circuitbreaker.NewRegistry(circuitbreaker.Config{
			Threshold: defaultBreakerThreshold,
			Cooldown:  defaultBreakerCooldown,
		}),
		config:   cfg,
		logger:   slog.With("component", "dispatcher"),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}

	if metrics != nil {
		go d.reportQueueSize()
	}

	d.logger.Info("Dispatcher started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return d
}

// NotifyOutcome queues one run outcome for delivery. Satisfies the runner's
// Notifier; queueing failures are logged, never surfaced to the run.
func (d *Memory) NotifyOutcome(destination string, outcome runner.Outcome) {
	if err := d.Dispatch(&Notification{Outcome: outcome, Destination: destination}); err != nil {
		d.logger.Warn("Outcome not queued", "runId", outcome.RunID, "error", err)
	}
}

// Dispatch queues a notification for async delivery.
func (d *Memory) Dispatch(n *Notification) error {
	if d.closed.Load() {
		return fmt.Errorf("dispatcher is closed")
	}

	select {
	case d.queue <- n:
		d.queued.Add(1)
		return nil
	default:
		d.dropped.Add(1)
		if d.metrics != nil {
			d.metrics.RecordNotifyDropped(context.Background())
		}
		d.logger.Warn("Outcome dropped, buffer full",
			"destination", extractHost(n.Destination),
			"runId", n.Outcome.RunID,
		)
		return ErrBufferFull
	}
}

// Stats returns current delivery statistics.
func (d *Memory) Stats() Stats {
	breakerStats := d.breakers.Stats()
	return Stats{
		QueueDepth:    len(d.queue),
		Queued:        d.queued.Load(),
		Delivered:     d.delivered.Load(),
		Failed:        d.failed.Load(),
		Dropped:       d.dropped.Load(),
		Requeued:      d.requeued.Load(),
		RetriesTotal:  d.retriesTotal.Load(),
		BreakersTotal: breakerStats.Total,
		BreakersOpen:  breakerStats.Open,
	}
}

// Close gracefully shuts down the dispatcher.
func (d *Memory) Close(ctx context.Context) error {
	if d.closed.Swap(true) {
		return nil
	}

	d.logger.Info("Dispatcher shutting down", "queued", len(d.queue))
	close(d.shutdown)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Dispatcher shutdown complete",
			"delivered", d.delivered.Load(),
			"failed", d.failed.Load(),
			"dropped", d.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		d.logger.Warn("Dispatcher shutdown timed out", "remaining", len(d.queue))
		return ctx.Err()
	}
}

func (d *Memory) reportQueueSize() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.shutdown:
			return
		case <-ticker.C:
			d.metrics.RecordNotifyQueueSize(context.Background(), int64(len(d.queue)))
		}
	}
}

func (d *Memory) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.shutdown:
			// Drain remaining notifications before exiting.
			d.drainQueue()
			return
		case n := <-d.queue:
			d.deliver(n)
		}
	}
}

func (d *Memory) drainQueue() {
	for {
		select {
		case n := <-d.queue:
			d.deliver(n)
		default:
			return
		}
	}
}

// deliver attempts to deliver a notification with retry and circuit breaker.
func (d *Memory) deliver(n *Notification) {
	host := extractHost(n.Destination)
	breaker := d.breakers.Get(host)

	if !breaker.Allow() {
		d.requeue(n, host)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	if err := d.sendWithRetry(ctx, n); err != nil {
		breaker.RecordFailure()
		d.failed.Add(1)
		if d.metrics != nil {
			d.metrics.RecordNotifyFailed(ctx)
		}
		d.logger.Warn("Delivery failed", "destination", host, "runId", n.Outcome.RunID, "error", err)
		return
	}

	breaker.RecordSuccess()
	d.delivered.Add(1)
	if d.metrics != nil {
		d.metrics.RecordNotifyDelivered(ctx, time.Since(start).Seconds())
	}
}

// requeue puts a notification back in the queue after the breaker cooldown.
func (d *Memory) requeue(n *Notification, host string) {
	if n.Requeues >= defaultMaxRequeues {
		d.dropped.Add(1)
		if d.metrics != nil {
			d.metrics.RecordNotifyDropped(context.Background())
		}
		d.logger.Warn("Outcome dropped, max requeues reached",
			"destination", host,
			"runId", n.Outcome.RunID,
			"requeues", n.Requeues,
		)
		return
	}

	n.Requeues++
	requeues := n.Requeues
	d.requeued.Add(1)
	if d.metrics != nil {
		d.metrics.RecordNotifyRequeued(context.Background())
	}

	go func() {
		select {
		case <-d.shutdown:
			return
		case <-time.After(defaultBreakerCooldown):
		}

		select {
		case d.queue <- n:
			d.logger.Debug("Outcome requeued", "destination", host, "runId", n.Outcome.RunID, "requeues", requeues)
		case <-d.shutdown:
		default:
			d.dropped.Add(1)
			if d.metrics != nil {
				d.metrics.RecordNotifyDropped(context.Background())
			}
			d.logger.Warn("Outcome dropped on requeue, buffer full", "destination", host, "runId", n.Outcome.RunID)
		}
	}()
}

func (d *Memory) sendWithRetry(ctx context.Context, n *Notification) error {
	event, err := d.toEvent(n.Outcome)
	if err != nil {
		return err
	}
	opts := cloudevent.SendOptions{SigningKey: d.config.SigningKey}

	var lastErr error
	for attempt := range defaultMaxRetries + 1 {
		if attempt > 0 {
			d.retriesTotal.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff.Exponential(attempt, nil)):
			}
		}

		lastErr = d.sender.Send(ctx, n.Destination, event, opts)
		if lastErr == nil {
			return nil
		}
		if cloudevent.IsClientError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// toEvent wraps an outcome as a CloudEvent. The subject is the tool name so
// subscribers can filter without decoding the body.
func (d *Memory) toEvent(o runner.Outcome) (*cloudevent.CloudEvent, error) {
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("encode outcome: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("encode outcome: %w", err)
	}
	return cloudevent.New(eventTypePrefix+o.Status, d.config.Source, o.Tool, o.RunID, data), nil
}

// extractHost extracts the host from a URL for circuit breaker keying.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

var _ Dispatcher = (*Memory)(nil)
var _ runner.Notifier = (*Memory)(nil)
