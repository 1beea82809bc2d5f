// Package dispatcher delivers run outcome notifications asynchronously.
// Outcomes are wrapped as CloudEvents and posted to the notify URL the run
// declared, with retry, per-host circuit breaking, and bounded buffering.
package dispatcher

import (
	"context"
	"errors"

	"gateclient/internal/runner"
)

// ErrBufferFull is returned when the notification buffer is full and the
// outcome is dropped.
var ErrBufferFull = errors.New("notification buffer full, outcome dropped")

// Dispatcher handles async delivery of run outcomes.
type Dispatcher interface {
	// Dispatch queues a notification for async delivery. Non-blocking.
	// Returns ErrBufferFull if the notification cannot be queued.
	Dispatch(n *Notification) error

	// Stats returns current delivery statistics.
	Stats() Stats

	// Close gracefully shuts down, attempting to deliver queued outcomes.
	// The context deadline controls how long to wait for drain.
	Close(ctx context.Context) error
}

// Notification is one run outcome awaiting delivery.
type Notification struct {
	Outcome     runner.Outcome
	Destination string // notify URL
	Requeues    int    // times requeued due to an open circuit (internal use)
}

// Stats holds delivery statistics.
type Stats struct {
	QueueDepth    int   // current queue size
	Queued        int64 // total outcomes queued
	Delivered     int64 // successful deliveries
	Failed        int64 // failed after retries
	Dropped       int64 // dropped due to full buffer or max requeues
	Requeued      int64 // requeued due to open circuit
	RetriesTotal  int64 // total retry attempts
	BreakersTotal int   // total circuit breakers
	BreakersOpen  int   // currently open breakers
}
