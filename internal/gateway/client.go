// Package gateway implements the client side of the gatekeeper protocol:
// job submission over HTTP, result waiting over a duplex websocket session,
// and input pre-staging via the upload endpoint.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"gateclient/internal/tool"
)

// CallbackType selects how a job's result is delivered.
type CallbackType string

const (
	// CallbackWebSocket waits for the result on a duplex session.
	CallbackWebSocket CallbackType = "websocket"
	// CallbackWebhook returns after submission; the gatekeeper delivers the
	// result to the callback URL out-of-band.
	CallbackWebhook CallbackType = "webhook"
)

// Callback is the delivery declaration attached to a submission.
type Callback struct {
	Type CallbackType
	URL  string // required for webhook
}

// MetricsRecorder is an optional interface for recording gateway metrics.
type MetricsRecorder interface {
	RecordSubmission(ctx context.Context, toolName string, ok bool)
	RecordHeartbeat(ctx context.Context, toolName string)
	RecordWait(ctx context.Context, toolName, outcome string, durationSeconds float64)
}

// Client talks to a single tool's gatekeeper.
//
// The client is stateless between calls: Submit retains nothing after
// returning the job id, and WaitResult owns its session only for the
// duration of one call.
type Client struct {
	tool    tool.Tool
	http    *http.Client
	dialer  *websocket.Dialer
	logger  *slog.Logger
	metrics MetricsRecorder

	// now is swappable for deadline tests.
	now func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for submissions and uploads.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithDialer sets the websocket dialer used for duplex sessions.
func WithDialer(d *websocket.Dialer) Option {
	return func(cl *Client) { cl.dialer = d }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(cl *Client) { cl.metrics = m }
}

// New creates a client for one tool.
func New(t tool.Tool, opts ...Option) *Client {
	c := &Client{
		tool: t,
		http: &http.Client{
			Timeout: 2 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		dialer: &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		logger: slog.With("component", "gateway", "tool", t.Name),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tool returns the tool declaration this client was built for.
func (c *Client) Tool() tool.Tool {
	return c.tool
}
