package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"gateclient/internal/apperrors"
)

// Wait outcomes, recorded in metrics and logs.
const (
	outcomeReceived  = "received"
	outcomeRemoteErr = "remote_error"
	outcomeMalformed = "malformed"
	outcomeTimedOut  = "timed_out"
	outcomeErrored   = "errored"
)

// message is the minimal probe decoded from every frame to classify it.
// A {"type":"ping"} frame is a heartbeat; anything else is terminal, and a
// terminal frame with an error field carries the remote failure.
type message struct {
	Type  string          `json:"type"`
	Error json.RawMessage `json:"error"`
}

// ack is the single acknowledgment sent back after consuming a terminal frame.
var ack = map[string]string{"status": "received"}

// WaitResult opens a duplex session for a submitted job and blocks until the
// terminal result arrives, the inactivity window expires, or the transport
// fails.
//
// The inactivity deadline is armed on connect and rearmed to the full window
// on every heartbeat, never on a wall-clock budget: a job may run arbitrarily
// long as long as the gatekeeper keeps demonstrating liveness. The session is
// closed on every return path.
func (c *Client) WaitResult(ctx context.Context, jobID string) (json.RawMessage, error) {
	window := c.tool.WaitWindow
	start := c.now()
	logger := c.logger.With("jobId", jobID)

	conn, resp, err := c.dialer.DialContext(ctx, c.tool.SocketURL(jobID), nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		c.recordWait(ctx, outcomeErrored, start)
		return nil, apperrors.Internal("gateway.connect", err)
	}
	defer conn.Close()
	logger.Debug("Duplex session open", "window", window)

	// Unblock the read below if the caller gives up.
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watcherDone:
		}
	}()

	for {
		if err := conn.SetReadDeadline(c.now().Add(window)); err != nil {
			c.recordWait(ctx, outcomeErrored, start)
			return nil, apperrors.Internal("gateway.wait", err)
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				c.recordWait(ctx, outcomeErrored, start)
				return nil, ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				elapsed := c.now().Sub(start)
				logger.Warn("Duplex session timed out", "window", window, "elapsed", elapsed)
				c.recordWait(ctx, outcomeTimedOut, start)
				return nil, apperrors.JobTimeout(c.tool.Name, jobID, window, elapsed)
			}
			c.recordWait(ctx, outcomeErrored, start)
			return nil, apperrors.Internal("gateway.wait", err)
		}

		var msg message
		if err := json.Unmarshal(frame, &msg); err != nil {
			c.recordWait(ctx, outcomeMalformed, start)
			return nil, apperrors.MalformedResult(c.tool.Name, jobID, err)
		}

		if msg.Type == "ping" {
			logger.Debug("Heartbeat")
			if c.metrics != nil {
				c.metrics.RecordHeartbeat(ctx, c.tool.Name)
			}
			continue
		}

		// Terminal frame. Acknowledge best-effort: the result is already
		// ours even if the ack never makes it back.
		if err := conn.WriteJSON(ack); err != nil {
			logger.Debug("Acknowledgment send failed", "error", err)
		}

		if remote := remoteError(msg.Error); remote != "" {
			c.recordWait(ctx, outcomeRemoteErr, start)
			return nil, apperrors.RemoteJob(c.tool.Name, jobID, remote)
		}

		logger.Info("Result received", "elapsed", c.now().Sub(start))
		c.recordWait(ctx, outcomeReceived, start)
		return frame, nil
	}
}

// remoteError extracts the application-level error message from a terminal
// frame, or "" if the frame carries no error.
func remoteError(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// Non-string error payloads are passed through as-is.
	return string(raw)
}

func (c *Client) recordWait(ctx context.Context, outcome string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordWait(ctx, c.tool.Name, outcome, c.now().Sub(start).Seconds())
	}
}
