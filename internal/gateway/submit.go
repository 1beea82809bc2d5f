package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"gateclient/internal/apperrors"
)

// submitResponse is the gatekeeper's synchronous acknowledgment.
type submitResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// Submit sends one job to the gatekeeper and returns its job id.
//
// The submission is single-shot: any failure (unreachable endpoint,
// non-2xx status, missing job id) surfaces as ErrSubmission and is not
// retried here. Retrying the whole operation is the workflow layer's call.
func (c *Client) Submit(ctx context.Context, payload map[string]any, cb Callback) (string, error) {
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["callback_type"] = string(cb.Type)
	if cb.Type == CallbackWebhook {
		body["callback_url"] = cb.URL
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", apperrors.Submission(c.tool.Name, fmt.Sprintf("failed to encode payload: %v", err), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tool.SubmitURL(), bytes.NewReader(data))
	if err != nil {
		return "", apperrors.Submission(c.tool.Name, fmt.Sprintf("failed to create request: %v", err), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordSubmission(ctx, false)
		return "", apperrors.Submission(c.tool.Name, fmt.Sprintf("gatekeeper unreachable at %s: %v", c.tool.SubmitURL(), err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recordSubmission(ctx, false)
		return "", apperrors.Submission(c.tool.Name, fmt.Sprintf("gatekeeper returned HTTP %d", resp.StatusCode), nil)
	}

	var ack submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		c.recordSubmission(ctx, false)
		return "", apperrors.Submission(c.tool.Name, fmt.Sprintf("undecodable acknowledgment: %v", err), err)
	}
	if ack.JobID == "" {
		c.recordSubmission(ctx, false)
		return "", apperrors.Submission(c.tool.Name, "acknowledgment missing job id", nil)
	}

	c.recordSubmission(ctx, true)
	c.logger.Info("Job submitted", "jobId", ack.JobID, "status", ack.Status, "callback", cb.Type)
	return ack.JobID, nil
}

func (c *Client) recordSubmission(ctx context.Context, ok bool) {
	if c.metrics != nil {
		c.metrics.RecordSubmission(ctx, c.tool.Name, ok)
	}
}
