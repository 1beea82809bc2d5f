package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gateclient/pkg/backoff"
)

const uploadMaxRetries = 3

// uploadResponse maps original filenames to the names the gatekeeper
// assigned when storing them.
type uploadResponse struct {
	Files map[string]string `json:"files"`
}

// StageFiles uploads local input files to the gatekeeper before submission,
// for tools that cannot read the caller's paths directly. It returns the
// mapping from original to server-assigned filenames.
//
// Transient failures are retried with exponential backoff; 4xx responses
// are not.
func (c *Client) StageFiles(ctx context.Context, paths []string) (map[string]string, error) {
	var lastErr error
	for attempt := 0; attempt <= uploadMaxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff.Exponential(attempt, nil)
			c.logger.Debug("Retrying upload", "attempt", attempt, "backoff", wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		mapping, retryable, err := c.doStage(ctx, paths)
		if err == nil {
			return mapping, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("Upload failed", "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("upload failed after %d retries: %w", uploadMaxRetries, lastErr)
}

// doStage performs one multipart upload. The second return reports whether
// the failure is worth retrying.
func (c *Client) doStage(ctx context.Context, paths []string) (map[string]string, bool, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to open %s: %w", path, err)
		}
		part, err := writer.CreateFormFile("files", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, file)
		}
		file.Close()
		if err != nil {
			return nil, false, fmt.Errorf("failed to buffer %s: %w", path, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tool.UploadURL(), &body)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("upload rejected with status %d: %s", resp.StatusCode, respBody)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, true, fmt.Errorf("upload failed with status %d", resp.StatusCode)
	}

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return nil, false, fmt.Errorf("undecodable upload response: %w", err)
	}

	c.logger.Debug("Staged input files", "count", len(ur.Files))
	return ur.Files, false, nil
}
