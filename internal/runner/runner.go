// Package runner executes runs end to end: input staging, job submission,
// the duplex wait, and artifact reconciliation. Runs are processed one at a
// time so a single GPU-bound gatekeeper never sees overlapping jobs from
// this service.
package runner

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"gateclient/internal/apperrors"
	"gateclient/internal/gateway"
	"gateclient/internal/result"
	"gateclient/internal/tool"
)

// Gateway is the per-tool protocol client the runner drives. Satisfied by
// *gateway.Client.
type Gateway interface {
	Submit(ctx context.Context, payload map[string]any, cb gateway.Callback) (string, error)
	WaitResult(ctx context.Context, jobID string) (json.RawMessage, error)
	StageFiles(ctx context.Context, paths []string) (map[string]string, error)
	Tool() tool.Tool
}

// Notifier delivers run outcomes to an external URL. Satisfied by the
// dispatcher; delivery is asynchronous and best-effort.
type Notifier interface {
	NotifyOutcome(url string, outcome Outcome)
}

// MetricsRecorder records run-level metrics.
type MetricsRecorder interface {
	RecordRunStarted(ctx context.Context, toolName string)
	RecordRun(ctx context.Context, toolName, outcome string, durationSeconds float64)
	RecordArtifacts(ctx context.Context, toolName string, count int)
}

// Outcome is the notification body sent when a run finishes.
type Outcome struct {
	RunID       string    `json:"runId"`
	JobID       string    `json:"jobId,omitempty"`
	Tool        string    `json:"tool"`
	Status      string    `json:"status"` // completed, failed, submitted
	Error       string    `json:"error,omitempty"`
	FilePaths   []string  `json:"filePaths,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

// Runner drives the run pipeline against a registry of tools.
type Runner struct {
	registry *tool.Registry
	scratch  string
	logger   *slog.Logger
	metrics  MetricsRecorder
	notifier Notifier

	// clients builds the protocol client for a tool; swappable for tests.
	clients func(tool.Tool) Gateway

	// mu serializes runs. The gatekeepers hold a GPU per job and the
	// upstream workflow engine already feeds records sequentially.
	mu  sync.Mutex
	now func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics sets the run metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithNotifier sets the outcome notifier.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithClientFactory replaces the protocol client constructor.
func WithClientFactory(f func(tool.Tool) Gateway) Option {
	return func(r *Runner) { r.clients = f }
}

// New creates a Runner over the given registry. Scratch is the directory for
// staged inline inputs.
func New(registry *tool.Registry, scratch string, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		scratch:  scratch,
		logger:   slog.With("component", "runner"),
		clients: func(t tool.Tool) Gateway {
			return gateway.New(t)
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one request. For websocket callbacks it blocks until the job
// finishes and returns finalized outputs; for webhook callbacks it returns
// right after submission.
func (r *Runner) Run(ctx context.Context, req *Request) (*Response, error) {
	t, err := r.validate(req)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	runID := uuid.NewString()
	logger := r.logger.With("runId", runID, "tool", t.Name)
	start := r.now()
	client := r.clients(t)
	if r.metrics != nil {
		r.metrics.RecordRunStarted(ctx, t.Name)
	}

	resp, err := r.execute(ctx, client, req, runID, logger)
	elapsed := r.now().Sub(start)

	outcome := "completed"
	switch {
	case err != nil:
		outcome = "failed"
	case resp.Status == StatusSubmitted:
		outcome = "submitted"
	}
	if r.metrics != nil {
		r.metrics.RecordRun(ctx, t.Name, outcome, elapsed.Seconds())
	}
	r.notify(req, resp, runID, t.Name, err)

	if err != nil {
		logger.Error("Run failed", "error", err, "elapsed", elapsed)
		return nil, err
	}
	logger.Info("Run finished", "status", resp.Status, "jobId", resp.JobID, "elapsed", elapsed)
	return resp, nil
}

func (r *Runner) execute(ctx context.Context, client Gateway, req *Request, runID string, logger *slog.Logger) (*Response, error) {
	t := client.Tool()

	payload := make(map[string]any, len(req.Payload))
	for k, v := range req.Payload {
		payload[k] = v
	}

	staged, err := r.stageInputs(ctx, client, req, payload)
	if err != nil {
		return nil, err
	}
	defer r.removeScratch(staged, req, t, logger)

	cb := gateway.Callback{Type: gateway.CallbackType(req.CallbackType), URL: req.CallbackURL}
	jobID, err := client.Submit(ctx, payload, cb)
	if err != nil {
		return nil, err
	}

	if cb.Type == gateway.CallbackWebhook {
		return &Response{Status: StatusSubmitted, JobID: jobID, Tool: t.Name, RunID: runID}, nil
	}

	raw, err := client.WaitResult(ctx, jobID)
	if err != nil {
		return nil, err
	}

	parsed, err := result.Parse(raw)
	if err != nil {
		return nil, apperrors.MalformedResult(t.Name, jobID, err)
	}

	resp := &Response{Status: StatusCompleted, JobID: jobID, Tool: t.Name, RunID: runID}
	if len(parsed.Refs) == 0 {
		resp.Result = parsed.Raw
		return resp, nil
	}

	outputs, err := result.FinalizeAll(parsed.Refs, result.Options{
		Mode:           result.OutputMode(req.Output.Mode),
		DestPath:       req.Output.Path,
		AvoidCollision: req.Output.AvoidCollision,
	})
	if err != nil {
		return nil, err
	}
	resp.Outputs = outputs
	if r.metrics != nil {
		r.metrics.RecordArtifacts(ctx, t.Name, len(outputs))
	}
	return resp, nil
}

// stageInputs writes inline inputs to the scratch directory and binds them
// into the payload. Upload-capable tools receive the files via their upload
// endpoint and the payload carries the assigned names; other tools read the
// scratch paths directly off shared disk.
func (r *Runner) stageInputs(ctx context.Context, client Gateway, req *Request, payload map[string]any) ([]string, error) {
	if len(req.Inputs) == 0 {
		return nil, nil
	}
	t := client.Tool()

	if err := os.MkdirAll(r.scratch, 0o755); err != nil {
		return nil, apperrors.Internal("runner.stage", err)
	}

	paths := make([]string, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		name := uuid.NewString() + filepath.Ext(in.FileName)
		path := filepath.Join(r.scratch, name)
		if err := os.WriteFile(path, in.Data, 0o644); err != nil {
			return paths, apperrors.Internal("runner.stage", err)
		}
		paths = append(paths, path)
		if !t.Capabilities.Upload {
			payload[in.Field] = path
		}
	}

	if t.Capabilities.Upload {
		assigned, err := client.StageFiles(ctx, paths)
		if err != nil {
			return paths, err
		}
		for i, in := range req.Inputs {
			scratchName := filepath.Base(paths[i])
			staged, ok := assigned[scratchName]
			if !ok {
				return paths, apperrors.Submission(t.Name, "upload response missing assigned name for "+in.FileName, nil)
			}
			payload[in.Field] = staged
		}
	}
	return paths, nil
}

// removeScratch deletes the staged inputs of one run. Tools with the
// binary-only policy keep path-mode scratch files alive because the
// gatekeeper may still reference them after the result lands.
func (r *Runner) removeScratch(paths []string, req *Request, t tool.Tool, logger *slog.Logger) {
	if len(paths) == 0 {
		return
	}
	if t.Cleanup == tool.CleanupBinaryOnly && OutputModeOf(req) != result.ModeBinary {
		return
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove staged input", "path", path, "error", err)
		}
	}
}

func (r *Runner) notify(req *Request, resp *Response, runID, toolName string, runErr error) {
	if r.notifier == nil || req.NotifyURL == "" {
		return
	}

	outcome := Outcome{
		RunID:       runID,
		Tool:        toolName,
		CompletedAt: r.now().UTC(),
	}
	switch {
	case runErr != nil:
		outcome.Status = "failed"
		outcome.Error = runErr.Error()
	default:
		outcome.Status = resp.Status
		outcome.JobID = resp.JobID
		for _, out := range resp.Outputs {
			if out.FilePath != "" {
				outcome.FilePaths = append(outcome.FilePaths, out.FilePath)
			}
		}
	}
	r.notifier.NotifyOutcome(req.NotifyURL, outcome)
}
