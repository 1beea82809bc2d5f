// Package api provides the HTTP API handlers and routing for the run service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"gateclient/internal/apperrors"
	"gateclient/internal/dispatcher"
	"gateclient/internal/health"
	"gateclient/internal/observability"
	"gateclient/internal/runner"
	"gateclient/internal/tool"
)

// maxRequestBodySize limits request bodies. Runs may carry base64 inline
// inputs (reference audio, source images), so the cap is generous.
const maxRequestBodySize = 64 << 20 // 64 MB

// Handler contains HTTP handlers for the run API.
type Handler struct {
	runner     *runner.Runner
	registry   *tool.Registry
	metrics    *observability.Metrics
	health     *health.Checker
	dispatcher dispatcher.Dispatcher
}

// NewHandler creates a new API handler.
func NewHandler(r *runner.Runner, reg *tool.Registry, metrics *observability.Metrics, healthChecker *health.Checker, d dispatcher.Dispatcher) *Handler {
	return &Handler{
		runner:     r,
		registry:   reg,
		metrics:    metrics,
		health:     healthChecker,
		dispatcher: d,
	}
}

// CreateRun handles POST /v1/runs. Websocket runs block until the gatekeeper
// finishes, which can take hours; callers that cannot hold the connection
// should use a webhook callback and a notify URL instead.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req runner.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.runner.Run(r.Context(), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	status := http.StatusOK
	if resp.Status == runner.StatusSubmitted {
		status = http.StatusAccepted
	}
	h.writeJSON(w, status, resp)
}

// ListTools handles GET /v1/tools.
func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"tools": h.registry.All()})
}

// GetTool handles GET /v1/tools/{tool}.
func (h *Handler) GetTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("tool")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "Tool name is required")
		return
	}

	t, ok := h.registry.Get(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Unknown tool: "+name)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

// GetStats handles GET /v1/stats - notification delivery statistics.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := dispatcher.Stats{}
	if h.dispatcher != nil {
		stats = h.dispatcher.Stats()
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"notifications": stats})
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check gatekeepers.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 200 while at least one gatekeeper answers its status endpoint,
// 503 when none do or the service is draining.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError maps run errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Run error", "error", err, "path", r.URL.Path, "status", status)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	h.writeError(w, status, err.Error())
}
