package api

import (
	"net/http"

	"gateclient/internal/dispatcher"
	"gateclient/internal/health"
	"gateclient/internal/observability"
	"gateclient/internal/runner"
	"gateclient/internal/tool"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Runner        *runner.Runner
	Registry      *tool.Registry
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	Dispatcher    dispatcher.Dispatcher
	APIKey        string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Runner, cfg.Registry, cfg.Metrics, cfg.HealthChecker, cfg.Dispatcher)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// Run and tool endpoints - auth required
	authMiddleware := AuthMiddleware(cfg.APIKey)
	mux.Handle("POST /v1/runs", authMiddleware(http.HandlerFunc(handler.CreateRun)))
	mux.Handle("GET /v1/tools", authMiddleware(http.HandlerFunc(handler.ListTools)))
	mux.Handle("GET /v1/tools/{tool}", authMiddleware(http.HandlerFunc(handler.GetTool)))
	mux.Handle("GET /v1/stats", authMiddleware(http.HandlerFunc(handler.GetStats)))

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
