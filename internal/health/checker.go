// Package health provides health check functionality for liveness and
// readiness probes.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"gateclient/internal/tool"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult contains the result of one gatekeeper probe.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the health check response.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Checker probes the status endpoint of every registered gatekeeper.
type Checker struct {
	registry *tool.Registry
	client   *http.Client
	timeout  time.Duration
	cacheTTL time.Duration

	mu           sync.RWMutex
	lastCheck    time.Time
	cachedReady  *Response
	shuttingDown bool
}

// NewChecker creates a health checker over the tool registry.
func NewChecker(registry *tool.Registry) *Checker {
	return &Checker{
		registry: registry,
		client:   &http.Client{Timeout: 5 * time.Second},
		timeout:  5 * time.Second,
		cacheTTL: 5 * time.Second,
	}
}

// Liveness returns true if the service itself is alive. It never touches the
// gatekeepers; failing this probe should restart the service.
func (c *Checker) Liveness(ctx context.Context) *Response {
	return &Response{
		Status: StatusHealthy,
	}
}

// Readiness probes every gatekeeper's status endpoint. All up is healthy,
// some up is degraded, none up is unhealthy. Results are cached briefly so
// probe traffic does not hammer the gatekeepers.
func (c *Checker) Readiness(ctx context.Context) *Response {
	c.mu.RLock()
	if c.shuttingDown {
		c.mu.RUnlock()
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"shutdown": {Status: StatusUnhealthy, Message: "service is shutting down"},
			},
		}
	}
	if c.cachedReady != nil && time.Since(c.lastCheck) < c.cacheTTL {
		cached := c.cachedReady
		c.mu.RUnlock()
		return cached
	}
	c.mu.RUnlock()

	tools := c.registry.All()
	checks := make(map[string]CheckResult, len(tools))

	var wg sync.WaitGroup
	var checksMu sync.Mutex
	for _, t := range tools {
		wg.Add(1)
		go func(t tool.Tool) {
			defer wg.Done()
			result := c.probe(ctx, t)
			checksMu.Lock()
			checks[t.Name] = result
			checksMu.Unlock()
		}(t)
	}
	wg.Wait()

	healthy := 0
	for _, result := range checks {
		if result.Status == StatusHealthy {
			healthy++
		}
	}

	overall := StatusHealthy
	switch {
	case healthy == 0:
		overall = StatusUnhealthy
	case healthy < len(tools):
		overall = StatusDegraded
	}

	response := &Response{Status: overall, Checks: checks}

	c.mu.Lock()
	c.cachedReady = response
	c.lastCheck = time.Now()
	c.mu.Unlock()

	return response
}

// probe hits one gatekeeper's status endpoint.
func (c *Checker) probe(ctx context.Context, t tool.Tool) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.StatusURL(), nil)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: fmt.Sprintf("unreachable: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return CheckResult{Status: StatusUnhealthy, Message: fmt.Sprintf("status endpoint returned HTTP %d", resp.StatusCode)}
	}
	return CheckResult{Status: StatusHealthy}
}

// IsHealthy returns true if the overall status is healthy or degraded.
// A degraded service still accepts runs for the tools that are up.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy || r.Status == StatusDegraded
}

// SetShuttingDown marks the service as shutting down. Readiness turns
// unhealthy immediately so load balancers stop sending new runs.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuttingDown = true
	c.cachedReady = nil
}
