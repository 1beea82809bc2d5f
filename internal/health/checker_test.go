package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"gateclient/internal/tool"
)

// registryFor builds a registry whose tools point at the given servers.
func registryFor(t *testing.T, servers map[string]*httptest.Server) *tool.Registry {
	t.Helper()
	tools := make([]tool.Tool, 0, len(servers))
	for name, srv := range servers {
		u, err := url.Parse(srv.URL)
		if err != nil {
			t.Fatal(err)
		}
		port, err := strconv.Atoi(u.Port())
		if err != nil {
			t.Fatal(err)
		}
		tools = append(tools, tool.Tool{
			Name:       name,
			Host:       u.Hostname(),
			Port:       port,
			SubmitPath: "/execute",
			WaitWindow: time.Minute,
			Cleanup:    tool.CleanupAlways,
		})
	}
	return tool.NewRegistry(tools)
}

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("probe path = %q, want /status", r.URL.Path)
		}
		w.Write([]byte(`{"status":"idle"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLiveness(t *testing.T) {
	t.Parallel()
	c := NewChecker(tool.NewRegistry(nil))
	resp := c.Liveness(context.Background())
	if resp.Status != StatusHealthy {
		t.Errorf("liveness = %q, want healthy", resp.Status)
	}
}

func TestReadinessAllUp(t *testing.T) {
	t.Parallel()
	reg := registryFor(t, map[string]*httptest.Server{
		"musetalk": okServer(t),
		"whisper":  okServer(t),
	})

	c := NewChecker(reg)
	resp := c.Readiness(context.Background())
	if resp.Status != StatusHealthy {
		t.Errorf("readiness = %q, want healthy: %+v", resp.Status, resp.Checks)
	}
	if !resp.IsHealthy() {
		t.Error("IsHealthy() = false for a healthy response")
	}
}

func TestReadinessDegraded(t *testing.T) {
	t.Parallel()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading model", http.StatusServiceUnavailable)
	}))
	t.Cleanup(down.Close)

	reg := registryFor(t, map[string]*httptest.Server{
		"musetalk": okServer(t),
		"wan2gp":   down,
	})

	c := NewChecker(reg)
	resp := c.Readiness(context.Background())
	if resp.Status != StatusDegraded {
		t.Errorf("readiness = %q, want degraded: %+v", resp.Status, resp.Checks)
	}
	if resp.Checks["wan2gp"].Status != StatusUnhealthy {
		t.Errorf("wan2gp check = %+v", resp.Checks["wan2gp"])
	}
	if !resp.IsHealthy() {
		t.Error("degraded service should still report ready")
	}
}

func TestReadinessAllDown(t *testing.T) {
	t.Parallel()
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	reg := registryFor(t, map[string]*httptest.Server{"musetalk": dead})
	dead.Close()

	c := NewChecker(reg)
	resp := c.Readiness(context.Background())
	if resp.Status != StatusUnhealthy {
		t.Errorf("readiness = %q, want unhealthy", resp.Status)
	}
}

func TestReadinessCachesResult(t *testing.T) {
	t.Parallel()
	probes := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes++
	}))
	t.Cleanup(srv.Close)

	reg := registryFor(t, map[string]*httptest.Server{"musetalk": srv})
	c := NewChecker(reg)

	c.Readiness(context.Background())
	c.Readiness(context.Background())
	if probes != 1 {
		t.Errorf("probes = %d, want 1 (second call served from cache)", probes)
	}
}

func TestReadinessShuttingDown(t *testing.T) {
	t.Parallel()
	reg := registryFor(t, map[string]*httptest.Server{"musetalk": okServer(t)})
	c := NewChecker(reg)

	if resp := c.Readiness(context.Background()); resp.Status != StatusHealthy {
		t.Fatalf("readiness before shutdown = %q", resp.Status)
	}

	c.SetShuttingDown()
	resp := c.Readiness(context.Background())
	if resp.Status != StatusUnhealthy {
		t.Errorf("readiness during shutdown = %q, want unhealthy", resp.Status)
	}
	if resp.IsHealthy() {
		t.Error("IsHealthy() = true during shutdown")
	}
}
