package gateway

import (
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"gateclient/internal/tool"
)

// testTool builds a tool declaration pointing at an httptest server.
func testTool(t *testing.T, srv *httptest.Server, window time.Duration) tool.Tool {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return tool.Tool{
		Name:       "testtool",
		Host:       u.Hostname(),
		Port:       port,
		SubmitPath: "/execute",
		WaitWindow: window,
		Cleanup:    tool.CleanupAlways,
	}
}
