// Package config loads gate-runner settings from the environment: ports,
// drain timing, the tool registry override, and file-mounted secrets such as
// the API key and the notifier signing key.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// RunnerConfig holds configuration for the gate-runner service.
type RunnerConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)
	ToolsFile         string        // Optional JSON file overriding the built-in tool registry
	ScratchDir        string        // Shared scratch space for payload and staging files
}

// LoadRunnerConfig loads runner configuration from environment variables.
func LoadRunnerConfig() *RunnerConfig {
	return &RunnerConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		APIKey:            GetSecretFile(GetEnv("API_KEY_FILE", "")),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
		ToolsFile:         GetEnv("TOOLS_FILE", ""),
		ScratchDir:        GetEnv("SCRATCH_DIR", filepath.Join(os.TempDir(), "gateclient")),
	}
}
