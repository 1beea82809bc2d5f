package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gateclient/internal/config"
)

// managedByLabel marks containers owned by the supervisor.
const managedByLabel = "gate-supervisor"

// Config holds supervisor settings.
type Config struct {
	SharedDir    string            // host directory mounted into every gatekeeper at /shared
	Images       map[string]string // tool name -> container image
	ExtraHosts   []string          // extra /etc/hosts entries for containers
	ReadyTimeout time.Duration     // how long to wait for a gatekeeper's status endpoint
	StopTimeout  int               // seconds to wait before SIGKILL on Down
}

// LoadConfigFromEnv loads supervisor configuration from environment variables.
// GATE_IMAGES_FILE points at a JSON file mapping tool names to images.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		SharedDir:    config.GetEnv("GATE_SHARED_DIR", "/srv/gateclient/shared"),
		ReadyTimeout: config.GetDurationEnv("GATE_READY_TIMEOUT", 10*time.Minute),
		StopTimeout:  config.GetIntEnv("GATE_STOP_TIMEOUT", 30),
	}

	imagesFile := config.GetEnv("GATE_IMAGES_FILE", "")
	if imagesFile == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(imagesFile)
	if err != nil {
		return cfg, fmt.Errorf("read images file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg.Images); err != nil {
		return cfg, fmt.Errorf("parse images file: %w", err)
	}
	return cfg, nil
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.SharedDir == "" {
		c.SharedDir = "/srv/gateclient/shared"
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 10 * time.Minute
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 30
	}
	return c
}

// containerName returns the canonical container name for a tool.
func containerName(toolName string) string {
	return "gatekeeper-" + toolName
}
