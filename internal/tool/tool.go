// Package tool declares the gatekeeper tools this service can submit jobs to.
//
// Each tool is a locally-running gatekeeper process with a fixed port, a
// submit path, an inactivity window for the duplex wait, and a set of
// capability flags. Declarations form a load-time registry resolved once
// before any submission; an overrides file can replace the built-in defaults
// per deployment.
package tool

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"
)

// CleanupPolicy controls when the temporary result file left by the
// gatekeeper is removed after finalization.
type CleanupPolicy string

const (
	// CleanupAlways removes the temp file after every successful finalization.
	CleanupAlways CleanupPolicy = "always"
	// CleanupBinaryOnly removes the temp file only when the result was
	// consumed as binary output; path-mode moves already consume it.
	CleanupBinaryOnly CleanupPolicy = "binary-only"
)

// Capabilities describes what a tool's gatekeeper supports.
type Capabilities struct {
	Webhook     bool `json:"webhook"`     // supports callback_type=webhook
	MultiResult bool `json:"multiResult"` // may return format:"multiple" results
	Upload      bool `json:"upload"`      // requires inputs pre-staged via POST /upload
}

// Tool is one gatekeeper declaration.
type Tool struct {
	Name           string        `json:"name"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	SubmitPath     string        `json:"submitPath"` // "/execute" or "/generate"
	WaitWindow     time.Duration `json:"-"`          // inactivity window for the duplex wait
	Cleanup        CleanupPolicy `json:"cleanup,omitempty"`
	Capabilities   Capabilities  `json:"capabilities"`
	RequiredFields []string      `json:"requiredFields,omitempty"` // task payload keys that must be present
}

// toolJSON mirrors Tool with the wait window as a duration string.
type toolJSON struct {
	Name           string        `json:"name"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	SubmitPath     string        `json:"submitPath"`
	WaitWindow     string        `json:"waitWindow"`
	Cleanup        CleanupPolicy `json:"cleanup,omitempty"`
	Capabilities   Capabilities  `json:"capabilities"`
	RequiredFields []string      `json:"requiredFields,omitempty"`
}

// UnmarshalJSON implements custom unmarshaling for Tool.
func (t *Tool) UnmarshalJSON(data []byte) error {
	var raw toolJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.Name = raw.Name
	t.Host = raw.Host
	t.Port = raw.Port
	t.SubmitPath = raw.SubmitPath
	t.Cleanup = raw.Cleanup
	t.Capabilities = raw.Capabilities
	t.RequiredFields = raw.RequiredFields

	if raw.WaitWindow != "" {
		window, err := time.ParseDuration(raw.WaitWindow)
		if err != nil {
			return fmt.Errorf("tool %q: invalid waitWindow: %w", raw.Name, err)
		}
		t.WaitWindow = window
	}
	return nil
}

// MarshalJSON implements custom marshaling for Tool.
func (t Tool) MarshalJSON() ([]byte, error) {
	return json.Marshal(toolJSON{
		Name:           t.Name,
		Host:           t.Host,
		Port:           t.Port,
		SubmitPath:     t.SubmitPath,
		WaitWindow:     t.WaitWindow.String(),
		Cleanup:        t.Cleanup,
		Capabilities:   t.Capabilities,
		RequiredFields: t.RequiredFields,
	})
}

// SubmitURL returns the job submission endpoint.
func (t Tool) SubmitURL() string {
	return fmt.Sprintf("http://%s:%d%s", t.Host, t.Port, t.SubmitPath)
}

// SocketURL returns the duplex result endpoint for a job.
func (t Tool) SocketURL(jobID string) string {
	return fmt.Sprintf("ws://%s:%d/ws/%s", t.Host, t.Port, url.PathEscape(jobID))
}

// UploadURL returns the file pre-staging endpoint.
func (t Tool) UploadURL() string {
	return fmt.Sprintf("http://%s:%d/upload", t.Host, t.Port)
}

// StatusURL returns the gatekeeper's status endpoint, used by readiness checks.
func (t Tool) StatusURL() string {
	return fmt.Sprintf("http://%s:%d/status", t.Host, t.Port)
}

// Validate checks a tool declaration for the fields every tool must carry.
func (t Tool) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Host == "" {
		return fmt.Errorf("tool %q: host is required", t.Name)
	}
	if t.Port <= 0 || t.Port > 65535 {
		return fmt.Errorf("tool %q: port %d out of range", t.Name, t.Port)
	}
	if t.SubmitPath != "/execute" && t.SubmitPath != "/generate" {
		return fmt.Errorf("tool %q: submitPath must be /execute or /generate, got %q", t.Name, t.SubmitPath)
	}
	if t.WaitWindow <= 0 {
		return fmt.Errorf("tool %q: waitWindow must be positive", t.Name)
	}
	switch t.Cleanup {
	case CleanupAlways, CleanupBinaryOnly:
	default:
		return fmt.Errorf("tool %q: unknown cleanup policy %q", t.Name, t.Cleanup)
	}
	return nil
}

// LoadFile reads tool declarations from a JSON file and merges them over the
// defaults. Entries with a name already in the defaults replace that entry.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tools file: %w", err)
	}

	var tools []Tool
	if err := json.Unmarshal(data, &tools); err != nil {
		return nil, fmt.Errorf("parse tools file: %w", err)
	}

	reg := Defaults()
	for _, t := range tools {
		if t.Cleanup == "" {
			t.Cleanup = CleanupAlways
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		reg.tools[t.Name] = t
	}
	return reg, nil
}
