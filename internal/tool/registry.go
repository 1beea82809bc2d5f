package tool

import (
	"sort"
	"time"
)

// Registry holds the resolved tool declarations. It is built once at startup
// and read-only afterwards.
type Registry struct {
	tools map[string]Tool
}

// Defaults returns the built-in registry of known gatekeepers.
//
// Ports and submit paths match the deployed gatekeeper processes. Wait
// windows differ per tool because job lengths differ by orders of magnitude:
// a lip-sync render finishes in minutes while a video generation can hold a
// GPU for hours, heartbeating the whole time.
func Defaults() *Registry {
	tools := []Tool{
		{
			Name:       "musetalk",
			Host:       "127.0.0.1",
			Port:       7861,
			SubmitPath: "/execute",
			WaitWindow: 20 * time.Minute,
			Cleanup:    CleanupAlways,
			Capabilities: Capabilities{
				Webhook: true,
			},
			RequiredFields: []string{"audio_path", "video_path", "gatekeeper_output_path"},
		},
		{
			Name:       "wan2gp",
			Host:       "127.0.0.1",
			Port:       7862,
			SubmitPath: "/generate",
			WaitWindow: 3 * time.Hour,
			Cleanup:    CleanupAlways,
			RequiredFields: []string{
				"workflow",
			},
		},
		{
			Name:       "indextts2",
			Host:       "127.0.0.1",
			Port:       7863,
			SubmitPath: "/execute",
			WaitWindow: time.Hour,
			Cleanup:    CleanupBinaryOnly,
			RequiredFields: []string{
				"text", "voice_ref_path",
			},
		},
		{
			Name:       "comfyui",
			Host:       "127.0.0.1",
			Port:       8189,
			SubmitPath: "/execute",
			WaitWindow: time.Hour,
			Cleanup:    CleanupAlways,
			Capabilities: Capabilities{
				Webhook:     true,
				MultiResult: true,
				Upload:      true,
			},
			RequiredFields: []string{"workflow_json"},
		},
		{
			Name:       "chatterbox",
			Host:       "127.0.0.1",
			Port:       7864,
			SubmitPath: "/execute",
			WaitWindow: 30 * time.Minute,
			Cleanup:    CleanupAlways,
			RequiredFields: []string{
				"mode", "target_voice_path",
			},
		},
		{
			Name:       "whisper",
			Host:       "127.0.0.1",
			Port:       7865,
			SubmitPath: "/execute",
			WaitWindow: 30 * time.Minute,
			Cleanup:    CleanupAlways,
			RequiredFields: []string{
				"audio_path",
			},
		},
	}

	reg := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		reg.tools[t.Name] = t
	}
	return reg
}

// NewRegistry builds a registry from explicit declarations.
func NewRegistry(tools []Tool) *Registry {
	reg := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		reg.tools[t.Name] = t
	}
	return reg
}

// Get returns the tool declaration for a name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns all tool declarations in name order.
func (r *Registry) All() []Tool {
	tools := make([]Tool, 0, len(r.tools))
	for _, name := range r.Names() {
		tools = append(tools, r.tools[name])
	}
	return tools
}
