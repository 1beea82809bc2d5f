package runner

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"gateclient/internal/apperrors"
	"gateclient/internal/gateway"
	"gateclient/internal/result"
	"gateclient/internal/tool"
)

// Run response statuses.
const (
	StatusCompleted = "completed"
	StatusSubmitted = "submitted"
)

// InlineInput is one input file carried inside the request body. Data is
// base64 on the wire.
type InlineInput struct {
	Field    string `json:"field"`    // payload key that receives the staged location
	FileName string `json:"fileName"` // original name, used for the extension
	Data     []byte `json:"data"`
}

// OutputSpec declares how result artifacts are returned.
type OutputSpec struct {
	Mode string `json:"mode"`           // "path" or "binary"; default "path"
	Path string `json:"path,omitempty"` // destination, required for path mode with artifacts

	// AvoidCollision makes path mode pick a " (1)", " (2)" suffixed name
	// instead of replacing an existing destination file. Multi-artifact runs
	// always avoid collisions regardless of this flag.
	AvoidCollision bool `json:"avoidCollision,omitempty"`
}

// Request is one run submission.
type Request struct {
	Tool         string         `json:"tool"`
	Payload      map[string]any `json:"payload"`
	CallbackType string         `json:"callbackType,omitempty"` // default "websocket"
	CallbackURL  string         `json:"callbackUrl,omitempty"`
	Output       OutputSpec     `json:"output"`
	Inputs       []InlineInput  `json:"inputs,omitempty"`
	NotifyURL    string         `json:"notifyUrl,omitempty"`
}

// Response is the synchronous answer to a run.
type Response struct {
	Status  string           `json:"status"`
	RunID   string           `json:"runId"`
	JobID   string           `json:"jobId"`
	Tool    string           `json:"tool"`
	Outputs []*result.Output `json:"outputs,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"` // artifact-less payload, verbatim
}

// OutputModeOf returns the request's effective output mode.
func OutputModeOf(req *Request) result.OutputMode {
	if req.Output.Mode == "" {
		return result.ModePath
	}
	return result.OutputMode(req.Output.Mode)
}

// validate checks the request against the registry and fills defaults in
// place. Returns the resolved tool.
func (r *Runner) validate(req *Request) (tool.Tool, error) {
	if req.Tool == "" {
		return tool.Tool{}, apperrors.Validation("tool", "tool is required")
	}
	t, ok := r.registry.Get(req.Tool)
	if !ok {
		return tool.Tool{}, apperrors.Validation("tool", fmt.Sprintf("unknown tool %q", req.Tool))
	}

	if req.CallbackType == "" {
		req.CallbackType = string(gateway.CallbackWebSocket)
	}
	switch gateway.CallbackType(req.CallbackType) {
	case gateway.CallbackWebSocket:
	case gateway.CallbackWebhook:
		if !t.Capabilities.Webhook {
			return tool.Tool{}, apperrors.Validation("callbackType", fmt.Sprintf("tool %q does not support webhook callbacks", t.Name))
		}
		if req.CallbackURL == "" {
			return tool.Tool{}, apperrors.Validation("callbackUrl", "callbackUrl is required for webhook callbacks")
		}
	default:
		return tool.Tool{}, apperrors.Validation("callbackType", fmt.Sprintf("unknown callback type %q", req.CallbackType))
	}

	if req.Output.Mode == "" {
		req.Output.Mode = string(result.ModePath)
	}
	switch result.OutputMode(req.Output.Mode) {
	case result.ModePath:
		if req.Output.Path != "" && !filepath.IsAbs(req.Output.Path) {
			return tool.Tool{}, apperrors.Validation("output.path", "output path must be absolute")
		}
	case result.ModeBinary:
	default:
		return tool.Tool{}, apperrors.Validation("output.mode", fmt.Sprintf("unknown output mode %q", req.Output.Mode))
	}

	for i, in := range req.Inputs {
		if in.Field == "" {
			return tool.Tool{}, apperrors.Validation("inputs", fmt.Sprintf("inputs[%d]: field is required", i))
		}
		if in.FileName == "" {
			return tool.Tool{}, apperrors.Validation("inputs", fmt.Sprintf("inputs[%d]: fileName is required", i))
		}
		if len(in.Data) == 0 {
			return tool.Tool{}, apperrors.Validation("inputs", fmt.Sprintf("inputs[%d]: data is empty", i))
		}
	}

	// Required fields may be satisfied by the payload itself or by a staged
	// input bound to that key.
	bound := make(map[string]bool, len(req.Inputs))
	for _, in := range req.Inputs {
		bound[in.Field] = true
	}
	for _, field := range t.RequiredFields {
		if _, ok := req.Payload[field]; !ok && !bound[field] {
			return tool.Tool{}, apperrors.Validation(field, fmt.Sprintf("tool %q requires payload field %q", t.Name, field))
		}
	}
	return t, nil
}
