// Package observability provides metrics and instrumentation helpers.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrMethod  = "method"
	attrPath    = "path"
	attrStatus  = "status"
	attrTool    = "tool"
	attrOutcome = "outcome"
	attrSuccess = "success"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	return attribute.String(attrPath, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// Group status codes to reduce cardinality: 200-299 -> 2xx, etc.
	group := fmt.Sprintf("%dxx", code/100)
	return attribute.String(attrStatus, group)
}

func toolAttr(tool string) attribute.KeyValue {
	return attribute.String(attrTool, tool)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, outcome)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

// normalizePath replaces dynamic path segments with placeholders so metric
// cardinality stays bounded.
func normalizePath(path string) string {
	const prefix = "/v1/tools/"
	if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
		return "/v1/tools/{tool}"
	}
	return path
}
