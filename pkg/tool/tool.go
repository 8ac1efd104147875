// Package tool translates resolved OpenAPI operations into callable tool
// records and validates runtime arguments against them.
//
// A Tool is the externally visible unit: a stable name, a human description,
// a flattened JSON-schema input contract, and binding metadata that records
// which part of an HTTP request each input property belongs in. Callers need
// no OpenAPI knowledge; the binding metadata is what lets the executor
// reassemble a request without re-parsing the spec.
package tool

import (
	"fmt"

	"github.com/toolwire/openapi-mcp/pkg/spec"
)

// Binding identifies the request part an input property is bound to. It is a
// closed set: the executor handles every variant and refuses tools whose
// metadata falls outside it.
type Binding int

const (
	BindPath Binding = iota
	BindQuery
	BindHeader
	BindCookie
	BindBody
)

// String returns the wire name of the binding location.
func (b Binding) String() string {
	switch b {
	case BindPath:
		return "path"
	case BindQuery:
		return "query"
	case BindHeader:
		return "header"
	case BindCookie:
		return "cookie"
	case BindBody:
		return "body"
	default:
		return fmt.Sprintf("binding(%d)", int(b))
	}
}

// bindingForLocation maps a declared parameter location to a Binding.
func bindingForLocation(in string) (Binding, bool) {
	switch in {
	case spec.InPath:
		return BindPath, true
	case spec.InQuery:
		return BindQuery, true
	case spec.InHeader:
		return BindHeader, true
	case spec.InCookie:
		return BindCookie, true
	default:
		return 0, false
	}
}

// Tool is a named, schema-described callable unit derived from one API
// operation. Tools are immutable after translation.
type Tool struct {
	// Name is the stable identity: the operationId when present, otherwise a
	// deterministic composite of method and path.
	Name string `json:"name"`

	// Description is the operation summary, falling back to its description,
	// falling back to "METHOD path".
	Description string `json:"description"`

	// Method and Path identify the operation the tool dispatches to. Path is
	// the original template, e.g. /users/{userId}.
	Method string `json:"method"`
	Path   string `json:"path"`

	// InputSchema is a JSON-schema object whose properties are the union of
	// all parameter schemas plus any JSON body properties, keyed by name.
	InputSchema map[string]any `json:"inputSchema"`

	// Bindings records, per input property, the request part it belongs in.
	// Every property in InputSchema has exactly one entry here; the executor
	// refuses tools whose metadata is incomplete.
	Bindings map[string]Binding `json:"-"`

	// BodyRequired is set when the operation declares a required request
	// body. BodyContentType names the declared media type; only
	// application/json bodies are assembled, anything else fails execution
	// explicitly.
	BodyRequired    bool   `json:"-"`
	BodyContentType string `json:"-"`
}

// Required returns the required property names from the input schema.
func (t *Tool) Required() []string {
	req, _ := t.InputSchema["required"].([]string)
	return req
}

// Properties returns the property map from the input schema.
func (t *Tool) Properties() map[string]any {
	props, _ := t.InputSchema["properties"].(map[string]any)
	return props
}
