// Package spec resolves OpenAPI 3.x documents into flat, fully dereferenced
// operation records.
//
// The resolver walks every (path, method) pair under paths, replaces internal
// $ref indirections with their component content, and merges path-item level
// parameters under operation-level ones. Resolution state is scoped to a
// single document, so references in one registered spec can never resolve
// against another spec's components.
//
// # Quick Start
//
//	loader := openapi3.NewLoader()
//	doc, err := loader.LoadFromData(data)
//	if err != nil {
//		log.Fatal(err)
//	}
//	ops, err := spec.ResolveDocument(doc)
package spec

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Parameter locations as declared in the source document.
const (
	InPath   = "path"
	InQuery  = "query"
	InHeader = "header"
	InCookie = "cookie"
)

// Operation is one fully resolved (path template, HTTP method) pair.
// All $ref indirections in its parameters and body have been replaced by
// their target content; it holds no pointers back into the source document's
// reference graph.
type Operation struct {
	Path        string
	Method      string
	OperationID string
	Summary     string
	Description string
	Parameters  []Parameter
	RequestBody *RequestBody
	Responses   map[string]string
}

// Parameter is a resolved operation parameter. Schema is a plain JSON-schema
// fragment (type, format, enum, default and friends) with refs inlined.
// Uniqueness within an operation is by (Name, In).
type Parameter struct {
	Name        string
	In          string
	Required    bool
	Description string
	Schema      map[string]any
}

// RequestBody is a resolved request body. Only application/json content
// contributes a schema; for any other media type Schema is nil but Required
// and ContentType still record that a body is expected, so execution can fail
// loudly instead of dropping data.
type RequestBody struct {
	Required    bool
	ContentType string
	Schema      map[string]any
}

// methodOrder fixes the iteration order of operations within a path item so
// translation output is deterministic.
var methodOrder = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// operationsForPathItem returns the operations declared on a path item keyed
// by lowercase HTTP method.
func operationsForPathItem(item *openapi3.PathItem) map[string]*openapi3.Operation {
	ops := make(map[string]*openapi3.Operation)

	if item.Get != nil {
		ops["get"] = item.Get
	}
	if item.Put != nil {
		ops["put"] = item.Put
	}
	if item.Post != nil {
		ops["post"] = item.Post
	}
	if item.Delete != nil {
		ops["delete"] = item.Delete
	}
	if item.Options != nil {
		ops["options"] = item.Options
	}
	if item.Head != nil {
		ops["head"] = item.Head
	}
	if item.Patch != nil {
		ops["patch"] = item.Patch
	}
	if item.Trace != nil {
		ops["trace"] = item.Trace
	}

	return ops
}
