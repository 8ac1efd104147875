package spec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/toolwire/openapi-mcp/pkg/server"
)

// resolver carries per-document resolution state: the component tables the
// document owns, an arena of already-resolved schemas keyed by reference
// path, and the set of references on the current resolution stack. The arena
// turns the reference graph walk into a terminating one; the stack set turns
// would-be infinite recursion into a named cycle error.
type resolver struct {
	doc      *openapi3.T
	resolved map[string]map[string]any
	visiting map[string]bool
}

// ResolveDocument produces a fully resolved Operation for every path-template
// and method pair in the document. Operations are returned in deterministic
// order: paths sorted lexically, methods in a fixed order within a path.
//
// A malformed, dangling, or cyclic reference fails resolution of the whole
// document with a schema_resolution error naming the offending pointer.
func ResolveDocument(doc *openapi3.T) ([]Operation, error) {
	if doc == nil || doc.Paths == nil {
		return nil, nil
	}

	r := &resolver{
		doc:      doc,
		resolved: make(map[string]map[string]any),
		visiting: make(map[string]bool),
	}

	pathMap := doc.Paths.Map()
	paths := make([]string, 0, len(pathMap))
	for p := range pathMap {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var ops []Operation
	for _, path := range paths {
		item := pathMap[path]
		if item == nil {
			continue
		}

		byMethod := operationsForPathItem(item)
		for _, method := range methodOrder {
			op := byMethod[method]
			if op == nil {
				continue
			}

			resolvedOp, err := r.resolveOperation(path, method, item, op)
			if err != nil {
				return nil, err
			}
			ops = append(ops, resolvedOp)
		}
	}

	return ops, nil
}

// resolveOperation resolves one operation, merging path-item level parameters
// under operation-level ones. On a (name, location) collision the operation
// level declaration wins.
func (r *resolver) resolveOperation(path, method string, item *openapi3.PathItem, op *openapi3.Operation) (Operation, error) {
	out := Operation{
		Path:        path,
		Method:      method,
		OperationID: op.OperationID,
		Summary:     op.Summary,
		Description: op.Description,
	}

	merged, err := r.mergeParameters(item.Parameters, op.Parameters)
	if err != nil {
		return Operation{}, fmt.Errorf("%s %s: %w", strings.ToUpper(method), path, err)
	}
	out.Parameters = merged

	if op.RequestBody != nil {
		body, err := r.resolveRequestBody(op.RequestBody)
		if err != nil {
			return Operation{}, fmt.Errorf("%s %s: %w", strings.ToUpper(method), path, err)
		}
		out.RequestBody = body
	}

	if op.Responses != nil {
		out.Responses = make(map[string]string, op.Responses.Len())
		for status, respRef := range op.Responses.Map() {
			if respRef == nil || respRef.Value == nil {
				continue
			}
			desc := ""
			if respRef.Value.Description != nil {
				desc = *respRef.Value.Description
			}
			out.Responses[status] = desc
		}
	}

	return out, nil
}

// mergeParameters resolves path-item parameters first, then lets
// operation-level parameters override them by (name, location).
func (r *resolver) mergeParameters(pathParams, opParams openapi3.Parameters) ([]Parameter, error) {
	type key struct{ name, in string }

	var order []key
	byKey := make(map[key]Parameter)

	add := func(refs openapi3.Parameters) error {
		for _, ref := range refs {
			param, err := r.resolveParameter(ref)
			if err != nil {
				return err
			}
			k := key{param.Name, param.In}
			if _, exists := byKey[k]; !exists {
				order = append(order, k)
			}
			byKey[k] = param
		}
		return nil
	}

	if err := add(pathParams); err != nil {
		return nil, err
	}
	if err := add(opParams); err != nil {
		return nil, err
	}

	params := make([]Parameter, 0, len(order))
	for _, k := range order {
		params = append(params, byKey[k])
	}
	return params, nil
}

// resolveParameter dereferences a parameter, following a components reference
// if the parameter is declared as one.
func (r *resolver) resolveParameter(ref *openapi3.ParameterRef) (Parameter, error) {
	if ref == nil {
		return Parameter{}, server.NewError(server.ErrorTypeSchemaResolution, "nil parameter reference", "")
	}

	value := ref.Value
	if ref.Ref != "" {
		name, ok := componentName(ref.Ref, "#/components/parameters/")
		if !ok {
			return Parameter{}, danglingRef(ref.Ref)
		}
		if r.doc.Components == nil || r.doc.Components.Parameters[name] == nil || r.doc.Components.Parameters[name].Value == nil {
			return Parameter{}, danglingRef(ref.Ref)
		}
		value = r.doc.Components.Parameters[name].Value
	}
	if value == nil {
		return Parameter{}, danglingRef(ref.Ref)
	}

	param := Parameter{
		Name:        value.Name,
		In:          value.In,
		Required:    value.Required,
		Description: value.Description,
	}

	if value.Schema != nil {
		schema, err := r.resolveSchema(value.Schema, make(map[*openapi3.Schema]bool))
		if err != nil {
			return Parameter{}, fmt.Errorf("parameter %q: %w", value.Name, err)
		}
		param.Schema = schema
	}

	return param, nil
}

// resolveRequestBody dereferences a request body. Only the application/json
// media type contributes a schema; other media types are recorded by content
// type alone so execution can reject them explicitly.
func (r *resolver) resolveRequestBody(ref *openapi3.RequestBodyRef) (*RequestBody, error) {
	value := ref.Value
	if ref.Ref != "" {
		name, ok := componentName(ref.Ref, "#/components/requestBodies/")
		if !ok {
			return nil, danglingRef(ref.Ref)
		}
		if r.doc.Components == nil || r.doc.Components.RequestBodies[name] == nil || r.doc.Components.RequestBodies[name].Value == nil {
			return nil, danglingRef(ref.Ref)
		}
		value = r.doc.Components.RequestBodies[name].Value
	}
	if value == nil {
		return nil, danglingRef(ref.Ref)
	}

	body := &RequestBody{Required: value.Required}

	if mt := value.Content.Get("application/json"); mt != nil {
		body.ContentType = "application/json"
		if mt.Schema != nil {
			schema, err := r.resolveSchema(mt.Schema, make(map[*openapi3.Schema]bool))
			if err != nil {
				return nil, fmt.Errorf("request body: %w", err)
			}
			body.Schema = schema
		}
		return body, nil
	}

	// Record the first declared media type so the unsupported-body error can
	// name it.
	for mtName := range value.Content {
		body.ContentType = mtName
		break
	}

	return body, nil
}

// resolveSchema converts a schema reference into a plain JSON-schema fragment
// with all internal refs inlined. seen guards against schemas that reach
// themselves through their own property graph.
func (r *resolver) resolveSchema(ref *openapi3.SchemaRef, seen map[*openapi3.Schema]bool) (map[string]any, error) {
	if ref == nil {
		return nil, nil
	}

	if ref.Ref != "" {
		name, ok := componentName(ref.Ref, "#/components/schemas/")
		if !ok {
			return nil, danglingRef(ref.Ref)
		}
		if cached, done := r.resolved[name]; done {
			return cached, nil
		}
		if r.visiting[name] {
			return nil, server.NewError(server.ErrorTypeSchemaResolution,
				"cyclic schema reference", ref.Ref)
		}
		if r.doc.Components == nil || r.doc.Components.Schemas[name] == nil {
			return nil, danglingRef(ref.Ref)
		}

		r.visiting[name] = true
		resolved, err := r.schemaToMap(r.doc.Components.Schemas[name].Value, seen)
		delete(r.visiting, name)
		if err != nil {
			return nil, err
		}

		r.resolved[name] = resolved
		return resolved, nil
	}

	return r.schemaToMap(ref.Value, seen)
}

// schemaToMap flattens a schema value into a map. allOf subschemas are merged
// into the parent; oneOf/anyOf variants are carried as lists.
func (r *resolver) schemaToMap(val *openapi3.Schema, seen map[*openapi3.Schema]bool) (map[string]any, error) {
	if val == nil {
		return nil, nil
	}
	if seen[val] {
		title := val.Title
		if title == "" {
			title = "<inline>"
		}
		return nil, server.NewError(server.ErrorTypeSchemaResolution,
			"cyclic schema reference", title)
	}
	seen[val] = true
	defer delete(seen, val)

	out := map[string]any{}

	if len(val.AllOf) > 0 {
		for _, sub := range val.AllOf {
			subMap, err := r.resolveSchema(sub, seen)
			if err != nil {
				return nil, err
			}
			for k, v := range subMap {
				out[k] = v
			}
		}
	}
	if len(val.OneOf) > 0 {
		variants, err := r.resolveSchemaList(val.OneOf, seen)
		if err != nil {
			return nil, err
		}
		out["oneOf"] = variants
	}
	if len(val.AnyOf) > 0 {
		variants, err := r.resolveSchemaList(val.AnyOf, seen)
		if err != nil {
			return nil, err
		}
		out["anyOf"] = variants
	}

	if val.Type != nil && len(*val.Type) > 0 {
		out["type"] = (*val.Type)[0]
	}
	if val.Format != "" {
		out["format"] = val.Format
	}
	if val.Description != "" {
		out["description"] = val.Description
	}
	if len(val.Enum) > 0 {
		out["enum"] = val.Enum
	}
	if val.Default != nil {
		out["default"] = val.Default
	}
	if val.Example != nil {
		out["example"] = val.Example
	}

	if len(val.Properties) > 0 {
		props := map[string]any{}
		names := make([]string, 0, len(val.Properties))
		for name := range val.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			propMap, err := r.resolveSchema(val.Properties[name], seen)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			props[name] = propMap
		}
		out["properties"] = props
		if len(val.Required) > 0 {
			out["required"] = append([]string(nil), val.Required...)
		}
	}

	if val.Items != nil {
		items, err := r.resolveSchema(val.Items, seen)
		if err != nil {
			return nil, err
		}
		out["items"] = items
	}

	return out, nil
}

func (r *resolver) resolveSchemaList(refs openapi3.SchemaRefs, seen map[*openapi3.Schema]bool) ([]any, error) {
	variants := make([]any, 0, len(refs))
	for _, sub := range refs {
		subMap, err := r.resolveSchema(sub, seen)
		if err != nil {
			return nil, err
		}
		variants = append(variants, subMap)
	}
	return variants, nil
}

// componentName extracts the component key from an internal reference. Only
// document-internal references are resolvable; anything else is dangling.
func componentName(ref, prefix string) (string, bool) {
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(ref, prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

func danglingRef(ref string) *server.ServerError {
	if ref == "" {
		ref = "<empty>"
	}
	return server.NewError(server.ErrorTypeSchemaResolution, "unresolvable reference", ref)
}
