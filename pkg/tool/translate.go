package tool

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/toolwire/openapi-mcp/pkg/spec"
)

// Translate emits one Tool per resolved operation, applying the naming and
// schema-flattening rules. Input order is preserved, so deterministic
// operation order yields deterministic tool order, and names are kept unique
// within the run so no operation is silently dropped at registration.
func Translate(ops []spec.Operation) []Tool {
	tools := make([]Tool, 0, len(ops))
	used := make(map[string]bool, len(ops))
	for _, op := range ops {
		t := translateOperation(op)
		t.Name = uniqueName(used, t.Name, op)
		tools = append(tools, t)
	}
	return tools
}

// uniqueName resolves name collisions within one translation run. Distinct
// paths can camel-case to the same composite (GET /user-id and GET /user/id
// both synthesize getUserId), and documents can repeat an operationId; the
// later operation gets a numeric suffix.
func uniqueName(used map[string]bool, name string, op spec.Operation) string {
	if !used[name] {
		used[name] = true
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s%d", name, i)
		if !used[candidate] {
			fmt.Fprintf(os.Stderr, "[WARN] Tool name '%s' already taken; using '%s' for %s %s.\n",
				name, candidate, strings.ToUpper(op.Method), op.Path)
			used[candidate] = true
			return candidate
		}
	}
}

func translateOperation(op spec.Operation) Tool {
	t := Tool{
		Name:        ToolName(op),
		Description: toolDescription(op),
		Method:      strings.ToUpper(op.Method),
		Path:        op.Path,
		Bindings:    make(map[string]Binding),
	}

	properties := map[string]any{}
	var required []string

	// Parameters first, in declaration order. On a cross-location name
	// collision the last processed declaration wins, both for the schema and
	// for the binding, so behavior stays deterministic.
	for _, p := range op.Parameters {
		binding, ok := bindingForLocation(p.In)
		if !ok {
			fmt.Fprintf(os.Stderr, "[WARN] Parameter '%s' uses unsupported location '%s'.\n", p.Name, p.In)
			continue
		}

		prop := cloneSchema(p.Schema)
		if prop == nil {
			prop = map[string]any{"type": "string"}
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}

		if _, collides := t.Bindings[p.Name]; collides {
			fmt.Fprintf(os.Stderr, "[WARN] Parameter '%s' declared in multiple locations; keeping '%s'.\n", p.Name, binding)
			required = removeString(required, p.Name)
		}

		properties[p.Name] = prop
		t.Bindings[p.Name] = binding
		if p.Required {
			required = append(required, p.Name)
		}
	}

	// Then body properties. A JSON body's top-level properties merge into the
	// flat schema; a non-JSON body contributes nothing but still marks the
	// tool as body-requiring.
	if body := op.RequestBody; body != nil {
		t.BodyRequired = body.Required
		t.BodyContentType = body.ContentType

		if body.ContentType != "" && body.ContentType != "application/json" {
			fmt.Fprintf(os.Stderr, "[WARN] Request body uses media type '%s'. Only 'application/json' is supported.\n", body.ContentType)
		}

		if body.Schema != nil {
			bodyProps, _ := body.Schema["properties"].(map[string]any)
			bodyRequired := stringSlice(body.Schema["required"])

			for name, propSchema := range bodyProps {
				if _, collides := t.Bindings[name]; collides {
					fmt.Fprintf(os.Stderr, "[WARN] Parameter '%s' declared in multiple locations; keeping 'body'.\n", name)
					required = removeString(required, name)
				}
				properties[name] = propSchema
				t.Bindings[name] = BindBody
			}
			for _, name := range bodyRequired {
				if _, known := t.Bindings[name]; known && t.Bindings[name] == BindBody {
					required = append(required, name)
				}
			}
		}
	}

	t.InputSchema = map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		t.InputSchema["required"] = required
	}

	return t
}

// ToolName derives the stable tool identity for an operation: the operationId
// when present and non-empty, otherwise a composite of the lowercase method
// and the camel-cased path segments, e.g. GET /repos/{owner}/{repo} becomes
// getReposOwnerRepo.
func ToolName(op spec.Operation) string {
	if op.OperationID != "" {
		return op.OperationID
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(op.Method))

	for _, segment := range strings.Split(op.Path, "/") {
		segment = strings.TrimPrefix(segment, "{")
		segment = strings.TrimSuffix(segment, "}")
		if segment == "" {
			continue
		}
		b.WriteString(camelSegment(segment))
	}

	return b.String()
}

// camelSegment upper-cases the first letter of each word in a path segment,
// treating any non-alphanumeric rune as a word break.
func camelSegment(segment string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range segment {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func toolDescription(op spec.Operation) string {
	if op.Summary != "" {
		return op.Summary
	}
	if op.Description != "" {
		return op.Description
	}
	return strings.ToUpper(op.Method) + " " + op.Path
}

// cloneSchema shallow-copies a schema map so tool records never alias the
// resolver's arena.
func cloneSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		out[k] = v
	}
	return out
}

func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, item := range list {
		if item != s {
			out = append(out, item)
		}
	}
	return out
}
