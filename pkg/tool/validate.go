package tool

import (
	"github.com/xeipuuv/gojsonschema"

	"github.com/toolwire/openapi-mcp/pkg/server"
)

// ApplyDefaults returns a copy of args with schema defaults filled in for
// absent properties. Supplied values are never overwritten.
func ApplyDefaults(t Tool, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}

	for name, raw := range t.Properties() {
		if _, supplied := out[name]; supplied {
			continue
		}
		propSchema, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if def, hasDefault := propSchema["default"]; hasDefault {
			out[name] = def
		}
	}

	return out
}

// CheckBindings verifies the tool's binding metadata is complete: every
// property in the input schema must have exactly one recorded location.
// Execution refuses tools that fail this check.
func CheckBindings(t Tool) error {
	for name := range t.Properties() {
		if _, ok := t.Bindings[name]; !ok {
			return server.NewError(server.ErrorTypeInternal,
				"tool has no binding metadata for property", name)
		}
	}
	return nil
}

// ValidateArguments checks supplied arguments against the tool's input
// schema. Missing required properties yield a missing_parameter error naming
// the property; type and enum violations yield a validation error. Unknown
// supplied properties are deliberately ignored so callers built against a
// newer spec keep working.
func ValidateArguments(t Tool, args map[string]any) error {
	for _, name := range t.Required() {
		if _, ok := args[name]; !ok {
			return server.NewError(server.ErrorTypeMissingParameter,
				"missing required parameter", name)
		}
	}

	if len(t.Properties()) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(t.InputSchema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return server.Wrap(err, server.ErrorTypeInternal, "input schema validation failed")
	}

	if !result.Valid() {
		first := result.Errors()[0]
		return server.NewError(server.ErrorTypeValidation,
			first.Description(), first.Field())
	}

	return nil
}
