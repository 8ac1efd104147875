package tool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toolwire/openapi-mcp/pkg/server"
)

func userTool() Tool {
	return Tool{
		Name:   "getUser",
		Method: "GET",
		Path:   "/users/{userId}",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"userId": map[string]any{"type": "integer"},
				"limit":  map[string]any{"type": "integer", "default": 20},
				"sort":   map[string]any{"type": "string", "enum": []any{"asc", "desc"}},
			},
			"required": []string{"userId"},
		},
		Bindings: map[string]Binding{
			"userId": BindPath,
			"limit":  BindQuery,
			"sort":   BindQuery,
		},
	}
}

func TestApplyDefaults(t *testing.T) {
	tool := userTool()

	out := ApplyDefaults(tool, map[string]any{"userId": 42})
	require.EqualValues(t, 20, out["limit"])
	require.EqualValues(t, 42, out["userId"])

	// Supplied values are never overwritten, and the input map is untouched.
	in := map[string]any{"userId": 1, "limit": 5}
	out = ApplyDefaults(tool, in)
	require.EqualValues(t, 5, out["limit"])
	require.Len(t, in, 2)
}

func TestValidateArgumentsMissingRequired(t *testing.T) {
	err := ValidateArguments(userTool(), map[string]any{"limit": 5})
	require.Error(t, err)
	require.True(t, server.IsType(err, server.ErrorTypeMissingParameter))
	require.Contains(t, err.Error(), "userId")
}

func TestValidateArgumentsTypeViolation(t *testing.T) {
	err := ValidateArguments(userTool(), map[string]any{"userId": "not-a-number"})
	require.Error(t, err)
	require.True(t, server.IsType(err, server.ErrorTypeValidation))
}

func TestValidateArgumentsEnumViolation(t *testing.T) {
	err := ValidateArguments(userTool(), map[string]any{"userId": 1, "sort": "sideways"})
	require.Error(t, err)
	require.True(t, server.IsType(err, server.ErrorTypeValidation))
}

func TestValidateArgumentsUnknownIgnored(t *testing.T) {
	err := ValidateArguments(userTool(), map[string]any{"userId": 1, "futureParam": "x"})
	require.NoError(t, err)
}

func TestValidateArgumentsValid(t *testing.T) {
	err := ValidateArguments(userTool(), map[string]any{"userId": 1, "limit": 10, "sort": "asc"})
	require.NoError(t, err)
}

func TestCheckBindingsIncomplete(t *testing.T) {
	tool := userTool()
	delete(tool.Bindings, "sort")

	err := CheckBindings(tool)
	require.Error(t, err)
	require.True(t, server.IsType(err, server.ErrorTypeInternal))
	require.Contains(t, err.Error(), "sort")

	require.NoError(t, CheckBindings(userTool()))
}
