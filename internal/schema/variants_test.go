package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xLillium/rip/internal/schema"
)

func TestValidateToolParamAcceptsStatelessAndStatefulVariants(t *testing.T) {
	assert.Empty(t, schema.ValidateToolParam(map[string]any{"type": "web_search"}))
	assert.Empty(t, schema.ValidateToolParam(map[string]any{"type": "function", "name": "echo"}))
	assert.Empty(t, schema.ValidateToolParam(map[string]any{
		"type":             "file_search",
		"vector_store_ids": []any{"vs_1"},
	}))
	assert.Empty(t, schema.ValidateToolParam(map[string]any{
		"type":      "code_interpreter",
		"container": map[string]any{"type": "auto"},
	}))
	assert.Empty(t, schema.ValidateToolParam(map[string]any{
		"type":           "computer_use_preview",
		"display_width":  float64(1024),
		"display_height": float64(768),
		"environment":    "linux",
	}))
}

func TestValidateToolParamRejectsMissingRequiredFields(t *testing.T) {
	errs := schema.ValidateToolParam(map[string]any{"type": "function"})
	assert.NotEmpty(t, errs)

	errs = schema.ValidateToolParam(map[string]any{"type": "file_search", "vector_store_ids": []any{}})
	assert.NotEmpty(t, errs)

	errs = schema.ValidateToolParam(map[string]any{
		"type":           "computer-preview",
		"display_width":  float64(-1),
		"display_height": float64(768),
		"environment":    "atari",
	})
	assert.Len(t, errs, 2)
}

func TestValidateToolChoiceParamAllowedToolsSuccess(t *testing.T) {
	errs := schema.ValidateToolChoiceParam(map[string]any{
		"type": "allowed_tools",
		"tools": []any{
			map[string]any{"type": "function", "name": "echo"},
		},
	})
	assert.Empty(t, errs)
}

func TestValidateToolChoiceParamAllowedToolsEmptyListErrors(t *testing.T) {
	errs := schema.ValidateToolChoiceParam(map[string]any{
		"type":  "allowed_tools",
		"tools": []any{},
	})
	assert.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if e == "tools must not be empty" {
			found = true
		}
	}
	assert.True(t, found, "expected a %q error, got %v", "tools must not be empty", errs)
}

func TestValidateToolChoiceParamBareStrings(t *testing.T) {
	assert.Empty(t, schema.ValidateToolChoiceParam("auto"))
	assert.Empty(t, schema.ValidateToolChoiceParam("required"))
	assert.Empty(t, schema.ValidateToolChoiceParam("none"))
	assert.NotEmpty(t, schema.ValidateToolChoiceParam("sometimes"))
}

func TestValidateToolChoiceParamDelegatesToSpecificChoice(t *testing.T) {
	assert.Empty(t, schema.ValidateToolChoiceParam(map[string]any{"type": "function", "name": "echo"}))
	assert.NotEmpty(t, schema.ValidateToolChoiceParam(map[string]any{"type": "function"}))
}

func TestValidateItemParamVariants(t *testing.T) {
	assert.Empty(t, schema.ValidateItemParam(map[string]any{
		"type": "message", "role": "user", "content": "hi",
	}))
	assert.Empty(t, schema.ValidateItemParam(map[string]any{
		"type": "function_call", "call_id": "c1", "name": "echo", "arguments": "{}",
	}))
	assert.Empty(t, schema.ValidateItemParam(map[string]any{"id": "resp_123"}))
	assert.Empty(t, schema.ValidateItemParam(map[string]any{
		"type": "mcp_approval_response", "approval_request_id": "r1", "approve": true,
	}))

	errs := schema.ValidateItemParam(map[string]any{"type": "message", "role": "narrator"})
	assert.NotEmpty(t, errs)

	errs = schema.ValidateItemParam(map[string]any{"type": "does_not_exist"})
	assert.NotEmpty(t, errs)
}

func TestValidateCreateResponseBodyToolChoiceScenario(t *testing.T) {
	body := map[string]any{
		"model": "gpt-x",
		"input": "hello",
		"tool_choice": map[string]any{
			"type":  "allowed_tools",
			"tools": []any{map[string]any{"type": "function", "name": "echo"}},
		},
	}
	assert.Empty(t, schema.ValidateCreateResponseBody(body))

	body["tool_choice"] = map[string]any{
		"type":  "allowed_tools",
		"tools": []any{},
	}
	errs := schema.ValidateCreateResponseBody(body)
	assert.NotEmpty(t, errs)
}
