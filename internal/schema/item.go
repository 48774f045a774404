package schema

import "fmt"

var messageRoleEnum = []string{"assistant", "developer", "system", "user"}

// itemParamStateless covers the ItemParam variants with no fields beyond
// type.
var itemParamStateless = []string{"web_search_call"}

// ValidateItemParam validates an ItemParam (spec.md §4.6): type-keyed
// variants plus an item_reference fallback for a bare {"id": ...}
// reference or an explicit {"type": "item_reference", "id": ...}.
//
// spec.md §4.6 states this union has 23 keyed variants; the field-level
// matrix it goes on to quote only names 21 distinct type values. The 21
// enumerated below are what that matrix actually specifies; no two
// unspecified variants are invented to reach 23.
func ValidateItemParam(v any) []string {
	obj, ok := asObject(v)
	if !ok {
		return []string{"item: must be an object"}
	}

	t, hasType := typeOf(obj)
	if !hasType {
		if _, hasID := obj["id"]; hasID {
			return nil
		}
		return []string{"item: missing required field \"type\""}
	}

	var errs []string
	ctx := fmt.Sprintf("item(type=%s)", t)
	switch t {
	case "item_reference":
		requireString(obj, "id", ctx, &errs)

	case "message":
		requireEnum(obj, "role", ctx, messageRoleEnum, &errs)
		requireStringOrArray(obj, "content", ctx, &errs)

	case "function_call":
		requireString(obj, "call_id", ctx, &errs)
		requireString(obj, "name", ctx, &errs)
		requireString(obj, "arguments", ctx, &errs)

	case "function_call_output":
		requireString(obj, "call_id", ctx, &errs)
		requireStringOrArray(obj, "output", ctx, &errs)

	case "reasoning":
		requireArray(obj, "summary", ctx, &errs)

	case "compaction":
		requireString(obj, "encrypted_content", ctx, &errs)

	case "code_interpreter_call":
		requireString(obj, "id", ctx, &errs)
		requireString(obj, "container_id", ctx, &errs)
		requireString(obj, "code", ctx, &errs)

	case "computer_call", "local_shell_call", "shell_call":
		requireString(obj, "call_id", ctx, &errs)
		requireObject(obj, "action", ctx, &errs)

	case "computer_call_output":
		requireString(obj, "call_id", ctx, &errs)
		requireObject(obj, "output", ctx, &errs)

	case "custom_tool_call":
		requireString(obj, "call_id", ctx, &errs)
		requireString(obj, "name", ctx, &errs)
		requireString(obj, "input", ctx, &errs)

	case "custom_tool_call_output", "local_shell_call_output":
		requireString(obj, "call_id", ctx, &errs)
		requireString(obj, "output", ctx, &errs)

	case "shell_call_output":
		requireString(obj, "call_id", ctx, &errs)
		requireArray(obj, "output", ctx, &errs)

	case "file_search_call":
		requireString(obj, "id", ctx, &errs)
		requireNonEmptyStringArray(obj, "queries", ctx, &errs)

	case "image_generation_call":
		requireString(obj, "id", ctx, &errs)

	case "apply_patch_call":
		requireString(obj, "call_id", ctx, &errs)
		requireString(obj, "status", ctx, &errs)
		requireObject(obj, "operation", ctx, &errs)

	case "apply_patch_call_output":
		requireString(obj, "call_id", ctx, &errs)
		requireString(obj, "status", ctx, &errs)

	case "mcp_approval_request":
		requireString(obj, "server_label", ctx, &errs)
		requireString(obj, "name", ctx, &errs)
		requireString(obj, "arguments", ctx, &errs)

	case "mcp_approval_response":
		requireString(obj, "approval_request_id", ctx, &errs)
		requireBool(obj, "approve", ctx, &errs)

	default:
		if !contains(itemParamStateless, t) {
			errs = append(errs, fmt.Sprintf("item: unknown type %q", t))
		}
	}
	return errs
}
