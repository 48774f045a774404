package schema

import "fmt"

// The variant validators below have no surviving Rust source in
// original_source/ (the retrieval pack's request.rs references
// validate_item_param/validate_create_response_body without shipping
// their bodies), so spec.md §4.6's prose is the authoritative
// specification for every field-level rule implemented here.

func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func typeOf(obj map[string]any) (string, bool) {
	t, ok := obj["type"].(string)
	return t, ok
}

func requireString(obj map[string]any, key, ctx string, errs *[]string) {
	v, present := obj[key]
	if !present {
		*errs = append(*errs, fmt.Sprintf("%s: missing required field %q", ctx, key))
		return
	}
	if _, ok := v.(string); !ok {
		*errs = append(*errs, fmt.Sprintf("%s: field %q must be a string", ctx, key))
	}
}

func requireNonEmptyStringArray(obj map[string]any, key, ctx string, errs *[]string) {
	v, present := obj[key]
	if !present {
		*errs = append(*errs, fmt.Sprintf("%s: missing required field %q", ctx, key))
		return
	}
	arr, ok := v.([]any)
	if !ok {
		*errs = append(*errs, fmt.Sprintf("%s: field %q must be an array", ctx, key))
		return
	}
	if len(arr) == 0 {
		*errs = append(*errs, fmt.Sprintf("%s must not be empty", key))
		return
	}
	for i, item := range arr {
		if _, ok := item.(string); !ok {
			*errs = append(*errs, fmt.Sprintf("%s: %s[%d] must be a string", ctx, key, i))
		}
	}
}

func requireArray(obj map[string]any, key, ctx string, errs *[]string) {
	v, present := obj[key]
	if !present {
		*errs = append(*errs, fmt.Sprintf("%s: missing required field %q", ctx, key))
		return
	}
	if _, ok := v.([]any); !ok {
		*errs = append(*errs, fmt.Sprintf("%s: field %q must be an array", ctx, key))
	}
}

func requireObject(obj map[string]any, key, ctx string, errs *[]string) {
	v, present := obj[key]
	if !present {
		*errs = append(*errs, fmt.Sprintf("%s: missing required field %q", ctx, key))
		return
	}
	if _, ok := v.(map[string]any); !ok {
		*errs = append(*errs, fmt.Sprintf("%s: field %q must be an object", ctx, key))
	}
}

func requireStringOrArray(obj map[string]any, key, ctx string, errs *[]string) {
	v, present := obj[key]
	if !present {
		*errs = append(*errs, fmt.Sprintf("%s: missing required field %q", ctx, key))
		return
	}
	switch v.(type) {
	case string, []any:
	default:
		*errs = append(*errs, fmt.Sprintf("%s: field %q must be a string or an array", ctx, key))
	}
}

func requireBool(obj map[string]any, key, ctx string, errs *[]string) {
	v, present := obj[key]
	if !present {
		*errs = append(*errs, fmt.Sprintf("%s: missing required field %q", ctx, key))
		return
	}
	if _, ok := v.(bool); !ok {
		*errs = append(*errs, fmt.Sprintf("%s: field %q must be a boolean", ctx, key))
	}
}

func requireEnum(obj map[string]any, key, ctx string, allowed []string, errs *[]string) {
	v, present := obj[key]
	if !present {
		*errs = append(*errs, fmt.Sprintf("%s: missing required field %q", ctx, key))
		return
	}
	s, ok := v.(string)
	if !ok {
		*errs = append(*errs, fmt.Sprintf("%s: field %q must be a string", ctx, key))
		return
	}
	for _, a := range allowed {
		if s == a {
			return
		}
	}
	*errs = append(*errs, fmt.Sprintf("%s: field %q must be one of %v, got %q", ctx, key, allowed, s))
}

func requirePositiveInt(obj map[string]any, key, ctx string, errs *[]string) {
	v, present := obj[key]
	if !present {
		*errs = append(*errs, fmt.Sprintf("%s: missing required field %q", ctx, key))
		return
	}
	n, ok := v.(float64)
	if !ok || n != float64(int64(n)) {
		*errs = append(*errs, fmt.Sprintf("%s: field %q must be an integer", ctx, key))
		return
	}
	if n <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: field %q must be positive", ctx, key))
	}
}

// toolParamStateless is the nine types ResponsesToolParam accepts with no
// required fields of their own.
var toolParamStateless = []string{
	"web_search",
	"web_search_2025_08_26",
	"web_search_ga",
	"web_search_preview",
	"web_search_preview_2025_03_11",
	"image_generation",
	"local_shell",
	"shell",
	"apply_patch",
}

var environmentEnum = []string{"windows", "mac", "linux", "browser"}

// ValidateToolParam validates a ResponsesToolParam (spec.md §4.6): 16
// accepted `type` discriminators (seven keyed below plus the nine in
// toolParamStateless).
func ValidateToolParam(v any) []string {
	obj, ok := asObject(v)
	if !ok {
		return []string{"tool: must be an object"}
	}
	t, ok := typeOf(obj)
	if !ok {
		return []string{"tool: missing required field \"type\""}
	}

	var errs []string
	ctx := fmt.Sprintf("tool(type=%s)", t)
	switch t {
	case "function", "custom":
		requireString(obj, "name", ctx, &errs)
	case "mcp":
		requireString(obj, "server_label", ctx, &errs)
	case "file_search":
		requireNonEmptyStringArray(obj, "vector_store_ids", ctx, &errs)
	case "code_interpreter":
		validateCodeInterpreterContainer(obj, ctx, &errs)
	case "computer-preview", "computer_use_preview":
		validateComputerTool(obj, ctx, &errs)
	default:
		if !contains(toolParamStateless, t) {
			errs = append(errs, fmt.Sprintf("tool: unknown type %q", t))
		}
	}
	return errs
}

func validateCodeInterpreterContainer(obj map[string]any, ctx string, errs *[]string) {
	v, present := obj["container"]
	if !present {
		*errs = append(*errs, fmt.Sprintf("%s: missing required field %q", ctx, "container"))
		return
	}
	switch c := v.(type) {
	case string:
	case map[string]any:
		t, _ := typeOf(c)
		if t != "auto" {
			*errs = append(*errs, fmt.Sprintf("%s: container object must have type \"auto\"", ctx))
		}
	default:
		*errs = append(*errs, fmt.Sprintf("%s: container must be a string or an object", ctx))
	}
}

func validateComputerTool(obj map[string]any, ctx string, errs *[]string) {
	requirePositiveInt(obj, "display_width", ctx, errs)
	requirePositiveInt(obj, "display_height", ctx, errs)
	requireEnum(obj, "environment", ctx, environmentEnum, errs)
}

// specificToolChoiceStateless is the stateless subset ToolChoiceParam's
// specific-tool-choice variants accept: the tool-param stateless set
// minus the web-search dated aliases (web_search_2025_08_26,
// web_search_preview_2025_03_11). spec.md §4.6 states this set has ten
// members; the arithmetic on the stated tool-param set (nine) minus two
// aliases yields seven. The seven members below are what the stated construction
// rule actually produces, and are treated as authoritative over the
// literal count "ten".
var specificToolChoiceStateless = []string{
	"web_search",
	"web_search_ga",
	"web_search_preview",
	"image_generation",
	"local_shell",
	"shell",
	"apply_patch",
}

// ValidateSpecificToolChoiceParam validates a SpecificToolChoiceParam
// (spec.md §4.6).
func ValidateSpecificToolChoiceParam(v any) []string {
	obj, ok := asObject(v)
	if !ok {
		return []string{"specific_tool_choice: must be an object"}
	}
	t, ok := typeOf(obj)
	if !ok {
		return []string{"specific_tool_choice: missing required field \"type\""}
	}

	var errs []string
	ctx := fmt.Sprintf("specific_tool_choice(type=%s)", t)
	switch t {
	case "function", "custom":
		requireString(obj, "name", ctx, &errs)
	case "mcp":
		requireString(obj, "server_label", ctx, &errs)
	default:
		if !contains(specificToolChoiceStateless, t) {
			errs = append(errs, fmt.Sprintf("specific_tool_choice: unknown type %q", t))
		}
	}
	return errs
}

var toolChoiceBareStrings = []string{"auto", "required", "none"}
var allowedToolsModeEnum = []string{"auto", "required", "none"}

// ValidateToolChoiceParam validates a ToolChoiceParam (spec.md §4.6):
// the bare strings auto|required|none, an {type:"allowed_tools", ...}
// object, or a specific-tool-choice object.
func ValidateToolChoiceParam(v any) []string {
	if s, ok := v.(string); ok {
		if contains(toolChoiceBareStrings, s) {
			return nil
		}
		return []string{fmt.Sprintf("tool_choice: bare string must be one of %v, got %q", toolChoiceBareStrings, s)}
	}

	obj, ok := asObject(v)
	if !ok {
		return []string{"tool_choice: must be a string or an object"}
	}

	t, _ := typeOf(obj)
	if t == "allowed_tools" {
		var errs []string
		tools, present := obj["tools"]
		if !present {
			errs = append(errs, "tool_choice(allowed_tools): missing required field \"tools\"")
		} else {
			arr, ok := tools.([]any)
			if !ok {
				errs = append(errs, "tool_choice(allowed_tools): field \"tools\" must be an array")
			} else if len(arr) == 0 {
				errs = append(errs, "tools must not be empty")
			} else {
				for i, item := range arr {
					for _, e := range ValidateSpecificToolChoiceParam(item) {
						errs = append(errs, fmt.Sprintf("tool_choice(allowed_tools).tools[%d]: %s", i, e))
					}
				}
			}
		}
		if mode, present := obj["mode"]; present {
			modeStr, ok := mode.(string)
			if !ok || !contains(allowedToolsModeEnum, modeStr) {
				errs = append(errs, fmt.Sprintf("tool_choice(allowed_tools): field \"mode\" must be one of %v", allowedToolsModeEnum))
			}
		}
		return errs
	}

	return ValidateSpecificToolChoiceParam(v)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
