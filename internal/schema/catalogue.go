// Package schema implements the schema catalogue (C6): a process-wide,
// lazily-compiled set of JSON-Schema validators plus the explicit
// per-variant discriminated-union validators that generic schema
// compilers handle poorly.
//
// The compile-once-from-embedded-document shape is grounded on
// original_source/crates/rip-openresponses/src/lib.rs (once_cell::Lazy
// static compiling JSONSchema from an embedded openapi.json via JSON
// pointers); the compiler call sequence
// (jsonschema.NewCompiler/AddResource/Compile/Validate) is grounded on
// registry/service.go's validatePayloadJSONAgainstSchema.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed openapi.json
var openapiRaw []byte

const resourceURL = "rip-openapi.json"

type catalogue struct {
	doc              map[string]any
	streamSchema     *jsonschema.Schema
	responseSchema   *jsonschema.Schema
	createBodySchema *jsonschema.Schema
	err              error
}

var (
	once sync.Once
	cat  *catalogue
)

func get() *catalogue {
	once.Do(func() {
		cat = &catalogue{}
		cat.err = cat.compile()
	})
	return cat
}

func (c *catalogue) compile() error {
	if err := json.Unmarshal(openapiRaw, &c.doc); err != nil {
		return fmt.Errorf("schema: decode embedded openapi document: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceURL, c.doc); err != nil {
		return fmt.Errorf("schema: add openapi resource: %w", err)
	}

	var err error
	c.streamSchema, err = compiler.Compile(resourceURL + "#/components/schemas/StreamEvent")
	if err != nil {
		return fmt.Errorf("schema: compile StreamEvent: %w", err)
	}
	c.responseSchema, err = compiler.Compile(resourceURL + "#/components/schemas/ResponseResource")
	if err != nil {
		return fmt.Errorf("schema: compile ResponseResource: %w", err)
	}
	c.createBodySchema, err = compiler.Compile(resourceURL + "#/components/schemas/CreateResponseBody")
	if err != nil {
		return fmt.Errorf("schema: compile CreateResponseBody: %w", err)
	}
	return nil
}

// OpenAPI returns the decoded embedded OpenAPI document.
func OpenAPI() (map[string]any, error) {
	c := get()
	return c.doc, c.err
}

// ValidateStreamEvent validates value against the StreamEvent schema.
func ValidateStreamEvent(value any) []string {
	c := get()
	if c.err != nil {
		return []string{c.err.Error()}
	}
	return collectErrors(c.streamSchema.Validate(value))
}

// ValidateResponseResource validates value against the ResponseResource
// schema.
func ValidateResponseResource(value any) []string {
	c := get()
	if c.err != nil {
		return []string{c.err.Error()}
	}
	return collectErrors(c.responseSchema.Validate(value))
}

// ValidateCreateResponseBody strips "tools" and "tool_choice" before
// running the core schema, then separately validates those fields via
// the explicit variant walks, since their oneOf variants defeat generic
// schema compilers (spec.md §4.6).
func ValidateCreateResponseBody(value map[string]any) []string {
	c := get()
	if c.err != nil {
		return []string{c.err.Error()}
	}

	core := make(map[string]any, len(value))
	for k, v := range value {
		if k == "tools" || k == "tool_choice" {
			continue
		}
		core[k] = v
	}

	errs := collectErrors(c.createBodySchema.Validate(core))

	if rawInput, ok := value["input"]; ok {
		if items, ok := rawInput.([]any); ok {
			for i, item := range items {
				for _, e := range ValidateItemParam(item) {
					errs = append(errs, fmt.Sprintf("input[%d]: %s", i, e))
				}
			}
		}
	}

	if rawTools, ok := value["tools"]; ok {
		tools, ok := rawTools.([]any)
		if !ok {
			errs = append(errs, "tools must be an array")
		} else {
			for i, t := range tools {
				for _, e := range ValidateToolParam(t) {
					errs = append(errs, fmt.Sprintf("tools[%d]: %s", i, e))
				}
			}
		}
	}

	if toolChoice, ok := value["tool_choice"]; ok {
		for _, e := range ValidateToolChoiceParam(toolChoice) {
			errs = append(errs, fmt.Sprintf("tool_choice: %s", e))
		}
	}

	return errs
}

// collectErrors flattens a jsonschema validation error (which may be a
// tree of causes) into a flat list of human-readable messages. Callers
// never short-circuit on the first error, per spec.md §4.6.
func collectErrors(err error) []string {
	if err == nil {
		return nil
	}
	validationErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	flattenValidationError(validationErr, &out)
	if len(out) == 0 {
		out = []string{validationErr.Error()}
	}
	return out
}

func flattenValidationError(verr *jsonschema.ValidationError, out *[]string) {
	if len(verr.Causes) == 0 {
		*out = append(*out, verr.Error())
		return
	}
	for _, cause := range verr.Causes {
		flattenValidationError(cause, out)
	}
}
