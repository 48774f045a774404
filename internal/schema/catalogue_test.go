package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xLillium/rip/internal/schema"
)

func TestOpenAPIDecodesEmbeddedDocument(t *testing.T) {
	doc, err := schema.OpenAPI()
	require.NoError(t, err)
	assert.Equal(t, "3.1.0", doc["openapi"])
}

func TestValidateStreamEventRequiresTypeAndSequenceNumber(t *testing.T) {
	assert.Empty(t, schema.ValidateStreamEvent(map[string]any{
		"type": "response.output_text.delta", "sequence_number": float64(3),
	}))
	assert.NotEmpty(t, schema.ValidateStreamEvent(map[string]any{"type": "response.output_text.delta"}))
}

func TestValidateResponseResourceRequiresStatusEnum(t *testing.T) {
	assert.Empty(t, schema.ValidateResponseResource(map[string]any{
		"id": "resp_1", "object": "response", "status": "completed",
	}))
	assert.NotEmpty(t, schema.ValidateResponseResource(map[string]any{
		"id": "resp_1", "object": "response", "status": "unknown_status",
	}))
}

func TestValidateCreateResponseBodyRequiresModelAndInput(t *testing.T) {
	assert.Empty(t, schema.ValidateCreateResponseBody(map[string]any{
		"model": "gpt-x", "input": "hello",
	}))
	assert.NotEmpty(t, schema.ValidateCreateResponseBody(map[string]any{"input": "hello"}))
}

func TestValidateCreateResponseBodyValidatesItemArrayInput(t *testing.T) {
	errs := schema.ValidateCreateResponseBody(map[string]any{
		"model": "gpt-x",
		"input": []any{
			map[string]any{"type": "message", "role": "user", "content": "hi"},
			map[string]any{"type": "message", "role": "narrator"},
		},
	})
	assert.NotEmpty(t, errs)
}
