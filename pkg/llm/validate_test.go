package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pointSchema = &Schema{
	Name: "validate-test-point",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
			"y": map[string]any{"type": "integer"},
		},
		"required": []string{"x", "y"},
	},
}

func TestValidateResponse(t *testing.T) {
	assert.NoError(t, ValidateResponse(pointSchema, json.RawMessage(`{"x":1,"y":2}`)))
	assert.NoError(t, ValidateResponse(nil, json.RawMessage(`not json`)))

	for _, raw := range []string{`{"x":1}`, `{"x":"a","y":2}`, `[1,2]`, `{"x":1,`} {
		err := ValidateResponse(pointSchema, json.RawMessage(raw))
		var inv *ErrInvalidResponse
		require.ErrorAs(t, err, &inv, raw)
		assert.Equal(t, raw, string(inv.Content))
	}
}

func TestMockProviderValidatesSchema(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{"x":1}`)})
	req := UserPrompt("system", "give me a point")
	req.Schema = pointSchema

	_, err := mock.Generate(t.Context(), req)
	var inv *ErrInvalidResponse
	require.ErrorAs(t, err, &inv)
	require.Len(t, mock.Calls, 1)
	assert.Equal(t, "give me a point", mock.Calls[0].Messages[0].Content)
}
