package schemas

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidateBatchInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		field   string
	}{
		{
			name:  "minimal",
			input: `{"urls": ["https://example.com/a"]}`,
		},
		{
			name:  "with options",
			input: `{"urls": ["http://example.com/a", "https://example.com/b"], "concurrency": 8, "use_browser": true}`,
		},
		{
			name:    "missing urls",
			input:   `{"concurrency": 2}`,
			wantErr: true,
			field:   "(root)",
		},
		{
			name:    "empty urls",
			input:   `{"urls": []}`,
			wantErr: true,
			field:   "urls",
		},
		{
			name:    "non-http url",
			input:   `{"urls": ["ftp://example.com/file"]}`,
			wantErr: true,
			field:   "urls.0",
		},
		{
			name:    "concurrency out of range",
			input:   `{"urls": ["https://example.com"], "concurrency": 0}`,
			wantErr: true,
			field:   "concurrency",
		},
		{
			name:    "unknown field",
			input:   `{"urls": ["https://example.com"], "retries": 3}`,
			wantErr: true,
			field:   "(root)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchInput([]byte(tt.input))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)

			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr), "error should be ValidationError type")
			require.NotEmpty(t, validationErr.Errors)
			assert.Equal(t, tt.field, validationErr.Errors[0].Field)
		})
	}
}

func TestValidateBatchInput_MalformedJSON(t *testing.T) {
	err := ValidateBatchInput([]byte(`{"urls": [`))
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestValidateJSON_File(t *testing.T) {
	path := writeJSON(t, `{"urls": ["https://example.com"]}`)
	assert.NoError(t, ValidateJSON(BatchInputSchema, path))

	path = writeJSON(t, `{"urls": "https://example.com"}`)
	err := ValidateJSON(BatchInputSchema, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidateJSON_NonExistentJSON(t *testing.T) {
	err := ValidateJSON(BatchInputSchema, "testdata/nonexistent_json.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateBytes_UnknownSchema(t *testing.T) {
	err := ValidateBytes("nope.schema.json", []byte(`{}`))
	require.Error(t, err)

	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "not embedded")
}

func TestValidateBatchOutput(t *testing.T) {
	output := `{
		"items": [
			{"url": "https://a.example", "preview": {"page_url": "https://a.example", "found": true,
				"image_url": "https://a.example/i.png", "source": "facebook", "from_cache": false, "rendered": false,
				"candidates": [{"src": "/i.png", "source_type": "facebook", "score": 0}]}},
			{"url": "https://b.example", "error": "fetch error"}
		],
		"summary": {"total": 2, "found": 1, "failed": 1}
	}`
	assert.NoError(t, ValidateBytes(BatchOutputSchema, []byte(output)))

	bad := `{"items": [{"url": "x", "preview": {"page_url": "x", "found": true, "source": "myspace"}}], "summary": {"total": 1, "found": 1, "failed": 0}}`
	assert.Error(t, ValidateBytes(BatchOutputSchema, []byte(bad)))
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"name": "x"}`))

	err := ValidateJSONString(schema, `{"name": 1}`)
	require.Error(t, err)
	validationErr, ok := err.(*ValidationError)
	require.True(t, ok, "error should be ValidationError type")
	assert.Equal(t, "name", validationErr.Errors[0].Field)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Errors: []FieldError{
		{Field: "urls", Message: "Array must have at least 1 items"},
		{Field: "(root)", Message: "urls is required"},
	}}
	msg := err.Error()
	assert.Contains(t, msg, "1. urls: Array must have at least 1 items")
	assert.Contains(t, msg, "2. (root): urls is required")
}
