package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pointSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["x", "y"],
	"properties": {
		"x": {"type": "number"},
		"y": {"type": "number"}
	}
}`

func TestCompile_Validate(t *testing.T) {
	s, err := Compile("point", pointSchema)
	require.NoError(t, err)

	tests := []struct {
		name      string
		doc       string
		wantError bool
	}{
		{name: "valid point", doc: `{"x": 1, "y": 2.5}`},
		{name: "missing field", doc: `{"x": 1}`, wantError: true},
		{name: "wrong type", doc: `{"x": "1", "y": 2}`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate([]byte(tt.doc))
			if tt.wantError {
				validationErr, ok := err.(*ValidationError)
				require.True(t, ok, "error should be ValidationError type, got %T", err)
				assert.Greater(t, len(validationErr.Errors), 0)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("broken", `{"type": 12}`)
	require.Error(t, err)

	loadErr, ok := err.(*SchemaLoadError)
	require.True(t, ok, "error should be SchemaLoadError type")
	assert.Equal(t, "broken", loadErr.Name)
	assert.Contains(t, err.Error(), "broken")
}

func TestValidate_MalformedDocument(t *testing.T) {
	s := MustCompile("point", pointSchema)
	err := s.Validate([]byte("{ invalid json }"))
	require.Error(t, err)
	_, isValidation := err.(*ValidationError)
	assert.False(t, isValidation, "malformed input is a read failure, not a field error")
}

func TestValidateJSONString(t *testing.T) {
	assert.NoError(t, ValidateJSONString(pointSchema, `{"x": 0, "y": 0}`))

	err := ValidateJSONString(pointSchema, `{"y": 0}`)
	require.Error(t, err)
	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, "(root)", validationErr.Errors[0].Field)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestMustCompile_Panics(t *testing.T) {
	assert.Panics(t, func() { MustCompile("broken", `{"type": 12}`) })
}
