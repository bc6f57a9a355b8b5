//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		request GenerationRequest
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid parametric request",
			request: GenerationRequest{SourceType: SourceParametric, Mode: Mode2DTo3D, Instructions: json.RawMessage(`[{"type":"cube","size":[1,1,1]}]`)},
		},
		{
			name:    "valid image request",
			request: GenerationRequest{SourceType: SourceImage, Mode: Mode2DTo3D, PayloadKey: "jobs/x/input/image"},
		},
		{
			name:    "valid hybrid prompt request",
			request: GenerationRequest{SourceType: SourcePrompt, Mode: ModeHybrid, Prompt: "a mug with a handle"},
		},
		{
			name:    "missing source type",
			request: GenerationRequest{Mode: Mode2DTo3D},
			wantErr: true,
			errMsg:  "required",
		},
		{
			name:    "unknown mode",
			request: GenerationRequest{SourceType: SourcePrompt, Mode: "3d_to_2d", Prompt: "x"},
			wantErr: true,
			errMsg:  "oneof",
		},
		{
			name:    "image without payload",
			request: GenerationRequest{SourceType: SourceImage, Mode: Mode2DTo3D},
			wantErr: true,
			errMsg:  "image payload",
		},
		{
			name:    "prompt without text",
			request: GenerationRequest{SourceType: SourcePrompt, Mode: ModeTextTo3D},
			wantErr: true,
			errMsg:  "requires a prompt",
		},
		{
			name:    "parametric without instructions",
			request: GenerationRequest{SourceType: SourceParametric, Mode: Mode2DTo3D},
			wantErr: true,
			errMsg:  "requires instructions",
		},
		{
			name: "unknown export format",
			request: GenerationRequest{
				SourceType: SourcePrompt, Mode: ModeTextTo3D, Prompt: "x",
				Params: Params{Formats: []string{"stl", "fbx"}},
			},
			wantErr: true,
			errMsg:  "oneof",
		},
		{
			name: "quality above ceiling",
			request: GenerationRequest{
				SourceType: SourcePrompt, Mode: ModeTextTo3D, Prompt: "x",
				Params: Params{MinQuality: 11},
			},
			wantErr: true,
			errMsg:  "lte",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParams_WithDefaults(t *testing.T) {
	p := Params{}.WithDefaults()
	assert.Equal(t, DefaultTargetFaces, p.TargetFaces)
	assert.Equal(t, DefaultMinQuality, p.MinQuality)
	assert.Equal(t, DefaultMaxRetries, p.Retries())
	assert.Equal(t, DefaultGuidanceScale, p.GuidanceScale)
	assert.Equal(t, DefaultNumSteps, p.NumSteps)
	assert.Equal(t, DefaultExtrudeHeight, p.ExtrudeHeight)
	assert.Equal(t, DefaultPixelSize, p.PixelSize)
	assert.Equal(t, DefaultFormats, p.Formats)

	p.Formats[0] = "obj"
	assert.Equal(t, "stl", DefaultFormats[0], "defaults must be copied")
}

func TestParams_ExplicitZeroRetries(t *testing.T) {
	var p Params
	require.NoError(t, json.Unmarshal([]byte(`{"max_retries":0,"formats":["glb"]}`), &p))

	p = p.WithDefaults()
	assert.Equal(t, 0, p.Retries())
	assert.Equal(t, []string{"glb"}, p.Formats)
}

func TestAvailability(t *testing.T) {
	assert.True(t, Available().OK)
	u := Unavailable("backend disabled")
	assert.False(t, u.OK)
	assert.Equal(t, "unavailable: backend disabled", u.String())
}
