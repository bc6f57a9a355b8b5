// Package types provides type definitions for structured data shared across the generation pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// SourceType is the kind of input a request carries.
type SourceType string

const (
	SourceImage      SourceType = "image"
	SourcePrompt     SourceType = "prompt"
	SourceParametric SourceType = "parametric"
)

// Mode selects the pipeline variant.
type Mode string

const (
	Mode2DTo3D   Mode = "2d_to_3d"
	ModeTextTo3D Mode = "text_to_3d"
	ModeHybrid   Mode = "hybrid"
)

// Default parameter values applied by ApplyDefaults.
const (
	DefaultTargetFaces   = 5000
	DefaultMinQuality    = 6.0
	DefaultMaxRetries    = 3
	DefaultGuidanceScale = 7.5
	DefaultNumSteps      = 64
	DefaultExtrudeHeight = 10.0
	DefaultPixelSize     = 1.0
)

// DefaultFormats is the export set used when a request names none.
var DefaultFormats = []string{"stl", "obj", "glb", "step"}

// Placement positions the parametric mesh relative to the neural one in hybrid mode.
type Placement struct {
	Offset [3]float64 `json:"offset"`
	Center bool       `json:"center,omitempty"`
}

// Params is the bag of named generation parameters.
type Params struct {
	TargetFaces   int       `json:"target_faces,omitempty" validate:"gte=0"`
	MinQuality    float64   `json:"min_quality,omitempty" validate:"gte=0,lte=10"`
	MaxRetries    *int      `json:"max_retries,omitempty" validate:"omitempty,gte=0,lte=10"`
	GuidanceScale float64   `json:"guidance_scale,omitempty" validate:"gte=0,lte=50"`
	NumSteps      int       `json:"num_steps,omitempty" validate:"gte=0,lte=1000"`
	ExtrudeHeight float64   `json:"extrude_height,omitempty" validate:"gte=0"`
	PixelSize     float64   `json:"pixel_size,omitempty" validate:"gte=0"`
	Formats       []string  `json:"formats,omitempty" validate:"omitempty,dive,oneof=stl obj glb step"`
	Placement     Placement `json:"placement"`
}

// WithDefaults returns a copy of p with every unset field filled in.
func (p Params) WithDefaults() Params {
	if p.TargetFaces == 0 {
		p.TargetFaces = DefaultTargetFaces
	}
	if p.MinQuality == 0 {
		p.MinQuality = DefaultMinQuality
	}
	if p.MaxRetries == nil {
		n := DefaultMaxRetries
		p.MaxRetries = &n
	}
	if p.GuidanceScale == 0 {
		p.GuidanceScale = DefaultGuidanceScale
	}
	if p.NumSteps == 0 {
		p.NumSteps = DefaultNumSteps
	}
	if p.ExtrudeHeight == 0 {
		p.ExtrudeHeight = DefaultExtrudeHeight
	}
	if p.PixelSize == 0 {
		p.PixelSize = DefaultPixelSize
	}
	if len(p.Formats) == 0 {
		p.Formats = append([]string(nil), DefaultFormats...)
	}
	return p
}

// Retries returns the configured retry budget, or the default when unset.
func (p Params) Retries() int {
	if p.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *p.MaxRetries
}

// GenerationRequest is the immutable input descriptor of a job.
type GenerationRequest struct {
	SourceType SourceType `json:"source_type" validate:"required,oneof=image prompt parametric"`
	Mode       Mode       `json:"mode" validate:"required,oneof=2d_to_3d text_to_3d hybrid"`
	// PayloadKey is the blob key of the raw input (the uploaded image).
	PayloadKey   string          `json:"payload_key,omitempty"`
	Prompt       string          `json:"prompt,omitempty" validate:"max=4000"`
	Instructions json.RawMessage `json:"instructions,omitempty"`
	Params       Params          `json:"params"`
}

// Validate validates the GenerationRequest using the validator, then checks
// that the payload required by the source type is present.
func (r *GenerationRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return err
	}
	switch r.SourceType {
	case SourceImage:
		if r.PayloadKey == "" {
			return fmt.Errorf("source_type %q requires an image payload", r.SourceType)
		}
	case SourcePrompt:
		if r.Prompt == "" {
			return fmt.Errorf("source_type %q requires a prompt", r.SourceType)
		}
	case SourceParametric:
		if len(r.Instructions) == 0 {
			return fmt.Errorf("source_type %q requires instructions", r.SourceType)
		}
	}
	return nil
}

// ResultMetadata describes how a completed job's mesh was produced.
type ResultMetadata struct {
	Pipeline     string     `json:"pipeline"`
	SourceType   SourceType `json:"source_type"`
	Generators   []string   `json:"generators"`
	Provider     string     `json:"provider,omitempty"`
	Backend      string     `json:"backend,omitempty"`
	Device       string     `json:"device,omitempty"`
	Retries      int        `json:"retries"`
	ThresholdMet bool       `json:"threshold_met"`
}
