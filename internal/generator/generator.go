// Package generator provides the interchangeable mesh sources of the pipeline:
// the image vectorizer, neural backends, and the parametric CAD path.
package generator

import (
	"context"
	"errors"
	"time"

	"github.com/Vartmor/CADLift-sub001/internal/cad"
	"github.com/Vartmor/CADLift-sub001/internal/mesh"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

// DefaultTimeout bounds a generator call when none is configured.
const DefaultTimeout = 5 * time.Minute

// Generator names reported in result metadata.
const (
	NameVectorizer  = "vectorizer"
	NameNeuralImage = "neural-image"
	NameNeuralText  = "neural-text"
	NameParametric  = "parametric"
)

// Generator produces a candidate mesh from one kind of input.
type Generator interface {
	Name() string
	Availability(ctx context.Context) types.Availability
	Generate(ctx context.Context, in Input) (*Output, error)
}

// Input is everything a generator may condition on. Each generator reads only
// the fields it needs.
type Input struct {
	Image     []byte
	ImageMIME string
	Prompt    string
	Program   *cad.Program
	Params    types.Params
}

// Output is a generated mesh and where it came from.
type Output struct {
	Mesh      *mesh.Mesh
	Generator string
	Provider  string
	Backend   string
	Device    string
}

// withTimeout derives the per-call context; a non-positive d uses DefaultTimeout.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc, time.Duration) {
	if d <= 0 {
		d = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, d)
	return runCtx, cancel, d
}

// deadlineError reports whether a failed call ran out of time. Cancellation of
// the parent context is returned as is; an expired call deadline becomes
// GenerationTimeout. It returns nil when neither applies.
func deadlineError(parent, runCtx context.Context, name string, d time.Duration) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &GenerationTimeout{Generator: name, Timeout: d, Cause: runCtx.Err()}
	}
	return nil
}
