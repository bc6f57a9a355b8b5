// Package combine fuses a neural mesh and a parametric mesh into one solid.
package combine

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

// CombinationError indicates a structurally unusable input mesh or a failed union.
type CombinationError struct {
	Message string
	Cause   error
}

func (e *CombinationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("combination error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("combination error: %s", e.Message)
}

func (e *CombinationError) Unwrap() error {
	return e.Cause
}

// Kind returns the job error kind.
func (e *CombinationError) Kind() string { return "CombinationError" }

// Combiner merges hybrid branches.
type Combiner struct {
	// Resolution is the marching-cubes resolution used when the meshes touch.
	Resolution int
}

// NewCombiner returns a combiner with the default union resolution.
func NewCombiner() *Combiner {
	return &Combiner{Resolution: mesh.DefaultResolution}
}

// Place positions the parametric mesh: Center aligns its bounding-box center
// with the neural one, then Offset is added.
func Place(neural, parametric *mesh.Mesh, placement types.Placement) *mesh.Mesh {
	shift := mesh.Vec3(placement.Offset)
	if placement.Center {
		shift = shift.Add(neural.BBox().Center().Sub(parametric.BBox().Center()))
	}
	if shift == (mesh.Vec3{}) {
		return parametric
	}
	return parametric.Translate(shift)
}

// Combine places the parametric mesh and unions it with the neural mesh. When
// the bounding boxes neither overlap nor touch, the result is their
// concatenation. The result is tagged neural.
func (c *Combiner) Combine(ctx context.Context, neural, parametric *mesh.Mesh, placement types.Placement) (*mesh.Mesh, error) {
	if neural.FaceCount() == 0 {
		return nil, &CombinationError{Message: "neural mesh has no faces"}
	}
	if parametric.FaceCount() == 0 {
		return nil, &CombinationError{Message: "parametric mesh has no faces"}
	}
	if err := neural.Validate(); err != nil {
		return nil, &CombinationError{Message: "neural mesh is invalid", Cause: err}
	}
	if err := parametric.Validate(); err != nil {
		return nil, &CombinationError{Message: "parametric mesh is invalid", Cause: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	placed := Place(neural, parametric, placement)
	disjoint := !neural.BBox().Overlaps(placed.BBox())
	log.WithFields(log.Fields{
		"neural_faces":     neural.FaceCount(),
		"parametric_faces": placed.FaceCount(),
		"disjoint":         disjoint,
	}).Debug("combining meshes")

	if disjoint {
		return mesh.Merge(mesh.ProvenanceNeural, neural, placed), nil
	}
	out, err := mesh.Union(c.Resolution, mesh.ProvenanceNeural, neural, placed)
	if err != nil {
		return nil, &CombinationError{Message: "union failed", Cause: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
