package cad

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

// Kernel turns a program into a triangulated solid.
type Kernel interface {
	Name() string
	Availability(ctx context.Context) types.Availability
	Build(ctx context.Context, p *Program) (*mesh.Mesh, error)
}

// LocalKernel evaluates programs in process. Primitives are exact
// triangulations; booleans between touching bodies are re-surfaced on a
// marching-cubes grid.
type LocalKernel struct {
	Resolution int
}

// NewLocalKernel returns a kernel using the default boolean resolution.
func NewLocalKernel() *LocalKernel {
	return &LocalKernel{Resolution: mesh.DefaultResolution}
}

// Name returns the kernel name reported in job metadata.
func (k *LocalKernel) Name() string { return "local" }

// Availability always reports the in-process kernel as available.
func (k *LocalKernel) Availability(context.Context) types.Availability {
	return types.Available()
}

// Build evaluates the program and returns the union of every body left
// unconsumed, in definition order.
func (k *LocalKernel) Build(ctx context.Context, p *Program) (*mesh.Mesh, error) {
	if p == nil || p.Len() == 0 {
		return nil, &BuildError{Kernel: k.Name(), Message: "empty program"}
	}

	bodies := make(map[string]*mesh.Mesh)
	var order []string
	add := func(id string, m *mesh.Mesh) {
		bodies[id] = m
		order = append(order, id)
	}
	take := func(ids ...string) []*mesh.Mesh {
		out := make([]*mesh.Mesh, 0, len(ids))
		for _, id := range ids {
			out = append(out, bodies[id])
			delete(bodies, id)
		}
		return out
	}

	for i, op := range p.Ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch o := op.(type) {
		case Cube:
			add(o.ID, mesh.Box(o.Size, o.Centered, mesh.ProvenanceParametric))
		case Cylinder:
			add(o.ID, mesh.Cylinder(o.Radius, o.Height, o.Segments, o.Centered, mesh.ProvenanceParametric))
		case Sphere:
			add(o.ID, mesh.Sphere(o.Radius, o.Segments, mesh.ProvenanceParametric))
		case Extrude:
			add(o.ID, mesh.Extrude(o.Points, o.Height, mesh.ProvenanceParametric))
		case Translate:
			bodies[o.Target] = bodies[o.Target].Translate(o.Offset)
		case Union:
			joined, err := mesh.Union(k.Resolution, mesh.ProvenanceParametric, take(o.IDs...)...)
			if err != nil {
				return nil, &BuildError{Kernel: k.Name(), Message: fmt.Sprintf("instruction %d: union failed", i), Cause: err}
			}
			add(o.ID, joined)
		case Difference:
			base := take(o.Base)[0]
			cut, err := mesh.Subtract(k.Resolution, base, take(o.Subtract...)...)
			if err != nil {
				return nil, &BuildError{Kernel: k.Name(), Message: fmt.Sprintf("instruction %d: difference failed", i), Cause: err}
			}
			add(o.ID, cut)
		default:
			return nil, &BuildError{Kernel: k.Name(), Message: fmt.Sprintf("instruction %d: unsupported op %T", i, op)}
		}
	}

	var remaining []*mesh.Mesh
	for _, id := range order {
		if m, ok := bodies[id]; ok {
			remaining = append(remaining, m)
		}
	}
	log.WithFields(log.Fields{
		"kernel":       k.Name(),
		"instructions": p.Len(),
		"bodies":       len(remaining),
	}).Debug("program evaluated")

	out, err := mesh.Union(k.Resolution, mesh.ProvenanceParametric, remaining...)
	if err != nil {
		return nil, &BuildError{Kernel: k.Name(), Message: "final union failed", Cause: err}
	}
	return out, nil
}
