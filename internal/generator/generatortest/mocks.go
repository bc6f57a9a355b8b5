// Package generatortest provides configurable capability mocks for tests.
package generatortest

import (
	"context"

	"github.com/Vartmor/CADLift-sub001/internal/cad"
	"github.com/Vartmor/CADLift-sub001/internal/generator"
	"github.com/Vartmor/CADLift-sub001/internal/mesh"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

// MockVision implements generator.Vision for testing
type MockVision struct {
	Disabled      string
	VectorizeFunc func(ctx context.Context, image []byte, mimeType string) ([]mesh.Polygon, error)
}

func (m *MockVision) Name() string { return "mock-vision" }

func (m *MockVision) Availability(context.Context) types.Availability {
	if m.Disabled != "" {
		return types.Unavailable(m.Disabled)
	}
	return types.Available()
}

func (m *MockVision) Vectorize(ctx context.Context, image []byte, mimeType string) ([]mesh.Polygon, error) {
	if m.VectorizeFunc != nil {
		return m.VectorizeFunc(ctx, image, mimeType)
	}
	return []mesh.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}, nil
}

// MockBackend implements generator.Backend for testing. By default it returns
// a unit cube at the origin encoded as STL.
type MockBackend struct {
	Disabled         string
	GenerateMeshFunc func(ctx context.Context, cond generator.Conditioning, params generator.NeuralParams) (*generator.MeshPayload, error)
}

func (m *MockBackend) Name() string   { return "mock-backend" }
func (m *MockBackend) Device() string { return "cpu" }

func (m *MockBackend) Availability(context.Context) types.Availability {
	if m.Disabled != "" {
		return types.Unavailable(m.Disabled)
	}
	return types.Available()
}

func (m *MockBackend) GenerateMesh(ctx context.Context, cond generator.Conditioning, params generator.NeuralParams) (*generator.MeshPayload, error) {
	if m.GenerateMeshFunc != nil {
		return m.GenerateMeshFunc(ctx, cond, params)
	}
	return CubePayload(mesh.Vec3{}), nil
}

// CubePayload encodes a unit cube with its min corner at origin.
func CubePayload(origin mesh.Vec3) *generator.MeshPayload {
	data, err := mesh.EncodeSTL(mesh.Box(mesh.Vec3{1, 1, 1}, false, mesh.ProvenanceNeural).Translate(origin))
	if err != nil {
		panic(err)
	}
	return &generator.MeshPayload{Data: data, Format: "stl"}
}

// MockPlanner implements generator.Planner for testing
type MockPlanner struct {
	Disabled string
	PlanFunc func(ctx context.Context, prompt string) (*cad.Program, error)
}

func (m *MockPlanner) Name() string { return "mock-planner" }

func (m *MockPlanner) Availability(context.Context) types.Availability {
	if m.Disabled != "" {
		return types.Unavailable(m.Disabled)
	}
	return types.Available()
}

func (m *MockPlanner) Plan(ctx context.Context, prompt string) (*cad.Program, error) {
	if m.PlanFunc != nil {
		return m.PlanFunc(ctx, prompt)
	}
	return cad.Parse([]byte(`{"type":"cube","size":[1,1,1]}`))
}

// Blocking waits until ctx is done and returns its error. Use it as a
// *Func field to exercise timeouts and cancellation.
func Blocking[T any](ctx context.Context) (T, error) {
	var zero T
	<-ctx.Done()
	return zero, ctx.Err()
}
