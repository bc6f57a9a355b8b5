package generator_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Vartmor/CADLift-sub001/internal/cad"
	"github.com/Vartmor/CADLift-sub001/internal/generator"
	"github.com/Vartmor/CADLift-sub001/internal/generator/generatortest"
	"github.com/Vartmor/CADLift-sub001/internal/mesh"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

var png = []byte("\x89PNG fake")

func visionReturning(polys ...mesh.Polygon) *generatortest.MockVision {
	return &generatortest.MockVision{
		VectorizeFunc: func(context.Context, []byte, string) ([]mesh.Polygon, error) { return polys, nil },
	}
}

func TestVectorizer_ShortPolygonsOnly(t *testing.T) {
	v := generator.NewVectorizer(visionReturning(
		mesh.Polygon{{0, 0}, {1, 1}},
		mesh.Polygon{{5, 5}},
		mesh.Polygon{},
	), time.Second)

	_, err := v.Generate(context.Background(), generator.Input{Image: png})
	var ve *generator.VectorizationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, "VectorizationError", ve.Kind())
}

func TestVectorizer_ExcludesShortPolygons(t *testing.T) {
	square := mesh.Polygon{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	v := generator.NewVectorizer(visionReturning(square, mesh.Polygon{{1, 1}, {2, 2}}), time.Second)

	out, err := v.Generate(context.Background(), generator.Input{
		Image:  png,
		Params: types.Params{ExtrudeHeight: 4, PixelSize: 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, generator.NameVectorizer, out.Generator)
	assert.Equal(t, mesh.ProvenanceParametric, out.Mesh.Provenance)
	assert.Equal(t, 12, out.Mesh.FaceCount(), "only the square is extruded")

	bb := out.Mesh.BBox()
	assert.InDelta(t, 5.0, bb.Size()[0], 1e-9)
	assert.InDelta(t, 5.0, bb.Size()[1], 1e-9)
	assert.InDelta(t, 4.0, bb.Size()[2], 1e-9)
	assert.InDelta(t, -5.0, bb.Min[1], 1e-9, "image y axis points down")
}

func TestVectorizer_AnyValidPolygonSucceeds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var polys []mesh.Polygon
		valid := 0
		n := rapid.IntRange(1, 6).Draw(rt, "polygons")
		for i := 0; i < n; i++ {
			if rapid.Bool().Draw(rt, "valid") {
				x := float64(20 * i)
				polys = append(polys, mesh.Polygon{{x, 0}, {x + 5, 0}, {x + 5, 5}})
				valid++
			} else {
				polys = append(polys, mesh.Polygon{{0, 0}, {1, 0}}[:rapid.IntRange(0, 2).Draw(rt, "points")])
			}
		}

		out, err := generator.NewVectorizer(visionReturning(polys...), time.Second).
			Generate(context.Background(), generator.Input{Image: png})
		if valid == 0 {
			var ve *generator.VectorizationError
			if !errors.As(err, &ve) {
				rt.Fatalf("expected VectorizationError, got %v", err)
			}
			return
		}
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if want := 8 * valid; out.Mesh.FaceCount() != want {
			rt.Fatalf("expected %d faces, got %d", want, out.Mesh.FaceCount())
		}
	})
}

func TestVectorizer_Failures(t *testing.T) {
	tests := []struct {
		name     string
		vision   generator.Vision
		image    []byte
		timeout  time.Duration
		wantKind string
	}{
		{name: "no image", vision: &generatortest.MockVision{}, wantKind: "VectorizationError"},
		{name: "vision disabled", vision: &generatortest.MockVision{Disabled: "no api key"}, image: png, wantKind: "VectorizationError"},
		{name: "no vision", image: png, wantKind: "VectorizationError"},
		{
			name: "vision error",
			vision: &generatortest.MockVision{VectorizeFunc: func(context.Context, []byte, string) ([]mesh.Polygon, error) {
				return nil, errors.New("quota exceeded")
			}},
			image:    png,
			wantKind: "VectorizationError",
		},
		{
			name: "vision timeout",
			vision: &generatortest.MockVision{VectorizeFunc: func(ctx context.Context, _ []byte, _ string) ([]mesh.Polygon, error) {
				return generatortest.Blocking[[]mesh.Polygon](ctx)
			}},
			image:    png,
			timeout:  20 * time.Millisecond,
			wantKind: "GenerationTimeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &generator.Vectorizer{Timeout: tt.timeout}
			if tt.vision != nil {
				v.Vision = tt.vision
			}
			_, err := v.Generate(context.Background(), generator.Input{Image: tt.image})
			require.Error(t, err)
			var kinded interface{ Kind() string }
			require.True(t, errors.As(err, &kinded))
			assert.Equal(t, tt.wantKind, kinded.Kind())
		})
	}
}

func TestNeural_Generate(t *testing.T) {
	var gotParams generator.NeuralParams
	var gotCond generator.Conditioning
	backend := &generatortest.MockBackend{
		GenerateMeshFunc: func(_ context.Context, cond generator.Conditioning, params generator.NeuralParams) (*generator.MeshPayload, error) {
			gotCond, gotParams = cond, params
			return generatortest.CubePayload(mesh.Vec3{}), nil
		},
	}

	out, err := generator.NewNeural(generator.ConditionText, backend, time.Second).Generate(context.Background(), generator.Input{
		Prompt: "a cube",
		Params: types.Params{GuidanceScale: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, generator.NameNeuralText, out.Generator)
	assert.Equal(t, "mock-backend", out.Backend)
	assert.Equal(t, "cpu", out.Device)
	assert.Equal(t, mesh.ProvenanceNeural, out.Mesh.Provenance)
	assert.Equal(t, 12, out.Mesh.FaceCount())
	assert.Equal(t, "a cube", gotCond.Prompt)
	assert.Equal(t, 3.0, gotParams.GuidanceScale)
	assert.Equal(t, types.DefaultNumSteps, gotParams.NumSteps)
}

// danglingGLB encodes a triangle primitive whose POSITION accessor does not exist.
func danglingGLB(t *testing.T) []byte {
	doc := gltf.NewDocument()
	doc.Meshes = []*gltf.Mesh{{Primitives: []*gltf.Primitive{{
		Mode:       gltf.PrimitiveTriangles,
		Attributes: gltf.Attribute{gltf.POSITION: 7},
	}}}}
	var buf bytes.Buffer
	require.NoError(t, gltf.NewEncoder(&buf).Encode(doc))
	return buf.Bytes()
}

func TestNeural_Failures(t *testing.T) {
	tests := []struct {
		name     string
		kind     generator.ConditioningKind
		backend  generator.Backend
		input    generator.Input
		timeout  time.Duration
		wantKind string
	}{
		{name: "no backend", kind: generator.ConditionText, input: generator.Input{Prompt: "x"}, wantKind: "GenerationError"},
		{name: "disabled", kind: generator.ConditionText, backend: &generatortest.MockBackend{Disabled: "NEURAL_BACKEND=none"}, input: generator.Input{Prompt: "x"}, wantKind: "GenerationError"},
		{name: "image kind without image", kind: generator.ConditionImage, backend: &generatortest.MockBackend{}, input: generator.Input{Prompt: "x"}, wantKind: "GenerationError"},
		{
			name: "backend error",
			kind: generator.ConditionText,
			backend: &generatortest.MockBackend{GenerateMeshFunc: func(context.Context, generator.Conditioning, generator.NeuralParams) (*generator.MeshPayload, error) {
				return nil, errors.New("CUDA out of memory")
			}},
			input:    generator.Input{Prompt: "x"},
			wantKind: "GenerationError",
		},
		{
			name: "garbage payload",
			kind: generator.ConditionText,
			backend: &generatortest.MockBackend{GenerateMeshFunc: func(context.Context, generator.Conditioning, generator.NeuralParams) (*generator.MeshPayload, error) {
				return &generator.MeshPayload{Data: []byte("nope"), Format: "ply"}, nil
			}},
			input:    generator.Input{Prompt: "x"},
			wantKind: "GenerationError",
		},
		{
			name: "glb with dangling accessor",
			kind: generator.ConditionText,
			backend: &generatortest.MockBackend{GenerateMeshFunc: func(context.Context, generator.Conditioning, generator.NeuralParams) (*generator.MeshPayload, error) {
				return &generator.MeshPayload{Data: danglingGLB(t), Format: "glb"}, nil
			}},
			input:    generator.Input{Prompt: "x"},
			wantKind: "GenerationError",
		},
		{
			name: "deadline",
			kind: generator.ConditionImage,
			backend: &generatortest.MockBackend{GenerateMeshFunc: func(ctx context.Context, _ generator.Conditioning, _ generator.NeuralParams) (*generator.MeshPayload, error) {
				return generatortest.Blocking[*generator.MeshPayload](ctx)
			}},
			input:    generator.Input{Image: png},
			timeout:  20 * time.Millisecond,
			wantKind: "GenerationTimeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &generator.Neural{Kind: tt.kind, Timeout: tt.timeout}
			if tt.backend != nil {
				n.Backend = tt.backend
			}
			_, err := n.Generate(context.Background(), tt.input)
			var kinded interface{ Kind() string }
			require.True(t, errors.As(err, &kinded), "got %v", err)
			assert.Equal(t, tt.wantKind, kinded.Kind())
		})
	}
}

func TestNeural_ParentCancellationIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := &generatortest.MockBackend{GenerateMeshFunc: func(ctx context.Context, _ generator.Conditioning, _ generator.NeuralParams) (*generator.MeshPayload, error) {
		cancel()
		return generatortest.Blocking[*generator.MeshPayload](ctx)
	}}

	_, err := generator.NewNeural(generator.ConditionText, backend, time.Minute).Generate(ctx, generator.Input{Prompt: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	var timeout *generator.GenerationTimeout
	assert.False(t, errors.As(err, &timeout))
}

func TestNeural_UnavailableUpFront(t *testing.T) {
	n := generator.NewNeural(generator.ConditionImage, &generatortest.MockBackend{Disabled: "no GPU"}, 0)
	a := n.Availability(context.Background())
	assert.False(t, a.OK)
	assert.Equal(t, "no GPU", a.Reason)
	assert.Equal(t, generator.NameNeuralImage, n.Name())
}

func TestParametric_Generate(t *testing.T) {
	prog, err := generator.ParseProgram([]byte(`{"type":"cube","size":[10,20,30],"centered":true}`))
	require.NoError(t, err)

	out, err := generator.NewParametric(cad.NewLocalKernel(), time.Second).Generate(context.Background(), generator.Input{Program: prog})
	require.NoError(t, err)
	assert.Equal(t, generator.NameParametric, out.Generator)
	assert.Equal(t, "local", out.Provider)
	assert.Equal(t, mesh.ProvenanceParametric, out.Mesh.Provenance)
	assert.Equal(t, 12, out.Mesh.FaceCount())
}

func TestParametric_Failures(t *testing.T) {
	_, err := generator.ParseProgram([]byte(`[{"type":"torus"}]`))
	var pbe *generator.ParametricBuildError
	require.True(t, errors.As(err, &pbe))
	var pe *cad.ParseError
	assert.True(t, errors.As(err, &pe), "parse error stays reachable")

	_, err = generator.NewParametric(cad.NewLocalKernel(), 0).Generate(context.Background(), generator.Input{})
	assert.True(t, errors.As(err, &pbe))

	prog, perr := cad.Parse([]byte(`{"type":"cube","size":[1,1,1]}`))
	require.NoError(t, perr)
	offline := cad.NewProcessKernel("/nonexistent/kernel", 1, time.Second)
	_, err = generator.NewParametric(offline, 0).Generate(context.Background(), generator.Input{Program: prog})
	require.True(t, errors.As(err, &pbe))
	assert.Contains(t, err.Error(), "unavailable")
}

func TestPlan(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		prog, err := generator.Plan(context.Background(), &generatortest.MockPlanner{}, "a box", time.Second)
		require.NoError(t, err)
		assert.Equal(t, 1, prog.Len())
	})

	t.Run("invalid plan", func(t *testing.T) {
		planner := &generatortest.MockPlanner{PlanFunc: func(context.Context, string) (*cad.Program, error) {
			return cad.Parse([]byte(`[{"type":"torus"}]`))
		}}
		_, err := generator.Plan(context.Background(), planner, "a donut", time.Second)
		var pbe *generator.ParametricBuildError
		assert.True(t, errors.As(err, &pbe))
	})

	t.Run("planner down", func(t *testing.T) {
		planner := &generatortest.MockPlanner{PlanFunc: func(context.Context, string) (*cad.Program, error) {
			return nil, errors.New("503")
		}}
		_, err := generator.Plan(context.Background(), planner, "a box", time.Second)
		var ge *generator.GenerationError
		assert.True(t, errors.As(err, &ge))
	})

	t.Run("disabled", func(t *testing.T) {
		_, err := generator.Plan(context.Background(), &generatortest.MockPlanner{Disabled: "no key"}, "a box", time.Second)
		var ge *generator.GenerationError
		assert.True(t, errors.As(err, &ge))
	})
}
