package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
)

func TestScore_FloorCases(t *testing.T) {
	s := DefaultScorer()
	tests := []struct {
		name string
		mesh *mesh.Mesh
	}{
		{name: "nil mesh", mesh: nil},
		{name: "no faces", mesh: mesh.New([]mesh.Vec3{{0, 0, 0}, {1, 0, 0}}, nil, mesh.ProvenanceNeural)},
		{name: "no vertices", mesh: mesh.New(nil, nil, mesh.ProvenanceNeural)},
		{name: "index out of range", mesh: mesh.New([]mesh.Vec3{{0, 0, 0}}, []mesh.Face{{0, 1, 2}}, mesh.ProvenanceNeural)},
		{name: "flat bbox", mesh: mesh.New(
			[]mesh.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
			[]mesh.Face{{0, 1, 2}, {0, 2, 1}},
			mesh.ProvenanceNeural,
		)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, MinScore, s.Score(tt.mesh).OverallScore)
		})
	}
}

func TestScore_ClosedBoxNearCeiling(t *testing.T) {
	m := s().Score(mesh.Box(mesh.Vec3{10, 20, 30}, true, mesh.ProvenanceParametric))

	assert.True(t, m.Watertight)
	assert.True(t, m.Manifold)
	assert.Equal(t, 12, m.FaceCount)
	assert.Equal(t, 8, m.VertexCount)
	assert.GreaterOrEqual(t, m.OverallScore, 8.0)
	assert.LessOrEqual(t, m.OverallScore, MaxScore)
}

func TestScore_OpenMeshIsNotWatertight(t *testing.T) {
	box := mesh.Box(mesh.Vec3{1, 1, 1}, false, mesh.ProvenanceNeural)
	open := mesh.New(box.Vertices, box.Faces[1:], box.Provenance)

	m := s().Score(open)
	assert.False(t, m.Watertight)
	assert.True(t, m.Manifold)
	assert.Less(t, m.OverallScore, s().Score(box).OverallScore)
}

func TestScore_OverusedEdgeIsNotManifold(t *testing.T) {
	box := mesh.Box(mesh.Vec3{1, 1, 1}, false, mesh.ProvenanceNeural)
	faces := append([]mesh.Face{}, box.Faces...)
	faces = append(faces, box.Faces[0])

	m := s().Score(mesh.New(box.Vertices, faces, box.Provenance))
	assert.False(t, m.Manifold)
	assert.False(t, m.Watertight)
}

func TestScore_BoundedAndDeterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		size := mesh.Vec3{
			rapid.Float64Range(0.01, 1000).Draw(rt, "x"),
			rapid.Float64Range(0.01, 1000).Draw(rt, "y"),
			rapid.Float64Range(0.01, 1000).Draw(rt, "z"),
		}
		segments := rapid.IntRange(3, 64).Draw(rt, "segments")
		shapes := []*mesh.Mesh{
			mesh.Box(size, rapid.Bool().Draw(rt, "centered"), mesh.ProvenanceParametric),
			mesh.Cylinder(size[0], size[1], segments, false, mesh.ProvenanceParametric),
			mesh.Sphere(size[2], segments+1, mesh.ProvenanceParametric),
		}
		for _, shape := range shapes {
			first := s().Score(shape)
			second := s().Score(shape)
			if first != second {
				rt.Fatalf("score not reproducible: %v vs %v", first, second)
			}
			if first.OverallScore < MinScore || first.OverallScore > MaxScore {
				rt.Fatalf("score %v out of bounds", first.OverallScore)
			}
			if !first.Watertight {
				rt.Fatalf("closed primitive reported open")
			}
		}
	})
}

func TestScore_WatertightnessIsMonotone(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		segments := rapid.IntRange(3, 48).Draw(rt, "segments")
		closed := mesh.Cylinder(
			rapid.Float64Range(0.1, 100).Draw(rt, "radius"),
			rapid.Float64Range(0.1, 100).Draw(rt, "height"),
			segments, false, mesh.ProvenanceNeural,
		)
		drop := rapid.IntRange(0, closed.FaceCount()-1).Draw(rt, "drop")
		faces := append(append([]mesh.Face{}, closed.Faces[:drop]...), closed.Faces[drop+1:]...)
		open := mesh.New(closed.Vertices, faces, closed.Provenance)

		if s().Score(closed).OverallScore < s().Score(open).OverallScore {
			rt.Fatalf("closing a hole lowered the score")
		}
	})
}

func TestFaceBudgetCredit_MonotoneBelowWindow(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		minFaces := rapid.IntRange(1, 100_000).Draw(rt, "min")
		maxFaces := rapid.IntRange(minFaces, 1_000_000).Draw(rt, "max")
		a := rapid.IntRange(0, maxFaces).Draw(rt, "a")
		b := rapid.IntRange(a, maxFaces).Draw(rt, "b")

		ca := FaceBudgetCredit(a, minFaces, maxFaces)
		cb := FaceBudgetCredit(b, minFaces, maxFaces)
		if cb < ca {
			rt.Fatalf("credit decreased from %v (n=%d) to %v (n=%d)", ca, a, cb, b)
		}
		if ca < 0 || cb > 1 {
			rt.Fatalf("credit out of [0,1]")
		}
	})
}

func TestFaceBudgetCredit_DecaysAboveWindow(t *testing.T) {
	assert.Equal(t, 1.0, FaceBudgetCredit(100, 10, 100))
	assert.InDelta(t, 0.0, FaceBudgetCredit(1000, 10, 100), 1e-12)
	assert.Less(t, FaceBudgetCredit(500, 10, 100), FaceBudgetCredit(200, 10, 100))
}

func TestWeightsAreTunable(t *testing.T) {
	box := mesh.Box(mesh.Vec3{1, 1, 1}, false, mesh.ProvenanceNeural)
	open := mesh.New(box.Vertices, box.Faces[2:], box.Provenance)

	strict := NewScorer(4, 1000)
	strict.Weights.Watertight = 8
	strict.Weights.Regularity = 0

	lenient := NewScorer(4, 1000)
	lenient.Weights.Watertight = 0

	require.Less(t, strict.Score(open).OverallScore, lenient.Score(open).OverallScore)
}

func TestForTarget(t *testing.T) {
	box := mesh.Box(mesh.Vec3{1, 1, 1}, false, mesh.ProvenanceNeural)
	base := s()

	assert.Same(t, base, base.ForTarget(0))
	assert.Equal(t, base.Score(box), base.ForTarget(5000).Score(box), "a mesh under target keeps full credit")

	tight := base.ForTarget(2)
	assert.Equal(t, base.MinFaces, tight.MaxFaces, "window never inverts")
	assert.Less(t, tight.Score(box).OverallScore, base.Score(box).OverallScore, "12 faces is over a target of 2")
	assert.Equal(t, 200_000, base.MaxFaces, "the receiver is not modified")
}

func TestForTarget_DecimationTowardTargetRaisesScore(t *testing.T) {
	scorer := s().ForTarget(5000)
	over := FaceBudgetCredit(150_000, scorer.MinFaces, scorer.MaxFaces)
	near := FaceBudgetCredit(6000, scorer.MinFaces, scorer.MaxFaces)
	assert.Less(t, over, near)
	assert.Equal(t, 1.0, near)
	assert.Equal(t, 1.0, FaceBudgetCredit(150_000, s().MinFaces, s().MaxFaces), "the untargeted window cannot tell them apart")
}

func s() *Scorer { return DefaultScorer() }
