package mesh

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func assertClosed(t *testing.T, m *Mesh) {
	t.Helper()
	for e, n := range m.EdgeCounts() {
		assert.Equal(t, 2, n, "edge %v should border exactly two faces", e)
	}
}

// signedVolume is positive for outward-facing closed meshes.
func signedVolume(m *Mesh) float64 {
	var v float64
	for i := range m.Faces {
		t := m.Triangle(i)
		v += t[0].Dot(t[1].Cross(t[2])) / 6
	}
	return v
}

func TestPrimitivesAreClosedAndOutwardFacing(t *testing.T) {
	tests := []struct {
		name   string
		mesh   *Mesh
		volume float64
		tol    float64
	}{
		{name: "box", mesh: Box(Vec3{10, 20, 30}, true, ProvenanceParametric), volume: 6000, tol: 1e-9},
		{name: "box at origin", mesh: Box(Vec3{1, 1, 1}, false, ProvenanceParametric), volume: 1, tol: 1e-9},
		{name: "cylinder", mesh: Cylinder(1, 2, 64, false, ProvenanceParametric), volume: 2 * math.Pi, tol: 0.02},
		{name: "sphere", mesh: Sphere(1, 48, ProvenanceParametric), volume: 4.0 / 3.0 * math.Pi, tol: 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.mesh.Validate())
			assertClosed(t, tt.mesh)
			assert.InDelta(t, tt.volume, signedVolume(tt.mesh), tt.tol*tt.volume+1e-9)
		})
	}
}

func TestBoxCentered(t *testing.T) {
	b := Box(Vec3{10, 20, 30}, true, ProvenanceParametric).BBox()
	assert.Equal(t, Vec3{-5, -10, -15}, b.Min)
	assert.Equal(t, Vec3{5, 10, 15}, b.Max)
	assert.Equal(t, Vec3{0, 0, 0}, b.Center())
}

func TestTranslateDoesNotMutate(t *testing.T) {
	orig := Box(Vec3{1, 1, 1}, false, ProvenanceNeural)
	moved := orig.Translate(Vec3{1.5, 0, 0})

	assert.Equal(t, Vec3{0, 0, 0}, orig.BBox().Min)
	assert.Equal(t, Vec3{1.5, 0, 0}, moved.BBox().Min)
	assert.Equal(t, ProvenanceNeural, moved.Provenance)
}

func TestMergeOffsetsIndices(t *testing.T) {
	a := Box(Vec3{1, 1, 1}, false, ProvenanceNeural)
	b := Box(Vec3{1, 1, 1}, false, ProvenanceParametric).Translate(Vec3{3, 0, 0})

	m := Merge(ProvenanceNeural, a, b)
	require.NoError(t, m.Validate())
	assert.Equal(t, 24, m.FaceCount())
	assert.Equal(t, 16, m.VertexCount())
	assertClosed(t, m)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mesh *Mesh
		ok   bool
	}{
		{name: "nil", mesh: nil},
		{name: "no vertices", mesh: New(nil, []Face{{0, 1, 2}}, ProvenanceNeural)},
		{name: "no faces", mesh: New([]Vec3{{0, 0, 0}}, nil, ProvenanceNeural)},
		{name: "index out of range", mesh: New([]Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, []Face{{0, 1, 3}}, ProvenanceNeural)},
		{name: "valid", mesh: Box(Vec3{1, 1, 1}, false, ProvenanceNeural), ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mesh.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestBBoxOverlaps(t *testing.T) {
	unit := BBox{Max: Vec3{1, 1, 1}}
	assert.True(t, unit.Overlaps(BBox{Min: Vec3{0.5, 0.5, 0.5}, Max: Vec3{2, 2, 2}}))
	assert.True(t, unit.Overlaps(BBox{Min: Vec3{1, 0, 0}, Max: Vec3{2, 1, 1}}), "touching boxes overlap")
	assert.False(t, unit.Overlaps(BBox{Min: Vec3{1.5, 0, 0}, Max: Vec3{2.5, 1, 1}}))
}

func TestBBoxDegenerate(t *testing.T) {
	assert.True(t, BBox{}.Degenerate())
	assert.True(t, BBox{Max: Vec3{1, 1, 0}}.Degenerate())
	assert.False(t, BBox{Max: Vec3{1, 2, 3}}.Degenerate())
}

func TestFilterPolygons(t *testing.T) {
	polys := []Polygon{
		{{0, 0}, {1, 0}},
		{{0, 0}, {1, 0}, {1, 1}},
		{},
		{{0, 0}, {1, 1}, {2, 2}},
		{{0, 0}, {2, 0}, {2, 2}, {0, 2}},
	}
	got := FilterPolygons(polys)
	require.Len(t, got, 2)
	for _, p := range got {
		assert.GreaterOrEqual(t, len(p), 3)
	}
}

func TestExtrudeConcavePolygon(t *testing.T) {
	// L-shape, clockwise on purpose.
	l := Polygon{{0, 0}, {0, 2}, {1, 2}, {1, 1}, {2, 1}, {2, 0}}
	m := Extrude(l, 3, ProvenanceParametric)

	require.NoError(t, m.Validate())
	assertClosed(t, m)
	assert.InDelta(t, 9.0, signedVolume(m), 1e-9)
}

func TestTriangulateConvexProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(3, 24).Draw(rt, "n")
		angles := make([]float64, n)
		for i := range angles {
			angles[i] = rapid.Float64Range(0, 2*math.Pi).Draw(rt, "angle")
		}
		sort.Float64s(angles)
		for i := 1; i < n; i++ {
			if angles[i]-angles[i-1] < 1e-3 {
				rt.Skip("points too close")
			}
		}
		if 2*math.Pi-angles[n-1]+angles[0] < 1e-3 {
			rt.Skip("points too close")
		}
		poly := make(Polygon, n)
		for i, a := range angles {
			poly[i] = Point2{math.Cos(a), math.Sin(a)}
		}

		_, tris := poly.Triangulate()
		if len(tris) != n-2 {
			rt.Fatalf("expected %d triangles, got %d", n-2, len(tris))
		}
		m := Extrude(poly, 1, ProvenanceParametric)
		for e, c := range m.EdgeCounts() {
			if c != 2 {
				rt.Fatalf("edge %v used %d times", e, c)
			}
		}
	})
}

func TestSTLRoundTripPreservesTopology(t *testing.T) {
	box := Box(Vec3{1, 2, 3}, false, ProvenanceParametric)
	data, err := EncodeSTL(box)
	require.NoError(t, err)

	decoded, err := DecodeSTL(bytes.NewReader(data), ProvenanceNeural)
	require.NoError(t, err)
	assert.Equal(t, 12, decoded.FaceCount())
	assert.Equal(t, 8, decoded.VertexCount())
	assert.Equal(t, ProvenanceNeural, decoded.Provenance)
	assertClosed(t, decoded)
}

func TestFromTrianglesIsOrderIndependent(t *testing.T) {
	box := Box(Vec3{1, 1, 1}, false, ProvenanceParametric)
	tris := make([][3]Vec3, box.FaceCount())
	for i := range tris {
		tris[i] = box.Triangle(i)
	}
	reversed := make([][3]Vec3, len(tris))
	for i := range tris {
		reversed[len(tris)-1-i] = tris[i]
	}

	a := FromTriangles(tris, ProvenanceParametric)
	b := FromTriangles(reversed, ProvenanceParametric)
	assert.Equal(t, a.Vertices, b.Vertices)
	assert.Equal(t, a.Faces, b.Faces)
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	_, err := Decode("fbx", []byte("x"), ProvenanceNeural)
	assert.Error(t, err)
}
