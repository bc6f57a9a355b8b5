// Package mesh provides the triangle mesh representation shared by every pipeline stage.
package mesh

import (
	"fmt"
	"math"
)

// Provenance marks where a mesh originated.
type Provenance string

const (
	// ProvenanceNeural marks meshes produced by a neural inference backend.
	ProvenanceNeural Provenance = "neural"
	// ProvenanceParametric marks meshes produced by a CAD kernel or a deterministic extrusion.
	ProvenanceParametric Provenance = "parametric"
)

// Vec3 is a point or direction in 3D space.
type Vec3 [3]float64

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v[0] * s, v[1] * s, v[2] * s} }

// Cross returns the cross product v x o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

// Dot returns the dot product.
func (v Vec3) Dot(o Vec3) float64 { return v[0]*o[0] + v[1]*o[1] + v[2]*o[2] }

// Norm returns the Euclidean length.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Face is a triangle referencing three vertex indices, counter-clockwise when seen from outside.
type Face [3]int

// Mesh is an indexed triangle mesh. A mesh is owned by one stage at a time;
// operations return new meshes instead of mutating the receiver.
type Mesh struct {
	Vertices   []Vec3
	Faces      []Face
	Provenance Provenance

	bbox *BBox
}

// New creates a mesh from vertices and faces. The slices are used as given.
func New(vertices []Vec3, faces []Face, provenance Provenance) *Mesh {
	return &Mesh{Vertices: vertices, Faces: faces, Provenance: provenance}
}

// FaceCount returns the number of triangles.
func (m *Mesh) FaceCount() int {
	if m == nil {
		return 0
	}
	return len(m.Faces)
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	if m == nil {
		return 0
	}
	return len(m.Vertices)
}

// BBox returns the bounding box of the vertices, computing it once.
func (m *Mesh) BBox() BBox {
	if m.bbox == nil {
		b := BoundsOf(m.Vertices)
		m.bbox = &b
	}
	return *m.bbox
}

// Validate reports structural problems: no vertices, no faces, or out of range indices.
func (m *Mesh) Validate() error {
	if m == nil || len(m.Vertices) == 0 {
		return fmt.Errorf("mesh has no vertices")
	}
	if len(m.Faces) == 0 {
		return fmt.Errorf("mesh has no faces")
	}
	n := len(m.Vertices)
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= n {
				return fmt.Errorf("face %d references vertex %d outside [0,%d)", i, idx, n)
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	vs := make([]Vec3, len(m.Vertices))
	copy(vs, m.Vertices)
	fs := make([]Face, len(m.Faces))
	copy(fs, m.Faces)
	return New(vs, fs, m.Provenance)
}

// Translate returns a copy moved by offset.
func (m *Mesh) Translate(offset Vec3) *Mesh {
	out := m.Clone()
	for i := range out.Vertices {
		out.Vertices[i] = out.Vertices[i].Add(offset)
	}
	return out
}

// Triangle returns the corner positions of face i.
func (m *Mesh) Triangle(i int) [3]Vec3 {
	f := m.Faces[i]
	return [3]Vec3{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
}

// Merge concatenates meshes into one compound mesh with the given provenance.
func Merge(provenance Provenance, meshes ...*Mesh) *Mesh {
	var nv, nf int
	for _, m := range meshes {
		nv += len(m.Vertices)
		nf += len(m.Faces)
	}
	vs := make([]Vec3, 0, nv)
	fs := make([]Face, 0, nf)
	for _, m := range meshes {
		base := len(vs)
		vs = append(vs, m.Vertices...)
		for _, f := range m.Faces {
			fs = append(fs, Face{f[0] + base, f[1] + base, f[2] + base})
		}
	}
	return New(vs, fs, provenance)
}

// Edge is an undirected edge with the smaller index first.
type Edge [2]int

// NewEdge orders a and b.
func NewEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{a, b}
}

// EdgeCounts returns how many faces use each undirected edge.
func (m *Mesh) EdgeCounts() map[Edge]int {
	counts := make(map[Edge]int, len(m.Faces)*3/2)
	for _, f := range m.Faces {
		counts[NewEdge(f[0], f[1])]++
		counts[NewEdge(f[1], f[2])]++
		counts[NewEdge(f[2], f[0])]++
	}
	return counts
}
