package mesh

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/unixpickle/model3d/model3d"
)

// ToModel3D converts the mesh into a model3d mesh.
func ToModel3D(m *Mesh) *model3d.Mesh {
	return model3d.NewMeshTriangles(toTriangles(m))
}

func toTriangles(m *Mesh) []*model3d.Triangle {
	tris := make([]*model3d.Triangle, 0, len(m.Faces))
	for i := range m.Faces {
		t := m.Triangle(i)
		tris = append(tris, &model3d.Triangle{toCoord(t[0]), toCoord(t[1]), toCoord(t[2])})
	}
	return tris
}

func toCoord(v Vec3) model3d.Coord3D { return model3d.XYZ(v[0], v[1], v[2]) }

func fromCoord(c model3d.Coord3D) Vec3 { return Vec3{c.X, c.Y, c.Z} }

// FromModel3D converts a model3d mesh, welding identical corners.
func FromModel3D(mm *model3d.Mesh, provenance Provenance) *Mesh {
	src := mm.TriangleSlice()
	tris := make([][3]Vec3, 0, len(src))
	for _, t := range src {
		tris = append(tris, [3]Vec3{fromCoord(t[0]), fromCoord(t[1]), fromCoord(t[2])})
	}
	return FromTriangles(tris, provenance)
}

// FromTriangles builds an indexed mesh from a triangle soup. Triangles are sorted
// first so the result does not depend on the order of the input.
func FromTriangles(tris [][3]Vec3, provenance Provenance) *Mesh {
	sorted := make([][3]Vec3, len(tris))
	copy(sorted, tris)
	sort.Slice(sorted, func(i, j int) bool { return lessTri(sorted[i], sorted[j]) })

	index := make(map[Vec3]int, len(sorted))
	vs := make([]Vec3, 0, len(sorted))
	fs := make([]Face, 0, len(sorted))
	for _, t := range sorted {
		var f Face
		for k, p := range t {
			id, ok := index[p]
			if !ok {
				id = len(vs)
				index[p] = id
				vs = append(vs, p)
			}
			f[k] = id
		}
		fs = append(fs, f)
	}
	return New(vs, fs, provenance)
}

func lessVec(a, b Vec3) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func lessTri(a, b [3]Vec3) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return lessVec(a[i], b[i])
		}
	}
	return false
}

// EncodeSTL writes the mesh as binary STL.
func EncodeSTL(m *Mesh) ([]byte, error) {
	var buf bytes.Buffer
	if err := model3d.WriteSTL(&buf, toTriangles(m)); err != nil {
		return nil, fmt.Errorf("failed to write STL: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSTL reads ASCII or binary STL.
func DecodeSTL(r io.Reader, provenance Provenance) (*Mesh, error) {
	src, err := model3d.ReadSTL(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read STL: %w", err)
	}
	tris := make([][3]Vec3, 0, len(src))
	for _, t := range src {
		tris = append(tris, [3]Vec3{fromCoord(t[0]), fromCoord(t[1]), fromCoord(t[2])})
	}
	return FromTriangles(tris, provenance), nil
}

func accessor(doc *gltf.Document, idx uint32) (*gltf.Accessor, error) {
	if int(idx) >= len(doc.Accessors) || doc.Accessors[idx] == nil {
		return nil, fmt.Errorf("accessor %d out of range (document has %d)", idx, len(doc.Accessors))
	}
	return doc.Accessors[idx], nil
}

// readPrimitive loads the positions and triangle indices of one primitive.
// Documents come from remote backends, so every index is checked and a
// panic inside the accessor reader is reported as an error.
func readPrimitive(doc *gltf.Document, posIdx uint32, indicesIdx *uint32) (positions [][3]float32, indices []uint32, err error) {
	defer func() {
		if r := recover(); r != nil {
			positions, indices, err = nil, nil, fmt.Errorf("malformed accessor data: %v", r)
		}
	}()

	posAcc, err := accessor(doc, posIdx)
	if err != nil {
		return nil, nil, fmt.Errorf("positions: %w", err)
	}
	positions, err = modeler.ReadPosition(doc, posAcc, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read positions: %w", err)
	}
	if indicesIdx == nil {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
		return positions, indices, nil
	}

	idxAcc, err := accessor(doc, *indicesIdx)
	if err != nil {
		return nil, nil, fmt.Errorf("indices: %w", err)
	}
	indices, err = modeler.ReadIndices(doc, idxAcc, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read indices: %w", err)
	}
	for _, i := range indices {
		if int(i) >= len(positions) {
			return nil, nil, fmt.Errorf("index %d out of range (%d vertices)", i, len(positions))
		}
	}
	return positions, indices, nil
}

// DecodeGLB reads every triangle primitive of a binary glTF document into one mesh.
// Node transforms are not applied.
func DecodeGLB(r io.Reader, provenance Provenance) (*Mesh, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to decode glTF: %w", err)
	}

	out := New(nil, nil, provenance)
	for _, gm := range doc.Meshes {
		for _, prim := range gm.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				continue
			}
			posIdx, ok := prim.Attributes[gltf.POSITION]
			if !ok {
				continue
			}
			positions, indices, err := readPrimitive(doc, posIdx, prim.Indices)
			if err != nil {
				return nil, fmt.Errorf("mesh %q: %w", gm.Name, err)
			}

			base := len(out.Vertices)
			for _, p := range positions {
				out.Vertices = append(out.Vertices, Vec3{float64(p[0]), float64(p[1]), float64(p[2])})
			}
			for i := 0; i+2 < len(indices); i += 3 {
				out.Faces = append(out.Faces, Face{
					base + int(indices[i]), base + int(indices[i+1]), base + int(indices[i+2]),
				})
			}
		}
	}
	if len(out.Faces) == 0 {
		return nil, fmt.Errorf("glTF document contains no triangle primitives")
	}
	return out, nil
}

// Decode dispatches on a format name ("stl" or "glb").
func Decode(format string, data []byte, provenance Provenance) (*Mesh, error) {
	switch strings.ToLower(format) {
	case "stl":
		return DecodeSTL(bytes.NewReader(data), provenance)
	case "glb", "gltf":
		return DecodeGLB(bytes.NewReader(data), provenance)
	default:
		return nil, fmt.Errorf("unsupported mesh format %q", format)
	}
}
