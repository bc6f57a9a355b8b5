package export

import (
	"bytes"
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
)

// EncodeGLB writes a binary glTF 2.0 document with a single indexed triangle mesh.
func EncodeGLB(m *mesh.Mesh) ([]byte, error) {
	positions := make([][3]float32, len(m.Vertices))
	for i, v := range m.Vertices {
		positions[i] = [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
	}
	indices := make([]uint32, 0, 3*len(m.Faces))
	for _, f := range m.Faces {
		indices = append(indices, uint32(f[0]), uint32(f[1]), uint32(f[2]))
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "cadlift"
	posAcc := modeler.WritePosition(doc, positions)
	idxAcc := modeler.WriteIndices(doc, indices)
	doc.Meshes = []*gltf.Mesh{{
		Name: "model",
		Primitives: []*gltf.Primitive{{
			Mode:       gltf.PrimitiveTriangles,
			Indices:    gltf.Index(idxAcc),
			Attributes: gltf.Attribute{gltf.POSITION: posAcc},
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: "model", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode glTF: %w", err)
	}
	return buf.Bytes(), nil
}
