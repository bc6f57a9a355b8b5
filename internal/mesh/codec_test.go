package mesh

import (
	"bytes"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var triangle = [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}

// glbDoc builds a one-primitive document; edit may break it before encoding.
func glbDoc(t *testing.T, indices []uint32, edit func(*gltf.Document, *gltf.Primitive)) []byte {
	t.Helper()
	doc := gltf.NewDocument()
	prim := &gltf.Primitive{
		Mode:       gltf.PrimitiveTriangles,
		Attributes: gltf.Attribute{gltf.POSITION: modeler.WritePosition(doc, triangle)},
	}
	if indices != nil {
		prim.Indices = gltf.Index(modeler.WriteIndices(doc, indices))
	}
	doc.Meshes = []*gltf.Mesh{{Name: "part", Primitives: []*gltf.Primitive{prim}}}
	if edit != nil {
		edit(doc, prim)
	}

	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	require.NoError(t, enc.Encode(doc))
	return buf.Bytes()
}

func TestDecodeGLB(t *testing.T) {
	m, err := Decode("glb", glbDoc(t, []uint32{0, 1, 2}, nil), ProvenanceNeural)
	require.NoError(t, err)
	assert.Equal(t, 1, m.FaceCount())
	assert.Equal(t, 3, m.VertexCount())
	assert.Equal(t, ProvenanceNeural, m.Provenance)

	unindexed, err := Decode("glb", glbDoc(t, nil, nil), ProvenanceNeural)
	require.NoError(t, err)
	assert.Equal(t, 1, unindexed.FaceCount())
}

func TestDecodeGLB_MalformedDocuments(t *testing.T) {
	tests := []struct {
		name    string
		indices []uint32
		edit    func(*gltf.Document, *gltf.Primitive)
		errMsg  string
	}{
		{
			name: "position accessor out of range",
			edit: func(doc *gltf.Document, p *gltf.Primitive) {
				doc.Accessors = nil
				p.Attributes[gltf.POSITION] = 7
			},
			errMsg: "accessor 7 out of range",
		},
		{
			name:    "index accessor out of range",
			indices: []uint32{0, 1, 2},
			edit:    func(_ *gltf.Document, p *gltf.Primitive) { p.Indices = gltf.Index(9) },
			errMsg:  "accessor 9 out of range",
		},
		{
			name:    "index past last vertex",
			indices: []uint32{0, 1, 5},
			errMsg:  "index 5 out of range",
		},
		{
			name: "byte offset past buffer view",
			edit: func(doc *gltf.Document, p *gltf.Primitive) {
				doc.Accessors[p.Attributes[gltf.POSITION]].ByteOffset = 1 << 20
			},
			errMsg: "mesh \"part\"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m *Mesh
			var err error
			require.NotPanics(t, func() {
				m, err = Decode("glb", glbDoc(t, tt.indices, tt.edit), ProvenanceNeural)
			})
			assert.Nil(t, m)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}
