package cad

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
	"github.com/Vartmor/CADLift-sub001/internal/schemas"
)

func TestParse_AcceptedShapes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []Op
	}{
		{
			name: "single object",
			doc:  `{"type":"cube","size":[10,20,30],"centered":true}`,
			want: []Op{Cube{ID: "#0", Size: mesh.Vec3{10, 20, 30}, Centered: true}},
		},
		{
			name: "wrapped array",
			doc:  `{"instructions":[{"type":"sphere","id":"ball","radius":2}]}`,
			want: []Op{Sphere{ID: "ball", Radius: 2, Segments: defaultSphereSegments}},
		},
		{
			name: "array with references",
			doc: `[
				{"type":"cube","id":"a","size":[1,1,1]},
				{"type":"cylinder","radius":0.2,"height":2},
				{"type":"translate","target":"a","offset":[1,0,0]},
				{"type":"difference","base":"a","subtract":["#1"]}
			]`,
			want: []Op{
				Cube{ID: "a", Size: mesh.Vec3{1, 1, 1}},
				Cylinder{ID: "#1", Radius: 0.2, Height: 2, Segments: defaultCylinderSegments},
				Translate{Target: "a", Offset: mesh.Vec3{1, 0, 0}},
				Difference{ID: "#3", Base: "a", Subtract: []string{"#1"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Ops)

			raw, err := p.MarshalJSON()
			require.NoError(t, err)
			var arr []json.RawMessage
			assert.NoError(t, json.Unmarshal(raw, &arr), "normalized program should be an array")
			assert.Len(t, arr, len(tt.want))
		})
	}
}

func TestParse_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantIndex int
		wantMsg   string
	}{
		{name: "not json", doc: `cube`, wantIndex: -1, wantMsg: "JSON array or object"},
		{name: "empty", doc: `   `, wantIndex: -1, wantMsg: "empty"},
		{name: "unknown tag", doc: `[{"type":"torus","radius":1}]`, wantIndex: -1},
		{name: "missing field", doc: `[{"type":"cylinder","radius":1}]`, wantIndex: -1},
		{name: "unknown reference", doc: `[{"type":"cube","size":[1,1,1]},{"type":"translate","target":"b","offset":[0,0,0]}]`, wantIndex: 1, wantMsg: `unknown id "b"`},
		{name: "consumed reference", doc: `[
			{"type":"cube","id":"a","size":[1,1,1]},
			{"type":"cube","id":"b","size":[1,1,1]},
			{"type":"union","ids":["a","b"]},
			{"type":"translate","target":"a","offset":[1,0,0]}
		]`, wantIndex: 3, wantMsg: "already consumed"},
		{name: "duplicate id", doc: `[{"type":"cube","id":"a","size":[1,1,1]},{"type":"sphere","id":"a","radius":1}]`, wantIndex: 1, wantMsg: "duplicate id"},
		{name: "repeated operand", doc: `[{"type":"cube","id":"a","size":[1,1,1]},{"type":"union","ids":["a","a"]}]`, wantIndex: 1, wantMsg: "referenced twice"},
		{name: "self difference", doc: `[{"type":"cube","id":"a","size":[1,1,1]},{"type":"difference","base":"a","subtract":["a"]}]`, wantIndex: 1, wantMsg: "referenced twice"},
		{name: "flat outline", doc: `[{"type":"extrude","points":[[0,0],[1,1],[2,2]],"height":1}]`, wantIndex: 0, wantMsg: "zero area"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "error should be ParseError, got %T", err)
			assert.Equal(t, tt.wantIndex, pe.Index)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParse_SchemaErrorsAreStructured(t *testing.T) {
	_, err := Parse([]byte(`[{"type":"cube","size":[1,0,1]}]`))
	var ve *schemas.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.NotEmpty(t, ve.Errors)
}

func TestOpTags(t *testing.T) {
	ops := []Op{Cube{}, Cylinder{}, Sphere{}, Extrude{}, Translate{}, Union{}, Difference{}}
	var tags []string
	for _, op := range ops {
		tags = append(tags, op.Tag())
	}
	assert.Equal(t, []string{"cube", "cylinder", "sphere", "extrude", "translate", "union", "difference"}, tags)
}
