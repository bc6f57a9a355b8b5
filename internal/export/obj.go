package export

import (
	"bufio"
	"bytes"
	"strconv"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
)

// EncodeOBJ writes a Wavefront OBJ with one object and 1-based face indices.
func EncodeOBJ(m *mesh.Mesh) ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	w.WriteString("# cadlift\no model\n")
	for _, v := range m.Vertices {
		w.WriteString("v ")
		w.WriteString(strconv.FormatFloat(v[0], 'g', -1, 64))
		w.WriteByte(' ')
		w.WriteString(strconv.FormatFloat(v[1], 'g', -1, 64))
		w.WriteByte(' ')
		w.WriteString(strconv.FormatFloat(v[2], 'g', -1, 64))
		w.WriteByte('\n')
	}
	for _, f := range m.Faces {
		w.WriteString("f ")
		w.WriteString(strconv.Itoa(f[0] + 1))
		w.WriteByte(' ')
		w.WriteString(strconv.Itoa(f[1] + 1))
		w.WriteByte(' ')
		w.WriteString(strconv.Itoa(f[2] + 1))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
