package observability

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
	"github.com/Vartmor/CADLift-sub001/internal/quality"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

func TestPrintQuality(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	m := quality.DefaultScorer().Score(mesh.Box(mesh.Vec3{10, 20, 30}, true, mesh.ProvenanceParametric))
	p.PrintQuality(&m, 6)
	output := buf.String()

	assert.Contains(t, output, "MESH QUALITY")
	assert.Contains(t, output, "Faces:      12")
	assert.Contains(t, output, "Watertight: ✓")
	assert.Contains(t, output, "10.00 x 20.00 x 30.00")
}

func TestPrintQuality_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintQuality(nil, 6)
	assert.Empty(t, buf.String())
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintResult(&types.ResultMetadata{
		Pipeline:   "hybrid",
		SourceType: types.SourcePrompt,
		Generators: []string{"neural-text", "parametric"},
		Backend:    "local",
		Device:     "cuda",
		Retries:    2,
	}, map[string]string{"stl": "out/model.stl", "glb": "out/model.glb"})
	output := buf.String()

	assert.Contains(t, output, "GENERATION RESULT")
	assert.Contains(t, output, "neural-text, parametric")
	assert.Contains(t, output, "local (cuda)")
	assert.Contains(t, output, "not met, best effort")
	assert.Less(t, strings.Index(output, "model.glb"), strings.Index(output, "model.stl"))
}

func TestPrintResult_KeepsLongPaths(t *testing.T) {
	var buf bytes.Buffer
	long := "/tmp/" + strings.Repeat("nested/", 12) + "model.stl"
	NewPrinter(&buf).PrintResult(&types.ResultMetadata{Pipeline: "parametric"}, map[string]string{"stl": long})

	assert.Contains(t, buf.String(), long)
	assert.Contains(t, buf.String(), "Files:      1")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintFailure("GenerationError", strings.Repeat("x", 200))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
	assert.Contains(t, buf.String(), "...")

	buf.Reset()
	NewPrinter(&buf).PrintFailure("GenerationError", strings.Repeat("é", 200))
	assert.True(t, utf8.ValidString(buf.String()), "truncation keeps whole runes")
}
