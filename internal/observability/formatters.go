// Package observability provides logging, metrics, tracing, and the
// formatted output of verbose CLI runs.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Vartmor/CADLift-sub001/internal/quality"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if r := []rune(line); len(r) > boxWidth-4 {
			line = string(r[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func check(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

// PrintQuality outputs the metrics of the accepted mesh.
func (p *Printer) PrintQuality(m *quality.Metrics, minQuality float64) {
	if m == nil {
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Score:      %.2f / 10 (threshold %.1f)\n", m.OverallScore, minQuality))
	sb.WriteString(fmt.Sprintf("Faces:      %d\n", m.FaceCount))
	sb.WriteString(fmt.Sprintf("Vertices:   %d\n", m.VertexCount))
	sb.WriteString(fmt.Sprintf("Watertight: %s   Manifold: %s\n", check(m.Watertight), check(m.Manifold)))
	sb.WriteString(fmt.Sprintf("Regularity: %.2f\n", m.Regularity))
	size := m.BBox.Size()
	sb.WriteString(fmt.Sprintf("Size:       %.2f x %.2f x %.2f", size[0], size[1], size[2]))

	p.printBox("MESH QUALITY", sb.String())
}

// PrintResult outputs how the mesh was produced, then the written files below
// the box with their full paths.
func (p *Printer) PrintResult(meta *types.ResultMetadata, files map[string]string) {
	if meta == nil {
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Pipeline:   %s\n", meta.Pipeline))
	sb.WriteString(fmt.Sprintf("Source:     %s\n", meta.SourceType))
	sb.WriteString(fmt.Sprintf("Generators: %s\n", strings.Join(meta.Generators, ", ")))
	if meta.Backend != "" {
		sb.WriteString(fmt.Sprintf("Backend:    %s (%s)\n", meta.Backend, meta.Device))
	}
	status := "met"
	if !meta.ThresholdMet {
		status = "not met, best effort"
	}
	sb.WriteString(fmt.Sprintf("Retries:    %d (threshold %s)\n", meta.Retries, status))

	sb.WriteString(fmt.Sprintf("Files:      %d", len(files)))
	p.printBox("GENERATION RESULT", sb.String())

	formats := make([]string, 0, len(files))
	for f := range files {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	for _, f := range formats {
		fmt.Fprintf(p.out, "  %-4s %s\n", f, files[f]) //nolint:errcheck
	}
}

// PrintFailure outputs a failed job's error kind and message.
func (p *Printer) PrintFailure(kind, message string) {
	p.printBox("GENERATION FAILED", fmt.Sprintf("Kind:    %s\nMessage: %s", kind, message))
}
