// Package export serializes accepted meshes into the requested output formats.
package export

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
)

// Supported formats.
const (
	FormatSTL  = "stl"
	FormatOBJ  = "obj"
	FormatGLB  = "glb"
	FormatSTEP = "step"
)

// ExportError names the format that failed to serialize.
type ExportError struct {
	Format  string
	Message string
	Cause   error
}

func (e *ExportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("export error (%s): %s: %v", e.Format, e.Message, e.Cause)
	}
	return fmt.Sprintf("export error (%s): %s", e.Format, e.Message)
}

func (e *ExportError) Unwrap() error {
	return e.Cause
}

// Kind returns the job error kind.
func (e *ExportError) Kind() string { return "ExportError" }

// Encoder serializes a mesh into one format.
type Encoder func(m *mesh.Mesh) ([]byte, error)

// Exporter holds the encoder registered for each format.
type Exporter struct {
	encoders map[string]Encoder
}

// NewExporter returns an exporter for stl, obj, glb and step.
func NewExporter() *Exporter {
	e := &Exporter{encoders: map[string]Encoder{}}
	e.Register(FormatSTL, mesh.EncodeSTL)
	e.Register(FormatOBJ, EncodeOBJ)
	e.Register(FormatGLB, EncodeGLB)
	e.Register(FormatSTEP, func(m *mesh.Mesh) ([]byte, error) {
		return EncodeSTEP(m, time.Now().UTC())
	})
	return e
}

// Register installs or replaces the encoder for a format.
func (e *Exporter) Register(format string, enc Encoder) {
	e.encoders[strings.ToLower(format)] = enc
}

// Formats lists the registered formats in sorted order.
func (e *Exporter) Formats() []string {
	out := make([]string, 0, len(e.encoders))
	for f := range e.encoders {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Export encodes m in every requested format. It returns every artifact or
// none: the first failing format aborts the call with an ExportError. ctx is
// not consulted, so an export that has started always runs to completion.
func (e *Exporter) Export(_ context.Context, m *mesh.Mesh, formats []string) (map[string][]byte, error) {
	if len(formats) == 0 {
		return nil, &ExportError{Message: "no formats requested"}
	}
	if err := m.Validate(); err != nil {
		return nil, &ExportError{Format: formats[0], Message: "mesh is not exportable", Cause: err}
	}

	out := make(map[string][]byte, len(formats))
	for _, f := range formats {
		f = strings.ToLower(f)
		if _, done := out[f]; done {
			continue
		}
		enc, ok := e.encoders[f]
		if !ok {
			return nil, &ExportError{Format: f, Message: "unsupported format"}
		}
		data, err := enc(m)
		if err != nil {
			return nil, &ExportError{Format: f, Message: "encoding failed", Cause: err}
		}
		if len(data) == 0 {
			return nil, &ExportError{Format: f, Message: "encoder produced no bytes"}
		}
		out[f] = data
	}

	log.WithFields(log.Fields{
		"formats": len(out),
		"faces":   m.FaceCount(),
	}).Debug("mesh exported")
	return out, nil
}
