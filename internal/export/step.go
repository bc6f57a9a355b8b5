package export

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
)

// EncodeSTEP writes an ISO 10303-21 (AP214) file holding the mesh as a
// faceted B-rep: one closed shell of planar triangular faces.
func EncodeSTEP(m *mesh.Mesh, now time.Time) ([]byte, error) {
	s := &stepWriter{}
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	fmt.Fprintf(w, "ISO-10303-21;\nHEADER;\n")
	fmt.Fprintf(w, "FILE_DESCRIPTION(('CADLift faceted solid'),'2;1');\n")
	fmt.Fprintf(w, "FILE_NAME('model.step','%s',(''),(''),'cadlift','cadlift','');\n", now.Format("2006-01-02T15:04:05"))
	fmt.Fprintf(w, "FILE_SCHEMA(('AUTOMOTIVE_DESIGN { 1 0 10303 214 1 1 1 1 }'));\nENDSEC;\nDATA;\n")

	appCtx := s.add("APPLICATION_CONTEXT('core data for automotive mechanical design processes')")
	s.add(fmt.Sprintf("APPLICATION_PROTOCOL_DEFINITION('international standard','automotive_design',2000,%s)", appCtx))
	prodCtx := s.add(fmt.Sprintf("PRODUCT_CONTEXT('',%s,'mechanical')", appCtx))
	product := s.add(fmt.Sprintf("PRODUCT('model','model','',(%s))", prodCtx))
	formation := s.add(fmt.Sprintf("PRODUCT_DEFINITION_FORMATION('','',%s)", product))
	defCtx := s.add(fmt.Sprintf("PRODUCT_DEFINITION_CONTEXT('part definition',%s,'design')", appCtx))
	definition := s.add(fmt.Sprintf("PRODUCT_DEFINITION('design','',%s,%s)", formation, defCtx))
	shapeDef := s.add(fmt.Sprintf("PRODUCT_DEFINITION_SHAPE('','',%s)", definition))

	length := s.add("(LENGTH_UNIT() NAMED_UNIT(*) SI_UNIT(.MILLI.,.METRE.))")
	angle := s.add("(NAMED_UNIT(*) PLANE_ANGLE_UNIT() SI_UNIT($,.RADIAN.))")
	solidAngle := s.add("(NAMED_UNIT(*) SI_UNIT($,.STERADIAN.) SOLID_ANGLE_UNIT())")
	uncertainty := s.add(fmt.Sprintf("UNCERTAINTY_MEASURE_WITH_UNIT(LENGTH_MEASURE(1.E-07),%s,'distance_accuracy_value','')", length))
	geomCtx := s.add(fmt.Sprintf(
		"(GEOMETRIC_REPRESENTATION_CONTEXT(3) GLOBAL_UNCERTAINTY_ASSIGNED_CONTEXT((%s)) GLOBAL_UNIT_ASSIGNED_CONTEXT((%s,%s,%s)) REPRESENTATION_CONTEXT('',''))",
		uncertainty, length, angle, solidAngle))
	origin := s.add("CARTESIAN_POINT('',(0.,0.,0.))")
	axis := s.add(fmt.Sprintf("AXIS2_PLACEMENT_3D('',%s,$,$)", origin))

	points := make([]string, len(m.Vertices))
	for i, v := range m.Vertices {
		points[i] = s.add(fmt.Sprintf("CARTESIAN_POINT('',(%s,%s,%s))", stepReal(v[0]), stepReal(v[1]), stepReal(v[2])))
	}
	faces := make([]string, 0, len(m.Faces))
	for _, f := range m.Faces {
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			continue
		}
		loop := s.add(fmt.Sprintf("POLY_LOOP('',(%s,%s,%s))", points[f[0]], points[f[1]], points[f[2]]))
		bound := s.add(fmt.Sprintf("FACE_OUTER_BOUND('',%s,.T.)", loop))
		faces = append(faces, s.add(fmt.Sprintf("FACE('',(%s))", bound)))
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("mesh has no non-degenerate faces")
	}

	shell := s.add(fmt.Sprintf("CLOSED_SHELL('',(%s))", strings.Join(faces, ",")))
	brep := s.add(fmt.Sprintf("FACETED_BREP('',%s)", shell))
	rep := s.add(fmt.Sprintf("FACETED_BREP_SHAPE_REPRESENTATION('model',(%s,%s),%s)", brep, axis, geomCtx))
	s.add(fmt.Sprintf("SHAPE_DEFINITION_REPRESENTATION(%s,%s)", shapeDef, rep))

	for _, line := range s.lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	fmt.Fprintf(w, "ENDSEC;\nEND-ISO-10303-21;\n")
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type stepWriter struct {
	lines []string
}

// add appends an entity instance and returns its reference.
func (s *stepWriter) add(entity string) string {
	ref := "#" + strconv.Itoa(len(s.lines)+1)
	s.lines = append(s.lines, ref+"="+entity+";")
	return ref
}

// stepReal formats a float as a STEP REAL, which always carries a decimal point.
func stepReal(f float64) string {
	s := strconv.FormatFloat(f, 'E', -1, 64)
	mant, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += "."
	}
	if exp == "+00" {
		return mant
	}
	return mant + "E" + exp
}
