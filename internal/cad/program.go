// Package cad parses parametric instruction programs and builds them into meshes on a CAD kernel.
package cad

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
	"github.com/Vartmor/CADLift-sub001/internal/schemas"
	rootschemas "github.com/Vartmor/CADLift-sub001/schemas"
)

const (
	defaultCylinderSegments = 32
	defaultSphereSegments   = 24
)

var instructionSchema = schemas.MustCompile("instructions.schema.json", rootschemas.Instructions)

// Op is one instruction of a program. The set of implementations is closed.
type Op interface {
	// Tag returns the instruction type as written in the program.
	Tag() string
	sealed()
}

// Cube is an axis-aligned box, anchored at the origin corner unless Centered.
type Cube struct {
	ID       string
	Size     mesh.Vec3
	Centered bool
}

// Cylinder is a z-aligned cylinder standing on z=0 unless Centered.
type Cylinder struct {
	ID       string
	Radius   float64
	Height   float64
	Segments int
	Centered bool
}

// Sphere is centered on the origin.
type Sphere struct {
	ID       string
	Radius   float64
	Segments int
}

// Extrude lifts a 2D outline from z=0 to Height.
type Extrude struct {
	ID     string
	Points mesh.Polygon
	Height float64
}

// Translate moves a live body in place.
type Translate struct {
	Target string
	Offset mesh.Vec3
}

// Union consumes the named bodies and produces one body.
type Union struct {
	ID  string
	IDs []string
}

// Difference consumes Base and every body in Subtract and produces Base minus the rest.
type Difference struct {
	ID       string
	Base     string
	Subtract []string
}

func (Cube) Tag() string       { return "cube" }
func (Cylinder) Tag() string   { return "cylinder" }
func (Sphere) Tag() string     { return "sphere" }
func (Extrude) Tag() string    { return "extrude" }
func (Translate) Tag() string  { return "translate" }
func (Union) Tag() string      { return "union" }
func (Difference) Tag() string { return "difference" }

func (Cube) sealed()       {}
func (Cylinder) sealed()   {}
func (Sphere) sealed()     {}
func (Extrude) sealed()    {}
func (Translate) sealed()  {}
func (Union) sealed()      {}
func (Difference) sealed() {}

// Program is a parsed, structurally checked instruction list.
type Program struct {
	Ops []Op
	raw json.RawMessage
}

// MarshalJSON returns the normalized instruction array.
func (p *Program) MarshalJSON() ([]byte, error) {
	return p.raw, nil
}

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.Ops) }

// instruction is the union of every field an instruction may carry.
type instruction struct {
	Type     string       `json:"type"`
	ID       string       `json:"id"`
	Size     [3]float64   `json:"size"`
	Centered bool         `json:"centered"`
	Radius   float64      `json:"radius"`
	Height   float64      `json:"height"`
	Segments int          `json:"segments"`
	Points   [][2]float64 `json:"points"`
	Target   string       `json:"target"`
	Offset   [3]float64   `json:"offset"`
	IDs      []string     `json:"ids"`
	Base     string       `json:"base"`
	Subtract []string     `json:"subtract"`
}

// Parse normalizes, schema-validates and structurally checks a program. It
// accepts a JSON array, a single instruction object, or an object with an
// "instructions" array.
func Parse(data []byte) (*Program, error) {
	raw, err := normalize(data)
	if err != nil {
		return nil, &ParseError{Index: -1, Err: err}
	}
	if err := instructionSchema.Validate(raw); err != nil {
		return nil, &ParseError{Index: -1, Err: err}
	}

	var insts []instruction
	if err := json.Unmarshal(raw, &insts); err != nil {
		return nil, &ParseError{Index: -1, Err: err}
	}

	c := newChecker()
	ops := make([]Op, 0, len(insts))
	for i, in := range insts {
		op, err := c.check(i, in)
		if err != nil {
			return nil, &ParseError{Index: i, Tag: in.Type, Err: err}
		}
		ops = append(ops, op)
	}
	return &Program{Ops: ops, raw: raw}, nil
}

func normalize(data []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("program is empty")
	}
	switch trimmed[0] {
	case '[':
		return trimmed, nil
	case '{':
		var wrapper struct {
			Instructions json.RawMessage `json:"instructions"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to decode program: %w", err)
		}
		if len(wrapper.Instructions) > 0 {
			return normalize(wrapper.Instructions)
		}
		return json.RawMessage(append(append([]byte{'['}, trimmed...), ']')), nil
	default:
		return nil, fmt.Errorf("program must be a JSON array or object")
	}
}

// checker tracks which body ids are live while a program is read in order.
type checker struct {
	live    map[string]bool
	defined map[string]bool
}

func newChecker() *checker {
	return &checker{live: map[string]bool{}, defined: map[string]bool{}}
}

func (c *checker) define(i int, id string) (string, error) {
	if id == "" {
		id = fmt.Sprintf("#%d", i)
	}
	if c.defined[id] {
		return "", fmt.Errorf("duplicate id %q", id)
	}
	c.defined[id] = true
	c.live[id] = true
	return id, nil
}

func (c *checker) consume(ids ...string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("id %q referenced twice", id)
		}
		seen[id] = true
		if err := c.require(id); err != nil {
			return err
		}
	}
	for _, id := range ids {
		delete(c.live, id)
	}
	return nil
}

func (c *checker) require(id string) error {
	if c.live[id] {
		return nil
	}
	if c.defined[id] {
		return fmt.Errorf("id %q was already consumed", id)
	}
	return fmt.Errorf("unknown id %q", id)
}

func (c *checker) check(i int, in instruction) (Op, error) {
	switch in.Type {
	case "cube":
		id, err := c.define(i, in.ID)
		return Cube{ID: id, Size: mesh.Vec3(in.Size), Centered: in.Centered}, err
	case "cylinder":
		segments := in.Segments
		if segments == 0 {
			segments = defaultCylinderSegments
		}
		id, err := c.define(i, in.ID)
		return Cylinder{ID: id, Radius: in.Radius, Height: in.Height, Segments: segments, Centered: in.Centered}, err
	case "sphere":
		segments := in.Segments
		if segments == 0 {
			segments = defaultSphereSegments
		}
		id, err := c.define(i, in.ID)
		return Sphere{ID: id, Radius: in.Radius, Segments: segments}, err
	case "extrude":
		poly := make(mesh.Polygon, len(in.Points))
		for k, p := range in.Points {
			poly[k] = mesh.Point2(p)
		}
		if poly.SignedArea() == 0 {
			return nil, fmt.Errorf("outline has zero area")
		}
		id, err := c.define(i, in.ID)
		return Extrude{ID: id, Points: poly, Height: in.Height}, err
	case "translate":
		if err := c.require(in.Target); err != nil {
			return nil, err
		}
		return Translate{Target: in.Target, Offset: mesh.Vec3(in.Offset)}, nil
	case "union":
		if err := c.consume(in.IDs...); err != nil {
			return nil, err
		}
		id, err := c.define(i, in.ID)
		return Union{ID: id, IDs: append([]string(nil), in.IDs...)}, err
	case "difference":
		if err := c.consume(append([]string{in.Base}, in.Subtract...)...); err != nil {
			return nil, err
		}
		id, err := c.define(i, in.ID)
		return Difference{ID: id, Base: in.Base, Subtract: append([]string(nil), in.Subtract...)}, err
	default:
		return nil, fmt.Errorf("unsupported instruction type %q", in.Type)
	}
}
