package mesh

// Point2 is a point in the image or sketch plane.
type Point2 [2]float64

// Polygon is an ordered ring of 2D points. The ring is implicitly closed.
type Polygon []Point2

// Valid reports whether the polygon has at least three points.
func (p Polygon) Valid() bool { return len(p) >= 3 }

// SignedArea returns the shoelace area; positive for counter-clockwise rings.
func (p Polygon) SignedArea() float64 {
	var a float64
	for i := range p {
		j := (i + 1) % len(p)
		a += p[i][0]*p[j][1] - p[j][0]*p[i][1]
	}
	return a / 2
}

// FilterPolygons keeps polygons with at least three points and a non-zero
// area, and drops the rest.
func FilterPolygons(polys []Polygon) []Polygon {
	out := make([]Polygon, 0, len(polys))
	for _, p := range polys {
		if p.Valid() && p.SignedArea() != 0 {
			out = append(out, p)
		}
	}
	return out
}

// ccw returns the ring in counter-clockwise order.
func (p Polygon) ccw() Polygon {
	if p.SignedArea() >= 0 {
		return p
	}
	out := make(Polygon, len(p))
	for i := range p {
		out[i] = p[len(p)-1-i]
	}
	return out
}

// Triangulate ear-clips a simple polygon into triangles indexing the
// counter-clockwise ring returned alongside. A ring with no clippable ear
// left (self-intersecting or collinear input) is finished as a fan.
func (p Polygon) Triangulate() (Polygon, [][3]int) {
	ring := p.ccw()
	n := len(ring)
	if n < 3 {
		return ring, nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	tris := make([][3]int, 0, n-2)

	for len(idx) > 3 {
		clipped := false
		for i := 0; i < len(idx); i++ {
			a := idx[(i+len(idx)-1)%len(idx)]
			b := idx[i]
			c := idx[(i+1)%len(idx)]
			if !isEar(ring, idx, a, b, c) {
				continue
			}
			tris = append(tris, [3]int{a, b, c})
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			for i := 1; i+1 < len(idx); i++ {
				tris = append(tris, [3]int{idx[0], idx[i], idx[i+1]})
			}
			return ring, tris
		}
	}
	tris = append(tris, [3]int{idx[0], idx[1], idx[2]})
	return ring, tris
}

func cross2(o, a, b Point2) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func isEar(ring Polygon, idx []int, a, b, c int) bool {
	pa, pb, pc := ring[a], ring[b], ring[c]
	if cross2(pa, pb, pc) <= 0 {
		return false
	}
	for _, k := range idx {
		if k == a || k == b || k == c {
			continue
		}
		if pointInTriangle(ring[k], pa, pb, pc) {
			return false
		}
	}
	return true
}

func pointInTriangle(p, a, b, c Point2) bool {
	d1 := cross2(a, b, p)
	d2 := cross2(b, c, p)
	d3 := cross2(c, a, p)
	return d1 >= 0 && d2 >= 0 && d3 >= 0
}

// Extrude builds a closed prism from the polygon between z=0 and z=height.
func Extrude(p Polygon, height float64, provenance Provenance) *Mesh {
	ring, tris := p.Triangulate()
	n := len(ring)
	vs := make([]Vec3, 0, 2*n)
	for _, pt := range ring {
		vs = append(vs, Vec3{pt[0], pt[1], 0})
	}
	for _, pt := range ring {
		vs = append(vs, Vec3{pt[0], pt[1], height})
	}

	fs := make([]Face, 0, 2*len(tris)+2*n)
	for _, t := range tris {
		fs = append(fs, Face{t[0] + n, t[1] + n, t[2] + n})
		fs = append(fs, Face{t[2], t[1], t[0]})
	}
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		fs = append(fs, Face{i, j, n + j}, Face{i, n + j, n + i})
	}
	return New(vs, fs, provenance)
}
