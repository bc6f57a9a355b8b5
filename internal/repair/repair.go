package repair

import (
	"math"
	"sort"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
)

const bisectSteps = 24

// Repairer welds, cleans, hole-fills and simplifies meshes. It is deterministic:
// the same mesh and target always produce the same output.
type Repairer struct {
	// Epsilon is the weld distance relative to the bounding box diagonal.
	Epsilon float64
	// MaxHoleEdges caps the boundary loop length that gets filled. Zero fills every loop.
	MaxHoleEdges int
}

// NewRepairer returns a repairer with a weld distance of one millionth of the diagonal.
func NewRepairer() *Repairer {
	return &Repairer{Epsilon: 1e-6}
}

// Repair returns a cleaned copy of m simplified toward targetFaces. A
// non-positive target skips simplification. The result may score worse than
// the input; only structurally invalid input is an error.
func (r *Repairer) Repair(m *mesh.Mesh, targetFaces int) (*mesh.Mesh, error) {
	if err := m.Validate(); err != nil {
		return nil, &MeshProcessingError{Message: "cannot repair mesh", Cause: err}
	}

	diag := m.BBox().Diagonal()
	eps := r.Epsilon * diag
	if eps <= 0 {
		eps = 1e-12
	}

	out := weld(m, eps)
	out = dropDegenerate(out, eps*eps)
	out = fillHoles(out, r.MaxHoleEdges)

	if targetFaces > 0 && out.FaceCount() > targetFaces {
		if simplified := simplify(out, targetFaces, diag); simplified.FaceCount() > 0 {
			out = simplified
		}
	}
	return out, nil
}

// weld merges vertices that fall into the same eps-sized cell and drops
// vertices no face references.
func weld(m *mesh.Mesh, eps float64) *mesh.Mesh {
	type key [3]int64
	cells := make(map[key]int, len(m.Vertices))
	remap := make([]int, len(m.Vertices))
	vs := make([]mesh.Vec3, 0, len(m.Vertices))
	used := make([]bool, len(m.Vertices))
	for _, f := range m.Faces {
		used[f[0]], used[f[1]], used[f[2]] = true, true, true
	}
	for i, p := range m.Vertices {
		if !used[i] {
			remap[i] = -1
			continue
		}
		k := key{int64(math.Round(p[0] / eps)), int64(math.Round(p[1] / eps)), int64(math.Round(p[2] / eps))}
		id, ok := cells[k]
		if !ok {
			id = len(vs)
			cells[k] = id
			vs = append(vs, p)
		}
		remap[i] = id
	}
	fs := make([]mesh.Face, 0, len(m.Faces))
	for _, f := range m.Faces {
		fs = append(fs, mesh.Face{remap[f[0]], remap[f[1]], remap[f[2]]})
	}
	return mesh.New(vs, fs, m.Provenance)
}

// dropDegenerate removes faces that repeat a vertex, have near-zero area, or
// duplicate an earlier face's vertex set.
func dropDegenerate(m *mesh.Mesh, minArea float64) *mesh.Mesh {
	seen := make(map[[3]int]bool, len(m.Faces))
	fs := make([]mesh.Face, 0, len(m.Faces))
	for i, f := range m.Faces {
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			continue
		}
		t := m.Triangle(i)
		if t[1].Sub(t[0]).Cross(t[2].Sub(t[0])).Norm()/2 <= minArea {
			continue
		}
		k := [3]int{f[0], f[1], f[2]}
		sort.Ints(k[:])
		if seen[k] {
			continue
		}
		seen[k] = true
		fs = append(fs, f)
	}
	return mesh.New(m.Vertices, fs, m.Provenance)
}

// fillHoles closes boundary loops with triangle fans oriented against the
// existing half-edges.
func fillHoles(m *mesh.Mesh, maxEdges int) *mesh.Mesh {
	counts := m.EdgeCounts()
	// next maps the head of a reversed boundary half-edge to its tail.
	next := make(map[int]int)
	ambiguous := make(map[int]bool)
	var starts []int
	for _, f := range m.Faces {
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			if counts[mesh.NewEdge(a, b)] != 1 {
				continue
			}
			if _, dup := next[b]; dup {
				ambiguous[b] = true
				continue
			}
			next[b] = a
			starts = append(starts, b)
		}
	}
	if len(starts) == 0 {
		return m
	}
	sort.Ints(starts)

	fs := append([]mesh.Face{}, m.Faces...)
	visited := make(map[int]bool)
	for _, start := range starts {
		if visited[start] {
			continue
		}
		loop := []int{start}
		visited[start] = true
		closed := false
		for cur := next[start]; ; cur = next[cur] {
			if cur == start {
				closed = true
				break
			}
			if visited[cur] || ambiguous[cur] {
				break
			}
			if _, ok := next[cur]; !ok {
				break
			}
			visited[cur] = true
			loop = append(loop, cur)
		}
		if !closed || len(loop) < 3 || (maxEdges > 0 && len(loop) > maxEdges) {
			continue
		}
		for i := 1; i+1 < len(loop); i++ {
			fs = append(fs, mesh.Face{loop[0], loop[i], loop[i+1]})
		}
	}
	return mesh.New(m.Vertices, fs, m.Provenance)
}

// simplify clusters vertices on a uniform grid, bisecting the cell size for
// the finest grid that meets targetFaces.
func simplify(m *mesh.Mesh, targetFaces int, diag float64) *mesh.Mesh {
	lo, hi := 0.0, diag
	best := cluster(m, hi)
	for i := 0; i < bisectSteps; i++ {
		mid := (lo + hi) / 2
		candidate := cluster(m, mid)
		if candidate.FaceCount() <= targetFaces {
			hi, best = mid, candidate
		} else {
			lo = mid
		}
	}
	return best
}

// cluster snaps every vertex to the mean of its grid cell and drops the
// faces that collapse.
func cluster(m *mesh.Mesh, cell float64) *mesh.Mesh {
	if cell <= 0 {
		return m
	}
	origin := m.BBox().Min
	type key [3]int64
	ids := make(map[key]int)
	remap := make([]int, len(m.Vertices))
	var sums []mesh.Vec3
	var counts []float64
	for i, p := range m.Vertices {
		d := p.Sub(origin)
		k := key{int64(d[0] / cell), int64(d[1] / cell), int64(d[2] / cell)}
		id, ok := ids[k]
		if !ok {
			id = len(sums)
			ids[k] = id
			sums = append(sums, mesh.Vec3{})
			counts = append(counts, 0)
		}
		sums[id] = sums[id].Add(p)
		counts[id]++
		remap[i] = id
	}
	vs := make([]mesh.Vec3, len(sums))
	for i := range sums {
		vs[i] = sums[i].Scale(1 / counts[i])
	}
	fs := make([]mesh.Face, 0, len(m.Faces))
	for _, f := range m.Faces {
		fs = append(fs, mesh.Face{remap[f[0]], remap[f[1]], remap[f[2]]})
	}
	return dropDegenerate(mesh.New(vs, fs, m.Provenance), 0)
}
