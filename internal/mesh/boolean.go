package mesh

import (
	"errors"
	"math"
	"sort"

	"github.com/unixpickle/model3d/model3d"
)

// DefaultResolution is the number of marching-cubes cells along the longest
// axis of a boolean result.
const DefaultResolution = 64

const searchIters = 8

// ErrEmptyBoolean is returned when a boolean operation leaves no surface.
var ErrEmptyBoolean = errors.New("boolean result is empty")

// Union joins closed meshes into one. Meshes whose bounding boxes never meet
// are concatenated unchanged; each group of meeting meshes is re-surfaced with
// marching cubes over the union of their solids.
func Union(resolution int, provenance Provenance, meshes ...*Mesh) (*Mesh, error) {
	if len(meshes) == 0 {
		return nil, ErrEmptyBoolean
	}
	var parts []*Mesh
	for _, group := range overlapGroups(meshes) {
		if len(group) == 1 {
			parts = append(parts, group[0])
			continue
		}
		solid := make(model3d.JoinedSolid, 0, len(group))
		for _, m := range group {
			solid = append(solid, solidOf(m))
		}
		joined, err := surface(solid, resolution, provenance)
		if err != nil {
			return nil, err
		}
		parts = append(parts, joined)
	}
	return Merge(provenance, parts...), nil
}

// Subtract removes the cutters from base. Cutters that do not reach base are ignored.
func Subtract(resolution int, base *Mesh, cutters ...*Mesh) (*Mesh, error) {
	bb := base.BBox()
	var negative model3d.JoinedSolid
	for _, c := range cutters {
		if bb.Overlaps(c.BBox()) {
			negative = append(negative, solidOf(c))
		}
	}
	if len(negative) == 0 {
		return base.Clone(), nil
	}
	return surface(&model3d.SubtractedSolid{Positive: solidOf(base), Negative: negative}, resolution, base.Provenance)
}

func solidOf(m *Mesh) model3d.Solid {
	return model3d.NewColliderSolid(model3d.MeshToCollider(ToModel3D(m)))
}

func surface(s model3d.Solid, resolution int, provenance Provenance) (*Mesh, error) {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	size := s.Max().Sub(s.Min())
	longest := math.Max(size.X, math.Max(size.Y, size.Z))
	if longest <= 0 {
		return nil, ErrEmptyBoolean
	}
	out := FromModel3D(model3d.MarchingCubesSearch(s, longest/float64(resolution), searchIters), provenance)
	if out.FaceCount() == 0 {
		return nil, ErrEmptyBoolean
	}
	return out, nil
}

// overlapGroups partitions meshes into connected components of touching
// bounding boxes. Groups keep the input order of their first member.
func overlapGroups(meshes []*Mesh) [][]*Mesh {
	parent := make([]int, len(meshes))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i := range meshes {
		for j := i + 1; j < len(meshes); j++ {
			if meshes[i].BBox().Overlaps(meshes[j].BBox()) {
				a, b := find(i), find(j)
				if a < b {
					parent[b] = a
				} else if b < a {
					parent[a] = b
				}
			}
		}
	}

	byRoot := make(map[int][]*Mesh)
	var roots []int
	for i, m := range meshes {
		r := find(i)
		if _, ok := byRoot[r]; !ok {
			roots = append(roots, r)
		}
		byRoot[r] = append(byRoot[r], m)
	}
	sort.Ints(roots)
	groups := make([][]*Mesh, 0, len(roots))
	for _, r := range roots {
		groups = append(groups, byRoot[r])
	}
	return groups
}
