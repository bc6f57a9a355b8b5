package mesh

import "math"

// BBox is an axis-aligned bounding box.
type BBox struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// BoundsOf returns the bounding box of points. An empty input gives a zero box.
func BoundsOf(points []Vec3) BBox {
	if len(points) == 0 {
		return BBox{}
	}
	b := BBox{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		for i := 0; i < 3; i++ {
			b.Min[i] = math.Min(b.Min[i], p[i])
			b.Max[i] = math.Max(b.Max[i], p[i])
		}
	}
	return b
}

// Size returns the extent along each axis.
func (b BBox) Size() Vec3 { return b.Max.Sub(b.Min) }

// Center returns the midpoint.
func (b BBox) Center() Vec3 { return b.Min.Add(b.Max).Scale(0.5) }

// Diagonal returns the length of the box diagonal.
func (b BBox) Diagonal() float64 { return b.Size().Norm() }

// Degenerate reports whether any axis is collapsed relative to the largest one.
// Non-finite extents are degenerate as well.
func (b BBox) Degenerate() bool {
	s := b.Size()
	largest := math.Max(s[0], math.Max(s[1], s[2]))
	if largest <= 0 || math.IsNaN(largest) || math.IsInf(largest, 0) {
		return true
	}
	for _, v := range s {
		if math.IsNaN(v) || v <= largest*1e-9 {
			return true
		}
	}
	return false
}

// Overlaps reports whether the boxes intersect or touch.
func (b BBox) Overlaps(o BBox) bool {
	for i := 0; i < 3; i++ {
		if b.Max[i] < o.Min[i] || o.Max[i] < b.Min[i] {
			return false
		}
	}
	return true
}

// Union returns the smallest box containing both.
func (b BBox) Union(o BBox) BBox {
	var u BBox
	for i := 0; i < 3; i++ {
		u.Min[i] = math.Min(b.Min[i], o.Min[i])
		u.Max[i] = math.Max(b.Max[i], o.Max[i])
	}
	return u
}
