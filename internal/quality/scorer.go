// Package quality scores candidate meshes on a bounded [1, 10] scale.
package quality

import (
	"math"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
)

const (
	// MinScore is the floor returned for empty or malformed meshes.
	MinScore = 1.0
	// MaxScore is the ceiling.
	MaxScore = 10.0
)

// Metrics is a read-only snapshot of a mesh's quality.
type Metrics struct {
	FaceCount    int       `json:"face_count"`
	VertexCount  int       `json:"vertex_count"`
	Watertight   bool      `json:"watertight"`
	Manifold     bool      `json:"manifold"`
	BBox         mesh.BBox `json:"bbox"`
	Regularity   float64   `json:"regularity"`
	OverallScore float64   `json:"overall_score"`
}

// Weights controls how each criterion contributes to OverallScore. Every criterion
// yields a credit in [0, 1] that is multiplied by its weight and added to Base.
// The sum is clamped to [MinScore, MaxScore].
type Weights struct {
	Base       float64 `json:"base" mapstructure:"base"`
	Watertight float64 `json:"watertight" mapstructure:"watertight"`
	Manifold   float64 `json:"manifold" mapstructure:"manifold"`
	Regularity float64 `json:"regularity" mapstructure:"regularity"`
	FaceBudget float64 `json:"face_budget" mapstructure:"face_budget"`
	BBox       float64 `json:"bbox" mapstructure:"bbox"`
}

// DefaultWeights sums to MaxScore so a perfect mesh reaches the ceiling.
func DefaultWeights() Weights {
	return Weights{
		Base:       1.0,
		Watertight: 3.0,
		Manifold:   1.5,
		Regularity: 2.0,
		FaceBudget: 1.5,
		BBox:       1.0,
	}
}

// Scorer computes Metrics. The zero value is not usable; use NewScorer.
type Scorer struct {
	Weights  Weights
	MinFaces int
	MaxFaces int
}

// NewScorer returns a scorer with default weights and the given face window.
func NewScorer(minFaces, maxFaces int) *Scorer {
	if minFaces < 1 {
		minFaces = 1
	}
	if maxFaces < minFaces {
		maxFaces = minFaces
	}
	return &Scorer{Weights: DefaultWeights(), MinFaces: minFaces, MaxFaces: maxFaces}
}

// DefaultScorer accepts anything from a tetrahedron up to 200k faces as in range.
func DefaultScorer() *Scorer {
	return NewScorer(4, 200_000)
}

// targetSlack is how far above a job's face target a mesh still earns full
// face-budget credit. Clustering only approximates the target.
const targetSlack = 2

// ForTarget returns a copy of s whose face window ends at targetSlack times
// targetFaces. A non-positive target returns s unchanged.
func (s *Scorer) ForTarget(targetFaces int) *Scorer {
	if targetFaces <= 0 {
		return s
	}
	next := *s
	next.MaxFaces = max(targetFaces*targetSlack, next.MinFaces)
	return &next
}

// Score never fails: empty, malformed, or degenerate meshes get MinScore.
func (s *Scorer) Score(m *mesh.Mesh) Metrics {
	metrics := Metrics{OverallScore: MinScore}
	if m == nil {
		return metrics
	}
	metrics.FaceCount = m.FaceCount()
	metrics.VertexCount = m.VertexCount()
	if metrics.FaceCount == 0 || metrics.VertexCount == 0 {
		return metrics
	}
	if !indicesInRange(m) {
		return metrics
	}

	metrics.BBox = mesh.BoundsOf(m.Vertices)
	metrics.Watertight, metrics.Manifold = topology(m)
	metrics.Regularity = regularity(m, metrics.BBox.Diagonal())
	if metrics.BBox.Degenerate() {
		return metrics
	}

	w := s.Weights
	score := w.Base
	if metrics.Watertight {
		score += w.Watertight
	}
	if metrics.Manifold {
		score += w.Manifold
	}
	score += w.Regularity * metrics.Regularity
	score += w.FaceBudget * FaceBudgetCredit(metrics.FaceCount, s.MinFaces, s.MaxFaces)
	score += w.BBox * aspectCredit(metrics.BBox)

	metrics.OverallScore = clamp(score)
	return metrics
}

// FaceBudgetCredit is 1 inside [minFaces, maxFaces]. Below the window it grows
// logarithmically with n; above it, it falls to 0 at ten times maxFaces.
func FaceBudgetCredit(n, minFaces, maxFaces int) float64 {
	switch {
	case n <= 0:
		return 0
	case n < minFaces:
		return math.Log1p(float64(n)) / math.Log1p(float64(minFaces))
	case n <= maxFaces:
		return 1
	default:
		return math.Max(0, 1-math.Log10(float64(n)/float64(maxFaces)))
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return MinScore
	}
	return math.Max(MinScore, math.Min(MaxScore, v))
}

func indicesInRange(m *mesh.Mesh) bool {
	n := len(m.Vertices)
	for _, f := range m.Faces {
		for _, i := range f {
			if i < 0 || i >= n {
				return false
			}
		}
	}
	return true
}

// topology reports watertight (every edge on exactly two faces) and manifold
// (no edge on more than two faces and no face repeating a vertex).
func topology(m *mesh.Mesh) (watertight, manifold bool) {
	manifold = true
	for _, f := range m.Faces {
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			manifold = false
		}
	}
	watertight = true
	for _, c := range m.EdgeCounts() {
		if c != 2 {
			watertight = false
		}
		if c > 2 {
			manifold = false
		}
	}
	return watertight && manifold, manifold
}

// regularity is the mean triangle shape quality 4*sqrt(3)*A / (a^2+b^2+c^2),
// which is 1 for equilateral triangles and 0 for slivers.
func regularity(m *mesh.Mesh, diagonal float64) float64 {
	minArea := 1e-12 * diagonal * diagonal
	var sum float64
	for i := range m.Faces {
		t := m.Triangle(i)
		ab, ac, bc := t[1].Sub(t[0]), t[2].Sub(t[0]), t[2].Sub(t[1])
		area := ab.Cross(ac).Norm() / 2
		denom := ab.Dot(ab) + ac.Dot(ac) + bc.Dot(bc)
		if area <= minArea || denom == 0 {
			continue
		}
		sum += 4 * math.Sqrt(3) * area / denom
	}
	return math.Min(1, sum/float64(len(m.Faces)))
}

// aspectCredit penalizes boxes whose thinnest axis is under a thousandth of the widest.
func aspectCredit(b mesh.BBox) float64 {
	s := b.Size()
	largest := math.Max(s[0], math.Max(s[1], s[2]))
	smallest := math.Min(s[0], math.Min(s[1], s[2]))
	return math.Min(1, 1000*smallest/largest)
}
