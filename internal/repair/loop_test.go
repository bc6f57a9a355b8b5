package repair

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
	"github.com/Vartmor/CADLift-sub001/internal/quality"
)

// scriptedRepairer hands out a fresh mesh per call and records the targets it was asked for.
type scriptedRepairer struct {
	targets []int
	err     error
}

func (r *scriptedRepairer) Repair(m *mesh.Mesh, target int) (*mesh.Mesh, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.targets = append(r.targets, target)
	return m.Clone(), nil
}

// scriptedScorer returns scores in call order, repeating the last one.
type scriptedScorer struct {
	scores []float64
	calls  int
}

func (s *scriptedScorer) Score(m *mesh.Mesh) quality.Metrics {
	i := s.calls
	if i >= len(s.scores) {
		i = len(s.scores) - 1
	}
	s.calls++
	return quality.Metrics{FaceCount: m.FaceCount(), OverallScore: s.scores[i]}
}

func TestRunQualityLoop(t *testing.T) {
	tests := []struct {
		name         string
		scores       []float64
		maxRetries   int
		wantAttempts int
		wantScore    float64
		wantMet      bool
	}{
		{name: "candidate already passes", scores: []float64{8}, maxRetries: 3, wantAttempts: 0, wantScore: 8, wantMet: true},
		{name: "passes on second attempt", scores: []float64{3, 4, 7.5}, maxRetries: 3, wantAttempts: 2, wantScore: 7.5, wantMet: true},
		{name: "never passes keeps best", scores: []float64{3, 5, 4, 2}, maxRetries: 3, wantAttempts: 3, wantScore: 5},
		{name: "original is best", scores: []float64{5, 1, 1, 1}, maxRetries: 3, wantAttempts: 3, wantScore: 5},
		{name: "no retries allowed", scores: []float64{2}, maxRetries: 0, wantAttempts: 0, wantScore: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := mesh.Box(mesh.Vec3{1, 1, 1}, false, mesh.ProvenanceNeural)
			repairer := &scriptedRepairer{}
			result, err := RunQualityLoop(context.Background(), candidate, repairer, &scriptedScorer{scores: tt.scores}, LoopOptions{
				TargetFaces: 10,
				MinQuality:  7,
				MaxRetries:  tt.maxRetries,
				Schedule:    DefaultSchedule(),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAttempts, result.Attempts)
			assert.Equal(t, tt.wantScore, result.Metrics.OverallScore)
			assert.Equal(t, tt.wantMet, result.ThresholdMet)
			assert.Len(t, repairer.targets, tt.wantAttempts)
		})
	}
}

func TestRunQualityLoop_RepairErrorPropagates(t *testing.T) {
	candidate := mesh.Box(mesh.Vec3{1, 1, 1}, false, mesh.ProvenanceNeural)
	repairer := &scriptedRepairer{err: &MeshProcessingError{Message: "broken"}}

	_, err := RunQualityLoop(context.Background(), candidate, repairer, &scriptedScorer{scores: []float64{1}}, LoopOptions{
		MinQuality: 5, MaxRetries: 2,
	})
	var mpe *MeshProcessingError
	assert.True(t, errors.As(err, &mpe))
}

func TestRunQualityLoop_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	candidate := mesh.Box(mesh.Vec3{1, 1, 1}, false, mesh.ProvenanceNeural)
	_, err := RunQualityLoop(ctx, candidate, &scriptedRepairer{}, &scriptedScorer{scores: []float64{1}}, LoopOptions{
		MinQuality: 5, MaxRetries: 2,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunQualityLoop_ReportsAttempts(t *testing.T) {
	candidate := mesh.Box(mesh.Vec3{1, 1, 1}, false, mesh.ProvenanceNeural)
	var seen []int
	_, err := RunQualityLoop(context.Background(), candidate, &scriptedRepairer{}, &scriptedScorer{scores: []float64{1}}, LoopOptions{
		MinQuality: 5,
		MaxRetries: 4,
		OnAttempt:  func(attempt int, _ quality.Metrics) { seen = append(seen, attempt) },
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, seen)
}

func TestRunQualityLoop_RealRepairer(t *testing.T) {
	sphere := mesh.Sphere(3, 64, mesh.ProvenanceNeural)
	result, err := RunQualityLoop(context.Background(), sphere, NewRepairer(), quality.NewScorer(10, 500), LoopOptions{
		TargetFaces: 300,
		MinQuality:  9.99,
		MaxRetries:  3,
		Schedule:    DefaultSchedule(),
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Attempts, 3)
	assert.GreaterOrEqual(t, result.Metrics.OverallScore, quality.MinScore)
	assert.NotNil(t, result.Mesh)
}

func TestRunQualityLoop_BoundedAndBestEffort(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(rt, "maxRetries")
		scores := rapid.SliceOfN(rapid.Float64Range(1, 10), n+1, n+1).Draw(rt, "scores")
		minQuality := rapid.Float64Range(1, 10).Draw(rt, "minQuality")

		repairer := &scriptedRepairer{}
		candidate := mesh.Box(mesh.Vec3{1, 1, 1}, false, mesh.ProvenanceNeural)
		result, err := RunQualityLoop(context.Background(), candidate, repairer, &scriptedScorer{scores: scores}, LoopOptions{
			TargetFaces: 6, MinQuality: minQuality, MaxRetries: n, Schedule: DefaultSchedule(),
		})
		if err != nil {
			rt.Fatalf("low quality must not be an error: %v", err)
		}
		if len(repairer.targets) > n || result.Attempts > n {
			rt.Fatalf("made %d attempts with %d retries", len(repairer.targets), n)
		}
		if result.Metrics.OverallScore < minQuality {
			seen := scores[:result.Attempts+1]
			for _, s := range seen {
				if s > result.Metrics.OverallScore {
					rt.Fatalf("returned %v but %v was seen", result.Metrics.OverallScore, s)
				}
			}
		}
	})
}

func TestScheduleTarget(t *testing.T) {
	s := DefaultSchedule()
	assert.Equal(t, 100, s.Target(1, 100, 1000))
	assert.Equal(t, 550, s.Target(2, 100, 1000))
	assert.Equal(t, 1000, s.Target(3, 100, 1000))
	assert.Equal(t, 1000, s.Target(7, 100, 1000))
	assert.Equal(t, 100, Schedule{}.Target(5, 100, 1000))
	assert.Equal(t, 100, s.Target(2, 100, 50), "native below base keeps base")
	assert.Equal(t, 0, s.Target(2, 0, 50), "no target stays disabled")
}

func TestScheduleTarget_Monotone(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		relax := rapid.Float64Range(0, 2).Draw(rt, "relax")
		base := rapid.IntRange(1, 10_000).Draw(rt, "base")
		native := rapid.IntRange(1, 100_000).Draw(rt, "native")
		s := Schedule{Relax: relax}

		prev := s.Target(1, base, native)
		for k := 2; k < 10; k++ {
			cur := s.Target(k, base, native)
			if cur < prev {
				rt.Fatalf("target shrank from %d to %d at attempt %d", prev, cur, k)
			}
			if native > base && cur > native {
				rt.Fatalf("target %d exceeds native %d", cur, native)
			}
			prev = cur
		}
	})
}
