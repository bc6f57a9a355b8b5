package repair

import (
	"context"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/Vartmor/CADLift-sub001/internal/mesh"
	"github.com/Vartmor/CADLift-sub001/internal/quality"
)

// MeshRepairer is the repair stage consumed by the loop.
type MeshRepairer interface {
	Repair(m *mesh.Mesh, targetFaces int) (*mesh.Mesh, error)
}

// MeshScorer is the scoring function consumed by the loop.
type MeshScorer interface {
	Score(m *mesh.Mesh) quality.Metrics
}

// Schedule decides the face target of each retry. Attempt k (1-based) asks for
//
//	base + (native - base) * min(1, (k-1) * Relax)
//
// so the first attempt uses the requested target and later attempts relax it
// toward the candidate's own face count. Relax <= 0 keeps the base target on
// every attempt.
type Schedule struct {
	Relax float64 `json:"relax" mapstructure:"relax"`
}

// DefaultSchedule reaches the native face count on the third attempt.
func DefaultSchedule() Schedule {
	return Schedule{Relax: 0.5}
}

// Target returns the face target for the given attempt.
func (s Schedule) Target(attempt, base, native int) int {
	if base <= 0 || native <= base {
		return base
	}
	frac := 0.0
	if s.Relax > 0 {
		frac = math.Min(1, float64(attempt-1)*s.Relax)
	}
	return base + int(math.Round(float64(native-base)*frac))
}

// LoopOptions configures RunQualityLoop.
type LoopOptions struct {
	TargetFaces int
	MinQuality  float64
	MaxRetries  int
	Schedule    Schedule
	// OnAttempt is called after each repair attempt is scored.
	OnAttempt func(attempt int, metrics quality.Metrics)
}

// LoopResult is the accepted mesh and how it was reached.
type LoopResult struct {
	Mesh         *mesh.Mesh
	Metrics      quality.Metrics
	Attempts     int
	ThresholdMet bool
}

// RunQualityLoop scores the candidate and, while it is below MinQuality and
// retries remain, repairs the original candidate with a progressively relaxed
// target. It returns the first result that meets the threshold, otherwise the
// best-scoring mesh seen including the unrepaired candidate. A low score is
// never an error; repair failures and cancellation are.
func RunQualityLoop(ctx context.Context, candidate *mesh.Mesh, repairer MeshRepairer, scorer MeshScorer, opts LoopOptions) (*LoopResult, error) {
	best := &LoopResult{Mesh: candidate, Metrics: scorer.Score(candidate)}
	if best.Metrics.OverallScore >= opts.MinQuality {
		best.ThresholdMet = true
		return best, nil
	}

	native := candidate.FaceCount()
	attempts := 0
	for attempts < opts.MaxRetries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempts++

		target := opts.Schedule.Target(attempts, opts.TargetFaces, native)
		repaired, err := repairer.Repair(candidate, target)
		if err != nil {
			return nil, err
		}
		metrics := scorer.Score(repaired)
		if opts.OnAttempt != nil {
			opts.OnAttempt(attempts, metrics)
		}
		log.WithFields(log.Fields{
			"attempt": attempts,
			"target":  target,
			"faces":   metrics.FaceCount,
			"score":   metrics.OverallScore,
		}).Debug("repair attempt scored")

		if metrics.OverallScore > best.Metrics.OverallScore {
			best = &LoopResult{Mesh: repaired, Metrics: metrics}
		}
		if metrics.OverallScore >= opts.MinQuality {
			return &LoopResult{Mesh: repaired, Metrics: metrics, Attempts: attempts, ThresholdMet: true}, nil
		}
	}

	best.Attempts = attempts
	return best, nil
}
