package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrTerminal is returned when a finished job is modified.
	ErrTerminal = errors.New("job is already terminal")
	// ErrInvalidTransition is returned for an edge the state machine does not have.
	ErrInvalidTransition = errors.New("invalid stage transition")
)

// Tracker is the only writer of a running job's record. It enforces the
// stage machine, keeps progress non-decreasing, and persists every change.
// Store writes ignore cancellation of the caller's context so the final state
// is recorded even for a cancelled job.
type Tracker struct {
	mu       sync.Mutex
	store    Store
	job      *Job
	onChange func(StatusView)
}

// NewTracker wraps job. onChange, when set, receives every persisted view.
func NewTracker(store Store, job *Job, onChange func(StatusView)) *Tracker {
	return &Tracker{store: store, job: job.Clone(), onChange: onChange}
}

// Snapshot returns a copy of the current record.
func (t *Tracker) Snapshot() *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job.Clone()
}

// Enter moves the job into stage and raises progress to the start of its band.
func (t *Tracker) Enter(ctx context.Context, stage Stage) error {
	return t.mutate(ctx, func(j *Job) error {
		if !CanTransition(j.Stage, stage) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Stage, stage)
		}
		if j.Stage == StagePending {
			now := time.Now().UTC()
			j.StartedAt = &now
		}
		j.Stage = stage
		j.Status = StatusOf(stage)
		j.Progress = max(j.Progress, BandOf(stage, j.Hybrid()).Start)
		return nil
	})
}

// Advance sets progress to fraction f of the current stage's band. Values
// below the current progress are ignored.
func (t *Tracker) Advance(ctx context.Context, f float64) error {
	return t.mutate(ctx, func(j *Job) error {
		p := BandOf(j.Stage, j.Hybrid()).At(f)
		if p <= j.Progress {
			return errUnchanged
		}
		j.Progress = p
		return nil
	})
}

// Complete records the outputs and moves exporting -> completed at 100%.
func (t *Tracker) Complete(ctx context.Context, outputKeys map[string]string, summary *ResultSummary) error {
	return t.mutate(ctx, func(j *Job) error {
		if !CanTransition(j.Stage, StageCompleted) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Stage, StageCompleted)
		}
		now := time.Now().UTC()
		j.Stage = StageCompleted
		j.Status = StatusCompleted
		j.Progress = 100
		j.OutputKeys = outputKeys
		j.Result = summary
		j.CompletedAt = &now
		return nil
	})
}

// Fail records the error and moves the job to failed. Progress is frozen.
func (t *Tracker) Fail(ctx context.Context, kind, message string) error {
	return t.mutate(ctx, func(j *Job) error {
		now := time.Now().UTC()
		j.Stage = StageFailed
		j.Status = StatusFailed
		j.ErrorKind = kind
		j.ErrorMessage = message
		j.OutputKeys = nil
		j.Result = nil
		j.CompletedAt = &now
		return nil
	})
}

var errUnchanged = errors.New("unchanged")

func (t *Tracker) mutate(ctx context.Context, fn func(*Job) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.job.Terminal() {
		return ErrTerminal
	}
	next := t.job.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	next.UpdatedAt = time.Now().UTC()

	if err := t.store.Update(context.WithoutCancel(ctx), next); err != nil {
		return fmt.Errorf("failed to persist job %s: %w", next.ID, err)
	}
	t.job = next

	log.WithFields(log.Fields{
		"job_id":   next.ID,
		"stage":    next.Stage,
		"progress": next.Progress,
	}).Debug("job updated")
	if t.onChange != nil {
		t.onChange(next.View())
	}
	return nil
}
