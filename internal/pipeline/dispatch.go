package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Vartmor/CADLift-sub001/internal/jobs"
	"github.com/Vartmor/CADLift-sub001/internal/queue"
)

// ErrNotRunning is returned when cancelling a job no worker is running.
var ErrNotRunning = errors.New("job is not running")

// Dispatcher hands accepted jobs to whatever executes them.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *jobs.Job) error
	Cancel(ctx context.Context, jobID uuid.UUID) error
}

// LocalDispatcher runs jobs on an in-process pool.
type LocalDispatcher struct {
	Pool *Pool
}

func (d LocalDispatcher) Dispatch(_ context.Context, job *jobs.Job) error {
	return d.Pool.Submit(job)
}

func (d LocalDispatcher) Cancel(_ context.Context, jobID uuid.UUID) error {
	if !d.Pool.Cancel(jobID) {
		return ErrNotRunning
	}
	return nil
}

// QueueDispatcher enqueues jobs for worker processes and broadcasts
// cancellations to them. The job record must already be in a store the
// workers share.
type QueueDispatcher struct {
	Queue *queue.Queue
}

func (d QueueDispatcher) Dispatch(ctx context.Context, job *jobs.Job) error {
	return d.Queue.Enqueue(ctx, job.ID)
}

func (d QueueDispatcher) Cancel(ctx context.Context, jobID uuid.UUID) error {
	return d.Queue.PublishCancel(ctx, jobID)
}
