package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Vartmor/CADLift-sub001/internal/jobs"
	"github.com/Vartmor/CADLift-sub001/internal/queue"
)

// Worker feeds jobs from the Redis queue into a local pool and applies
// broadcast cancellations to the jobs it runs.
type Worker struct {
	Queue *queue.Queue
	Store jobs.Store
	Pool  *Pool
	// Wait is how long each dequeue blocks; zero uses queue.DefaultWait.
	Wait time.Duration
}

// Run consumes until ctx is cancelled. It does not wait for running jobs;
// call Pool.Shutdown for that.
func (w *Worker) Run(ctx context.Context) error {
	cancels, err := w.Queue.Cancellations(ctx)
	if err != nil {
		return err
	}
	go func() {
		for id := range cancels {
			w.Pool.Cancel(id)
		}
	}()

	log.Info("worker consuming job queue")
	for {
		id, ok, err := w.Queue.Dequeue(ctx, w.Wait)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.WithError(err).Warn("dequeue failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			continue
		}

		logger := log.WithField("job_id", id)
		job, err := w.Store.Get(ctx, id)
		if err != nil {
			logger.WithError(err).Error("failed to load queued job")
			continue
		}
		if job == nil {
			logger.Warn("queued job not found, skipping")
			continue
		}
		if job.Terminal() {
			logger.WithField("status", job.Status).Info("queued job already finished, skipping")
			continue
		}
		if w.cancelRequested(ctx, logger, job) {
			w.Pool.abandon(ctx, job, errCancelledInQueue)
			continue
		}
		if err := w.Pool.Submit(job); err != nil {
			if errors.Is(err, ErrPoolClosed) {
				return nil
			}
			logger.WithError(err).Warn("failed to submit job")
			continue
		}
		// A cancel published between the check above and Submit found no
		// running job to stop.
		if w.cancelRequested(ctx, logger, job) {
			w.Pool.Cancel(job.ID)
		}
	}
}

var errCancelledInQueue = fmt.Errorf("cancelled while queued: %w", context.Canceled)

func (w *Worker) cancelRequested(ctx context.Context, logger *log.Entry, job *jobs.Job) bool {
	ok, err := w.Queue.CancelRequested(ctx, job.ID)
	if err != nil {
		logger.WithError(err).Warn("failed to check for cancellation")
		return false
	}
	return ok
}
