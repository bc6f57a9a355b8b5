package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Vartmor/CADLift-sub001/internal/jobs"
)

var (
	// ErrPoolClosed is returned by Submit after Shutdown.
	ErrPoolClosed = errors.New("worker pool is shut down")
	// ErrAlreadySubmitted is returned when a job is submitted twice while running.
	ErrAlreadySubmitted = errors.New("job already submitted")
)

// Runner executes one job to a terminal state.
type Runner interface {
	Run(ctx context.Context, job *jobs.Job) (*Result, error)
}

// Abandoner is implemented by runners that can record a job cancelled
// before it got a slot, without running it.
type Abandoner interface {
	Abandon(ctx context.Context, job *jobs.Job, cause error) error
}

// Pool runs each job in its own goroutine with at most N running at once.
// Every submitted job can be cancelled by id until it finishes.
type Pool struct {
	runner Runner
	sem    *semaphore.Weighted
	wg     sync.WaitGroup

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
	closed  bool

	// OnDone, when set, is called after each job with its outcome.
	OnDone func(job *jobs.Job, res *Result, err error)
}

// NewPool returns a pool running at most workers jobs concurrently.
func NewPool(runner Runner, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		runner:  runner,
		sem:     semaphore.NewWeighted(int64(workers)),
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}
}

// Submit schedules job. It returns immediately; the job waits for a free
// slot in its own goroutine.
func (p *Pool) Submit(job *jobs.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	if _, ok := p.cancels[job.ID]; ok {
		return ErrAlreadySubmitted
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancels[job.ID] = cancel
	p.wg.Add(1)
	go p.execute(ctx, cancel, job)
	return nil
}

func (p *Pool) execute(ctx context.Context, cancel context.CancelFunc, job *jobs.Job) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		delete(p.cancels, job.ID)
		p.mu.Unlock()
		cancel()
	}()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.abandon(ctx, job, err)
		return
	}
	defer p.sem.Release(1)

	res, err := p.runner.Run(ctx, job)
	if p.OnDone != nil {
		p.OnDone(job, res, err)
	}
}

// abandon finishes a job that never started. The runner records it as
// cancelled when it knows how.
func (p *Pool) abandon(ctx context.Context, job *jobs.Job, cause error) {
	if a, ok := p.runner.(Abandoner); ok {
		if err := a.Abandon(ctx, job, cause); err != nil {
			log.WithError(err).WithField("job_id", job.ID).Error("failed to record abandoned job")
		}
	}
	if p.OnDone != nil {
		p.OnDone(job, nil, cause)
	}
}

// Cancel cancels a queued or running job. It reports whether the job was
// known to the pool.
func (p *Pool) Cancel(jobID uuid.UUID) bool {
	p.mu.Lock()
	cancel, ok := p.cancels[jobID]
	p.mu.Unlock()
	if ok {
		log.WithField("job_id", jobID).Info("cancelling job")
		cancel()
	}
	return ok
}

// Running returns the number of submitted jobs that have not finished.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cancels)
}

// Wait blocks until every submitted job has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown stops accepting jobs and waits for the submitted ones. If ctx
// ends first, the remaining jobs are cancelled and awaited.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	p.mu.Lock()
	for _, cancel := range p.cancels {
		cancel()
	}
	p.mu.Unlock()
	<-done
	return ctx.Err()
}
