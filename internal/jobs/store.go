package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Update for a job that was never created.
var ErrNotFound = errors.New("job not found")

// Store persists job records. Get returns (nil, nil) for an unknown id.
type Store interface {
	Create(ctx context.Context, job *Job) error
	Update(ctx context.Context, job *Job) error
	Get(ctx context.Context, id uuid.UUID) (*Job, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Job, error)
}

// MemoryStore keeps jobs in process. It is used by the CLI and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[uuid.UUID]*Job)}
}

func (s *MemoryStore) Create(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; !exists {
		return ErrNotFound
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return j.Clone(), nil
}

// ListByUser returns the user's jobs, newest first. A non-positive limit returns all.
func (s *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*Job, error) {
	s.mu.RLock()
	var out []*Job
	for _, j := range s.jobs {
		if j.UserID == userID {
			out = append(out, j.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID.String() > out[b].ID.String()
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
