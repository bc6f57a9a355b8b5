// Package storage holds job inputs and exported artifacts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for a key that was never written.
var ErrNotFound = errors.New("object not found")

// Store is the blob collaborator. Put returns the key the object was stored under.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// KeyInput is where the raw input payload of a job lives.
func KeyInput(jobID uuid.UUID) string {
	return fmt.Sprintf("jobs/%s/input/image", jobID)
}

// KeyOutput is where the artifact of one export format lives.
func KeyOutput(jobID uuid.UUID, format string) string {
	return fmt.Sprintf("jobs/%s/output/%s", jobID, format)
}

// MemoryStore keeps objects in process.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]object
}

type object struct {
	data        []byte
	contentType string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]object)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: append([]byte(nil), data...), contentType: contentType}
	return key, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), o.data...), nil
}

// ContentType returns the content type recorded for key.
func (s *MemoryStore) ContentType(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[key].contentType
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// ContentTypeFor maps an export format to the content type used for storage
// and downloads.
func ContentTypeFor(format string) string {
	switch format {
	case "stl":
		return "model/stl"
	case "obj":
		return "model/obj"
	case "glb":
		return "model/gltf-binary"
	case "step":
		return "model/step"
	default:
		return "application/octet-stream"
	}
}
