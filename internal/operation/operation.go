// Package operation provides the domain model for async export operations. An
// Operation moves through a linear lifecycle:
//
//	pending → running → complete | failed.
//
// The store is the authoritative source of truth for operation state; HTTP
// handlers read and write exclusively through it.
package operation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of an operation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// ErrNotFound is returned when an operation id is unknown.
var ErrNotFound = errors.New("operation not found")

// Artefact is a named output produced by a completed operation, referenced by
// a signed URL valid for a bounded period.
type Artefact struct {
	Name      string    `json:"name"`
	SignedURL string    `json:"signed_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Progress reports how many photos of an export have been fully processed.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Operation represents a single async export job.
type Operation struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Album     string    `json:"album"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Strategy is "direct" or "archive", set once the export starts.
	Strategy string `json:"strategy,omitempty"`

	Progress Progress `json:"progress"`

	// Artefacts lists the objects produced by a completed operation. Empty
	// until the operation reaches StatusComplete.
	Artefacts []Artefact `json:"artefacts,omitempty"`

	// Processed counts the photos completed before a failure.
	Processed int `json:"processed,omitempty"`

	// Error is non-empty if the operation reached StatusFailed.
	Error string `json:"error,omitempty"`
}

// Store is the interface for persisting and retrieving operations. The
// in-memory implementation below is suitable for a single instance.
type Store interface {
	Create(album string, total int) (*Operation, error)
	Get(id string) (*Operation, error)
	MarkRunning(id, strategy string) error
	MarkProgress(id string, current, total int) error
	MarkComplete(id string, artefacts []Artefact) error
	MarkFailed(id string, processed int, err error) error
}

// MemoryStore is a concurrency-safe in-memory Store implementation.
type MemoryStore struct {
	mu  sync.RWMutex
	ops map[string]*Operation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ops: make(map[string]*Operation)}
}

func (s *MemoryStore) Create(album string, total int) (*Operation, error) {
	now := time.Now()
	op := &Operation{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		Album:     album,
		CreatedAt: now,
		UpdatedAt: now,
		Progress:  Progress{Total: total},
	}

	s.mu.Lock()
	s.ops[op.ID] = op
	s.mu.Unlock()

	copy := *op
	return &copy, nil
}

func (s *MemoryStore) Get(id string) (*Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.ops[id]
	if !ok {
		return nil, fmt.Errorf("operation %q: %w", id, ErrNotFound)
	}
	// Return a copy to prevent callers from mutating internal state.
	copy := *op
	copy.Artefacts = append([]Artefact(nil), op.Artefacts...)
	return &copy, nil
}

func (s *MemoryStore) MarkRunning(id, strategy string) error {
	return s.update(id, func(op *Operation) {
		op.Status = StatusRunning
		op.Strategy = strategy
	})
}

func (s *MemoryStore) MarkProgress(id string, current, total int) error {
	return s.update(id, func(op *Operation) {
		op.Progress = Progress{Current: current, Total: total}
	})
}

func (s *MemoryStore) MarkComplete(id string, artefacts []Artefact) error {
	return s.update(id, func(op *Operation) {
		op.Status = StatusComplete
		op.Artefacts = artefacts
		op.Processed = op.Progress.Total
	})
}

func (s *MemoryStore) MarkFailed(id string, processed int, err error) error {
	return s.update(id, func(op *Operation) {
		op.Status = StatusFailed
		op.Processed = processed
		op.Error = err.Error()
	})
}

func (s *MemoryStore) update(id string, fn func(*Operation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[id]
	if !ok {
		return fmt.Errorf("operation %q: %w", id, ErrNotFound)
	}
	fn(op)
	op.UpdatedAt = time.Now()
	return nil
}
