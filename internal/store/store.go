// Package store persists fitted model snapshots under unique names.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot exists under a name.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotExists is returned when a name is already taken.
	ErrSnapshotExists = errors.New("snapshot already exists")
)

// Store is the interface for snapshot storage backends.
//
// Snapshots returned by Get are shared with the store and must be treated
// as read-only.
type Store interface {
	// Put stores a snapshot under its name. Returns ErrSnapshotExists if
	// the name is already taken.
	Put(ctx context.Context, snap *Snapshot) error

	// Get retrieves a snapshot by name. Returns ErrSnapshotNotFound if absent.
	Get(ctx context.Context, name string) (*Snapshot, error)

	// List returns all snapshot names in lexical order.
	List(ctx context.Context) ([]string, error)

	// Delete removes a snapshot by name. No error if it doesn't exist.
	Delete(ctx context.Context, name string) error

	// Close closes the backend.
	Close() error
}

// MemoryStore is an in-memory snapshot store, used by tests and by services
// that rebuild their models at startup.
type MemoryStore struct {
	snapshots map[string]*Snapshot
	mu        sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]*Snapshot)}
}

// Put stores a snapshot under its name.
func (s *MemoryStore) Put(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[snap.Name]; ok {
		return ErrSnapshotExists
	}
	s.snapshots[snap.Name] = snap
	return nil
}

// Get retrieves a snapshot by name.
func (s *MemoryStore) Get(ctx context.Context, name string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[name]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return snap, nil
}

// List returns all snapshot names in lexical order.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.snapshots))
	for name := range s.snapshots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a snapshot by name.
func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, name)
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
