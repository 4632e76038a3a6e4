package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/opaque/principal/pkg/encrypt"
)

// FileStore implements [Store] on the local filesystem. Each snapshot is one
// file under the base directory; writes go through a temp file and a rename
// so a crash never leaves a half-written snapshot behind.
//
// With a sealer configured, payloads are encrypted at rest and bound to
// their snapshot name, so a sealed file renamed on disk fails to open.
type FileStore struct {
	dir    string
	sealer encrypt.Encryptor // nil for plaintext snapshots

	mu sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-backed snapshot store rooted at dir,
// creating the directory if needed. Snapshots are stored as plain JSON.
func NewFileStore(dir string) (*FileStore, error) {
	return newFileStore(dir, nil)
}

// NewSealedFileStore creates a file-backed snapshot store whose payloads are
// sealed with the given encryptor before hitting disk.
func NewSealedFileStore(dir string, sealer encrypt.Encryptor) (*FileStore, error) {
	if sealer == nil {
		return nil, fmt.Errorf("store: sealed store requires an encryptor")
	}
	return newFileStore(dir, sealer)
}

func newFileStore(dir string, sealer encrypt.Encryptor) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: failed to create snapshot directory: %w", err)
	}
	return &FileStore{dir: dir, sealer: sealer}, nil
}

// ext returns the filename extension for the store's mode. Sealed and plain
// snapshots never mix within one directory listing.
func (s *FileStore) ext() string {
	if s.sealer != nil {
		return ".sealed"
	}
	return ".json"
}

// path returns the file path for a snapshot name, with separators and
// parent references stripped to keep names inside the base directory.
func (s *FileStore) path(name string) string {
	safe := strings.ReplaceAll(name, "/", "_")
	safe = strings.ReplaceAll(safe, "\\", "_")
	safe = strings.ReplaceAll(safe, "..", "_")
	return filepath.Join(s.dir, safe+s.ext())
}

// Put stores a snapshot to disk.
func (s *FileStore) Put(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(snap.Name)
	if _, err := os.Stat(path); err == nil {
		return ErrSnapshotExists
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("store: failed to marshal snapshot: %w", err)
	}

	if s.sealer != nil {
		data, err = s.sealer.EncryptWithName(data, snap.Name)
		if err != nil {
			return fmt.Errorf("store: failed to seal snapshot: %w", err)
		}
	}

	tmp, err := os.CreateTemp(s.dir, "snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("store: failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: failed to commit snapshot: %w", err)
	}
	return nil
}

// Get retrieves a snapshot from disk.
func (s *FileStore) Get(ctx context.Context, name string) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to read snapshot: %w", err)
	}

	if s.sealer != nil {
		data, err = s.sealer.DecryptWithName(data, name)
		if err != nil {
			return nil, fmt.Errorf("store: failed to open sealed snapshot %q: %w", name, err)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("store: failed to parse snapshot %q: %w", name, err)
	}
	return &snap, nil
}

// List returns all snapshot names in lexical order.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list snapshots: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(entry.Name(), s.ext()); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a snapshot file.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: failed to delete snapshot: %w", err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
