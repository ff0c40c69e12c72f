// Package store persists the shared loop state as a single JSON document.
// Writes go through a temp file and rename so a crash mid-write leaves the
// previous snapshot intact.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kilianp07/storageopt/core/control"
)

// FileStore implements control.Store on top of a JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// New creates a FileStore at the given path. The file is created on the
// first save.
func New(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the current snapshot. A missing file yields a zero snapshot.
func (s *FileStore) Load() (control.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) load() (control.Snapshot, error) {
	var snap control.Snapshot
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return snap, nil
		}
		return snap, fmt.Errorf("read snapshot: %w", err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return control.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// SaveDeviceState replaces the device section of the snapshot.
func (s *FileStore) SaveDeviceState(st control.DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.load()
	if err != nil {
		return err
	}
	snap.Device = st
	return s.write(snap)
}

// SavePriceState replaces the price section of the snapshot.
func (s *FileStore) SavePriceState(st control.PriceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.load()
	if err != nil {
		return err
	}
	snap.Prices = st
	return s.write(snap)
}

func (s *FileStore) write(snap control.Snapshot) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
