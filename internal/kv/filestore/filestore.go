// Package filestore is a kv.Store persisted as a single JSON document on disk.
// Every write rewrites and fsyncs the whole file.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/greenscreen-pictures/kiosk/internal/kv"
)

type snapshot struct {
	Version   int               `json:"version"`
	Values    map[string]string `json:"values"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store keeps every key in memory and mirrors it to a file.
type Store struct {
	mu   sync.RWMutex
	file *os.File
	snap *snapshot
	path string
}

// Open opens (or creates) the snapshot file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open store file: %w", err)
	}
	s := &Store{file: f, path: path}
	if err := s.load(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("load store file: %w", err)
	}
	return s, nil
}

// Close closes the underlying file.
func (s *Store) Close() error { return s.file.Close() }

func (s *Store) load() error {
	info, err := s.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		s.snap = &snapshot{Version: 1, Values: map[string]string{}, UpdatedAt: time.Now()}
		return s.flushLocked(s.snap)
	}
	var snap snapshot
	if err := json.NewDecoder(s.file).Decode(&snap); err != nil {
		return err
	}
	if snap.Values == nil {
		snap.Values = map[string]string{}
	}
	s.snap = &snap
	return nil
}

func (s *Store) flushLocked(snap *snapshot) error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	enc := json.NewEncoder(s.file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return err
	}
	// truncate in case new content is shorter
	pos, _ := s.file.Seek(0, io.SeekCurrent)
	if err := s.file.Truncate(pos); err != nil {
		return err
	}
	return s.file.Sync()
}

// withWrite applies fn to a copy of the snapshot and swaps it in only once the
// copy is on disk, so a failed flush leaves reads unchanged.
func (s *Store) withWrite(ctx context.Context, fn func(*snapshot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	next := &snapshot{
		Version:   s.snap.Version,
		Values:    maps.Clone(s.snap.Values),
		UpdatedAt: time.Now(),
	}
	fn(next)
	if err := s.flushLocked(next); err != nil {
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	s.snap = next
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.snap.Values[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return []byte(v), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.withWrite(ctx, func(snap *snapshot) {
		snap.Values[key] = string(value)
	})
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return s.withWrite(ctx, func(snap *snapshot) {
		delete(snap.Values, key)
	})
}
