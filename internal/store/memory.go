package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MemoryStore is an in-process Store that honours expiry times on read
type MemoryStore struct {
	now func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		now:     now,
		entries: make(map[string]Entry),
	}
}

func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false
	}
	if !e.Expires.IsZero() && !m.now().Before(e.Expires) {
		delete(m.entries, key)
		return "", false
	}
	return e.Value, true
}

func (m *MemoryStore) Save(entries ...Entry) error {
	if err := validateEntries(entries); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		m.entries[e.Key] = e
	}
	return nil
}

func (m *MemoryStore) Delete(keys ...string) error {
	if err := validateKeys(keys); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryStore) snapshot() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	result := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if !e.Expires.IsZero() && !now.Before(e.Expires) {
			continue
		}
		result = append(result, e)
	}
	return result
}

// FileStore is a MemoryStore whose contents are mirrored to a JSON file after every
// write, so that command-line tools can keep a guest identity across runs
type FileStore struct {
	path string
	mem  *MemoryStore

	mu sync.Mutex
}

type fileEntry struct {
	Key     string    `json:"key"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

// OpenFileStore loads the store at path, treating a missing file as empty
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		mem:  NewMemoryStore(),
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	var stored []fileEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode store file %s: %w", path, err)
	}
	for _, fe := range stored {
		if err := s.mem.Save(Entry{Key: fe.Key, Value: fe.Value, Expires: fe.Expires}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FileStore) Get(key string) (string, bool) {
	return s.mem.Get(key)
}

func (s *FileStore) Save(entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mem.Save(entries...); err != nil {
		return err
	}
	return s.flush()
}

func (s *FileStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mem.Delete(keys...); err != nil {
		return err
	}
	return s.flush()
}

// flush rewrites the whole file via a temp file + rename so a crash never leaves a
// half-written store behind
func (s *FileStore) flush() error {
	entries := s.mem.snapshot()
	stored := make([]fileEntry, 0, len(entries))
	for _, e := range entries {
		stored = append(stored, fileEntry{Key: e.Key, Value: e.Value, Expires: e.Expires})
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*FileStore)(nil)
