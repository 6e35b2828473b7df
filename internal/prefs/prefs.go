// Package prefs is the persistent preference store collaborator: a tiny
// key-value store scoped by widget instance, used for remembering the last
// selected view across reloads.
package prefs

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store is the preference store contract.
type Store interface {
	Get(instanceID, key string) (string, bool)
	Set(instanceID, key, value string) error
	Remove(instanceID, key string) error
}

// MemoryStore keeps preferences in memory. Used in tests and as the default
// when no persistent path is configured.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]map[string]string)}
}

func (s *MemoryStore) Get(instanceID, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[instanceID][key]
	return v, ok
}

func (s *MemoryStore) Set(instanceID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m[instanceID] == nil {
		s.m[instanceID] = make(map[string]string)
	}
	s.m[instanceID][key] = value
	return nil
}

func (s *MemoryStore) Remove(instanceID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m[instanceID], key)
	return nil
}

// FileStore persists preferences as a single JSON file, written atomically
// (temp file + rename) with 0600 permissions.
type FileStore struct {
	mu   sync.Mutex
	path string
	m    map[string]map[string]string
}

// NewFileStore loads (or lazily creates) the store at path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("prefs path is empty")
	}
	s := &FileStore{path: path, m: make(map[string]map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &s.m); err != nil {
		return nil, err
	}
	if s.m == nil {
		s.m = make(map[string]map[string]string)
	}
	return s, nil
}

func (s *FileStore) Get(instanceID, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[instanceID][key]
	return v, ok
}

func (s *FileStore) Set(instanceID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m[instanceID] == nil {
		s.m[instanceID] = make(map[string]string)
	}
	s.m[instanceID][key] = value
	return s.flushLocked()
}

func (s *FileStore) Remove(instanceID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[instanceID][key]; !ok {
		return nil
	}
	delete(s.m[instanceID], key)
	if len(s.m[instanceID]) == 0 {
		delete(s.m, instanceID)
	}
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.m, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calwidget-prefs-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}
