// Package settings provides the persisted key-value store the GUI writes user
// settings into (translation target language, API key). Values are arbitrary
// JSON, so readers must check the type of what they get back.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"pdf-translator/internal/logger"
)

const (
	// KeyTranslateTo holds the target language, e.g. "French" or "fr"
	KeyTranslateTo = "TRANSLATE_TO"
	// KeyOpenAIAPIKey holds the bearer credential for the translation endpoint
	KeyOpenAIAPIKey = "OPENAI_API_KEY"
)

// Store is a JSON-file backed key-value store, safe for concurrent use.
type Store struct {
	filePath string
	values   map[string]interface{}
	mu       sync.RWMutex
}

// NewStore opens the store at filePath. A missing file yields an empty store;
// a malformed one yields an empty store and the decode error.
func NewStore(filePath string) (*Store, error) {
	s := &Store{
		filePath: filePath,
		values:   map[string]interface{}{},
	}
	if err := s.Load(); err != nil {
		logger.Warn("settings store unreadable, starting empty",
			logger.String("path", filePath), logger.Err(err))
		return s, err
	}
	return s, nil
}

// NewMemoryStore returns a store that is never written to disk.
func NewMemoryStore(values map[string]interface{}) *Store {
	s := &Store{values: map[string]interface{}{}}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Load re-reads the store from disk, replacing in-memory values.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filePath == "" {
		return nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.values = map[string]interface{}{}
			return nil
		}
		return err
	}

	values := map[string]interface{}{}
	if err := json.Unmarshal(data, &values); err != nil {
		s.values = map[string]interface{}{}
		return err
	}
	s.values = values
	return nil
}

// Save writes the store to disk.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.values, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if s.filePath == "" {
		return nil
	}

	if dir := filepath.Dir(s.filePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.filePath, data, 0600)
}

// Get returns the raw value under key and whether it was present.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key and saves the store.
func (s *Store) Set(key string, value interface{}) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	return s.Save()
}

// SetMany stores every entry of values and saves once.
func (s *Store) SetMany(values map[string]interface{}) error {
	s.mu.Lock()
	for k, v := range values {
		s.values[k] = v
	}
	s.mu.Unlock()

	return s.Save()
}

// Delete removes key and saves the store.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()

	return s.Save()
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetFilePath returns the settings file path
func (s *Store) GetFilePath() string {
	return s.filePath
}
