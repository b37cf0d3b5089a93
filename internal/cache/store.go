package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// cacheFileExtension is the file extension used for cache entries.
const cacheFileExtension = ".json"

// Common cache errors.
var (
	ErrNotFound   = errors.New("cache entry not found")
	ErrExpired    = errors.New("cache entry expired")
	ErrInvalidKey = errors.New("cache key cannot be empty")
)

// FileStore keeps one JSON file per entry in a directory. Safe for
// concurrent use within a process.
type FileStore struct {
	directory string
	ttl       time.Duration

	mu sync.RWMutex
}

// NewFileStore creates the directory if needed and returns a store whose
// entries live for ttl.
func NewFileStore(directory string, ttl time.Duration) (*FileStore, error) {
	if directory == "" {
		return nil, errors.New("cache directory cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(directory, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{directory: directory, ttl: ttl}, nil
}

// Get returns the entry for key. Expired entries are removed and reported
// as ErrExpired.
func (s *FileStore) Get(key string) (*Entry, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	s.mu.RLock()
	filePath := s.keyToFilePath(key)
	data, err := os.ReadFile(filePath)
	s.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var entry Entry
	if err = json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	if entry.IsExpired() {
		s.mu.Lock()
		_ = os.Remove(filePath)
		s.mu.Unlock()
		return nil, ErrExpired
	}
	return &entry, nil
}

// Set stores response under key, replacing any previous entry.
func (s *FileStore) Set(key, model, response string) error {
	if key == "" {
		return ErrInvalidKey
	}

	entryData, err := json.MarshalIndent(NewEntry(key, model, response, s.ttl), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.keyToFilePath(key)

	// Write to temporary file first, then rename for atomicity
	tempPath := filePath + ".tmp"
	if err = os.WriteFile(tempPath, entryData, 0o600); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err = os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// Clear removes all cache entries and returns how many were removed.
func (s *FileStore) Clear() (int, error) {
	return s.removeWhere(func(string) bool { return true })
}

// CleanupExpired removes expired entries and returns how many were removed.
// Unreadable files are left in place.
func (s *FileStore) CleanupExpired() (int, error) {
	return s.removeWhere(func(path string) bool {
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		var entry Entry
		if err = json.Unmarshal(data, &entry); err != nil {
			return false
		}
		return entry.IsExpired()
	})
}

func (s *FileStore) removeWhere(match func(path string) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != cacheFileExtension {
			continue
		}
		filePath := filepath.Join(s.directory, entry.Name())
		if !match(filePath) {
			continue
		}
		if err = os.Remove(filePath); err != nil {
			return removed, fmt.Errorf("failed to remove cache file %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// Stats describes the cache directory contents.
type Stats struct {
	Entries int
	Bytes   int64
}

// Stats counts entries (including expired ones) and their total size.
func (s *FileStore) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var st Stats
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != cacheFileExtension {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}
		st.Entries++
		st.Bytes += info.Size()
	}
	return st, nil
}

// Directory returns the cache directory path.
func (s *FileStore) Directory() string {
	return s.directory
}

// TTL returns the lifetime of new entries.
func (s *FileStore) TTL() time.Duration {
	return s.ttl
}

// keyToFilePath converts a cache key to a file path. Keys are hex digests,
// so no sanitizing is needed.
func (s *FileStore) keyToFilePath(key string) string {
	return filepath.Join(s.directory, key+cacheFileExtension)
}
