package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rshade/rowprompt/internal/logging"
	"github.com/rshade/rowprompt/internal/table"
)

// fileEntry is one JSON line of the file store.
type fileEntry struct {
	RowID      int       `json:"row_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// FileStore persists identifiers as an append-only JSON-lines file.
//
// Each Record is a single O_APPEND write followed by fsync, so concurrent
// writers in this or other processes never interleave partial lines. Load
// and Reset take a lock file for cross-process coordination.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by path. An empty path selects
// DefaultPath.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		def, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = def
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) lockFilePath() string {
	return s.path + ".lock"
}

// Load reads every recorded identifier. A missing file yields an empty set.
// A torn final line, left by a crash mid-append, is skipped; any other
// unparsable line returns ErrStoreCorrupted.
func (s *FileStore) Load(ctx context.Context) (table.IDSet, error) {
	unlock, err := acquireFileLock(s.lockFilePath())
	if err != nil {
		return nil, fmt.Errorf("acquiring file lock: %w", err)
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(table.IDSet), nil
		}
		return nil, fmt.Errorf("reading progress file: %w", err)
	}

	ids := make(table.IDSet)
	lines := bytes.Split(data, []byte{'\n'})
	for i, raw := range lines {
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		var entry fileEntry
		if unmarshalErr := json.Unmarshal(line, &entry); unmarshalErr != nil {
			if i == len(lines)-1 {
				logging.FromContext(ctx).Warn().
					Str("component", "progress").
					Str("path", s.path).
					Msg("ignoring torn trailing progress entry")
				continue
			}
			return nil, fmt.Errorf("%w: %s line %d: %w", ErrStoreCorrupted, s.path, i+1, unmarshalErr)
		}
		ids.Add(entry.RowID)
	}
	return ids, nil
}

// Record appends id as one line.
func (s *FileStore) Record(_ context.Context, id int) error {
	line, err := json.Marshal(fileEntry{RowID: id, RecordedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshaling progress entry: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if mkdirErr := os.MkdirAll(filepath.Dir(s.path), 0o750); mkdirErr != nil {
		return fmt.Errorf("creating progress directory: %w", mkdirErr)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening progress file: %w", err)
	}
	if _, writeErr := f.Write(line); writeErr != nil {
		_ = f.Close()
		return fmt.Errorf("appending row %d: %w", id, writeErr)
	}
	if syncErr := f.Sync(); syncErr != nil {
		_ = f.Close()
		return fmt.Errorf("syncing progress file: %w", syncErr)
	}
	return f.Close()
}

// Reset deletes the backing file. Resetting an empty store is not an error.
func (s *FileStore) Reset(_ context.Context) error {
	unlock, err := acquireFileLock(s.lockFilePath())
	if err != nil {
		return fmt.Errorf("acquiring file lock: %w", err)
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if removeErr := os.Remove(s.path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		return fmt.Errorf("removing progress file: %w", removeErr)
	}
	return nil
}

// Close is a no-op; file handles are not held between calls.
func (s *FileStore) Close() error {
	return nil
}
