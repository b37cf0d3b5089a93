package progress

import (
	"context"
	"sync"

	"github.com/rshade/rowprompt/internal/table"
)

// MemoryStore keeps identifiers in process memory. It is used in tests and
// for one-off runs that should not touch shared state.
type MemoryStore struct {
	mu  sync.Mutex
	ids []int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the recorded identifiers.
func (s *MemoryStore) Load(_ context.Context) (table.IDSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return table.NewIDSet(s.ids...), nil
}

// Record appends id.
func (s *MemoryStore) Record(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
	return nil
}

// Reset clears the store.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = nil
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// Entries returns every recorded identifier in append order, duplicates included.
func (s *MemoryStore) Entries() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.ids))
	copy(out, s.ids)
	return out
}
