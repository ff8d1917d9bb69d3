package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "zimmet/pkg/platform/audit"
)

// DefaultCapacity bounds unpublished entries kept when no publisher drains the store.
const DefaultCapacity = 10_000

// InMemoryStore is an outbox for single-process deployments and tests.
type InMemoryStore struct {
	mu       sync.Mutex
	entries  []audit.OutboxEntry
	capacity int
	now      func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{capacity: DefaultCapacity, now: time.Now}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	entry, err := audit.NewEntry(event, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	if over := len(s.entries) - s.capacity; over > 0 {
		s.entries = append([]audit.OutboxEntry(nil), s.entries[over:]...)
	}
	return nil
}

func (s *InMemoryStore) FetchUnpublished(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(limit, len(s.entries))
	return append([]audit.OutboxEntry(nil), s.entries[:n]...), nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, _ time.Time) error {
	done := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		done[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if _, ok := done[e.ID]; !ok {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

// Pending returns a copy of unpublished entries, oldest first.
func (s *InMemoryStore) Pending() []audit.OutboxEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.OutboxEntry(nil), s.entries...)
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}
