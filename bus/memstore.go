package bus

import (
	"context"
	"sync"
)

// MemStoreConfig configures an in-memory event store.
type MemStoreConfig struct {
	// MaxEvents caps the number of retained events (default: 10000).
	// The oldest events are discarded once the cap is reached.
	MaxEvents int
}

// MemStore is an in-memory event store implementation.
type MemStore struct {
	mu        sync.RWMutex
	events    []Event
	nextSeq   uint64
	maxEvents int
}

// NewMemStore creates a new in-memory event store.
func NewMemStore(config MemStoreConfig) *MemStore {
	maxEvents := config.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 10000
	}
	return &MemStore{
		nextSeq:   1,
		maxEvents: maxEvents,
	}
}

// Append stores an event, assigning it the next sequence number.
func (s *MemStore) Append(ctx context.Context, event Event) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event.Seq = s.nextSeq
	s.nextSeq++
	s.events = append(s.events, event)

	if len(s.events) > s.maxEvents {
		trimmed := make([]Event, len(s.events)-1)
		copy(trimmed, s.events[1:])
		s.events = trimmed
	}
	return event, nil
}

// List returns events for a user with Seq greater than afterSeq.
func (s *MemStore) List(ctx context.Context, userID string, afterSeq uint64, limit int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, evt := range s.events {
		if evt.Seq <= afterSeq {
			continue
		}
		if userID != "" && evt.UserID != userID {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() error {
	return nil
}

var _ EventStore = (*MemStore)(nil)
