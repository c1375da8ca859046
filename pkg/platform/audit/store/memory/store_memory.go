package memory

import (
	"context"
	"sync"

	id "celebrate/pkg/domain"
	audit "celebrate/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.DonorID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.DonorID][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.DonorID][]audit.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.DonorID] = append(s.events[event.DonorID], event)
	return nil
}

func (s *InMemoryStore) ListByDonor(_ context.Context, donorID id.DonorID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[donorID]...), nil
}

// ListAll returns all audit events across all donors (admin-only operation)
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var allEvents []audit.Event
	for _, donorEvents := range s.events {
		allEvents = append(allEvents, donorEvents...)
	}
	return allEvents, nil
}
