package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mkrogh/marketplace-auction/internal/clock"
	"github.com/mkrogh/marketplace-auction/internal/event"
)

// EventStore implements event.Store in memory.
type EventStore struct {
	mu     sync.RWMutex
	events []event.Event
	clock  clock.Clock
}

// NewEventStore returns an empty EventStore.
func NewEventStore(clk clock.Clock) *EventStore {
	return &EventStore{clock: clk}
}

func (s *EventStore) Append(_ context.Context, events ...event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		e.ID = uuid.NewString()
		e.CreatedAt = s.clock.Now().UTC()
		s.events = append(s.events, e)
	}
	return nil
}

func (s *EventStore) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []event.Event
	for _, e := range s.events {
		if e.AggregateID == aggregateID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *EventStore) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []event.Event
	for _, e := range s.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result, nil
}
