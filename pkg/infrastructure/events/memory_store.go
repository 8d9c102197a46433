package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// InMemoryEventStore keeps published events per stream, numbering them within
// their stream, and notifies subscribers asynchronously
type InMemoryEventStore struct {
	versions    map[string]int
	subscribers map[string][]EventHandler
	mutex       sync.RWMutex
	allEvents   []Event
	logger      *zap.Logger
}

var _ EventStore = (*InMemoryEventStore)(nil)

func NewInMemoryEventStore(logger *zap.Logger) *InMemoryEventStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventStore{
		versions:    make(map[string]int),
		subscribers: make(map[string][]EventHandler),
		allEvents:   make([]Event, 0),
		logger:      logger,
	}
}

// Publish appends the event to its own stream
func (s *InMemoryEventStore) Publish(_ context.Context, event Event) error {
	return s.AppendEvent(event.StreamID(), event)
}

func (s *InMemoryEventStore) AppendEvent(streamID string, event Event) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.versions[streamID]++
	eventWithVersion := BaseEvent{
		EventID:      event.ID(),
		EventType:    event.Type(),
		Stream:       streamID,
		EventData:    event.Data(),
		EventTime:    event.Timestamp(),
		EventVersion: s.versions[streamID],
	}
	s.allEvents = append(s.allEvents, eventWithVersion)

	go s.notifySubscribers(eventWithVersion)

	return nil
}

// EventsOfType returns every stored event of the given type in append order
func (s *InMemoryEventStore) EventsOfType(eventType string) []Event {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []Event
	for _, e := range s.allEvents {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (s *InMemoryEventStore) Subscribe(eventTypes []string, handler EventHandler) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, eventType := range eventTypes {
		s.subscribers[eventType] = append(s.subscribers[eventType], handler)
	}

	return nil
}

func (s *InMemoryEventStore) notifySubscribers(event Event) {
	s.mutex.RLock()
	handlers := append([]EventHandler(nil), s.subscribers[event.Type()]...)
	s.mutex.RUnlock()

	for _, handler := range handlers {
		if handler.CanHandle(event.Type()) {
			go func(h EventHandler, e Event) {
				if err := h.Handle(e); err != nil {
					s.logger.Warn("event handler failed",
						zap.String("event_type", e.Type()),
						zap.String("event_id", e.ID()),
						zap.Error(err))
				}
			}(handler, event)
		}
	}
}
