package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Event interface {
	ID() string
	Type() string
	StreamID() string
	Data() interface{}
	Timestamp() time.Time
	Version() int
}

type EventHandler interface {
	Handle(event Event) error
	CanHandle(eventType string) bool
}

// Publisher delivers events to interested parties. Callers treat delivery as
// fire-and-forget and only log a returned error.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type EventStore interface {
	Publisher
	AppendEvent(streamID string, event Event) error
	EventsOfType(eventType string) []Event
	Subscribe(eventTypes []string, handler EventHandler) error
}

type BaseEvent struct {
	EventID      string      `json:"id"`
	EventType    string      `json:"type"`
	Stream       string      `json:"stream"`
	EventData    interface{} `json:"data"`
	EventTime    time.Time   `json:"time"`
	EventVersion int         `json:"version"`
}

func (e BaseEvent) ID() string {
	return e.EventID
}

func (e BaseEvent) Type() string {
	return e.EventType
}

func (e BaseEvent) StreamID() string {
	return e.Stream
}

func (e BaseEvent) Data() interface{} {
	return e.EventData
}

func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

func (e BaseEvent) Version() int {
	return e.EventVersion
}

func NewEvent(eventType, streamID string, data interface{}) Event {
	return BaseEvent{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		Stream:       streamID,
		EventData:    data,
		EventTime:    time.Now(),
		EventVersion: 1,
	}
}

// MultiPublisher fans an event out to several publishers and returns the first error
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event Event) error {
	var firstErr error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LogPublisher writes every event to a logger at Debug level
type LogPublisher struct {
	Logger *zap.Logger
}

func (p LogPublisher) Publish(_ context.Context, event Event) error {
	p.Logger.Debug("event published",
		zap.String("event_type", event.Type()),
		zap.String("stream", event.StreamID()),
		zap.String("event_id", event.ID()),
		zap.Any("data", event.Data()))
	return nil
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
