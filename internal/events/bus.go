// Package events fans out run notifications to in-process subscribers such
// as the websocket stream.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType names an event.
type EventType string

const (
	RebalanceStarted   EventType = "rebalance_started"
	RebalancePeriod    EventType = "rebalance_period"
	RebalanceCompleted EventType = "rebalance_completed"
	FrontierRefreshed  EventType = "frontier_refreshed"
)

// AllTypes lists every event type the bus carries.
func AllTypes() []EventType {
	return []EventType{RebalanceStarted, RebalancePeriod, RebalanceCompleted, FrontierRefreshed}
}

// Known reports whether t is one of AllTypes.
func Known(t EventType) bool {
	for _, k := range AllTypes() {
		if k == t {
			return true
		}
	}
	return false
}

// Event is what subscribers receive.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
}

// Handler receives published events. Handlers run on the publisher's
// goroutine and must not block.
type Handler func(*Event)

// Bus is a synchronous publish/subscribe hub.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[uint64]Handler
	nextID   uint64
	log      zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType]map[uint64]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers h for the given event type and returns a function
// that removes it.
func (b *Bus) Subscribe(eventType EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[uint64]Handler)
	}
	b.handlers[eventType][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[eventType], id)
	}
}

// Publish delivers data to every subscriber of its event type.
func (b *Bus) Publish(data EventData) {
	event := &Event{
		Type:      data.EventType(),
		Timestamp: time.Now(),
		Data:      data,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type]))
	for _, h := range b.handlers[event.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(event.Type)).
		Int("subscribers", len(handlers)).
		Msg("Publishing event")

	for _, h := range handlers {
		h(event)
	}
}

// Subscribers returns the number of handlers registered for eventType.
func (b *Bus) Subscribers(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
