package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/messaging"
)

// PublishedEvent is one event captured by MockPublisher.
type PublishedEvent struct {
	RoutingKey string
	EventData  interface{}
	Timestamp  time.Time
	RawJSON    []byte
}

// MockPublisher records domain events in memory instead of sending them to
// RabbitMQ. Set Err to make every Publish fail.
type MockPublisher struct {
	mu     sync.RWMutex
	events []PublishedEvent
	Err    error
}

var _ messaging.PublisherInterface = (*MockPublisher)(nil)

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{events: make([]PublishedEvent, 0)}
}

// Publish stores the event after encoding it the way the real publisher does.
func (m *MockPublisher) Publish(ctx context.Context, routingKey string, eventData interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	raw, err := json.Marshal(eventData)
	if err != nil {
		return err
	}
	m.events = append(m.events, PublishedEvent{
		RoutingKey: routingKey,
		EventData:  eventData,
		Timestamp:  time.Now(),
		RawJSON:    raw,
	})
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// GetEventsByKey returns all events with the specified routing key
func (m *MockPublisher) GetEventsByKey(routingKey string) []PublishedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var filtered []PublishedEvent
	for _, event := range m.events {
		if event.RoutingKey == routingKey {
			filtered = append(filtered, event)
		}
	}
	return filtered
}

func (m *MockPublisher) GetEventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// GetLastEventByKey returns the most recent event with routingKey, or nil.
func (m *MockPublisher) GetLastEventByKey(routingKey string) *PublishedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].RoutingKey == routingKey {
			event := m.events[i]
			return &event
		}
	}
	return nil
}

// DecodeLastEvent unmarshals the wire form of the latest routingKey event
// into target.
func (m *MockPublisher) DecodeLastEvent(t *testing.T, routingKey string, target interface{}) {
	t.Helper()

	event := m.GetLastEventByKey(routingKey)
	if event == nil {
		t.Fatalf("No event with routing key '%s' was published", routingKey)
	}
	if err := json.Unmarshal(event.RawJSON, target); err != nil {
		t.Fatalf("Failed to decode event '%s': %v", routingKey, err)
	}
}

func (m *MockPublisher) AssertEventPublished(t *testing.T, routingKey string) {
	t.Helper()
	if len(m.GetEventsByKey(routingKey)) == 0 {
		t.Errorf("Expected event with routing key '%s' to be published, but found none", routingKey)
	}
}

func (m *MockPublisher) AssertEventNotPublished(t *testing.T, routingKey string) {
	t.Helper()
	if count := len(m.GetEventsByKey(routingKey)); count > 0 {
		t.Errorf("Expected no events with routing key '%s', but found %d", routingKey, count)
	}
}

// AssertEventCount asserts the exact number of events with the given routing key
func (m *MockPublisher) AssertEventCount(t *testing.T, routingKey string, expected int) {
	t.Helper()
	if count := len(m.GetEventsByKey(routingKey)); count != expected {
		t.Errorf("Expected %d events with routing key '%s', got %d", expected, routingKey, count)
	}
}
