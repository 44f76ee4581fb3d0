package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/recall/pkg/eventstream"
)

// MockPublisher is a test event publisher that records published events.
type MockPublisher struct {
	mu sync.Mutex

	// Events accumulates every published event.
	Events []*eventstream.IngestEvent

	// Fail causes PublishIngest to return an error.
	Fail bool

	// Closed is set once Close is called.
	Closed bool
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Events: make([]*eventstream.IngestEvent, 0)}
}

func (m *MockPublisher) PublishIngest(_ context.Context, event *eventstream.IngestEvent) error {
	if event == nil {
		return eventstream.ErrNilIngestEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail {
		return errors.New("publish unavailable")
	}

	m.Events = append(m.Events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Published returns a snapshot of the recorded events.
func (m *MockPublisher) Published() []*eventstream.IngestEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.IngestEvent{}, m.Events...)
}

// Ensure MockPublisher implements eventstream.Publisher
var _ eventstream.Publisher = (*MockPublisher)(nil)
