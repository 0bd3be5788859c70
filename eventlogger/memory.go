package eventlogger

import (
	"context"
	"sync"
)

// memoryEventLogger keeps events in process for `serve --memory`.
type memoryEventLogger struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryEventLogger() *memoryEventLogger {
	return &memoryEventLogger{}
}

func (m *memoryEventLogger) Save(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// GetByType matches the SQL logger: newest first, at most limit events.
func (m *memoryEventLogger) GetByType(_ context.Context, eventType string, limit int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]Event, 0)
	for i := len(m.events) - 1; i >= 0 && len(events) < limit; i-- {
		if m.events[i].Type == eventType {
			events = append(events, m.events[i])
		}
	}
	return events, nil
}
