package eventlogger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu     sync.Mutex
	saved  []Event
	failOn string
}

func (l *recordingLogger) Save(_ context.Context, e Event) error {
	if e.Type == l.failOn {
		return errors.New("boom")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.saved = append(l.saved, e)
	return nil
}

func (l *recordingLogger) GetByType(_ context.Context, eventType string, limit int) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.saved {
		if e.Type == eventType && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestWorker_SavesEverythingBeforeShutdown(t *testing.T) {
	store := &recordingLogger{}
	w := NewWorker(store, 100)
	w.Start()

	for i := 0; i < 50; i++ {
		w.Log(NewEvent(WithType("payment.recorded")))
	}
	w.Shutdown()

	events, err := store.GetByType(context.Background(), "payment.recorded", 100)
	require.NoError(t, err)
	assert.Len(t, events, 50)
	assert.Zero(t, w.Dropped())
}

func TestWorker_DropsWhenBufferFull(t *testing.T) {
	store := &recordingLogger{}
	w := NewWorker(store, 1)

	// Not started, so nothing drains the buffer.
	w.Log(NewEvent(WithType("a")))
	w.Log(NewEvent(WithType("b")))
	w.Log(NewEvent(WithType("c")))
	assert.Equal(t, int64(2), w.Dropped())

	w.Start()
	w.Shutdown()
	assert.Len(t, store.saved, 1)
}

func TestWorker_SaveErrorDoesNotStopWorker(t *testing.T) {
	store := &recordingLogger{failOn: "bad"}
	w := NewWorker(store, 10)
	w.Start()

	w.Log(NewEvent(WithType("bad")))
	w.Log(NewEvent(WithType("good")))
	w.Shutdown()

	require.Len(t, store.saved, 1)
	assert.Equal(t, "good", store.saved[0].Type)
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(
		WithType("event.created"),
		WithData(map[string]string{"title": "dinner"}),
		WithMetadata(map[string]string{"source": "api"}),
	)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "event.created", e.Type)
	assert.Equal(t, map[string]string{"title": "dinner"}, e.Data)
	assert.Equal(t, "api", e.Metadata["source"])
	assert.False(t, e.CreatedAt.IsZero())
}

func TestMemoryEventLogger_NewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventLogger()

	for _, title := range []string{"first", "second", "third"} {
		require.NoError(t, store.Save(ctx, NewEvent(WithType("event.created"), WithData(title))))
	}
	require.NoError(t, store.Save(ctx, NewEvent(WithType("payment.recorded"))))

	events, err := store.GetByType(ctx, "event.created", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "third", events[0].Data)
	assert.Equal(t, "second", events[1].Data)

	events, err = store.GetByType(ctx, "entry.deleted", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
