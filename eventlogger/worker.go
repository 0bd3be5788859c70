package eventlogger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Worker saves events in the background. Log never blocks the caller: when
// the buffer is full the event is dropped and counted.
type Worker struct {
	eventCh chan Event
	logger  EventLogger
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	dropped atomic.Int64
}

func NewWorker(logger EventLogger, bufferSize int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		eventCh: make(chan Event, bufferSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.ctx.Done():
				slog.Info("draining audit events before shutdown", "remaining_events", len(w.eventCh))
				for len(w.eventCh) > 0 {
					w.save(<-w.eventCh)
				}
				return
			case event := <-w.eventCh:
				w.save(event)
			}
		}
	}()
}

// save runs detached from the worker context so a shutdown in progress
// doesn't abort writes that were already accepted.
func (w *Worker) save(event Event) {
	if err := w.logger.Save(context.Background(), event); err != nil {
		slog.Error("failed to save audit event", "error", err, "event_type", event.Type)
	}
}

func (w *Worker) Log(event Event) {
	select {
	case w.eventCh <- event:
	default:
		w.dropped.Add(1)
		slog.Warn("audit channel full, dropping event", "event_type", event.Type)
	}
}

// Dropped is the number of events discarded because the buffer was full.
func (w *Worker) Dropped() int64 {
	return w.dropped.Load()
}

// Shutdown stops the worker after saving whatever is still buffered.
func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
}
