package eventlogger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Worker persists audit events off the request path. Events are dropped
// with a warning when the buffer is full.
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
	w.wg.Go(func() {
		for {
			select {
			case <-w.ctx.Done():
				w.drain()
				return
			case event := <-w.eventCh:
				w.save(w.ctx, event)
			}
		}
	})
}

func (w *Worker) drain() {
	slog.Info("draining audit events before shutdown", "remaining_events", len(w.eventCh))
	for {
		select {
		case event := <-w.eventCh:
			w.save(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) save(ctx context.Context, event Event) {
	if err := w.logger.Save(ctx, event); err != nil {
		slog.Error("failed to save audit event", "error", err, "event_type", event.Type, "event_id", event.ID)
	}
}

func (w *Worker) Log(event Event) {
	select {
	case w.eventCh <- event:
	default:
		n := w.dropped.Add(1)
		slog.Warn("audit event channel full, dropping event", "event_type", event.Type, "event_id", event.ID, "dropped_total", n)
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (w *Worker) Dropped() int64 {
	return w.dropped.Load()
}

// Shutdown stops the worker once every buffered event has been saved.
// Log must not be called after Shutdown.
func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
}
