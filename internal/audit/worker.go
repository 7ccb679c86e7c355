package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
)

const defaultQueueSize = 256

// Worker decouples auth operations from slow sinks. Append enqueues without
// blocking; Run drains the queue into the wrapped store. Events that do not
// fit in the queue are dropped and counted.
type Worker struct {
	store   Store
	inbox   chan Event
	logger  *slog.Logger
	dropped atomic.Int64
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithQueueSize sets the inbox capacity.
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.inbox = make(chan Event, n)
		}
	}
}

func NewWorker(store Store, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:  store,
		inbox:  make(chan Event, defaultQueueSize),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Append implements Store.
func (w *Worker) Append(ctx context.Context, event Event) error {
	select {
	case w.inbox <- event:
	default:
		w.dropped.Add(1)
		w.logger.WarnContext(ctx, "audit queue full, dropping event",
			"action", event.Action,
			"event_id", event.ID,
		)
	}
	return nil
}

// Dropped returns how many events were discarded because the queue was full.
func (w *Worker) Dropped() int64 {
	return w.dropped.Load()
}

// Run delivers queued events until ctx is cancelled, then flushes what is
// already queued. Sink failures are logged; the loop keeps going.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			w.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "failed to deliver audit event",
			"action", event.Action,
			"event_id", event.ID,
			"error", err,
		)
	}
}
