// Package worker drains the outbound queue onto a connection.
//
// A single worker per connection keeps events in enqueue order. The first
// write failure stops the worker and is handed to the failure callback;
// remaining events are not retried.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/ensemble/internal/adapters/mq/queue"
	"github.com/okian/ensemble/pkg/logger"
	"github.com/okian/ensemble/pkg/metrics"
)

// ErrStopped is returned by Shutdown after the worker already stopped.
var ErrStopped = errors.New("worker stopped")

// Event abstracts what workers read off the queue.
type Event = queue.Event

// Writer puts one event on the wire.
type Writer interface {
	Write(ctx context.Context, e Event) error
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, e Event) error

// Write implements Writer.
func (f WriterFunc) Write(ctx context.Context, e Event) error { return f(ctx, e) }

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker drains a queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, the queue closes,
	// or a write fails.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for it to finish.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for one connection.
type InMemoryWorker struct {
	queue     Queue
	writer    Writer
	name      string
	onFailure func(error)

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, w Writer, opts ...Option) *InMemoryWorker {
	wk := &InMemoryWorker{
		queue:     q,
		writer:    w,
		name:      "writer",
		onFailure: func(error) {},
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(wk)
	}

	if wk.logger == nil {
		wk.logger = logger.Get().Named(wk.name)
	}

	return wk
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	metrics.UpdateWorkerActiveCount(1)
	defer metrics.UpdateWorkerActiveCount(0)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := w.process(ctx, event); err != nil {
				w.logger.Error(ctx, "write failed, stopping writer", logger.Error(err))
				w.onFailure(err)
				return
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return ErrStopped
	default:
	}
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, event Event) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.writer.Write(ctx, event); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "write_error")
		return fmt.Errorf("write key %d %s: %w", event.KeyIndex, event.Kind, err)
	}
	return nil
}
