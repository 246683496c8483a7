package worker_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/ensemble/internal/adapters/mq/queue"
	worker "github.com/okian/ensemble/internal/adapters/mq/worker"
	model "github.com/okian/ensemble/internal/domain/model"
	logging "github.com/okian/ensemble/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init(logging.WithWriter(io.Discard))
}

type mockQueue struct {
	eventChan chan queue.Event
}

func newMockQueue() *mockQueue {
	return &mockQueue{eventChan: make(chan queue.Event, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Event {
	return mq.eventChan
}

type recordingWriter struct {
	mu      sync.Mutex
	written []queue.Event
	failAt  int
}

func (rw *recordingWriter) Write(_ context.Context, e queue.Event) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.failAt > 0 && len(rw.written)+1 == rw.failAt {
		return errors.New("broken pipe")
	}
	rw.written = append(rw.written, e)
	return nil
}

func (rw *recordingWriter) keys() []int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	out := make([]int, len(rw.written))
	for i, e := range rw.written {
		out[i] = e.KeyIndex
	}
	return out
}

func event(key int, kind model.Kind) queue.Event {
	return queue.Event{ClientID: "self", KeyIndex: key, Kind: kind}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		q := newMockQueue()
		w := &recordingWriter{}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		convey.Convey("When events are queued and the queue closes", func() {
			wk := worker.NewInMemoryWorker(q, w, worker.WithName("test-writer"))
			q.eventChan <- event(1, model.NoteOn)
			q.eventChan <- event(1, model.NoteOff)
			q.eventChan <- event(4, model.NoteOn)
			close(q.eventChan)
			wk.Run(ctx)

			convey.Convey("Then every event is written in order", func() {
				convey.So(w.keys(), convey.ShouldResemble, []int{1, 1, 4})
				convey.So(w.written[1].Kind, convey.ShouldEqual, model.NoteOff)
			})

			convey.Convey("And a later Shutdown reports it already stopped", func() {
				convey.So(errors.Is(wk.Shutdown(ctx), worker.ErrStopped), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a write fails", func() {
			w.failAt = 2
			var (
				mu     sync.Mutex
				failed error
			)
			wk := worker.NewInMemoryWorker(q, w, worker.OnFailure(func(err error) {
				mu.Lock()
				failed = err
				mu.Unlock()
			}))
			q.eventChan <- event(0, model.NoteOn)
			q.eventChan <- event(2, model.NoteOn)
			q.eventChan <- event(3, model.NoteOn)
			wk.Run(ctx)

			convey.Convey("Then the worker stops at the failure and reports it", func() {
				convey.So(w.keys(), convey.ShouldResemble, []int{0})
				mu.Lock()
				defer mu.Unlock()
				convey.So(failed, convey.ShouldNotBeNil)
				convey.So(failed.Error(), convey.ShouldContainSubstring, "broken pipe")
			})
		})

		convey.Convey("When the worker is shut down while idle", func() {
			wk := worker.NewInMemoryWorker(q, w)
			go wk.Run(ctx)

			sctx, scancel := context.WithTimeout(ctx, time.Second)
			defer scancel()
			err := wk.Shutdown(sctx)

			convey.Convey("Then it stops cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
				<-wk.Done()
			})
		})

		convey.Convey("When the context is cancelled", func() {
			wk := worker.NewInMemoryWorker(q, worker.WriterFunc(func(context.Context, queue.Event) error { return nil }))
			cancel()
			wk.Run(ctx)

			convey.Convey("Then Run returns", func() {
				select {
				case <-wk.Done():
					convey.So(true, convey.ShouldBeTrue)
				default:
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestWorkerWithRealQueue(t *testing.T) {
	convey.Convey("Given the in-memory queue feeding a worker", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		w := &recordingWriter{}
		wk := worker.NewInMemoryWorker(q, w)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		for i := 0; i < 13; i++ {
			q.Enqueue(ctx, event(i, model.NoteOn))
		}
		_ = q.Close()
		wk.Run(ctx)

		convey.Convey("Then all events arrive in order", func() {
			keys := w.keys()
			convey.So(len(keys), convey.ShouldEqual, 13)
			for i, k := range keys {
				convey.So(k, convey.ShouldEqual, i)
			}
		})
	})
}
