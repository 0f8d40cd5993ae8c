package channel

import (
	"context"
	"sync"
)

// Sink receives events from a running job.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Queue is a buffered in-process sink. Events emitted after Close are
// dropped.
type Queue struct {
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a queue holding up to size undelivered events.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{ch: make(chan Event, size), done: make(chan struct{})}
}

// Emit enqueues e, blocking while the buffer is full and the queue is open.
func (q *Queue) Emit(e Event) {
	select {
	case <-q.done:
		return
	default:
	}
	select {
	case q.ch <- e:
	case <-q.done:
	}
}

// Events returns the receive side of the queue.
func (q *Queue) Events() <-chan Event {
	return q.ch
}

// Close stops accepting events.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// WaitTerminal reads events until the job's terminal event arrives, the queue
// closes or ctx is done. Progress events are passed to onProgress when set.
func (q *Queue) WaitTerminal(ctx context.Context, onProgress func(Event)) (Event, bool) {
	for {
		select {
		case <-ctx.Done():
			return Event{}, false
		case <-q.done:
			return Event{}, false
		case e := <-q.ch:
			if e.Terminal() {
				return e, true
			}
			if onProgress != nil {
				onProgress(e)
			}
		}
	}
}
