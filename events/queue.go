// ABOUTME: In-process event queue backed by a buffered channel
// ABOUTME: Drops events with a warning instead of blocking when consumers fall behind
package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Queue hands events to an in-process consumer through a bounded channel.
type Queue struct {
	log *zap.Logger
	ch  chan Event

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue holding up to size pending events.
func NewQueue(size int, log *zap.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{log: log, ch: make(chan Event, size)}
}

func (q *Queue) Emit(_ context.Context, e Event) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	select {
	case q.ch <- e:
	default:
		q.log.Warn("event queue full, dropping event",
			zap.String("kind", string(e.Kind)),
			zap.Int64("object_id", e.ObjectID),
		)
	}
}

// Events is the receive side of the queue. It is closed by Close.
func (q *Queue) Events() <-chan Event {
	return q.ch
}

// Run delivers queued events to handle until ctx is done or the queue closes.
func (q *Queue) Run(ctx context.Context, handle func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handle(e)
		}
	}
}

// Close stops accepting events. Pending events can still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
