// Package queue holds detached high-score notifications until a worker picks
// them up.
//
// The queue is bounded. A full queue refuses the notification instead of
// blocking the submitter.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/nebula/internal/domain/model"
	"github.com/okian/nebula/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Notification is the payload flowing through the queue.
type Notification = model.Notification

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds n to the queue. It never blocks; a non-nil error means
	// the notification was dropped.
	Enqueue(ctx context.Context, n Notification) error

	// Dequeue returns the channel workers receive from. It is closed once the
	// queue is closed and drained.
	Dequeue() <-chan Notification

	// Len returns the current number of queued notifications.
	Len() int

	// Close stops accepting notifications. Pending ones stay receivable.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Notification
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Notification, q.capacity)
	metrics.UpdateNotifyQueueSize(0)
	return q
}

// Enqueue adds a notification to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, n Notification) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordNotificationDropped("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordNotificationDropped("context_cancelled")
		return fmt.Errorf("enqueue: %w", err)
	}

	select {
	case q.items <- n:
		metrics.RecordNotificationEnqueued()
		metrics.UpdateNotifyQueueSize(len(q.items))
		return nil
	default:
		metrics.RecordNotificationDropped("queue_full")
		return ErrFull
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue) Dequeue() <-chan Notification {
	return q.items
}

// Len returns the current number of queued notifications.
func (q *InMemoryQueue) Len() int {
	size := len(q.items)
	metrics.UpdateNotifyQueueSize(size)
	return size
}

// Close stops the queue. Calling it twice is a no-op.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
