// Package worker drains the notification queue and runs each fan-out.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/nebula/internal/adapters/mq/queue"
	"github.com/okian/nebula/pkg/logger"
	"github.com/okian/nebula/pkg/metrics"
)

const (
	defaultNotifyTimeout  = 30 * time.Second
	metricsUpdateInterval = 5 * time.Second
)

// Notifier delivers one notification to the push channel.
type Notifier interface {
	Notify(ctx context.Context, recipientHint string, payload any) bool
}

// Queue defines how workers receive notifications.
type Queue interface {
	Dequeue() <-chan queue.Notification
}

// InMemoryWorker runs fan-outs for notifications read off the queue.
type InMemoryWorker struct {
	queue    Queue
	notifier Notifier
	name     string
	timeout  time.Duration
	done     chan struct{}
	logger   logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, n Notifier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		notifier: n,
		name:     "worker",
		timeout:  defaultNotifyTimeout,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run processes notifications until the queue is closed and drained or ctx
// is cancelled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-items:
			if !ok {
				return
			}
			w.process(ctx, n)
		}
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) process(ctx context.Context, n queue.Notification) { //nolint:gocritic // hugeParam: received by value from the channel
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, "notification panicked",
				logger.String("recipient", n.Recipient),
				logger.Any("panic", r),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	delivered := w.notifier.Notify(ctx, n.Recipient, n.Payload)
	w.logger.Debug(ctx, "notification processed",
		logger.String("recipient", n.Recipient),
		logger.Bool("delivered", delivered),
		logger.Duration("took", time.Since(start)),
	)
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers    []*InMemoryWorker
	queue      Queue
	workerOpts []Option
	stop       chan struct{}
	processed  atomic.Int64
	logger     logger.Logger
}

// NewPool creates workerCount workers. A count below one defaults to the
// number of CPUs.
func NewPool(workerCount int, q Queue, n Notifier, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("worker-pool")
	}

	counted := countingNotifier{next: n, count: &p.processed}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithLogger(p.logger), WithName("worker-" + strconv.Itoa(i))}, p.workerOpts...)
		p.workers[i] = NewInMemoryWorker(q, counted, wopts...)
	}
	return p
}

// Start launches every worker and the queue-size reporter.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.reportQueueSize(ctx)
}

// Processed returns how many notifications the pool has handled.
func (p *Pool) Processed() int64 {
	return p.processed.Load()
}

func (p *Pool) reportQueueSize(ctx context.Context) {
	sized, ok := p.queue.(interface{ Len() int })
	if !ok {
		return
	}
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			metrics.UpdateNotifyQueueSize(sized.Len())
		}
	}
}

// Shutdown closes the queue, then waits for workers to drain what is left.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	close(p.stop)

	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("shutdown timed out: %w", ctx.Err())
		}
	}
	p.logger.Info(ctx, "worker pool stopped", logger.Int("processed", int(p.processed.Load())))
	return nil
}

type countingNotifier struct {
	next  Notifier
	count *atomic.Int64
}

func (c countingNotifier) Notify(ctx context.Context, recipientHint string, payload any) bool {
	defer c.count.Add(1)
	return c.next.Notify(ctx, recipientHint, payload)
}
