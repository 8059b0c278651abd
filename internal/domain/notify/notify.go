// Package notify pushes a payload to the sockets in the connection registry.
//
// A Fanout enumerates the registry, delivers to every selected connection
// concurrently and waits for all attempts. Connections the push channel
// reports as gone are evicted; other failures are logged and left alone.
// Nothing is retried.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/nebula/internal/domain/model"
	"github.com/okian/nebula/pkg/logger"
	"github.com/okian/nebula/pkg/metrics"
)

const defaultSendTimeout = 5 * time.Second

// Registry is the view of the connection registry a fan-out needs.
type Registry interface {
	ListAll(ctx context.Context) ([]model.ConnectionRecord, error)
	Evict(ctx context.Context, connectionID string) error
}

// Sender pushes an encoded payload to one connection. It returns ErrGone when
// the connection is unknown or closed.
type Sender interface {
	Send(ctx context.Context, connectionID string, payload []byte) error
}

// Fanout delivers notifications to registered connections.
type Fanout struct {
	registry    Registry
	sender      Sender
	targeted    bool
	sendTimeout time.Duration
	logger      logger.Logger
}

// New builds a Fanout over registry and sender.
func New(registry Registry, sender Sender, opts ...Option) *Fanout {
	f := &Fanout{
		registry:    registry,
		sender:      sender,
		sendTimeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = logger.Get().Named("fanout")
	}
	return f
}

// Notify delivers payload and reports whether at least one connection
// received it. Failures are absorbed here; the caller only sees the flag.
func (f *Fanout) Notify(ctx context.Context, recipientHint string, payload any) (delivered bool) {
	start := time.Now()
	defer func() {
		metrics.RecordFanoutLatency(float64(time.Since(start).Milliseconds()))
		if r := recover(); r != nil {
			f.logger.Error(ctx, "fan-out panicked", logger.Any("panic", r))
			delivered = false
		}
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		f.logger.Error(ctx, "encode payload", logger.Error(err))
		return false
	}

	records, err := f.registry.ListAll(ctx)
	if err != nil {
		f.logger.Error(ctx, "list connections", logger.Error(err))
		return false
	}
	records = f.selectRecipients(records, recipientHint)
	if len(records) == 0 {
		f.logger.Debug(ctx, "no connections to notify", logger.String("recipient", recipientHint))
		return false
	}

	var (
		wg        sync.WaitGroup
		successes atomic.Int64
	)
	for _, rec := range records {
		wg.Add(1)
		go func(connID string) {
			defer wg.Done()
			if f.deliver(ctx, connID, body) {
				successes.Add(1)
			}
		}(rec.ConnectionID)
	}
	wg.Wait()

	n := successes.Load()
	f.logger.Debug(ctx, "fan-out finished",
		logger.Int("targets", len(records)),
		logger.Int("delivered", int(n)),
	)
	return n > 0
}

func (f *Fanout) selectRecipients(records []model.ConnectionRecord, recipient string) []model.ConnectionRecord {
	if !f.targeted {
		return records
	}
	out := make([]model.ConnectionRecord, 0, len(records))
	for _, rec := range records {
		if rec.UserID != "" && rec.UserID == recipient {
			out = append(out, rec)
		}
	}
	return out
}

func (f *Fanout) deliver(ctx context.Context, connID string, body []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error(ctx, "send panicked", logger.String("connection_id", connID), logger.Any("panic", r))
			metrics.RecordFanoutDelivery(metrics.OutcomeError)
			ok = false
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, f.sendTimeout)
	defer cancel()

	err := f.sender.Send(sendCtx, connID, body)
	switch {
	case err == nil:
		metrics.RecordFanoutDelivery(metrics.OutcomeSuccess)
		return true
	case errors.Is(err, ErrGone):
		metrics.RecordFanoutDelivery(metrics.OutcomeGone)
		if evictErr := f.registry.Evict(ctx, connID); evictErr != nil {
			f.logger.Warn(ctx, "evict stale connection",
				logger.String("connection_id", connID),
				logger.Error(evictErr),
			)
			return false
		}
		metrics.RecordRegistryEviction()
		f.logger.Debug(ctx, "evicted stale connection", logger.String("connection_id", connID))
		return false
	default:
		metrics.RecordFanoutDelivery(metrics.OutcomeError)
		f.logger.Warn(ctx, "push failed",
			logger.String("connection_id", connID),
			logger.Error(err),
		)
		return false
	}
}
