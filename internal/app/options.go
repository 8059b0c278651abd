package service

import (
	"time"

	"github.com/okian/nebula/internal/adapters/mq/worker"
	"github.com/okian/nebula/internal/adapters/repository"
	"github.com/okian/nebula/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithScoreStore sets the score table. Defaults to an in-memory store.
func WithScoreStore(store repository.ScoreStore) Option {
	return func(s *Service) {
		if store != nil {
			s.scores = store
		}
	}
}

// WithNotifier sets the fan-out run for high scores.
func WithNotifier(n worker.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithWorkerCount sets the number of notification workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending notifications.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithHighScoreThreshold sets the score a submission must exceed to notify.
func WithHighScoreThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold >= 0 {
			s.threshold = threshold
		}
	}
}

// WithNotifyTimeout bounds a single fan-out.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides score id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}
