// Package service is the score submission orchestrator behind the HTTP API.
//
// It validates and persists scores, answers leaderboard reads, and hands
// high scores to a bounded notification queue drained by a worker pool. The
// outcome of a notification never changes the result of the submission that
// caused it.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/nebula/internal/adapters/mq/queue"
	"github.com/okian/nebula/internal/adapters/mq/worker"
	"github.com/okian/nebula/internal/adapters/repository"
	"github.com/okian/nebula/internal/domain/leaderboard"
	"github.com/okian/nebula/internal/domain/model"
	"github.com/okian/nebula/pkg/logger"
	"github.com/okian/nebula/pkg/metrics"
)

const (
	defaultQueueSize     = 1024
	defaultThreshold     = 1000
	defaultNotifyTimeout = 30 * time.Second
)

// Service implements the API dependencies for the leaderboard system.
type Service struct {
	mu sync.RWMutex

	scores   repository.ScoreStore
	board    *leaderboard.Aggregator
	notifier worker.Notifier
	queue    *queue.InMemoryQueue
	pool     *worker.Pool

	workerCount   int
	queueSize     int
	threshold     float64
	notifyTimeout time.Duration
	now           func() time.Time
	newID         func() string

	started bool
	logger  logger.Logger
}

// New constructs a Service. Call Start before submitting scores.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU(),
		queueSize:     defaultQueueSize,
		threshold:     defaultThreshold,
		notifyTimeout: defaultNotifyTimeout,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.scores == nil {
		s.scores = repository.NewMemoryScoreStore()
	}
	if s.notifier == nil {
		s.notifier = discardNotifier{}
	}
	s.board = leaderboard.New(s.scores)
	return s
}

// Start creates the notification queue and starts its workers. Workers keep
// running until Stop even if ctx is cancelled, so pending fan-outs drain.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.notifier,
		worker.WithPoolLogger(s.logger.Named("notify")),
		worker.WithWorkerOptions(worker.WithTimeout(s.notifyTimeout)),
	)
	s.pool.Start(context.WithoutCancel(ctx))
	s.started = true

	s.logger.Info(ctx, "leaderboard service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Float64("highScoreThreshold", s.threshold),
	)
	return nil
}

// Stop closes the queue and waits for pending notifications until ctx ends.
// Submissions made while draining skip the queue rather than wait.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	pool := s.pool
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping leaderboard service")
	if err := pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop notification workers: %w", err)
	}
	s.logger.Info(ctx, "leaderboard service stopped")
	return nil
}

// SubmitScore validates and stores a score for userID. Scores above the
// high-score threshold also queue one notification. The persisted entry is
// returned as a single-element slice.
func (s *Service) SubmitScore(ctx context.Context, userID, userName string, raw any) ([]model.ScoreEntry, error) {
	score, err := ParseScore(raw)
	if err != nil {
		metrics.RecordValidationRejection(validationReason(err))
		return nil, err
	}
	if userID == "" {
		metrics.RecordValidationRejection("missing_user")
		return nil, validation(ErrMissingUser)
	}

	entry := model.ScoreEntry{
		ID:        s.newID(),
		UserID:    userID,
		UserName:  userName,
		Score:     score,
		Timestamp: s.now().UnixMilli(),
	}
	if err := s.scores.Put(ctx, entry); err != nil {
		metrics.RecordSubmissionFailure()
		s.logger.Error(ctx, "persist score",
			logger.String("user_id", userID),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	metrics.RecordScoreSubmitted()

	if score > s.threshold {
		s.enqueueHighScore(ctx, entry)
	}
	return []model.ScoreEntry{entry}, nil
}

func (s *Service) enqueueHighScore(ctx context.Context, entry model.ScoreEntry) {
	s.mu.RLock()
	q, started := s.queue, s.started
	s.mu.RUnlock()

	if !started {
		metrics.RecordNotificationDropped("not_started")
		s.logger.Warn(ctx, "high score notification dropped", logger.Error(ErrNotStarted))
		return
	}
	// The request context may end before the handler returns; the task is detached.
	if err := q.Enqueue(context.WithoutCancel(ctx), model.NewHighScoreNotification(entry, s.now())); err != nil {
		s.logger.Warn(ctx, "high score notification dropped",
			logger.String("score_id", entry.ID),
			logger.Error(err),
		)
		return
	}
	s.logger.Debug(ctx, "high score notification queued",
		logger.String("score_id", entry.ID),
		logger.Float64("score", entry.Score),
	)
}

// Leaderboard returns the best entry, or an empty slice when there are none.
func (s *Service) Leaderboard(ctx context.Context) ([]model.ScoreEntry, error) {
	return s.board.Top(ctx)
}

// ClearLeaderboard deletes every stored score and returns how many went.
func (s *Service) ClearLeaderboard(ctx context.Context) (int, error) {
	n, err := leaderboard.Clear(ctx, s.scores)
	if err != nil {
		s.logger.Error(ctx, "clear leaderboard", logger.Int("deleted", n), logger.Error(err))
		return n, err
	}
	s.logger.Info(ctx, "leaderboard cleared", logger.Int("deleted", n))
	return n, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":            s.started,
		"workerCount":        s.workerCount,
		"queueSize":          s.queueSize,
		"highScoreThreshold": s.threshold,
	}
	if s.queue != nil {
		stats["queueLength"] = s.queue.Len()
	}
	if s.pool != nil {
		stats["notificationsProcessed"] = s.pool.Processed()
	}
	return stats
}

func validationReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingScore):
		return "missing_score"
	case errors.Is(err, ErrInvalidScore):
		return "invalid_score"
	default:
		return "other"
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, string, any) bool { return false }
