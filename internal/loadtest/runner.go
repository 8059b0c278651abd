package loadtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/nebula/pkg/logger"
)

// ErrInvalidConfig is returned by Run for unusable settings.
var ErrInvalidConfig = errors.New("loadtest: invalid config")

// Run executes a complete load run and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if cfg.NumScores < 1 || cfg.Workers < 1 || cfg.MaxScore <= 0 {
		return nil, fmt.Errorf("%w: scores, workers and max score must be positive", ErrInvalidConfig)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: an access token is required", ErrInvalidConfig)
	}

	log := logger.Get().Named("loadtest")
	stats := &Stats{StartTime: time.Now()}
	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("scores", cfg.NumScores),
		logger.Int("workers", cfg.Workers),
		logger.Bool("listen", cfg.Listen),
	)

	c := newClient(cfg)
	if err := checkHealth(ctx, c); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	var l *listener
	if cfg.Listen {
		var err error
		if l, err = listen(ctx, cfg); err != nil {
			return nil, fmt.Errorf("open push socket: %w", err)
		}
	}

	scores := generateScores(cfg.NumScores, cfg.MaxScore)
	stats.Generated = len(scores)
	stats.HighScores = countAbove(scores, cfg.Threshold)

	submitScores(ctx, cfg, c, scores, stats)

	if l != nil {
		select {
		case <-ctx.Done():
		case <-time.After(cfg.SettleTime):
		}
		stats.PushesReceived = l.close()
	}

	top, err := fetchTop(ctx, c)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	if len(top) > 0 {
		stats.TopScore = top[0].Score
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	if err := verify(scores, top, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}
	logFinalStats(ctx, log, stats)
	return stats, nil
}

func logFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("successful", stats.Successful),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("highScores", stats.HighScores),
		logger.Int("pushesReceived", stats.PushesReceived),
		logger.Float64("topScore", stats.TopScore),
		logger.Duration("duration", stats.Duration),
		logger.Float64("scoresPerSecond", perSecond),
	)
}
