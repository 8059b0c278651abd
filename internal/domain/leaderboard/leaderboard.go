// Package leaderboard computes the leaderboard view from the score store.
//
// Every read recomputes from a full scan. The Source interface is the seam
// for replacing the scan with an indexed top-K query later.
package leaderboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/nebula/internal/domain/model"
	"github.com/okian/nebula/pkg/metrics"
)

// Source yields every stored score.
type Source interface {
	Scan(ctx context.Context) ([]model.ScoreEntry, error)
}

// Store is a Source that can also delete rows, used by Clear.
type Store interface {
	Source
	Delete(ctx context.Context, id string) error
}

// Aggregator answers leaderboard reads.
type Aggregator struct {
	source Source
}

// New returns an Aggregator reading from source.
func New(source Source) *Aggregator {
	return &Aggregator{source: source}
}

// Top returns a single-element slice holding the highest score, or an empty
// slice when there are no scores. It does not deduplicate by user.
func (a *Aggregator) Top(ctx context.Context) ([]model.ScoreEntry, error) {
	entries, err := a.source.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan scores: %w", err)
	}
	metrics.RecordLeaderboardRead()

	best, ok := Best(entries)
	if !ok {
		return []model.ScoreEntry{}, nil
	}
	return []model.ScoreEntry{best}, nil
}

// Best returns the maximum-score entry. On ties the earliest entry in scan
// order wins.
func Best(entries []model.ScoreEntry) (model.ScoreEntry, bool) {
	if len(entries) == 0 {
		return model.ScoreEntry{}, false
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.Score > best.Score {
			best = e
		}
	}
	return best, true
}

// Clear deletes every stored score and reports how many rows it removed.
// Deletes run concurrently; the first failure is returned after all attempts
// finish and the count only includes successful deletes.
func Clear(ctx context.Context, store Store) (int, error) {
	entries, err := store.Scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan scores: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		deleted  int
		firstErr error
	)
	for _, e := range entries {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := store.Delete(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("delete score %s: %w", id, err)
				}
				return
			}
			deleted++
		}(e.ID)
	}
	wg.Wait()

	metrics.RecordLeaderboardClear(deleted)
	return deleted, firstErr
}
