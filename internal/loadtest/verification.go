package loadtest

import (
	"errors"
	"fmt"
)

// Verification failures.
var (
	ErrEmptyLeaderboard = errors.New("leaderboard is empty after submissions")
	ErrTopTooLow        = errors.New("leaderboard top is below the best submitted score")
)

// verify checks the leaderboard against what was submitted. The board may
// hold older scores, so the top only has to be at least our best.
func verify(scores []float64, top []scoreEntry, stats *Stats) error {
	if stats.Successful == 0 {
		return nil
	}
	if len(top) == 0 {
		return ErrEmptyLeaderboard
	}
	if best := maxOf(scores); stats.Successful == len(scores) && top[0].Score < best {
		return fmt.Errorf("%w: top %.2f, submitted %.2f", ErrTopTooLow, top[0].Score, best)
	}
	return nil
}
