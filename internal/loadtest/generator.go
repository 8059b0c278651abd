package loadtest

import (
	"crypto/rand"
	"math"
	"math/big"
)

const randomDivisor = 1_000_000

// Score bands, as a share of MaxScore.
const (
	caseLow     = 0
	caseAverage = 1
	caseHigh    = 2
	caseElite   = 3
	bandCount   = 4
)

func randomFloat() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(randomDivisor))
	if err != nil {
		return 0.5
	}
	return float64(n.Int64()) / randomDivisor
}

// generateScores returns n positive scores up to maxScore, two decimals each.
// Most land in the middle bands; a few are elite.
func generateScores(n int, maxScore float64) []float64 {
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = round2(variedScore(maxScore))
	}
	return scores
}

func variedScore(maxScore float64) float64 {
	band, err := rand.Int(rand.Reader, big.NewInt(bandCount))
	if err != nil {
		return maxScore / 2
	}
	switch band.Int64() {
	case caseLow:
		return maxScore * (0.01 + randomFloat()*0.29)
	case caseAverage:
		return maxScore * (0.3 + randomFloat()*0.4)
	case caseHigh:
		return maxScore * (0.7 + randomFloat()*0.2)
	case caseElite:
		return maxScore * (0.9 + randomFloat()*0.1)
	default:
		return maxScore * randomFloat()
	}
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r <= 0 {
		return 0.01
	}
	return r
}

// countAbove returns how many scores are strictly above threshold.
func countAbove(scores []float64, threshold float64) int {
	n := 0
	for _, s := range scores {
		if s > threshold {
			n++
		}
	}
	return n
}

func maxOf(scores []float64) float64 {
	best := math.Inf(-1)
	for _, s := range scores {
		if s > best {
			best = s
		}
	}
	return best
}
