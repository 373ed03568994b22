package ranking

import (
	"fmt"
	"math"
)

const (
	// KFactor bounds the rating swing of a single game.
	KFactor = 20
	// StartingMmr seeds every new ranking.
	StartingMmr = 1000
)

// Scores from the first player's point of view.
const (
	ScoreWin  = 1.0
	ScoreDraw = 0.5
	ScoreLoss = 0.0
)

// calculateElo returns the rating deltas for both players given the score of
// the first one. The deltas are zero-sum.
func calculateElo(ratingA, ratingB, scoreA float64) (float64, float64, error) {
	if ratingA < 0 || ratingB < 0 {
		return 0, 0, fmt.Errorf("ratings must be non-negative, got %v and %v: %w", ratingA, ratingB, ErrInvalidRatingInput)
	}
	if scoreA != ScoreWin && scoreA != ScoreDraw && scoreA != ScoreLoss {
		return 0, 0, fmt.Errorf("score must be 0, 0.5 or 1, got %v: %w", scoreA, ErrInvalidRatingInput)
	}
	expectedA := 1 / (1 + math.Pow(10, (ratingB-ratingA)/400))
	deltaA := KFactor * (scoreA - expectedA)
	return deltaA, -deltaA, nil
}
