package ranking

import "time"

// Ranking is one account's rating row. Ranked and normal games are scored
// on separate ladders.
type Ranking struct {
	AccountID string    `json:"accountId"`
	NormalMmr float64   `json:"normalMmr"`
	RankedMmr float64   `json:"rankedMmr"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MmrFor selects the ladder matching the game's ranked flag.
func (r Ranking) MmrFor(ranked bool) float64 {
	if ranked {
		return r.RankedMmr
	}
	return r.NormalMmr
}

// Metadata is the rating snapshot attached to a game at creation time. The
// rating engine scores against this snapshot, not against live ratings, so a
// late-processed result stays consistent with what the players saw.
type Metadata struct {
	Mmr    map[string]float64 `json:"mmr"`
	Ranked bool               `json:"ranked"`
}

// MmrChange is one account's rating delta from a single game.
type MmrChange struct {
	AccountID string
	Delta     float64
	NewMmr    float64
}
