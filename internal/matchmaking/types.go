package matchmaking

import (
	"time"

	"github.com/RUKAYAT-CODER/bunnychess/internal/chessgame"
)

// PlayerStatus is where an account currently is in the matchmaking flow.
type PlayerStatus string

const (
	StatusSearching PlayerStatus = "searching"
	StatusPending   PlayerStatus = "pending"
	StatusPlaying   PlayerStatus = "playing"
	StatusUndefined PlayerStatus = "undefined"
)

// MatchmakingStatus is one account's full matchmaking state.
type MatchmakingStatus struct {
	Status   PlayerStatus
	GameType chessgame.GameType
	Ranked   bool
	// GameID is the pending game id while pending and the game id while
	// playing. Empty while searching.
	GameID string
}

// QueueConfig tunes one queue partition. Tolerance is the mmr distance two
// players may be apart to pair; it widens with wait time up to MaxDelta.
type QueueConfig struct {
	BaseRange       float64
	GrowthPerSecond float64
	MaxDelta        float64
	Interval        time.Duration
}

// Partition tuning. Ranked pairs tighter and scans slower than normal.
var (
	RankedQueueConfig = QueueConfig{
		BaseRange:       50,
		GrowthPerSecond: 5,
		MaxDelta:        400,
		Interval:        2000 * time.Millisecond,
	}
	NormalQueueConfig = QueueConfig{
		BaseRange:       100,
		GrowthPerSecond: 10,
		MaxDelta:        600,
		Interval:        1500 * time.Millisecond,
	}
)

func configFor(ranked bool) QueueConfig {
	if ranked {
		return RankedQueueConfig
	}
	return NormalQueueConfig
}

// Pair is two accounts matched from the same queue.
type Pair struct {
	AccountID0 string
	AccountID1 string
}

// PendingGame is the rendezvous both matched players must accept before a
// real game starts. Accepts maps account id to 0 or 1.
type PendingGame struct {
	ID         string             `json:"id"`
	AccountID0 string             `json:"accountId0"`
	AccountID1 string             `json:"accountId1"`
	GameType   chessgame.GameType `json:"gameType"`
	Ranked     bool               `json:"ranked"`
	Accepts    map[string]int     `json:"accepts"`
}

// AcceptCount is how many participants have accepted so far.
func (p PendingGame) AcceptCount() int {
	total := 0
	for _, v := range p.Accepts {
		total += v
	}
	return total
}

func partition(ranked bool) string {
	if ranked {
		return "ranked"
	}
	return "normal"
}

func queueKey(gameType chessgame.GameType, ranked bool) string {
	return "matchmaking:queue:" + string(gameType) + ":" + partition(ranked)
}

func queueTimesKey(gameType chessgame.GameType, ranked bool) string {
	return queueKey(gameType, ranked) + ":times"
}

func statusKey(accountID string) string {
	return "matchmaking:account:" + accountID + ":status"
}

func pendingGameKey(pendingGameID string) string {
	return "matchmaking:pending-game:" + pendingGameID + ":status"
}
