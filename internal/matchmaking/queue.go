package matchmaking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RUKAYAT-CODER/bunnychess/internal/chessgame"
	"github.com/RUKAYAT-CODER/bunnychess/internal/obslog"
	"github.com/RUKAYAT-CODER/bunnychess/internal/ranking"
)

// RankingProvider supplies ratings for queue placement.
type RankingProvider interface {
	GetOrCreateRanking(ctx context.Context, accountID string) (ranking.Ranking, error)
	GetRankingOrDefault(ctx context.Context, accountID string) ranking.Ranking
}

// QueueService manages the per-game-type matchmaking queues. Each queue
// partition is a pair of zsets over the same members: one scored by mmr for
// pairing, one scored by enqueue time for wait-based tolerance growth.
type QueueService struct {
	rdb      *redis.Client
	statuses *PlayerStatusStore
	rankings RankingProvider
	clock    clockwork.Clock
}

func NewQueueService(rdb *redis.Client, statuses *PlayerStatusStore, rankings RankingProvider, clock clockwork.Clock) *QueueService {
	return &QueueService{rdb: rdb, statuses: statuses, rankings: rankings, clock: clock}
}

// AddPlayerToQueue enqueues an account at its current rating. Fails with
// ErrAlreadyQueued when the account is anywhere in the matchmaking flow.
func (s *QueueService) AddPlayerToQueue(ctx context.Context, accountID string, gameType chessgame.GameType, ranked bool) error {
	if !chessgame.IsGameType(string(gameType)) {
		return fmt.Errorf("game type %q: %w", gameType, chessgame.ErrUnknownGameType)
	}
	rk, err := s.rankings.GetOrCreateRanking(ctx, accountID)
	if err != nil {
		return err
	}
	mmr := rk.MmrFor(ranked)

	rankedFlag := "0"
	if ranked {
		rankedFlag = "1"
	}
	keys := []string{queueKey(gameType, ranked), queueTimesKey(gameType, ranked), statusKey(accountID)}
	busy, err := addPlayerScript.Run(ctx, s.rdb, keys,
		accountID, mmr, s.clock.Now().UnixMilli(), string(gameType), rankedFlag,
	).Text()
	if err == nil {
		return fmt.Errorf("account %s is %s: %w", accountID, busy, ErrAlreadyQueued)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}

	obslog.L().Debug("queue_player_added",
		zap.String("account_id", accountID),
		zap.String("game_type", string(gameType)),
		zap.Bool("ranked", ranked),
		zap.Float64("mmr", mmr),
	)
	return nil
}

// RemovePlayerFromQueue withdraws a searching account. Fails with
// ErrNotQueued when the account is not searching, including when a match
// already claimed it.
func (s *QueueService) RemovePlayerFromQueue(ctx context.Context, accountID string) error {
	status, err := s.statuses.GetPlayerStatus(ctx, accountID)
	if err != nil {
		return err
	}
	if status.Status != StatusSearching {
		return fmt.Errorf("account %s is %s: %w", accountID, status.Status, ErrNotQueued)
	}

	keys := []string{queueKey(status.GameType, status.Ranked), queueTimesKey(status.GameType, status.Ranked), statusKey(accountID)}
	removed, err := removePlayerScript.Run(ctx, s.rdb, keys, accountID).Int()
	if err != nil {
		return err
	}
	if removed == 0 {
		return fmt.Errorf("account %s: %w", accountID, ErrNotQueued)
	}
	obslog.L().Debug("queue_player_removed", zap.String("account_id", accountID))
	return nil
}

// MatchPlayersInQueue pairs compatible players in one queue partition.
// The queue itself is not mutated; each returned pair must go through
// RemoveMatchedPlayersFromQueue before a pending game is created.
func (s *QueueService) MatchPlayersInQueue(ctx context.Context, gameType chessgame.GameType, ranked bool) ([]Pair, error) {
	cfg := configFor(ranked)
	keys := []string{queueKey(gameType, ranked), queueTimesKey(gameType, ranked)}
	raw, err := matchPlayersScript.Run(ctx, s.rdb, keys,
		s.clock.Now().UnixMilli(), cfg.BaseRange, cfg.GrowthPerSecond, cfg.MaxDelta,
	).StringSlice()
	if err != nil {
		return nil, err
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("match script returned %d ids", len(raw))
	}

	pairs := make([]Pair, 0, len(raw)/2)
	for i := 0; i < len(raw); i += 2 {
		pairs = append(pairs, Pair{AccountID0: raw[i], AccountID1: raw[i+1]})
	}
	return pairs, nil
}

// RemoveMatchedPlayersFromQueue takes a matched pair out of the queue. If
// either player is no longer searching the pair is void: stale entries are
// evicted, live searchers stay queued, and ErrInconsistentStatus is
// returned so the caller skips the pair.
func (s *QueueService) RemoveMatchedPlayersFromQueue(ctx context.Context, gameType chessgame.GameType, ranked bool, pair Pair) error {
	keys := []string{
		queueKey(gameType, ranked),
		queueTimesKey(gameType, ranked),
		statusKey(pair.AccountID0),
		statusKey(pair.AccountID1),
	}
	searching, err := removeMatchedScript.Run(ctx, s.rdb, keys, pair.AccountID0, pair.AccountID1).Int()
	if err != nil {
		return err
	}
	if searching != 2 {
		return fmt.Errorf("pair %s/%s has %d searching: %w",
			pair.AccountID0, pair.AccountID1, searching, ErrInconsistentStatus)
	}
	return nil
}

// QueueSizes reports the member count of every queue partition, keyed by
// "<gameType>:<partition>".
func (s *QueueService) QueueSizes(ctx context.Context) (map[string]int64, error) {
	type entry struct {
		label string
		cmd   *redis.IntCmd
	}
	pipe := s.rdb.Pipeline()
	var entries []entry
	for _, gameType := range chessgame.GameTypes() {
		for _, ranked := range []bool{true, false} {
			entries = append(entries, entry{
				label: string(gameType) + ":" + partition(ranked),
				cmd:   pipe.ZCard(ctx, queueKey(gameType, ranked)),
			})
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	sizes := make(map[string]int64, len(entries))
	for _, e := range entries {
		sizes[e.label] = e.cmd.Val()
	}
	return sizes, nil
}
