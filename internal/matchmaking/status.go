package matchmaking

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RUKAYAT-CODER/bunnychess/internal/chessgame"
)

// PlayerStatusStore tracks per-account matchmaking state in redis hashes.
// The status hash is the lock that keeps an account in at most one queue,
// pending game or running game at a time.
type PlayerStatusStore struct {
	rdb *redis.Client
}

func NewPlayerStatusStore(rdb *redis.Client) *PlayerStatusStore {
	return &PlayerStatusStore{rdb: rdb}
}

// GetPlayerStatus reads one account's state. A missing hash reads as
// StatusUndefined.
func (s *PlayerStatusStore) GetPlayerStatus(ctx context.Context, accountID string) (MatchmakingStatus, error) {
	fields, err := s.rdb.HGetAll(ctx, statusKey(accountID)).Result()
	if err != nil {
		return MatchmakingStatus{}, err
	}
	if len(fields) == 0 {
		return MatchmakingStatus{Status: StatusUndefined}, nil
	}
	return MatchmakingStatus{
		Status:   PlayerStatus(fields["status"]),
		GameType: chessgame.GameType(fields["gameType"]),
		Ranked:   fields["ranked"] == "1",
		GameID:   fields["gameId"],
	}, nil
}

// SetPlayerStatuses writes the same status for several accounts in one
// round trip. A zero ttl leaves the keys without expiry.
func (s *PlayerStatusStore) SetPlayerStatuses(ctx context.Context, status MatchmakingStatus, ttl time.Duration, accountIDs ...string) error {
	ranked := "0"
	if status.Ranked {
		ranked = "1"
	}
	pipe := s.rdb.TxPipeline()
	for _, accountID := range accountIDs {
		key := statusKey(accountID)
		pipe.HSet(ctx, key,
			"status", string(status.Status),
			"gameType", string(status.GameType),
			"ranked", ranked,
			"gameId", status.GameID,
		)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		} else {
			pipe.Persist(ctx, key)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// DeletePlayingStatuses clears playing statuses still bound to gameID.
// Safe to call repeatedly; statuses claimed by a newer flow are left alone.
func (s *PlayerStatusStore) DeletePlayingStatuses(ctx context.Context, gameID string, accountIDs ...string) error {
	if len(accountIDs) == 0 {
		return nil
	}
	keys := make([]string, len(accountIDs))
	for i, accountID := range accountIDs {
		keys[i] = statusKey(accountID)
	}
	return deletePlayingScript.Run(ctx, s.rdb, keys, gameID).Err()
}
