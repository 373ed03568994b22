package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/RUKAYAT-CODER/bunnychess/internal/chessgame"
)

// Stored games expire on their own; finished games are deleted explicitly.
const gameTTL = 24 * time.Hour

// updateGameScript is the optimistic-concurrency writer: the write is
// accepted only when the stored seq is exactly one less than the writer's,
// serializing concurrent move submissions per game.
var updateGameScript = redis.NewScript(`
local stored = redis.call('HGET', KEYS[1], 'seq')
if stored == false or tonumber(stored) ~= tonumber(ARGV[2]) - 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'gameRepr', ARGV[1], 'seq', ARGV[2])
return 1
`)

// Repository stores the serialized game alongside its seq in a redis hash.
type Repository struct {
	rdb   *redis.Client
	clock clockwork.Clock
}

func NewRepository(rdb *redis.Client, clock clockwork.Clock) *Repository {
	return &Repository{rdb: rdb, clock: clock}
}

func (r *Repository) StoreGame(ctx context.Context, g *chessgame.Game) error {
	raw, err := g.Encode()
	if err != nil {
		return err
	}
	key := gameKey(g.ID())
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, "gameRepr", raw, "seq", g.Seq())
	pipe.Expire(ctx, key, gameTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Repository) FindGame(ctx context.Context, gameID string) (*chessgame.Game, error) {
	raw, err := r.rdb.HGet(ctx, gameKey(gameID), "gameRepr").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrGameNotFound)
	}
	if err != nil {
		return nil, err
	}
	return chessgame.Decode(r.clock, raw)
}

// UpdateGame persists a mutated game, failing with ErrConcurrentUpdate when
// another writer got there first. On failure the in-memory mutation must be
// discarded.
func (r *Repository) UpdateGame(ctx context.Context, g *chessgame.Game) error {
	raw, err := g.Encode()
	if err != nil {
		return err
	}
	ok, err := updateGameScript.Run(ctx, r.rdb, []string{gameKey(g.ID())}, raw, g.Seq()).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return fmt.Errorf("game %s seq %d: %w", g.ID(), g.Seq(), ErrConcurrentUpdate)
	}
	return nil
}

func (r *Repository) DeleteGame(ctx context.Context, gameID string) error {
	return r.rdb.Del(ctx, gameKey(gameID)).Err()
}

func gameKey(gameID string) string {
	return "game:chess-game:" + gameID + ":status"
}
