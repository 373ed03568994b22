package matchmaking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RUKAYAT-CODER/bunnychess/internal/chessgame"
	"github.com/RUKAYAT-CODER/bunnychess/internal/obslog"
	"github.com/RUKAYAT-CODER/bunnychess/internal/ranking"
	"github.com/RUKAYAT-CODER/bunnychess/internal/stream"
)

// DefaultPendingGameTimeout is how long both players have to accept.
const DefaultPendingGameTimeout = 5 * time.Second

// statusGrace keeps pending statuses alive slightly past the rendezvous
// deadline so the timeout job always observes them, not their expiry.
const statusGrace = 2 * time.Second

// playingStatusTTL matches the stored game's own expiry.
const playingStatusTTL = 24 * time.Hour

// GameCreator starts the real game once both players accepted.
type GameCreator interface {
	CreateGame(ctx context.Context, accountID0, accountID1 string, gameType chessgame.GameType, metadata string) (*chessgame.Game, error)
}

// PendingGameService runs the two-phase rendezvous between matching and
// game start: both matched players must accept within the timeout or the
// pending game is cancelled and both are released.
type PendingGameService struct {
	rdb       *redis.Client
	statuses  *PlayerStatusStore
	rankings  RankingProvider
	games     GameCreator
	publisher stream.Publisher
	timeouts  TimeoutScheduler
	timeout   time.Duration
}

func NewPendingGameService(
	rdb *redis.Client,
	statuses *PlayerStatusStore,
	rankings RankingProvider,
	games GameCreator,
	publisher stream.Publisher,
	timeouts TimeoutScheduler,
	timeout time.Duration,
) *PendingGameService {
	if timeout <= 0 {
		timeout = DefaultPendingGameTimeout
	}
	return &PendingGameService{
		rdb:       rdb,
		statuses:  statuses,
		rankings:  rankings,
		games:     games,
		publisher: publisher,
		timeouts:  timeouts,
		timeout:   timeout,
	}
}

// CreatePendingGame opens the rendezvous for a matched pair: accept
// counters with a deadline, pending statuses for both players, a timeout
// job and a ready notification.
func (s *PendingGameService) CreatePendingGame(ctx context.Context, pair Pair, gameType chessgame.GameType, ranked bool) (*PendingGame, error) {
	pg := &PendingGame{
		ID:         uuid.NewString(),
		AccountID0: pair.AccountID0,
		AccountID1: pair.AccountID1,
		GameType:   gameType,
		Ranked:     ranked,
		Accepts: map[string]int{
			pair.AccountID0: 0,
			pair.AccountID1: 0,
		},
	}
	raw, err := json.Marshal(pg)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, pendingGameKey(pg.ID), raw, s.timeout).Err(); err != nil {
		return nil, err
	}
	status := MatchmakingStatus{
		Status:   StatusPending,
		GameType: gameType,
		Ranked:   ranked,
		GameID:   pg.ID,
	}
	if err := s.statuses.SetPlayerStatuses(ctx, status, s.timeout+statusGrace, pair.AccountID0, pair.AccountID1); err != nil {
		return nil, err
	}

	pendingGameID := pg.ID
	if err := s.timeouts.Schedule(pendingGameID, s.timeout, func(ctx context.Context) error {
		return s.CancelPendingGame(ctx, pendingGameID, pair.AccountID0, pair.AccountID1)
	}); err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, stream.SubjectPendingGameReady, stream.PendingGameReadyEvent{
		AccountID0:    pair.AccountID0,
		AccountID1:    pair.AccountID1,
		PendingGameID: pg.ID,
	}); err != nil {
		return nil, err
	}

	obslog.L().Info("pending_game_created",
		zap.String("pending_game_id", pg.ID),
		zap.String("game_type", string(gameType)),
		zap.Bool("ranked", ranked),
		zap.String("account_id_0", pair.AccountID0),
		zap.String("account_id_1", pair.AccountID1),
	)
	return pg, nil
}

// AcceptPendingGame records one player's accept and returns the acceptance
// count so callers can relay rendezvous progress. The accept that completes
// the pair starts the real game and returns its id alongside the count.
func (s *PendingGameService) AcceptPendingGame(ctx context.Context, pendingGameID, accountID string) (int, string, error) {
	res, err := acceptPendingGameScript.Run(ctx, s.rdb, []string{pendingGameKey(pendingGameID)}, accountID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, "", fmt.Errorf("pending game %s: %w", pendingGameID, ErrPendingGameNotFound)
	}
	if err != nil {
		return 0, "", err
	}
	if str, ok := res.(string); ok && str == "not-participant" {
		return 0, "", fmt.Errorf("account %s in pending game %s: %w", accountID, pendingGameID, ErrNotParticipant)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) != 2 {
		return 0, "", fmt.Errorf("pending game %s: unexpected accept reply %v", pendingGameID, res)
	}
	count, ok := reply[0].(int64)
	if !ok {
		return 0, "", fmt.Errorf("pending game %s: unexpected accept count %v", pendingGameID, reply[0])
	}
	encoded, ok := reply[1].(string)
	if !ok {
		return 0, "", fmt.Errorf("pending game %s: unexpected payload %v", pendingGameID, reply[1])
	}
	accepted := int(count)

	obslog.L().Debug("pending_game_accepted",
		zap.String("pending_game_id", pendingGameID),
		zap.String("account_id", accountID),
		zap.Int("accepts", accepted),
	)
	if accepted < 2 {
		return accepted, "", nil
	}

	var pg PendingGame
	if err := json.Unmarshal([]byte(encoded), &pg); err != nil {
		return accepted, "", fmt.Errorf("pending game %s: %w", pendingGameID, err)
	}
	gameID, err := s.startGame(ctx, &pg)
	if err != nil {
		return accepted, "", err
	}
	return accepted, gameID, nil
}

// startGame converts a fully accepted pending game into a running one. The
// rating snapshot goes into the game's metadata so the rating engine scores
// against the values both players queued with.
func (s *PendingGameService) startGame(ctx context.Context, pg *PendingGame) (string, error) {
	meta := ranking.Metadata{
		Mmr: map[string]float64{
			pg.AccountID0: s.rankings.GetRankingOrDefault(ctx, pg.AccountID0).MmrFor(pg.Ranked),
			pg.AccountID1: s.rankings.GetRankingOrDefault(ctx, pg.AccountID1).MmrFor(pg.Ranked),
		},
		Ranked: pg.Ranked,
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}

	g, err := s.games.CreateGame(ctx, pg.AccountID0, pg.AccountID1, pg.GameType, string(rawMeta))
	if err != nil {
		return "", err
	}
	status := MatchmakingStatus{
		Status:   StatusPlaying,
		GameType: pg.GameType,
		Ranked:   pg.Ranked,
		GameID:   g.ID(),
	}
	if err := s.statuses.SetPlayerStatuses(ctx, status, playingStatusTTL, pg.AccountID0, pg.AccountID1); err != nil {
		return "", err
	}
	s.timeouts.Cancel(pg.ID)
	if err := s.rdb.Del(ctx, pendingGameKey(pg.ID)).Err(); err != nil {
		return "", err
	}

	obslog.L().Info("pending_game_started",
		zap.String("pending_game_id", pg.ID),
		zap.String("game_id", g.ID()),
	)
	return g.ID(), nil
}

// CancelPendingGame tears the rendezvous down: the pending game and both
// pending statuses go away. Statuses claimed by a newer flow are left
// alone, but the timeout notification is published on every call so both
// ends of a slow-accept race converge on the same outcome.
func (s *PendingGameService) CancelPendingGame(ctx context.Context, pendingGameID, accountID0, accountID1 string) error {
	keys := []string{pendingGameKey(pendingGameID), statusKey(accountID0), statusKey(accountID1)}
	deleted, err := cancelPendingGameScript.Run(ctx, s.rdb, keys, pendingGameID).Int()
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.timeouts.Cancel(pendingGameID)
		obslog.L().Info("pending_game_cancelled",
			zap.String("pending_game_id", pendingGameID),
		)
	}
	return s.publisher.Publish(ctx, stream.SubjectPendingGameTimeout, stream.PendingGameTimeoutEvent{
		AccountID0:    accountID0,
		AccountID1:    accountID1,
		PendingGameID: pendingGameID,
	})
}
