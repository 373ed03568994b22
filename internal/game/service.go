package game

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/RUKAYAT-CODER/bunnychess/internal/chessgame"
	"github.com/RUKAYAT-CODER/bunnychess/internal/obslog"
	"github.com/RUKAYAT-CODER/bunnychess/internal/stream"
)

// Service owns game lifecycle: creation, move handling, resignation and
// result finalization. All authoritative state lives in the repository.
type Service struct {
	repo      *Repository
	publisher stream.Publisher
	checks    CheckScheduler
	clock     clockwork.Clock
}

func NewService(repo *Repository, publisher stream.Publisher, checks CheckScheduler, clock clockwork.Clock) *Service {
	return &Service{repo: repo, publisher: publisher, checks: checks, clock: clock}
}

// CreateGame starts a new game between two accounts. Sides are assigned
// randomly. A deferred check is scheduled at the theoretical maximum game
// duration so the result is processed even if both players disappear.
func (s *Service) CreateGame(ctx context.Context, accountID0, accountID1 string, gameType chessgame.GameType, metadata string) (*chessgame.Game, error) {
	whiteID, blackID := accountID0, accountID1
	if n, err := rand.Int(rand.Reader, big.NewInt(2)); err == nil && n.Int64() == 0 {
		whiteID, blackID = blackID, whiteID
	}

	g, err := chessgame.NewGame(s.clock, gameType, whiteID, blackID, metadata)
	if err != nil {
		return nil, err
	}
	if err := s.repo.StoreGame(ctx, g); err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, stream.SubjectGameStart, stream.GameStartEvent{
		AccountID0: accountID0,
		AccountID1: accountID1,
		GameID:     g.ID(),
	}); err != nil {
		return nil, err
	}
	s.scheduleCheck(g)

	obslog.L().Info("game_created",
		zap.String("game_id", g.ID()),
		zap.String("game_type", string(gameType)),
		zap.String("white", whiteID),
		zap.String("black", blackID),
	)
	return g, nil
}

// GetGame loads a game or fails with ErrGameNotFound.
func (s *Service) GetGame(ctx context.Context, gameID string) (*chessgame.Game, error) {
	return s.repo.FindGame(ctx, gameID)
}

// MakeMove applies a move and persists it under the seq check. The result
// check runs afterwards on a best-effort basis; the watchdog covers any
// missed finalization.
func (s *Service) MakeMove(ctx context.Context, gameID, accountID, move string) (*chessgame.Game, error) {
	g, err := s.repo.FindGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := g.Move(accountID, move); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateGame(ctx, g); err != nil {
		return nil, err
	}
	clocks := g.Clocks()
	if err := s.publisher.Publish(ctx, stream.SubjectGameStateUpdate, stream.GameStateUpdateEvent{
		AccountID: accountID,
		GameID:    gameID,
		Move:      move,
		Fen:       g.FEN(),
		Seq:       g.Seq(),
		Clocks:    stream.GameClocks{W: clocks.W, B: clocks.B},
	}); err != nil {
		return nil, err
	}
	if _, err := s.CheckGameResult(ctx, g); err != nil {
		obslog.L().Error("game_result_check_error", zap.String("game_id", gameID), zap.Error(err))
	}
	obslog.L().Debug("game_move",
		zap.String("game_id", gameID),
		zap.String("account_id", accountID),
		zap.String("move", move),
		zap.Int("seq", g.Seq()),
	)
	return g, nil
}

// Resign ends the game with a loss for the resigning account.
func (s *Service) Resign(ctx context.Context, gameID, accountID string) (*chessgame.Game, error) {
	g, err := s.repo.FindGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := g.Resign(accountID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateGame(ctx, g); err != nil {
		return nil, err
	}
	if _, err := s.CheckGameResult(ctx, g); err != nil {
		return nil, err
	}
	obslog.L().Debug("game_resign",
		zap.String("game_id", gameID),
		zap.String("account_id", accountID),
	)
	return g, nil
}

// CheckGameResult finalizes the game when a terminal condition holds: emit
// the game-over event, cancel the deferred check and delete the stored
// state. Returns false when the game is still running.
func (s *Service) CheckGameResult(ctx context.Context, g *chessgame.Game) (bool, error) {
	result := g.CheckResult()
	if result == nil {
		return false, nil
	}
	ids := g.AccountIDs()
	if err := s.publisher.Publish(ctx, stream.SubjectGameOver, stream.GameOverEvent{
		GameID:          g.ID(),
		AccountID0:      ids.W,
		AccountID1:      ids.B,
		WinnerAccountID: result.WinnerAccountID,
		Outcome:         result.Outcome,
		GameOverReason:  string(result.Reason),
		GameType:        string(g.GameType()),
		Metadata:        g.Metadata(),
	}); err != nil {
		return false, err
	}
	s.checks.Cancel(g.ID())
	if err := s.repo.DeleteGame(ctx, g.ID()); err != nil {
		return false, err
	}
	obslog.L().Info("game_over",
		zap.String("game_id", g.ID()),
		zap.String("outcome", result.Outcome),
		zap.String("reason", string(result.Reason)),
	)
	return true, nil
}

// CheckStoredGame is the deferred-check entry point. A missing game means
// the result was already processed, which is the expected common case.
func (s *Service) CheckStoredGame(ctx context.Context, gameID string) error {
	g, err := s.repo.FindGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, ErrGameNotFound) {
			return nil
		}
		return err
	}
	ended, err := s.CheckGameResult(ctx, g)
	if err != nil {
		return err
	}
	if !ended {
		// Deadline exceeds any legitimate duration, so this is anomalous.
		return fmt.Errorf("game %s still running after deferred check", gameID)
	}
	return nil
}

func (s *Service) scheduleCheck(g *chessgame.Game) {
	rules := g.Rules()
	delay := time.Duration(rules.TimeLimitMs*2+rules.TimeIncreasePerTurnMs*chessgame.MaxMoves) * time.Millisecond
	if err := s.checks.Schedule(g.ID(), delay, func(ctx context.Context) error {
		return s.CheckStoredGame(ctx, g.ID())
	}); err != nil {
		obslog.L().Error("game_check_schedule_error", zap.String("game_id", g.ID()), zap.Error(err))
	}
}
