package chessgame

import (
	"encoding/json"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// MaxMoves caps game length; reaching it is a draw.
const MaxMoves = 300

// Color identifies a side.
type Color string

const (
	White Color = "w"
	Black Color = "b"
)

// AccountIDs maps sides to participant account ids.
type AccountIDs struct {
	W string `json:"w"`
	B string `json:"b"`
}

// Clocks holds remaining time per side plus the timestamps the lazy clock
// recomputation is based on. All values are unix milliseconds.
type Clocks struct {
	W                 int64 `json:"w"`
	B                 int64 `json:"b"`
	StartTimestamp    int64 `json:"startTimestamp"`
	LastMoveTimestamp int64 `json:"lastMoveTimestamp,omitempty"`
}

// GameOverReason explains a terminal result.
type GameOverReason string

const (
	ReasonCheckmate            GameOverReason = "checkmate"
	ReasonStalemate            GameOverReason = "stalemate"
	ReasonFiftyMovesRule       GameOverReason = "fifty_moves_rule"
	ReasonThreefoldRepetition  GameOverReason = "threefold_repetition"
	ReasonInsufficientMaterial GameOverReason = "insufficient_material"
	ReasonWhiteTimeout         GameOverReason = "white_timeout"
	ReasonBlackTimeout         GameOverReason = "black_timeout"
	ReasonResignation          GameOverReason = "resignation"
	ReasonMaxMoves             GameOverReason = "max_moves"
)

// Result is a terminal game outcome. Outcome is "w", "b" or "draw".
type Result struct {
	Outcome         string
	WinnerAccountID string
	Reason          GameOverReason
}

// Game is the authoritative state of one chess match: rules-engine position,
// participants, clocks and resignation. It is not safe for concurrent use;
// cross-process consistency comes from the persistence layer's seq check.
type Game struct {
	id            string
	inner         *nchess.Game
	gameType      GameType
	accountIDs    AccountIDs
	metadata      string
	rules         Rules
	clocks        Clocks
	resignedColor Color
	movesSAN      []string
	movesUCI      []string
	clock         clockwork.Clock
}

type jsonRepr struct {
	ID            string     `json:"id"`
	MovesSAN      []string   `json:"movesSan"`
	MovesUCI      []string   `json:"movesUci"`
	GameType      GameType   `json:"gameType"`
	AccountIDs    AccountIDs `json:"accountIds"`
	Metadata      string     `json:"metadata"`
	GameRules     Rules      `json:"gameRules"`
	GameClocks    Clocks     `json:"gameClocks"`
	ResignedColor Color      `json:"resignedColor,omitempty"`
	Seq           int        `json:"seq"`
}

// NewGame starts a fresh game. whiteID plays white and blackID plays black;
// the caller decides side assignment.
func NewGame(clock clockwork.Clock, gameType GameType, whiteID, blackID, metadata string) (*Game, error) {
	rules, err := RulesFor(gameType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(whiteID) == "" || strings.TrimSpace(blackID) == "" {
		return nil, fmt.Errorf("both account ids are required")
	}
	return &Game{
		id:         uuid.NewString(),
		inner:      nchess.NewGame(),
		gameType:   gameType,
		accountIDs: AccountIDs{W: whiteID, B: blackID},
		metadata:   metadata,
		rules:      rules,
		clocks: Clocks{
			W:              rules.TimeLimitMs,
			B:              rules.TimeLimitMs,
			StartTimestamp: clock.Now().UnixMilli(),
		},
		movesSAN: []string{},
		movesUCI: []string{},
		clock:    clock,
	}, nil
}

// Decode rebuilds a game from its durable representation by replaying the
// stored move history from the start position.
func Decode(clock clockwork.Clock, raw []byte) (*Game, error) {
	var repr jsonRepr
	if err := json.Unmarshal(raw, &repr); err != nil {
		return nil, fmt.Errorf("decode game: %w", err)
	}
	inner := nchess.NewGame()
	for _, mv := range repr.MovesUCI {
		if err := inner.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %q: %w", mv, err)
		}
	}
	return &Game{
		id:            repr.ID,
		inner:         inner,
		gameType:      repr.GameType,
		accountIDs:    repr.AccountIDs,
		metadata:      repr.Metadata,
		rules:         repr.GameRules,
		clocks:        repr.GameClocks,
		resignedColor: repr.ResignedColor,
		movesSAN:      repr.MovesSAN,
		movesUCI:      repr.MovesUCI,
		clock:         clock,
	}, nil
}

// Encode serializes the game. Clocks are recomputed first so the stored
// values are accurate at encoding time.
func (g *Game) Encode() ([]byte, error) {
	g.updateClock()
	return json.Marshal(jsonRepr{
		ID:            g.id,
		MovesSAN:      g.movesSAN,
		MovesUCI:      g.movesUCI,
		GameType:      g.gameType,
		AccountIDs:    g.accountIDs,
		Metadata:      g.metadata,
		GameRules:     g.rules,
		GameClocks:    g.clocks,
		ResignedColor: g.resignedColor,
		Seq:           g.Seq(),
	})
}

// Move applies a move for accountID. The move may be in UCI or algebraic
// notation.
func (g *Game) Move(accountID, move string) error {
	now := g.updateClock()
	turn := g.Turn()

	if g.IsGameOver() {
		return fmt.Errorf("game %s: %w", g.id, ErrGameOver)
	}
	if accountID != g.accountID(turn) {
		return fmt.Errorf("not %s turn: %w", accountID, ErrTurn)
	}

	pos := g.inner.Position()
	trimmed := strings.TrimSpace(move)
	if trimmed == "" {
		return fmt.Errorf("empty move: %w", ErrIllegalMove)
	}
	if mv, err := (nchess.UCINotation{}).Decode(pos, strings.ToLower(trimmed)); err == nil {
		if err := g.inner.Move(mv, nil); err != nil {
			return fmt.Errorf("move %q: %w", move, ErrIllegalMove)
		}
		g.movesUCI = append(g.movesUCI, mv.String())
		g.movesSAN = append(g.movesSAN, nchess.AlgebraicNotation{}.Encode(pos, mv))
	} else {
		if err := g.inner.PushNotationMove(trimmed, nchess.AlgebraicNotation{}, nil); err != nil {
			return fmt.Errorf("move %q: %w", move, ErrIllegalMove)
		}
		last := g.lastMove()
		if last == nil {
			return fmt.Errorf("move %q: %w", move, ErrIllegalMove)
		}
		g.movesSAN = append(g.movesSAN, nchess.AlgebraicNotation{}.Encode(pos, last))
		g.movesUCI = append(g.movesUCI, last.String())
	}

	*g.clockFor(turn) += g.rules.TimeIncreasePerTurnMs
	g.clocks.LastMoveTimestamp = now
	return nil
}

// Resign records a resignation by accountID.
func (g *Game) Resign(accountID string) error {
	if g.IsGameOver() {
		return fmt.Errorf("game %s: %w", g.id, ErrGameOver)
	}
	switch accountID {
	case g.accountIDs.W:
		g.resignedColor = White
	case g.accountIDs.B:
		g.resignedColor = Black
	default:
		return fmt.Errorf("account %s: %w", accountID, ErrUnknownAccount)
	}
	return nil
}

// CheckResult evaluates terminal conditions in priority order and returns
// nil while the game is still running. Checkmate and resignation win over a
// simultaneously expired clock; the move cap is checked before the quieter
// draw conditions.
func (g *Game) CheckResult() *Result {
	turn := g.Turn()
	g.updateClock()

	if g.inner.Position().Status() == nchess.Checkmate {
		winner := otherColor(turn)
		return &Result{
			Outcome:         string(winner),
			WinnerAccountID: g.accountID(winner),
			Reason:          ReasonCheckmate,
		}
	}

	if g.resignedColor != "" {
		winner := otherColor(g.resignedColor)
		return &Result{
			Outcome:         string(winner),
			WinnerAccountID: g.accountID(winner),
			Reason:          ReasonResignation,
		}
	}

	if len(g.movesSAN) >= MaxMoves {
		return &Result{Outcome: "draw", Reason: ReasonMaxMoves}
	}

	if reason, ok := g.drawReason(); ok {
		return &Result{Outcome: "draw", Reason: reason}
	}

	// Clock timeout must be the last check.
	if *g.clockFor(turn) == 0 {
		winner := otherColor(turn)
		reason := ReasonWhiteTimeout
		if turn == Black {
			reason = ReasonBlackTimeout
		}
		return &Result{
			Outcome:         string(winner),
			WinnerAccountID: g.accountID(winner),
			Reason:          reason,
		}
	}

	return nil
}

func (g *Game) drawReason() (GameOverReason, bool) {
	if g.inner.Position().Status() == nchess.Stalemate {
		return ReasonStalemate, true
	}
	if g.inner.Outcome() == nchess.Draw && g.inner.Method() == nchess.InsufficientMaterial {
		return ReasonInsufficientMaterial, true
	}
	eligible := map[nchess.Method]bool{}
	for _, m := range g.inner.EligibleDraws() {
		eligible[m] = true
	}
	if eligible[nchess.ThreefoldRepetition] || g.inner.Method() == nchess.FivefoldRepetition {
		return ReasonThreefoldRepetition, true
	}
	if eligible[nchess.FiftyMoveRule] || g.inner.Method() == nchess.SeventyFiveMoveRule {
		return ReasonFiftyMovesRule, true
	}
	return "", false
}

// IsGameOver reports whether any terminal condition holds. Clocks are not
// recomputed here; callers on a mutation path go through updateClock first.
func (g *Game) IsGameOver() bool {
	return g.inner.Outcome() != nchess.NoOutcome ||
		g.clocks.W == 0 ||
		g.clocks.B == 0 ||
		len(g.movesSAN) >= MaxMoves ||
		g.resignedColor != ""
}

// Seq is the optimistic-concurrency version token: applied moves plus one
// if resigned.
func (g *Game) Seq() int {
	seq := len(g.movesSAN)
	if g.resignedColor != "" {
		seq++
	}
	return seq
}

func (g *Game) ID() string             { return g.id }
func (g *Game) GameType() GameType     { return g.gameType }
func (g *Game) AccountIDs() AccountIDs { return g.accountIDs }
func (g *Game) Metadata() string       { return g.metadata }
func (g *Game) Rules() Rules           { return g.rules }
func (g *Game) ResignedColor() Color   { return g.resignedColor }
func (g *Game) FEN() string            { return g.inner.FEN() }

// Turn returns the side to move.
func (g *Game) Turn() Color {
	if g.inner.Position().Turn() == nchess.White {
		return White
	}
	return Black
}

// Clocks recomputes and returns the current clock state.
func (g *Game) Clocks() Clocks {
	g.updateClock()
	return g.clocks
}

// HistorySAN returns the applied moves in algebraic notation.
func (g *Game) HistorySAN() []string {
	out := make([]string, len(g.movesSAN))
	copy(out, g.movesSAN)
	return out
}

// HistoryUCI returns the applied moves in UCI notation.
func (g *Game) HistoryUCI() []string {
	out := make([]string, len(g.movesUCI))
	copy(out, g.movesUCI)
	return out
}

// updateClock charges elapsed wall time since the last touch against the
// side to move and returns now. Clock values are only authoritative right
// after this runs; the watchdog covers the untouched case.
func (g *Game) updateClock() int64 {
	now := g.clock.Now().UnixMilli()
	since := g.clocks.LastMoveTimestamp
	if since == 0 {
		since = g.clocks.StartTimestamp
	}
	remaining := g.clockFor(g.Turn())
	*remaining = max(0, *remaining-(now-since))
	return now
}

func (g *Game) clockFor(c Color) *int64 {
	if c == White {
		return &g.clocks.W
	}
	return &g.clocks.B
}

func (g *Game) accountID(c Color) string {
	if c == White {
		return g.accountIDs.W
	}
	return g.accountIDs.B
}

func (g *Game) lastMove() *nchess.Move {
	moves := g.inner.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func otherColor(c Color) Color {
	if c == White {
		return Black
	}
	return White
}
