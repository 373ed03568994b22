package chessgame

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestGame(t *testing.T, gameType GameType) (*Game, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	g, err := NewGame(clock, gameType, "white-acc", "black-acc", "meta")
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	return g, clock
}

func TestMoveUpdatesClockAndSeq(t *testing.T) {
	g, clock := newTestGame(t, Rapid10Plus0)

	clock.Advance(5 * time.Second)
	if err := g.Move("white-acc", "e2e4"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got := g.Clocks().W; got != 595000 {
		t.Fatalf("white clock = %d, want 595000", got)
	}
	if res := g.CheckResult(); res != nil {
		t.Fatalf("CheckResult = %+v, want nil", res)
	}
	if g.Seq() != 1 {
		t.Fatalf("seq = %d, want 1", g.Seq())
	}
}

func TestMoveIncrementAddsTime(t *testing.T) {
	g, clock := newTestGame(t, Blitz5Plus3)

	clock.Advance(2 * time.Second)
	if err := g.Move("white-acc", "e2e4"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	// 300000 - 2000 elapsed + 3000 increment
	if got := g.Clocks().W; got != 301000 {
		t.Fatalf("white clock = %d, want 301000", got)
	}
}

func TestTurnAndIllegalMoveErrors(t *testing.T) {
	g, _ := newTestGame(t, Blitz3Plus0)

	if err := g.Move("black-acc", "e7e5"); !errors.Is(err, ErrTurn) {
		t.Fatalf("out-of-turn move error = %v, want ErrTurn", err)
	}
	if err := g.Move("white-acc", "e2e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("illegal move error = %v, want ErrIllegalMove", err)
	}
	if err := g.Move("white-acc", "not-a-move"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("garbage move error = %v, want ErrIllegalMove", err)
	}
	if err := g.Move("white-acc", "e4"); err != nil {
		t.Fatalf("SAN move: %v", err)
	}
	if got := g.HistoryUCI()[0]; got != "e2e4" {
		t.Fatalf("recorded UCI move = %q, want e2e4", got)
	}
}

func TestResign(t *testing.T) {
	g, _ := newTestGame(t, Blitz3Plus0)

	if err := g.Resign("stranger"); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("stranger resign error = %v, want ErrUnknownAccount", err)
	}
	if err := g.Move("white-acc", "e2e4"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if err := g.Resign("black-acc"); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if g.Seq() != 2 {
		t.Fatalf("seq = %d, want move count + resignation = 2", g.Seq())
	}

	res := g.CheckResult()
	if res == nil || res.Reason != ReasonResignation {
		t.Fatalf("CheckResult = %+v, want resignation", res)
	}
	if res.WinnerAccountID != "white-acc" || res.Outcome != "w" {
		t.Fatalf("winner = %s outcome = %s, want white-acc/w", res.WinnerAccountID, res.Outcome)
	}
	if err := g.Resign("white-acc"); !errors.Is(err, ErrGameOver) {
		t.Fatalf("resign after resign error = %v, want ErrGameOver", err)
	}
}

func TestCheckmateResult(t *testing.T) {
	g, _ := newTestGame(t, Blitz3Plus0)

	for _, mv := range []struct{ acc, uci string }{
		{"white-acc", "f2f3"},
		{"black-acc", "e7e5"},
		{"white-acc", "g2g4"},
		{"black-acc", "d8h4"},
	} {
		if err := g.Move(mv.acc, mv.uci); err != nil {
			t.Fatalf("Move %s: %v", mv.uci, err)
		}
	}

	res := g.CheckResult()
	if res == nil || res.Reason != ReasonCheckmate {
		t.Fatalf("CheckResult = %+v, want checkmate", res)
	}
	if res.WinnerAccountID != "black-acc" {
		t.Fatalf("winner = %s, want black-acc", res.WinnerAccountID)
	}
	if err := g.Move("white-acc", "a2a3"); !errors.Is(err, ErrGameOver) {
		t.Fatalf("move after mate error = %v, want ErrGameOver", err)
	}
}

func TestCheckmateWinsOverExpiredClock(t *testing.T) {
	g, clock := newTestGame(t, Bullet1Plus0)

	for _, mv := range []struct{ acc, uci string }{
		{"white-acc", "f2f3"},
		{"black-acc", "e7e5"},
		{"white-acc", "g2g4"},
		{"black-acc", "d8h4"},
	} {
		if err := g.Move(mv.acc, mv.uci); err != nil {
			t.Fatalf("Move %s: %v", mv.uci, err)
		}
	}
	// White is mated and also out of time; checkmate has priority.
	clock.Advance(2 * time.Minute)

	res := g.CheckResult()
	if res == nil || res.Reason != ReasonCheckmate {
		t.Fatalf("CheckResult = %+v, want checkmate over timeout", res)
	}
}

func TestTimeoutResult(t *testing.T) {
	g, clock := newTestGame(t, Bullet1Plus0)

	if err := g.Move("white-acc", "e2e4"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	clock.Advance(70 * time.Second)

	res := g.CheckResult()
	if res == nil || res.Reason != ReasonBlackTimeout {
		t.Fatalf("CheckResult = %+v, want black_timeout", res)
	}
	if res.WinnerAccountID != "white-acc" {
		t.Fatalf("winner = %s, want white-acc", res.WinnerAccountID)
	}
	if got := g.Clocks().B; got != 0 {
		t.Fatalf("black clock = %d, want 0", got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	g, clock := newTestGame(t, Blitz5Plus3)

	moves := []struct{ acc, uci string }{
		{"white-acc", "e2e4"},
		{"black-acc", "e7e5"},
		{"white-acc", "g1f3"},
	}
	for _, mv := range moves {
		clock.Advance(1500 * time.Millisecond)
		if err := g.Move(mv.acc, mv.uci); err != nil {
			t.Fatalf("Move %s: %v", mv.uci, err)
		}
	}

	raw, err := g.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(clock, raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Seq() != g.Seq() {
		t.Fatalf("seq = %d, want %d", decoded.Seq(), g.Seq())
	}
	if decoded.FEN() != g.FEN() {
		t.Fatalf("fen = %q, want %q", decoded.FEN(), g.FEN())
	}
	if decoded.Turn() != g.Turn() {
		t.Fatalf("turn = %s, want %s", decoded.Turn(), g.Turn())
	}

	// Without time passing, re-encoding must be byte-identical.
	raw2, err := decoded.Encode()
	if err != nil {
		t.Fatalf("re-Encode: %v", err)
	}
	if !bytes.Equal(raw, raw2) {
		t.Fatalf("round trip not byte-identical:\n%s\n%s", raw, raw2)
	}
}

func TestUnknownGameType(t *testing.T) {
	clock := clockwork.NewFakeClock()
	if _, err := NewGame(clock, GameType("42+42"), "a", "b", ""); !errors.Is(err, ErrUnknownGameType) {
		t.Fatalf("err = %v, want ErrUnknownGameType", err)
	}
	if IsGameType("10+0") != true || IsGameType("nope") != false {
		t.Fatalf("IsGameType misclassified")
	}
}
