package chessgame

import "time"

// GameType identifies a time-control variant. The string form is the
// client-facing identifier.
type GameType string

const (
	Rapid10Plus0 GameType = "10+0"
	Blitz5Plus3  GameType = "5+3"
	Blitz5Plus0  GameType = "5+0"
	Blitz3Plus2  GameType = "3+2"
	Blitz3Plus0  GameType = "3+0"
	Bullet1Plus0 GameType = "1+0"
)

// Rules are the clock parameters of a game type, in milliseconds.
type Rules struct {
	TimeLimitMs           int64 `json:"timeLimitMs"`
	TimeIncreasePerTurnMs int64 `json:"timeIncreasePerTurnMs"`
}

var gameRules = map[GameType]Rules{
	Rapid10Plus0: {TimeLimitMs: (10 * time.Minute).Milliseconds()},
	Blitz5Plus3:  {TimeLimitMs: (5 * time.Minute).Milliseconds(), TimeIncreasePerTurnMs: (3 * time.Second).Milliseconds()},
	Blitz5Plus0:  {TimeLimitMs: (5 * time.Minute).Milliseconds()},
	Blitz3Plus2:  {TimeLimitMs: (3 * time.Minute).Milliseconds(), TimeIncreasePerTurnMs: (2 * time.Second).Milliseconds()},
	Blitz3Plus0:  {TimeLimitMs: (3 * time.Minute).Milliseconds()},
	Bullet1Plus0: {TimeLimitMs: (1 * time.Minute).Milliseconds()},
}

// GameTypes lists every known game type.
func GameTypes() []GameType {
	return []GameType{Rapid10Plus0, Blitz5Plus3, Blitz5Plus0, Blitz3Plus2, Blitz3Plus0, Bullet1Plus0}
}

// RulesFor returns the clock rules for a game type.
func RulesFor(gt GameType) (Rules, error) {
	rules, ok := gameRules[gt]
	if !ok {
		return Rules{}, ErrUnknownGameType
	}
	return rules, nil
}

// IsGameType reports whether s names a known game type.
func IsGameType(s string) bool {
	_, ok := gameRules[GameType(s)]
	return ok
}
