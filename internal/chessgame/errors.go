package chessgame

import "errors"

var (
	// ErrGameOver is returned when mutating a game that already reached a
	// terminal state.
	ErrGameOver = errors.New("game is over")
	// ErrTurn is returned when a player moves out of turn.
	ErrTurn = errors.New("not player turn")
	// ErrIllegalMove is returned when the rules engine rejects a move.
	ErrIllegalMove = errors.New("illegal move")
	// ErrUnknownAccount is returned when the account is not a participant.
	ErrUnknownAccount = errors.New("unknown account id")
	// ErrUnknownGameType is returned for an unrecognized game type.
	ErrUnknownGameType = errors.New("unknown game type")
)
