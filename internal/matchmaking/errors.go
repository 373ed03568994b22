package matchmaking

import "errors"

var (
	ErrAlreadyQueued       = errors.New("account already in matchmaking")
	ErrNotQueued           = errors.New("account not in queue")
	ErrInconsistentStatus  = errors.New("matched player status changed")
	ErrPendingGameNotFound = errors.New("pending game not found")
	ErrNotParticipant      = errors.New("account is not a pending game participant")
)
