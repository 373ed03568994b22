package ranking

import "errors"

var (
	ErrRankingNotFound      = errors.New("ranking not found")
	ErrRankingAlreadyExists = errors.New("ranking already exists")
	ErrInvalidRatingInput   = errors.New("invalid rating input")
)
