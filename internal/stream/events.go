package stream

// Subjects published to the event stream. Consumers filter on the message
// key, so the names are part of the wire contract.
const (
	SubjectGameStart       = "bunnychess.game.start"
	SubjectGameStateUpdate = "bunnychess.game.state-update"
	SubjectGameOver        = "bunnychess.game.over"

	SubjectPendingGameReady   = "bunnychess.matchmaking.pending-game-ready"
	SubjectPendingGameTimeout = "bunnychess.matchmaking.pending-game-timeout"
	SubjectEloChange          = "bunnychess.matchmaking.elo-change"
)

type GameStartEvent struct {
	AccountID0 string `json:"accountId0"`
	AccountID1 string `json:"accountId1"`
	GameID     string `json:"gameId"`
}

type GameClocks struct {
	W int64 `json:"w"`
	B int64 `json:"b"`
}

type GameStateUpdateEvent struct {
	AccountID string     `json:"accountId"`
	GameID    string     `json:"gameId"`
	Move      string     `json:"move"`
	Fen       string     `json:"fen"`
	Seq       int        `json:"seq"`
	Clocks    GameClocks `json:"clocks"`
}

type GameOverEvent struct {
	AccountID0      string `json:"accountId0"`
	AccountID1      string `json:"accountId1"`
	Outcome         string `json:"outcome"`
	GameOverReason  string `json:"gameOverReason"`
	WinnerAccountID string `json:"winnerAccountId,omitempty"`
	GameID          string `json:"gameId"`
	GameType        string `json:"gameType"`
	Metadata        string `json:"metadata"`
}

type PendingGameReadyEvent struct {
	AccountID0    string `json:"accountId0"`
	AccountID1    string `json:"accountId1"`
	PendingGameID string `json:"pendingGameId"`
}

type PendingGameTimeoutEvent struct {
	AccountID0    string `json:"accountId0"`
	AccountID1    string `json:"accountId1"`
	PendingGameID string `json:"pendingGameId"`
}

type EloChangeEvent struct {
	AccountID string  `json:"accountId"`
	EloChange float64 `json:"eloChange"`
	NewElo    float64 `json:"newElo"`
	Ranked    bool    `json:"ranked"`
}
