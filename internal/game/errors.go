package game

import "errors"

var (
	// ErrGameNotFound is returned when no stored game matches the id.
	// Routine on watchdog paths, anomalous for direct client requests.
	ErrGameNotFound = errors.New("game not found")
	// ErrConcurrentUpdate is returned when a write loses the per-game seq
	// race. The caller must reload and retry.
	ErrConcurrentUpdate = errors.New("concurrent game update")
)
