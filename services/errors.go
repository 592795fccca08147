// services/errors.go
package services

import "errors"

// Sentinel errors for relay-side lookups. All of these are recovered by the
// requesting client — none of them is fatal to the relay process.
var (
	// ErrRoomNotFound is returned when a room code has no registered match.
	ErrRoomNotFound = errors.New("room not found")

	// ErrInvalidRoomCode is returned when a code fails format validation.
	ErrInvalidRoomCode = errors.New("invalid room code")

	// ErrMatchNotFound is returned when a match id is unknown to the registry.
	ErrMatchNotFound = errors.New("match not found")

	// ErrInvalidSeat is returned for seat numbers other than 1 or 2.
	ErrInvalidSeat = errors.New("seat number must be 1 or 2")

	// ErrDefenderNotReady is returned when the defending seat has not joined
	// or has not submitted a board yet.
	ErrDefenderNotReady = errors.New("defender not ready")

	// ErrInvalidCoordinate is returned for attack coordinates outside 0..9.
	ErrInvalidCoordinate = errors.New("coordinate out of range")
)
