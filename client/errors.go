// client/errors.go
package client

import "errors"

// Local (non-ledger) failure conditions of the match controller. All of them
// are recoverable: the player can retry the action.
var (
	// ErrWrongPhase is returned when an action is not legal in the current
	// match phase.
	ErrWrongPhase = errors.New("action not allowed in current phase")

	// ErrAttackInFlight is returned when an attack is started while another
	// one is still between its check and its ledger confirmation.
	ErrAttackInFlight = errors.New("an attack is already in flight")

	// ErrNotYourTurn is the local turn-tracking rejection. The ledger can
	// still reject independently if local tracking is out of sync.
	ErrNotYourTurn = errors.New("not your turn")

	// ErrAlreadyAttacked is returned for a coordinate this player already
	// attacked.
	ErrAlreadyAttacked = errors.New("coordinate already attacked")

	// ErrCommitPending is returned when a second lock-in is attempted while
	// a buffered board commit has not flushed yet.
	ErrCommitPending = errors.New("a board commit is already pending")

	// ErrRoomNotFound is returned when a room code does not resolve.
	ErrRoomNotFound = errors.New("room not found")

	// ErrInvalidCoordinate is returned for attack coordinates outside 0..9.
	ErrInvalidCoordinate = errors.New("coordinate out of range")
)
