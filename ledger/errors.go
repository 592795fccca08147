// ledger/errors.go
package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies a ledger rejection so callers can show a specific message
// for the ones a player can act on.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindAlreadyJoined     Kind = "ALREADY_JOINED"
	KindNotYourTurn       Kind = "NOT_YOUR_TURN"
	KindAlreadyAttacked   Kind = "ALREADY_ATTACKED"
	KindInvalidCoordinate Kind = "INVALID_COORDINATE"
	KindRejected          Kind = "REJECTED"

	// KindUnavailable covers transport failures and timeouts — the ledger
	// may or may not have seen the request.
	KindUnavailable Kind = "UNAVAILABLE"
)

// Error is a classified ledger failure.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("ledger: %s", e.Kind)
	}
	return fmt.Sprintf("ledger: %s: %s", e.Kind, e.Reason)
}

// KindOf extracts the taxonomy kind from err, or KindRejected for untyped
// errors.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindRejected
}

// UserMessage maps a ledger error to the message shown to the player.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindNotYourTurn:
		return "It's not your turn — wait for your opponent's move to confirm."
	case KindAlreadyAttacked:
		return "That coordinate was already attacked."
	case KindInvalidCoordinate:
		return "That coordinate is outside the board."
	case KindAlreadyJoined:
		return "You already joined this match."
	case KindNotFound:
		return "Match not found on the ledger."
	case KindUnavailable:
		return "The ledger is unreachable — your move was not recorded, try again."
	default:
		return "The ledger rejected the action."
	}
}
