// protocol/events.go
package protocol

import "encoding/json"

// Event names carried in the websocket envelope. These names and the payload
// field names below are the compatibility surface of the relay — unmodified
// peers depend on them verbatim.
const (
	EventCreateRoom      = "create_room"
	EventLookupRoom      = "lookup_room"
	EventJoinGame        = "join_game"
	EventSubmitShips     = "submit_ships"
	EventAttackCheck     = "attack_check"
	EventAttackCommitted = "attack_committed"

	// Server-originated events.
	EventPlayerJoined = "player_joined"
	EventBothReady    = "both_ready"
	EventError        = "error"
)

// Envelope is the frame every relay message travels in.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// NewEnvelope marshals payload into a typed envelope. Marshal failures are
// reported to the caller rather than sent as a broken frame.
func NewEnvelope(eventType string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: eventType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Payload: raw}, nil
}

// ErrorEnvelope builds an error frame.
func ErrorEnvelope(msg string) Envelope {
	return Envelope{Type: EventError, Error: msg}
}
