// protocol/payloads.go
package protocol

import "github.com/harshverma27/ZK-Battleship-on-Stellar/models"

// CreateRoom registers a room code for a ledger match id. Client → server,
// no acknowledgement.
type CreateRoom struct {
	RoomCode string `json:"roomCode"`
	MatchID  string `json:"matchId"`
}

// LookupRoom asks the relay to resolve a room code. Client → server,
// answered with a LookupResult frame of the same event type.
type LookupRoom struct {
	RoomCode string `json:"roomCode"`
}

// LookupResult is the relay's answer to a LookupRoom request.
type LookupResult struct {
	Found   bool   `json:"found"`
	MatchID string `json:"matchId,omitempty"`
}

// JoinGame attaches the sending connection to a seat of a match.
type JoinGame struct {
	MatchID    string `json:"matchId"`
	SeatNumber int    `json:"seatNumber"`
}

// PlayerJoined is broadcast to every connection of a match when a seat is
// taken (or re-taken on reconnect).
type PlayerJoined struct {
	SeatNumber int `json:"seatNumber"`
}

// SubmitShips stores a seat's board snapshot on the relay so attack checks
// can be answered without revealing the board to the opponent.
type SubmitShips struct {
	MatchID    string       `json:"matchId"`
	SeatNumber int          `json:"seatNumber"`
	Board      models.Board `json:"board"`
}

// BothReady is broadcast exactly once per match, when the second of the two
// boards arrives.
type BothReady struct {
	MatchID string `json:"matchId"`
}

// AttackCheck asks the relay for a fast, non-authoritative hit/miss preview
// against the defender's stored board.
type AttackCheck struct {
	MatchID      string `json:"matchId"`
	AttackerSeat int    `json:"attackerSeat"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
}

// AttackResult answers an AttackCheck. Error is set instead of Hit when the
// defender's board is unavailable or the coordinate is invalid.
type AttackResult struct {
	Hit   bool   `json:"hit"`
	Error string `json:"error,omitempty"`
}

// AttackCommitted is sent by the attacker only after the ledger has confirmed
// the attack, and fanned out by the relay to the other seat. The relay trusts
// the sender's assertion — it performs no evaluation here.
type AttackCommitted struct {
	MatchID string `json:"matchId"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Hit     bool   `json:"hit"`
}
