// models/match.go
package models

import "time"

// Seat is one of the two player slots in a match. A later join with the same
// seat number replaces the earlier one — reconnect is overwrite, not merge.
type Seat struct {
	Number       int    `json:"number"`
	ConnectionID string `json:"-"`
	Board        *Board `json:"-"`
}

// Ready reports whether the seat has a full board attached.
func (s *Seat) Ready() bool {
	return s != nil && s.Board != nil
}

// OtherSeat returns the opposing seat number.
func OtherSeat(seatNumber int) int {
	if seatNumber == 1 {
		return 2
	}
	return 1
}

// SeatInfo is the externally visible slice of a seat.
type SeatInfo struct {
	Number int  `json:"number"`
	Ready  bool `json:"ready"`
}

// MatchSnapshot is the roster returned from a join so callers can announce
// who is connected. It mirrors connections only — score lives on the ledger.
type MatchSnapshot struct {
	MatchID   string     `json:"matchId"`
	Seats     []SeatInfo `json:"seats"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Attack is a single committed coordinate guess, mirrored by the relay for
// UI replay. The authoritative record lives on the ledger.
type Attack struct {
	X            int  `json:"x"`
	Y            int  `json:"y"`
	Hit          bool `json:"hit"`
	AttackerSeat int  `json:"attackerSeat"`
	Seq          int  `json:"seq"`
}

// Room maps a short shareable code to a ledger match id. Never mutated after
// creation; a re-register for the same code overwrites the whole entry.
type Room struct {
	Code      string    `json:"code"`
	MatchID   string    `json:"matchId"`
	CreatedAt time.Time `json:"createdAt"`
}
