// services/match_registry.go
package services

import (
	"log"
	"sync"
	"time"

	"github.com/harshverma27/ZK-Battleship-on-Stellar/models"
)

// Notifier receives the registry's side-effect broadcasts. The websocket hub
// implements it; tests inject a recorder.
type Notifier interface {
	PlayerJoined(matchID string, seatNumber int)
	BothReady(matchID string)
}

type matchState struct {
	id             string
	seats          map[int]*models.Seat
	createdAt      time.Time
	readyAnnounced bool

	// Best-effort mirror of ledger-confirmed attacks, for UI replay.
	moves   []models.Attack
	hits    map[int]int // attacker seat -> confirmed hits
	winner  int
}

// MatchRegistry is the process-wide map from match id to connection/board
// state. It mirrors who is connected and what they placed — score and turn
// order live on the ledger, never here.
type MatchRegistry struct {
	mu       sync.RWMutex
	matches  map[string]*matchState
	notifier Notifier
}

func NewMatchRegistry(notifier Notifier) *MatchRegistry {
	return &MatchRegistry{
		matches:  make(map[string]*matchState),
		notifier: notifier,
	}
}

// JoinSeat attaches a connection to a seat, creating the match on first join.
// A later join with the same seat number replaces the earlier seat — last
// writer wins, no merge. Broadcasts player_joined to the match.
func (r *MatchRegistry) JoinSeat(matchID string, seatNumber int, connectionID string) (models.MatchSnapshot, error) {
	if seatNumber != 1 && seatNumber != 2 {
		return models.MatchSnapshot{}, ErrInvalidSeat
	}

	r.mu.Lock()
	m, ok := r.matches[matchID]
	if !ok {
		m = &matchState{
			id:        matchID,
			seats:     make(map[int]*models.Seat, 2),
			createdAt: time.Now(),
			hits:      make(map[int]int, 2),
		}
		r.matches[matchID] = m
	}
	m.seats[seatNumber] = &models.Seat{Number: seatNumber, ConnectionID: connectionID}
	snapshot := snapshotOf(m)
	r.mu.Unlock()

	log.Printf("[registry] seat %d joined match %s", seatNumber, matchID)
	r.notifier.PlayerJoined(matchID, seatNumber)
	return snapshot, nil
}

// SubmitBoard attaches a board snapshot to a seat, replacing any previous
// one. A submission for an unknown match is dropped with a log line only.
// When the submission completes the pair, both_ready is emitted — exactly
// once per readiness transition, never again for re-submissions.
func (r *MatchRegistry) SubmitBoard(matchID string, seatNumber int, board models.Board) error {
	if seatNumber != 1 && seatNumber != 2 {
		return ErrInvalidSeat
	}
	if err := board.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	m, ok := r.matches[matchID]
	if !ok {
		r.mu.Unlock()
		log.Printf("[registry] ships submitted for unknown match %s, ignoring", matchID)
		return nil
	}
	seat, ok := m.seats[seatNumber]
	if !ok {
		r.mu.Unlock()
		log.Printf("[registry] ships submitted for unjoined seat %d of match %s, ignoring", seatNumber, matchID)
		return nil
	}
	boardCopy := board
	seat.Board = &boardCopy

	fireReady := false
	if !m.readyAnnounced && m.seats[1].Ready() && m.seats[2].Ready() {
		m.readyAnnounced = true
		fireReady = true
	}
	r.mu.Unlock()

	log.Printf("[registry] seat %d submitted board for match %s", seatNumber, matchID)
	if fireReady {
		log.Printf("[registry] both seats ready for match %s", matchID)
		r.notifier.BothReady(matchID)
	}
	return nil
}

// DefenderBoard returns the board of the seat opposing attackerSeat.
func (r *MatchRegistry) DefenderBoard(matchID string, attackerSeat int) (models.Board, error) {
	if attackerSeat != 1 && attackerSeat != 2 {
		return models.Board{}, ErrInvalidSeat
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.matches[matchID]
	if !ok {
		return models.Board{}, ErrMatchNotFound
	}
	defender := m.seats[models.OtherSeat(attackerSeat)]
	if !defender.Ready() {
		return models.Board{}, ErrDefenderNotReady
	}
	return *defender.Board, nil
}

// RecordCommitted appends a ledger-confirmed attack to the match's replay
// mirror and reports the assigned sequence number plus whether the hit
// reached the win threshold. The relay trusts the caller here — the ledger
// already validated the attack.
func (r *MatchRegistry) RecordCommitted(matchID string, attackerSeat, x, y int, hit bool) (models.Attack, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[matchID]
	if !ok {
		return models.Attack{X: x, Y: y, Hit: hit, AttackerSeat: attackerSeat}, false
	}

	atk := models.Attack{
		X:            x,
		Y:            y,
		Hit:          hit,
		AttackerSeat: attackerSeat,
		Seq:          len(m.moves) + 1,
	}
	m.moves = append(m.moves, atk)
	if hit {
		m.hits[attackerSeat]++
	}

	completed := false
	if m.winner == 0 && m.hits[attackerSeat] >= models.TotalShipCells {
		m.winner = attackerSeat
		completed = true
	}
	return atk, completed
}

// Moves returns the mirrored attack history of a match, in commit order.
func (r *MatchRegistry) Moves(matchID string) ([]models.Attack, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	moves := make([]models.Attack, len(m.moves))
	copy(moves, m.moves)
	return moves, nil
}

// Snapshot returns the current roster of a match.
func (r *MatchRegistry) Snapshot(matchID string) (models.MatchSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.matches[matchID]
	if !ok {
		return models.MatchSnapshot{}, ErrMatchNotFound
	}
	return snapshotOf(m), nil
}

// SeatConnection returns the connection currently occupying a seat, or ""
// when the seat is empty or the match unknown.
func (r *MatchRegistry) SeatConnection(matchID string, seatNumber int) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.matches[matchID]
	if !ok {
		return ""
	}
	seat, ok := m.seats[seatNumber]
	if !ok {
		return ""
	}
	return seat.ConnectionID
}

// Evict drops matches created before cutoff and returns how many were
// removed. Seats are otherwise never expired — reconnects overwrite them.
func (r *MatchRegistry) Evict(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, m := range r.matches {
		if m.createdAt.Before(cutoff) {
			delete(r.matches, id)
			removed++
		}
	}
	return removed
}

func snapshotOf(m *matchState) models.MatchSnapshot {
	snap := models.MatchSnapshot{MatchID: m.id, CreatedAt: m.createdAt}
	for _, n := range []int{1, 2} {
		if seat, ok := m.seats[n]; ok {
			snap.Seats = append(snap.Seats, models.SeatInfo{Number: n, Ready: seat.Ready()})
		}
	}
	return snap
}
