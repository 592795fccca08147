// client/session.go
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harshverma27/ZK-Battleship-on-Stellar/models"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/protocol"
)

// RelaySession is the controller's view of the realtime relay: fire-and-forget
// sends, two request/response calls, and a stream of inbound server events.
// Tests inject a fake; production uses WSSession.
type RelaySession interface {
	CreateRoom(code, matchID string) error
	LookupRoom(code string) (matchID string, found bool, err error)
	JoinGame(matchID string, seat int) error
	SubmitShips(matchID string, seat int, board models.Board) error
	AttackCheck(matchID string, seat, x, y int) (hit bool, err error)
	AttackCommitted(matchID string, x, y int, hit bool) error
	Events() <-chan protocol.Envelope
	Close() error
}

const (
	sessionEventBuffer    = 64
	sessionRequestTimeout = 10 * time.Second
)

// WSSession is the websocket-backed RelaySession. The relay answers
// lookup_room and attack_check with a frame of the same event type; the
// session holds at most one waiter per type, which is all the controller
// ever issues.
type WSSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	waiters map[string]chan protocol.Envelope

	events chan protocol.Envelope
}

// Dial connects to the relay websocket endpoint (e.g. ws://host:3001/ws).
func Dial(ctx context.Context, url string) (*WSSession, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}

	s := &WSSession{
		conn:    conn,
		waiters: make(map[string]chan protocol.Envelope),
		events:  make(chan protocol.Envelope, sessionEventBuffer),
	}
	go s.readLoop()
	return s, nil
}

func (s *WSSession) readLoop() {
	defer close(s.events)
	for {
		var env protocol.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[session] read error: %v", err)
			}
			return
		}

		s.mu.Lock()
		waiter, ok := s.waiters[env.Type]
		if ok {
			delete(s.waiters, env.Type)
		}
		s.mu.Unlock()

		if ok {
			waiter <- env
			continue
		}

		select {
		case s.events <- env:
		default:
			log.Printf("[session] event buffer full, dropping %s", env.Type)
		}
	}
}

func (s *WSSession) send(eventType string, payload any) error {
	env, err := protocol.NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(env)
}

// request sends a frame and waits for the relay's reply of the same type.
func (s *WSSession) request(eventType string, payload any) (protocol.Envelope, error) {
	waiter := make(chan protocol.Envelope, 1)
	s.mu.Lock()
	if _, busy := s.waiters[eventType]; busy {
		s.mu.Unlock()
		return protocol.Envelope{}, fmt.Errorf("a %s request is already pending", eventType)
	}
	s.waiters[eventType] = waiter
	s.mu.Unlock()

	if err := s.send(eventType, payload); err != nil {
		s.mu.Lock()
		delete(s.waiters, eventType)
		s.mu.Unlock()
		return protocol.Envelope{}, err
	}

	select {
	case env := <-waiter:
		return env, nil
	case <-time.After(sessionRequestTimeout):
		s.mu.Lock()
		delete(s.waiters, eventType)
		s.mu.Unlock()
		return protocol.Envelope{}, fmt.Errorf("%s request timed out", eventType)
	}
}

func (s *WSSession) CreateRoom(code, matchID string) error {
	return s.send(protocol.EventCreateRoom, protocol.CreateRoom{RoomCode: code, MatchID: matchID})
}

func (s *WSSession) LookupRoom(code string) (string, bool, error) {
	env, err := s.request(protocol.EventLookupRoom, protocol.LookupRoom{RoomCode: code})
	if err != nil {
		return "", false, err
	}
	var result protocol.LookupResult
	if err := unmarshalPayload(env, &result); err != nil {
		return "", false, err
	}
	return result.MatchID, result.Found, nil
}

func (s *WSSession) JoinGame(matchID string, seat int) error {
	return s.send(protocol.EventJoinGame, protocol.JoinGame{MatchID: matchID, SeatNumber: seat})
}

func (s *WSSession) SubmitShips(matchID string, seat int, board models.Board) error {
	return s.send(protocol.EventSubmitShips, protocol.SubmitShips{MatchID: matchID, SeatNumber: seat, Board: board})
}

func (s *WSSession) AttackCheck(matchID string, seat, x, y int) (bool, error) {
	env, err := s.request(protocol.EventAttackCheck, protocol.AttackCheck{
		MatchID:      matchID,
		AttackerSeat: seat,
		X:            x,
		Y:            y,
	})
	if err != nil {
		return false, err
	}
	var result protocol.AttackResult
	if err := unmarshalPayload(env, &result); err != nil {
		return false, err
	}
	if result.Error != "" {
		return false, errors.New(result.Error)
	}
	return result.Hit, nil
}

func (s *WSSession) AttackCommitted(matchID string, x, y int, hit bool) error {
	return s.send(protocol.EventAttackCommitted, protocol.AttackCommitted{
		MatchID: matchID,
		X:       x,
		Y:       y,
		Hit:     hit,
	})
}

func (s *WSSession) Events() <-chan protocol.Envelope {
	return s.events
}

func (s *WSSession) Close() error {
	return s.conn.Close()
}

func unmarshalPayload(env protocol.Envelope, out any) error {
	if env.Error != "" {
		return errors.New(env.Error)
	}
	if len(env.Payload) == 0 {
		return fmt.Errorf("empty %s payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("bad %s payload: %w", env.Type, err)
	}
	return nil
}
