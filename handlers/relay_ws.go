// handlers/relay_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/harshverma27/ZK-Battleship-on-Stellar/models"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/protocol"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/services"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/workers"
)

// Relay wires the websocket event contract to the room directory, the match
// registry and the arbiter. It never talks to the ledger — it only relays
// what clients assert, and clients only assert after confirmation.
type Relay struct {
	hub      *Hub
	rooms    *services.RoomDirectory
	registry *services.MatchRegistry
	replay   *services.ReplayService
	mirror   *workers.MirrorWorker // nil when no database is configured
}

// NewRelay builds the relay and its match registry together: the relay is the
// registry's broadcast sink, so the two are constructed as a unit.
func NewRelay(hub *Hub, rooms *services.RoomDirectory, replay *services.ReplayService, mirror *workers.MirrorWorker) *Relay {
	r := &Relay{
		hub:    hub,
		rooms:  rooms,
		replay: replay,
		mirror: mirror,
	}
	r.registry = services.NewMatchRegistry(r)
	return r
}

// PlayerJoined implements services.Notifier.
func (r *Relay) PlayerJoined(matchID string, seatNumber int) {
	r.hub.BroadcastToMatch(matchID, protocol.EventPlayerJoined, protocol.PlayerJoined{SeatNumber: seatNumber})
}

// BothReady implements services.Notifier.
func (r *Relay) BothReady(matchID string) {
	r.hub.BroadcastToMatch(matchID, protocol.EventBothReady, protocol.BothReady{MatchID: matchID})
}

// HandleWebSocket runs one connection's read loop. Disconnect needs no state
// cleanup beyond the hub membership: seats are replaced on rejoin, not
// expired.
func (r *Relay) HandleWebSocket(c *websocket.Conn) {
	connectionID := uuid.NewString()
	r.hub.Attach(connectionID, c)
	defer func() {
		r.hub.Detach(connectionID)
		c.Close()
		log.Printf("[relay] client %s disconnected", connectionID)
	}()

	log.Printf("[relay] client %s connected", connectionID)

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[relay] read error from %s: %v", connectionID, err)
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(msgBytes, &env); err != nil {
			log.Printf("[relay] malformed frame from %s: %v", connectionID, err)
			r.hub.SendError(connectionID, "invalid message format")
			continue
		}

		r.handleEvent(connectionID, env)
	}
}

// handleEvent dispatches one decoded frame. A malformed payload never takes
// the relay down — it is logged and answered with an error frame.
func (r *Relay) handleEvent(connectionID string, env protocol.Envelope) {
	switch env.Type {
	case protocol.EventCreateRoom:
		r.handleCreateRoom(connectionID, env.Payload)
	case protocol.EventLookupRoom:
		r.handleLookupRoom(connectionID, env.Payload)
	case protocol.EventJoinGame:
		r.handleJoinGame(connectionID, env.Payload)
	case protocol.EventSubmitShips:
		r.handleSubmitShips(connectionID, env.Payload)
	case protocol.EventAttackCheck:
		r.handleAttackCheck(connectionID, env.Payload)
	case protocol.EventAttackCommitted:
		r.handleAttackCommitted(connectionID, env.Payload)
	default:
		r.hub.SendError(connectionID, "unknown event type: "+env.Type)
	}
}

func (r *Relay) handleCreateRoom(connectionID string, payload json.RawMessage) {
	var req protocol.CreateRoom
	if err := json.Unmarshal(payload, &req); err != nil {
		r.hub.SendError(connectionID, "invalid create_room payload")
		return
	}
	if err := r.rooms.Register(req.RoomCode, req.MatchID); err != nil {
		r.hub.SendError(connectionID, err.Error())
	}
}

func (r *Relay) handleLookupRoom(connectionID string, payload json.RawMessage) {
	var req protocol.LookupRoom
	if err := json.Unmarshal(payload, &req); err != nil {
		r.hub.SendError(connectionID, "invalid lookup_room payload")
		return
	}

	matchID, err := r.rooms.Resolve(req.RoomCode)
	if err != nil {
		log.Printf("[relay] failed lookup for room %s", req.RoomCode)
		r.hub.Send(connectionID, protocol.EventLookupRoom, protocol.LookupResult{Found: false})
		return
	}
	r.hub.Send(connectionID, protocol.EventLookupRoom, protocol.LookupResult{Found: true, MatchID: matchID})
}

func (r *Relay) handleJoinGame(connectionID string, payload json.RawMessage) {
	var req protocol.JoinGame
	if err := json.Unmarshal(payload, &req); err != nil {
		r.hub.SendError(connectionID, "invalid join_game payload")
		return
	}

	// Membership first, so the joiner receives its own player_joined.
	r.hub.JoinMatch(connectionID, req.MatchID)
	if _, err := r.registry.JoinSeat(req.MatchID, req.SeatNumber, connectionID); err != nil {
		r.hub.SendError(connectionID, err.Error())
	}
}

func (r *Relay) handleSubmitShips(connectionID string, payload json.RawMessage) {
	var req protocol.SubmitShips
	if err := json.Unmarshal(payload, &req); err != nil {
		r.hub.SendError(connectionID, "invalid submit_ships payload")
		return
	}
	if err := r.registry.SubmitBoard(req.MatchID, req.SeatNumber, req.Board); err != nil {
		r.hub.SendError(connectionID, err.Error())
	}
}

func (r *Relay) handleAttackCheck(connectionID string, payload json.RawMessage) {
	var req protocol.AttackCheck
	if err := json.Unmarshal(payload, &req); err != nil {
		// Non-integer coordinates land here: the decoder rejects them
		// instead of coercing.
		r.hub.Send(connectionID, protocol.EventAttackCheck, protocol.AttackResult{Error: "invalid attack_check payload"})
		return
	}

	board, err := r.registry.DefenderBoard(req.MatchID, req.AttackerSeat)
	if err != nil {
		r.hub.Send(connectionID, protocol.EventAttackCheck, protocol.AttackResult{Error: err.Error()})
		return
	}

	hit, err := services.Evaluate(board, req.X, req.Y)
	if err != nil {
		r.hub.Send(connectionID, protocol.EventAttackCheck, protocol.AttackResult{Error: err.Error()})
		return
	}

	log.Printf("[relay] attack check in match %s by seat %d at (%d,%d): hit=%t", req.MatchID, req.AttackerSeat, req.X, req.Y, hit)
	r.hub.Send(connectionID, protocol.EventAttackCheck, protocol.AttackResult{Hit: hit})
}

func (r *Relay) handleAttackCommitted(connectionID string, payload json.RawMessage) {
	var req protocol.AttackCommitted
	if err := json.Unmarshal(payload, &req); err != nil {
		r.hub.SendError(connectionID, "invalid attack_committed payload")
		return
	}

	// The sender asserts ledger confirmation; no evaluation here. Mirror the
	// move for replay, then fan it out to the other seat.
	seat := r.attackerSeatFor(req.MatchID, connectionID)
	atk, completed := r.registry.RecordCommitted(req.MatchID, seat, req.X, req.Y, req.Hit)

	log.Printf("[relay] committed attack in match %s at (%d,%d), broadcasting", req.MatchID, req.X, req.Y)
	r.hub.SendToOthers(req.MatchID, connectionID, protocol.EventAttackCommitted, req)

	if r.mirror != nil {
		r.mirror.Enqueue(req.MatchID, atk)
	}
	if completed {
		go r.archiveMatch(req.MatchID, atk.AttackerSeat)
	}
}

// attackerSeatFor finds which seat a connection occupies; 0 when unknown
// (mirror rows for unknown senders still record the move itself).
func (r *Relay) attackerSeatFor(matchID, connectionID string) int {
	snap, err := r.registry.Snapshot(matchID)
	if err != nil {
		return 0
	}
	for _, seat := range snap.Seats {
		if r.registry.SeatConnection(matchID, seat.Number) == connectionID {
			return seat.Number
		}
	}
	return 0
}

// archiveMatch exports the finished match's replay and persists the archive
// row. Best-effort, off the event path.
func (r *Relay) archiveMatch(matchID string, winnerSeat int) {
	moves, err := r.registry.Moves(matchID)
	if err != nil {
		return
	}
	roomCode, _ := r.rooms.CodeFor(matchID)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	replayURL, err := r.replay.Export(ctx, matchID, roomCode, winnerSeat, moves)
	if err != nil {
		log.Printf("[relay] replay export failed for match %s: %v", matchID, err)
	}
	if r.mirror != nil {
		r.mirror.SaveArchive(matchID, roomCode, winnerSeat, len(moves), replayURL)
	}
	log.Printf("[relay] match %s complete, winner seat %d after %d moves", matchID, winnerSeat, len(moves))
}

// Registry exposes the match registry for housekeeping jobs.
func (r *Relay) Registry() *services.MatchRegistry {
	return r.registry
}

// Moves exposes the registry's replay mirror to the REST layer.
func (r *Relay) Moves(matchID string) ([]models.Attack, error) {
	return r.registry.Moves(matchID)
}

// ResolveRoom exposes room resolution to the REST layer.
func (r *Relay) ResolveRoom(code string) (string, error) {
	return r.rooms.Resolve(code)
}
