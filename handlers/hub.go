// handlers/hub.go
package handlers

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/harshverma27/ZK-Battleship-on-Stellar/protocol"
)

// Conn is the slice of *websocket.Conn the hub writes through. Tests inject
// recorders.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
}

// Hub groups live websocket connections into per-match broadcast groups.
// Connections are added on upgrade, attached to a match on join_game and
// dropped on disconnect; seats themselves are never expired (rejoin
// overwrites them in the registry).
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]Conn            // connectionID -> conn
	writeMu map[string]*sync.Mutex     // connectionID -> write lock
	matches map[string]map[string]bool // matchID -> set of connectionIDs
	joined  map[string]string          // connectionID -> matchID
}

func NewHub() *Hub {
	return &Hub{
		conns:   make(map[string]Conn),
		writeMu: make(map[string]*sync.Mutex),
		matches: make(map[string]map[string]bool),
		joined:  make(map[string]string),
	}
}

// Attach registers a freshly upgraded connection.
func (h *Hub) Attach(connectionID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[connectionID] = conn
	h.writeMu[connectionID] = &sync.Mutex{}
}

// Detach removes a connection and its match membership.
func (h *Hub) Detach(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if matchID, ok := h.joined[connectionID]; ok {
		delete(h.matches[matchID], connectionID)
		if len(h.matches[matchID]) == 0 {
			delete(h.matches, matchID)
		}
	}
	delete(h.joined, connectionID)
	delete(h.conns, connectionID)
	delete(h.writeMu, connectionID)
}

// JoinMatch moves a connection into a match's broadcast group. A connection
// belongs to at most one match.
func (h *Hub) JoinMatch(connectionID, matchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.joined[connectionID]; ok && prev != matchID {
		delete(h.matches[prev], connectionID)
		if len(h.matches[prev]) == 0 {
			delete(h.matches, prev)
		}
	}
	if h.matches[matchID] == nil {
		h.matches[matchID] = make(map[string]bool)
	}
	h.matches[matchID][connectionID] = true
	h.joined[connectionID] = matchID
}

// Send writes one event frame to a single connection.
func (h *Hub) Send(connectionID, eventType string, payload any) {
	h.mu.RLock()
	conn, ok := h.conns[connectionID]
	lock := h.writeMu[connectionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.write(connectionID, conn, lock, eventType, payload, "")
}

// SendError writes an error frame to a single connection.
func (h *Hub) SendError(connectionID, msg string) {
	h.mu.RLock()
	conn, ok := h.conns[connectionID]
	lock := h.writeMu[connectionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.write(connectionID, conn, lock, protocol.EventError, nil, msg)
}

// BroadcastToMatch fans an event out to every connection of a match.
func (h *Hub) BroadcastToMatch(matchID, eventType string, payload any) {
	for _, connectionID := range h.matchConns(matchID, "") {
		h.Send(connectionID, eventType, payload)
	}
}

// SendToOthers fans an event out to every connection of a match except the
// sender — the attack_committed path.
func (h *Hub) SendToOthers(matchID, exceptConnectionID, eventType string, payload any) {
	for _, connectionID := range h.matchConns(matchID, exceptConnectionID) {
		h.Send(connectionID, eventType, payload)
	}
}

func (h *Hub) matchConns(matchID, except string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.matches[matchID]))
	for id := range h.matches[matchID] {
		if id != except {
			ids = append(ids, id)
		}
	}
	return ids
}

func (h *Hub) write(connectionID string, conn Conn, lock *sync.Mutex, eventType string, payload any, errMsg string) {
	var env protocol.Envelope
	if errMsg != "" {
		env = protocol.ErrorEnvelope(errMsg)
	} else {
		var err error
		env, err = protocol.NewEnvelope(eventType, payload)
		if err != nil {
			log.Printf("[hub] failed to marshal %s payload: %v", eventType, err)
			return
		}
	}

	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("[hub] failed to marshal %s frame: %v", eventType, err)
		return
	}

	if lock != nil {
		lock.Lock()
		defer lock.Unlock()
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[hub] failed to send %s to %s: %v", eventType, connectionID, err)
	}
}
