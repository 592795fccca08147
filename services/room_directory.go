// services/room_directory.go
package services

import (
	"log"
	"sync"
	"time"

	"github.com/harshverma27/ZK-Battleship-on-Stellar/models"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/utils"
)

// RoomDirectory maps short shareable room codes to ledger match ids. It is
// constructed once at process start and injected into the event layer. One
// code maps to exactly one match at a time; re-registering a code overwrites
// the entry.
type RoomDirectory struct {
	mu    sync.RWMutex
	rooms map[string]models.Room
}

func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{rooms: make(map[string]models.Room)}
}

// Register stores code → matchID, overwriting any existing entry for the
// code. Codes are normalized so lookup is case-insensitive.
func (d *RoomDirectory) Register(code, matchID string) error {
	code = utils.NormalizeRoomCode(code)
	if !utils.IsValidRoomCode(code) {
		return ErrInvalidRoomCode
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[code] = models.Room{Code: code, MatchID: matchID, CreatedAt: time.Now()}
	log.Printf("[rooms] registered room %s for match %s", code, matchID)
	return nil
}

// Resolve returns the match id mapped to code, or ErrRoomNotFound.
func (d *RoomDirectory) Resolve(code string) (string, error) {
	code = utils.NormalizeRoomCode(code)

	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.rooms[code]
	if !ok {
		return "", ErrRoomNotFound
	}
	return room.MatchID, nil
}

// CodeFor reverse-resolves the room code registered for a match id.
func (d *RoomDirectory) CodeFor(matchID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for code, room := range d.rooms {
		if room.MatchID == matchID {
			return code, true
		}
	}
	return "", false
}

// Evict drops rooms created before cutoff and returns how many were removed.
func (d *RoomDirectory) Evict(cutoff time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for code, room := range d.rooms {
		if room.CreatedAt.Before(cutoff) {
			delete(d.rooms, code)
			removed++
		}
	}
	return removed
}

// Len returns the number of live room mappings.
func (d *RoomDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}
