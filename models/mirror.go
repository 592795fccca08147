// models/mirror.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// MoveMirror is the best-effort persisted copy of a committed attack.
// Table name: move_mirrors. Only written on relays configured with a
// database; the in-memory copy is the one served to clients.
type MoveMirror struct {
	ID           string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	MatchID      string    `gorm:"type:varchar(128);not null;index" json:"match_id"`
	AttackerSeat int       `gorm:"not null" json:"attacker_seat"`
	X            int       `gorm:"not null" json:"x"`
	Y            int       `gorm:"not null" json:"y"`
	Hit          bool      `gorm:"not null" json:"hit"`
	Seq          int       `gorm:"not null" json:"seq"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

// MatchArchive records a finished match for replay listing.
type MatchArchive struct {
	ID          string         `gorm:"primaryKey;type:uuid;not null" json:"id"`
	MatchID     string         `gorm:"type:varchar(128);not null;uniqueIndex" json:"match_id"`
	RoomCode    string         `gorm:"type:varchar(16)" json:"room_code"`
	WinnerSeat  int            `gorm:"not null" json:"winner_seat"`
	MoveCount   int            `gorm:"not null" json:"move_count"`
	ReplayURL   string         `json:"replay_url,omitempty"`
	CompletedAt time.Time      `gorm:"not null" json:"completed_at"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
