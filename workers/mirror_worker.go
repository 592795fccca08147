// workers/mirror_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harshverma27/ZK-Battleship-on-Stellar/models"
)

const (
	mirrorQueueSize     = 1024
	mirrorFlushInterval = 2 * time.Second
	mirrorFlushBatch    = 64
)

// MirrorWorker drains committed attacks into Postgres so a reconnecting
// client can replay them. The queue is bounded and lossy: the database copy
// is a best-effort mirror, never the source of truth, so under pressure rows
// are dropped with a log line instead of blocking the relay.
type MirrorWorker struct {
	DB    *gorm.DB
	queue chan models.MoveMirror
}

func NewMirrorWorker(db *gorm.DB) *MirrorWorker {
	return &MirrorWorker{
		DB:    db,
		queue: make(chan models.MoveMirror, mirrorQueueSize),
	}
}

// Enqueue hands a committed attack to the worker without blocking.
func (w *MirrorWorker) Enqueue(matchID string, atk models.Attack) {
	row := models.MoveMirror{
		ID:           uuid.NewString(),
		MatchID:      matchID,
		AttackerSeat: atk.AttackerSeat,
		X:            atk.X,
		Y:            atk.Y,
		Hit:          atk.Hit,
		Seq:          atk.Seq,
		CreatedAt:    time.Now(),
	}
	select {
	case w.queue <- row:
	default:
		log.Printf("[mirror] queue full, dropping move %d of match %s", atk.Seq, matchID)
	}
}

// SaveArchive writes the finished-match record. Called once per match end.
func (w *MirrorWorker) SaveArchive(matchID, roomCode string, winnerSeat, moveCount int, replayURL string) {
	archive := models.MatchArchive{
		ID:          uuid.NewString(),
		MatchID:     matchID,
		RoomCode:    roomCode,
		WinnerSeat:  winnerSeat,
		MoveCount:   moveCount,
		ReplayURL:   replayURL,
		CompletedAt: time.Now(),
		CreatedAt:   time.Now(),
	}
	err := w.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&archive).Error
	if err != nil {
		log.Printf("[mirror] failed to archive match %s: %v", matchID, err)
	}
}

// Run flushes queued rows in batches until ctx is cancelled.
func (w *MirrorWorker) Run(ctx context.Context) {
	log.Println("[mirror] worker started")
	ticker := time.NewTicker(mirrorFlushInterval)
	defer ticker.Stop()

	batch := make([]models.MoveMirror, 0, mirrorFlushBatch)
	for {
		select {
		case <-ctx.Done():
			w.flush(batch)
			log.Println("[mirror] worker stopped")
			return
		case row := <-w.queue:
			batch = append(batch, row)
			if len(batch) >= mirrorFlushBatch {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (w *MirrorWorker) flush(batch []models.MoveMirror) {
	if len(batch) == 0 {
		return
	}
	err := w.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&batch).Error
	if err != nil {
		log.Printf("[mirror] failed to flush %d moves: %v", len(batch), err)
	}
}
