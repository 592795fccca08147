// services/replay_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gosimple/slug"

	"github.com/harshverma27/ZK-Battleship-on-Stellar/models"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/utils"
)

// ReplayService exports the move log of a finished match to R2 so either
// player can share a permalink. Export is best-effort and runs off the event
// path; a failed upload only logs.
type ReplayService struct {
	enabled bool
}

func NewReplayService(enabled bool) *ReplayService {
	return &ReplayService{enabled: enabled}
}

type replayDocument struct {
	MatchID     string          `json:"match_id"`
	RoomCode    string          `json:"room_code,omitempty"`
	WinnerSeat  int             `json:"winner_seat"`
	Moves       []models.Attack `json:"moves"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Export uploads the replay JSON and returns its public URL, or "" when
// export is disabled.
func (s *ReplayService) Export(ctx context.Context, matchID, roomCode string, winnerSeat int, moves []models.Attack) (string, error) {
	if !s.enabled {
		return "", nil
	}

	doc := replayDocument{
		MatchID:     matchID,
		RoomCode:    roomCode,
		WinnerSeat:  winnerSeat,
		Moves:       moves,
		CompletedAt: time.Now().UTC(),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal replay: %w", err)
	}

	key := fmt.Sprintf("replays/%s.json", slug.Make(roomCode+"-"+matchID))
	url, err := utils.UploadToR2(ctx, key, body, "application/json")
	if err != nil {
		return "", err
	}

	log.Printf("[replay] exported match %s replay to %s", matchID, url)
	return url, nil
}
