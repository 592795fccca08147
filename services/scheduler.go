// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartEvictionScheduler sweeps rooms and matches older than ttl once a
// minute. State is inherently ephemeral, so eviction is housekeeping, not
// correctness — a swept match simply reads as not-found afterwards.
func StartEvictionScheduler(rooms *RoomDirectory, registry *MatchRegistry, ttl time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-ttl)
			evictedRooms := rooms.Evict(cutoff)
			evictedMatches := registry.Evict(cutoff)
			if evictedRooms > 0 || evictedMatches > 0 {
				log.Printf("[scheduler] evicted %d rooms, %d matches older than %s", evictedRooms, evictedMatches, ttl)
			}
		}),
	)
}
