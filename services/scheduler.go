// services/scheduler.go
package services

import (
	"log"
	"time"

	"net2077-arena-system/models"

	"github.com/go-co-op/gocron/v2"
)

// Sweep TTLs. The client is still the primary driver of finish/cancel; the
// sweep is a server-side backstop for abandoned matches.
const (
	waitingMatchTTL = 30 * time.Minute
	activeGrace     = 2 * time.Minute
)

// StartExpirySweep runs two periodic jobs: delete waiting rooms nobody joined
// within the TTL, and finalize active matches whose countdown ran out with no
// client left to call finish. finalize is the same idempotent transition the
// players use, so a sweep racing a late finish call cannot double-score.
func (s *ArenaService) StartExpirySweep() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-waitingMatchTTL)
			res := s.DB.Unscoped().
				Where("status = ? AND created_at < ?", models.MatchStatusWaiting, cutoff).
				Delete(&models.Match{})
			if res.Error != nil {
				log.Printf("[Sweeper] DB error deleting stale waiting matches: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("🗑️ [Sweeper] Removed %d abandoned waiting match(es)", res.RowsAffected)
			}
		}),
	)

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			var overdue []models.Match
			now := time.Now()
			err := s.DB.Where("status = ?", models.MatchStatusActive).Find(&overdue).Error
			if err != nil {
				log.Printf("[Sweeper] DB error: %v", err)
				return
			}

			for i := range overdue {
				m := &overdue[i]
				if m.StartedAt == nil {
					continue
				}
				deadline := m.StartedAt.Add(time.Duration(m.Duration)*time.Second + activeGrace)
				if now.Before(deadline) {
					continue
				}
				if _, err := s.finalize(m); err != nil {
					log.Printf("[Sweeper] Failed to finalize overdue match %s: %v", m.MatchCode, err)
				} else {
					log.Printf("✅ [Sweeper] Auto-finished overdue match: %s", m.MatchCode)
				}
			}
		}),
	)
}
