package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"net2077-arena-system/models"

	"github.com/gofiber/fiber/v2"
)

// streamSnapshot is what one SSE event carries: enough for the client to
// detect waiting→active→finished and answer progress without re-fetching.
type streamSnapshot struct {
	Status        string     `json:"status"`
	OpponentID    *string    `json:"opponent_id,omitempty"`
	CreatorCount  int        `json:"creator_answer_count"`
	OpponentCount int        `json:"opponent_answer_count"`
	CreatorScore  int        `json:"creator_score"`
	OpponentScore int        `json:"opponent_score"`
	WinnerID      *string    `json:"winner_id,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func snapshotOf(m *models.Match) streamSnapshot {
	return streamSnapshot{
		Status:        m.Status,
		OpponentID:    m.OpponentID,
		CreatorCount:  len(m.CreatorAnswers()),
		OpponentCount: len(m.OpponentAnswers()),
		CreatorScore:  m.CreatorScore,
		OpponentScore: m.OpponentScore,
		WinnerID:      m.WinnerID,
		StartedAt:     m.StartedAt,
		FinishedAt:    m.FinishedAt,
	}
}

// StreamMatchSSE pushes match-state snapshots to a participant over SSE.
// The contract stays poll-shaped — the server re-reads the match on a ticker —
// but the browser holds one stream instead of re-fetching every 2 seconds.
func (s *ArenaService) StreamMatchSSE(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	code := c.Params("matchCode")

	m, err := s.byCode(code)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}
	if !m.IsParticipant(userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not a participant of this match"})
	}
	matchID := m.ID

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var last string

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var current models.Match
				if err := s.DB.Where("id = ?", matchID).First(&current).Error; err != nil {
					// cancelled or storage error — tell the client and end the stream
					fmt.Fprintf(w, "event: gone\ndata: {}\n\n")
					w.Flush()
					return
				}

				payload, _ := json.Marshal(snapshotOf(&current))
				if string(payload) == last {
					continue
				}
				last = string(payload)

				fmt.Fprintf(w, "event: match\ndata: %s\n\n", payload)
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

				if current.Status == models.MatchStatusFinished {
					log.Printf("📡 [ARENA] Stream for match %s closed after finish", current.MatchCode)
					return
				}

			case <-c.Context().Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
