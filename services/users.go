// services/users.go
package services

import (
	"strconv"
	"strings"

	"net2077-arena-system/models"

	"github.com/gofiber/fiber/v2"
)

// SearchUsers searches the local ArenaUser mirror, so a creator can look up
// the opponent they want to share a match code with.
func (s *ArenaService) SearchUsers(c *fiber.Ctx) error {
	query := c.Query("q", "")
	limitStr := c.Query("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	var users []models.ArenaUser
	db := s.DB.Model(&models.ArenaUser{}).Limit(limit)

	if query != "" {
		searchTerm := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
		db = db.Where("LOWER(username) LIKE ?", searchTerm)
	}

	if err := db.Find(&users).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "search failed", "details": err.Error()})
	}

	type UserSummary struct {
		ExternalUserID string  `json:"external_user_id"`
		Username       string  `json:"username"`
		AvatarURL      *string `json:"avatar_url,omitempty"`
	}

	res := make([]UserSummary, len(users))
	for i, u := range users {
		res[i] = UserSummary{
			ExternalUserID: u.ExternalUserID,
			Username:       u.Username,
			AvatarURL:      u.AvatarURL,
		}
	}

	return c.JSON(res)
}
