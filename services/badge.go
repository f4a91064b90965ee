package services

import (
	"log"

	"net2077-arena-system/models"

	"gorm.io/gorm"
)

type BadgeService struct {
	DB *gorm.DB
}

func NewBadgeService(db *gorm.DB) *BadgeService {
	return &BadgeService{DB: db}
}

// AutoAwardBadges checks all badge triggers for a user after a progress update
func (s *BadgeService) AutoAwardBadges(prog *models.UserProgress) error {
	for _, trigger := range models.BadgeTriggers {
		if !meetsThreshold(prog, trigger.Threshold) {
			continue
		}
		// Check if already awarded
		var count int64
		s.DB.Model(&models.UserBadge{}).
			Where("external_user_id = ? AND badge_type_id = ?", prog.ExternalUserID, trigger.ID).
			Count(&count)
		if count == 0 {
			userBadge := models.UserBadge{
				ExternalUserID: prog.ExternalUserID,
				BadgeTypeID:    trigger.ID,
			}
			if err := s.DB.Create(&userBadge).Error; err != nil {
				return err
			}
			log.Printf("🎖️ Badge awarded: %s → %s", trigger.Name, prog.ExternalUserID)
		}
	}
	return nil
}

// UserBadges lists every badge the user has earned.
func (s *BadgeService) UserBadges(externalUserID string) ([]models.UserBadge, error) {
	var badges []models.UserBadge
	err := s.DB.Where("external_user_id = ?", externalUserID).
		Order("awarded_at DESC").
		Find(&badges).Error
	return badges, err
}

func meetsThreshold(prog *models.UserProgress, req map[string]int64) bool {
	for key, required := range req {
		switch key {
		case "level":
			if int64(prog.Level) < required {
				return false
			}
		case "streak_current":
			if int64(prog.Streak.Current) < required {
				return false
			}
		case "total_matches":
			if prog.TotalMatches < required {
				return false
			}
		case "matches_won":
			if prog.MatchesWon < required {
				return false
			}
		}
	}
	return true
}
