package services

import (
	"fmt"
	"log"
	"time"

	"net2077-arena-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProgressionService struct {
	DB *gorm.DB
}

func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db}
}

// EnsureProgressRecord ensures a UserProgress row exists (idempotent)
func (s *ProgressionService) EnsureProgressRecord(externalUserID string) (*models.UserProgress, error) {
	var prog models.UserProgress
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&prog).Error
	if err == gorm.ErrRecordNotFound {
		prog = models.UserProgress{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			XP:             0,
			Level:          1,
		}
		if err := s.DB.Create(&prog).Error; err != nil {
			return nil, err
		}
		return &prog, nil
	}
	if err != nil {
		return nil, err
	}
	return &prog, nil
}

// AwardXP records one XP-earning event: adds xp, recomputes the level as
// floor(xp/100)+1 and advances the daily streak, all in one transaction.
// Callers must not invoke it with xp <= 0 — a zero-score side earns nothing
// and its streak is untouched.
func (s *ProgressionService) AwardXP(externalUserID string, xp int64, reason string) (*models.UserProgress, error) {
	if xp <= 0 {
		return nil, fmt.Errorf("xp must be positive, got %d", xp)
	}

	var updatedProg *models.UserProgress
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var prog models.UserProgress
		if err := tx.Where("external_user_id = ?", externalUserID).First(&prog).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				prog = models.UserProgress{
					ID:             uuid.NewString(),
					ExternalUserID: externalUserID,
					Level:          1,
				}
				if err := tx.Create(&prog).Error; err != nil {
					return err
				}
			} else {
				return err
			}
		}

		prog.XP += xp
		prog.Level = models.LevelForXP(prog.XP)
		TouchStreak(&prog.Streak, time.Now())

		if err := tx.Save(&prog).Error; err != nil {
			return err
		}

		// Auto-award milestone badges
		badgeSvc := NewBadgeService(tx)
		_ = badgeSvc.AutoAwardBadges(&prog) // fire-and-forget

		updatedProg = &models.UserProgress{}
		*updatedProg = prog

		log.Printf("🎮 XP Awarded: %s → XP=%d, Lvl=%d, Streak=%d (reason: %s)",
			externalUserID, prog.XP, prog.Level, prog.Streak.Current, reason)

		return nil
	})
	if err != nil {
		return nil, err
	}
	return updatedProg, nil
}

// RecordMatchPlayed bumps the participation counters after a finished match.
// Increments run in SQL so two matches finishing for the same user at once
// both count.
func (s *ProgressionService) RecordMatchPlayed(externalUserID string, won bool) error {
	if _, err := s.EnsureProgressRecord(externalUserID); err != nil {
		return err
	}
	updates := map[string]interface{}{
		"total_matches": gorm.Expr("total_matches + 1"),
	}
	if won {
		updates["matches_won"] = gorm.Expr("matches_won + 1")
	}
	return s.DB.Model(&models.UserProgress{}).
		Where("external_user_id = ?", externalUserID).
		Updates(updates).Error
}

// XPLeaderboard returns the top users by total XP.
func (s *ProgressionService) XPLeaderboard(limit int) ([]models.UserProgress, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var entries []models.UserProgress
	err := s.DB.Order("xp DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
