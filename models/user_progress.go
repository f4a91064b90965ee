package models

import (
	"time"

	"gorm.io/gorm"
)

// XPPerLevel: level is a pure function of total XP, recomputed on every award.
const XPPerLevel = 100

// LevelForXP returns floor(xp/100)+1.
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerLevel) + 1
}

// Streak counts consecutive calendar days with at least one XP-earning action.
// LastActivityDate is the server-local date truncated to midnight.
type Streak struct {
	Current          int        `json:"current" gorm:"default:0"`
	Max              int        `json:"max" gorm:"default:0"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	LastActivityAt   *time.Time `json:"last_activity_at,omitempty"`
}

// UserProgress tracks XP, level and streak for each user (denormalized for performance)
type UserProgress struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service

	XP    int64 `json:"xp" gorm:"default:0"`
	Level int   `json:"level" gorm:"default:1"`

	Streak Streak `json:"streak" gorm:"embedded;embeddedPrefix:streak_"`

	// Activity counters
	TotalMatches int64 `json:"total_matches" gorm:"default:0"`
	MatchesWon   int64 `json:"matches_won" gorm:"default:0"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
