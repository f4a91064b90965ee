package models

import "time"

// BadgeType is a badge definition; UserBadge is one award of it.
type BadgeType struct {
	ID          string `gorm:"primaryKey" json:"id"` // stable code, e.g. "streak_7"
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Rarity      string `gorm:"type:varchar(16);default:'common'" json:"rarity"`

	Timestamps
}

type UserBadge struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ExternalUserID string    `gorm:"index;not null" json:"external_user_id"`
	BadgeTypeID    string    `gorm:"index;not null" json:"badge_type_id"`
	AwardedAt      time.Time `json:"awarded_at" gorm:"autoCreateTime"`
}

// BadgeTrigger ties a badge to a progression threshold.
// Thresholds are checked against UserProgress after every XP award.
type BadgeTrigger struct {
	ID        string
	Name      string
	Threshold map[string]int64 // keys: level, streak_current, total_matches, matches_won
}

var BadgeTriggers = []BadgeTrigger{
	{ID: "first_blood", Name: "First Blood", Threshold: map[string]int64{"matches_won": 1}},
	{ID: "arena_veteran", Name: "Arena Veteran", Threshold: map[string]int64{"total_matches": 50}},
	{ID: "streak_7", Name: "One Week Warrior", Threshold: map[string]int64{"streak_current": 7}},
	{ID: "streak_30", Name: "Iron Discipline", Threshold: map[string]int64{"streak_current": 30}},
	{ID: "level_10", Name: "Netrunner", Threshold: map[string]int64{"level": 10}},
	{ID: "level_25", Name: "Console Cowboy", Threshold: map[string]int64{"level": 25}},
}
