package models

import (
	"time"

	"gorm.io/gorm"
)

// ArenaUser is a local snapshot of user data needed to populate match payloads.
// Owned and managed solely by the arena service; populated via the profile
// sync worker from the platform's profile service.
type ArenaUser struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"` // the profile service's stable id
	Username       string  `gorm:"index;not null" json:"username"`
	AvatarURL      *string `json:"avatar_url,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	LastSeen *time.Time `json:"last_seen,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
