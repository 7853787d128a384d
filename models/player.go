package models

import (
	"time"
)

// Player is a local snapshot of the auth provider's user, kept for the global life count.
// Populated by the player sync worker (or the seed command).
type Player struct {
	ID        string    `gorm:"primaryKey" json:"id"` // the auth provider's user id
	Username  string    `gorm:"index;not null" json:"username"`
	Email     string    `json:"email,omitempty"`
	Lives     *int      `json:"lives,omitempty"` // nil = unknown, competition max lives applies
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
