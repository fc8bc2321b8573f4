package models

import (
	"time"
)

// User represents a tracked player.
//
// TotalXP and VerifiedXP are cached derivations: TotalXP equals the sum of
// XPReward over the user's unlocked active achievements, VerifiedXP the same
// sum restricted to unlocks with VerifiedAt set. Every mutation path updates
// them in the same transaction as the UserAchievement change. Level derives
// from TotalXP via the injected level curve.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"uniqueIndex;not null;size:255" json:"username"`
	Email      string    `gorm:"size:255" json:"email"`
	TotalXP    int       `gorm:"column:total_xp;not null;default:0" json:"total_xp"`
	VerifiedXP int       `gorm:"column:verified_xp;not null;default:0" json:"verified_xp"`
	Level      int       `gorm:"not null;default:1" json:"level"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}
