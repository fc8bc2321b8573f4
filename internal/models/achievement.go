package models

import (
	"encoding/json"
	"time"
)

// Achievement kinds. The evaluator only recognizes this closed set; rows with
// any other kind never qualify.
const (
	KindRoundMilestone    = "round_milestone"
	KindChallengeComplete = "challenge_complete"
	KindQuestComplete     = "quest_complete"
	KindMapsPlayed        = "maps_played"
	KindTotalRounds       = "total_rounds"
)

// Achievement represents an unlockable achievement definition.
//
// (MapID, Slug, Difficulty) identifies the logical achievement across catalog
// patches: a balance patch matches incoming definitions against existing rows
// by this tuple. It must be unique among active rows.
type Achievement struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	MapID       *uint           `gorm:"index" json:"map_id"`
	Map         *Map            `gorm:"foreignKey:MapID" json:"map,omitempty"`
	QuestID     *uint           `gorm:"index" json:"quest_id"`
	Quest       *Quest          `gorm:"foreignKey:QuestID" json:"quest,omitempty"`
	Slug        string          `gorm:"not null;index;size:100" json:"slug"`
	Name        string          `gorm:"not null;size:100" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Icon        string          `gorm:"size:50" json:"icon"`
	Kind        string          `gorm:"not null;size:50" json:"kind"`
	Difficulty  *Difficulty     `gorm:"index" json:"difficulty"` // nil means difficulty-agnostic
	Criteria    json.RawMessage `gorm:"type:jsonb" json:"criteria"`
	XPReward    int             `gorm:"not null;default:0" json:"xp_reward"`
	IsActive    bool            `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Achievement model.
func (Achievement) TableName() string {
	return "achievements"
}

// IdentityKey returns the stable identity of the achievement within a map,
// ignoring difficulty. Used for difficulty cascade grouping.
type IdentityKey struct {
	MapID uint
	Slug  string
}

// Identity returns the cascade grouping key. ok is false for achievements not
// bound to a map (map-less achievements never cascade).
func (a *Achievement) Identity() (key IdentityKey, ok bool) {
	if a.MapID == nil {
		return IdentityKey{}, false
	}
	return IdentityKey{MapID: *a.MapID, Slug: a.Slug}, true
}

// UserAchievement represents an achievement unlocked by a user.
//
// Rows are created and deleted only by the evaluation engine (or an explicit
// admin re-lock). VerifiedAt is set and cleared independently of the row's
// existence, but a verified row is by construction always an unlocked one.
type UserAchievement struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	UserID        uint        `gorm:"not null;uniqueIndex:idx_user_achievement" json:"user_id"`
	User          User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	AchievementID uint        `gorm:"not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	Achievement   Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
	UnlockedAt    time.Time   `gorm:"not null" json:"unlocked_at"`
	VerifiedAt    *time.Time  `json:"verified_at"`
}

// TableName specifies the table name for UserAchievement model.
func (UserAchievement) TableName() string {
	return "user_achievements"
}
