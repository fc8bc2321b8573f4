package models

import (
	"time"
)

// Well-known challenge types. Free-form strings are allowed; these are the
// types the seed catalog references.
const (
	ChallengeHighestRound = "HIGHEST_ROUND"
	ChallengeNoPerks      = "NO_PERKS"
	ChallengeNoPack       = "NO_PACK"
	ChallengeNoDowns      = "NO_DOWNS"
	ChallengeSpeedrun     = "SPEEDRUN"
	ChallengeFirstRoom    = "FIRST_ROOM"
)

// ChallengeRun represents a logged challenge attempt on a map. Runs are
// immutable facts once logged; the only retract operation is deletion, which
// must trigger revocation re-evaluation for the (user, map) pair.
type ChallengeRun struct {
	ID                    uint        `gorm:"primaryKey" json:"id"`
	UserID                uint        `gorm:"not null;index:idx_challenge_user_map" json:"user_id"`
	User                  User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	MapID                 uint        `gorm:"not null;index:idx_challenge_user_map" json:"map_id"`
	Map                   Map         `gorm:"foreignKey:MapID" json:"map,omitempty"`
	ChallengeType         string      `gorm:"not null;size:50" json:"challenge_type"`
	RoundReached          int         `gorm:"not null" json:"round_reached"`
	Difficulty            *Difficulty `json:"difficulty"`
	CompletionTimeSeconds *int        `json:"completion_time_seconds"`
	IsVerified            bool        `gorm:"not null;default:false;index" json:"is_verified"`
	ProofURL              string      `gorm:"type:text" json:"proof_url"`
	CreatedAt             time.Time   `json:"created_at"`
}

// TableName specifies the table name for ChallengeRun model.
func (ChallengeRun) TableName() string {
	return "challenge_runs"
}

// QuestRun represents a completed Easter egg quest run.
type QuestRun struct {
	ID                    uint        `gorm:"primaryKey" json:"id"`
	UserID                uint        `gorm:"not null;index:idx_quest_user_map" json:"user_id"`
	User                  User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	MapID                 uint        `gorm:"not null;index:idx_quest_user_map" json:"map_id"`
	Map                   Map         `gorm:"foreignKey:MapID" json:"map,omitempty"`
	QuestID               uint        `gorm:"not null;index" json:"quest_id"`
	Quest                 Quest       `gorm:"foreignKey:QuestID" json:"quest,omitempty"`
	RoundCompleted        *int        `json:"round_completed"`
	Difficulty            *Difficulty `json:"difficulty"`
	CompletionTimeSeconds *int        `json:"completion_time_seconds"`
	IsVerified            bool        `gorm:"not null;default:false;index" json:"is_verified"`
	ProofURL              string      `gorm:"type:text" json:"proof_url"`
	CreatedAt             time.Time   `json:"created_at"`
}

// TableName specifies the table name for QuestRun model.
func (QuestRun) TableName() string {
	return "quest_runs"
}
