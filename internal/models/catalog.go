// Package models defines domain models for the zombies run tracker.
package models

import (
	"time"
)

// Map represents a playable zombies map.
type Map struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null;size:100" json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null;size:100" json:"slug"`
	Game      string    `gorm:"size:50" json:"game"`
	RoundCap  *int      `json:"round_cap"` // nil means the map has no round cap
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Map model.
func (Map) TableName() string {
	return "maps"
}

// Quest represents a main Easter egg quest on a map.
type Quest struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MapID     uint      `gorm:"not null;index" json:"map_id"`
	Map       Map       `gorm:"foreignKey:MapID" json:"map,omitempty"`
	Name      string    `gorm:"not null;size:100" json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null;size:100" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Quest model.
func (Quest) TableName() string {
	return "quests"
}

// Difficulty is an ordered game difficulty tier. Higher values are harder.
type Difficulty int

// Difficulty tiers, ordered.
const (
	DifficultyCasual    Difficulty = 1
	DifficultyNormal    Difficulty = 2
	DifficultyHardcore  Difficulty = 3
	DifficultyRealistic Difficulty = 4
)

// String returns the display name of the difficulty.
func (d Difficulty) String() string {
	switch d {
	case DifficultyCasual:
		return "casual"
	case DifficultyNormal:
		return "normal"
	case DifficultyHardcore:
		return "hardcore"
	case DifficultyRealistic:
		return "realistic"
	default:
		return "unknown"
	}
}

// Valid reports whether d is a known difficulty tier.
func (d Difficulty) Valid() bool {
	return d >= DifficultyCasual && d <= DifficultyRealistic
}
