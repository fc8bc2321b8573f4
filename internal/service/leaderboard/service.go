// Package leaderboard provides XP leaderboards and per-user progress stats.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bchadwic/zombietracker/internal/cache"
	"github.com/bchadwic/zombietracker/internal/levels"
	"github.com/bchadwic/zombietracker/internal/models"
	"github.com/bchadwic/zombietracker/internal/repository"
	"github.com/bchadwic/zombietracker/pkg/logger"
)

// cacheTTL bounds staleness of leaderboard reads; evaluation writes do not
// invalidate the cache.
const cacheTTL = 60 * time.Second

// UserRepository interface for user ranking queries.
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	TopByTotalXP(limit int) ([]models.User, error)
	TopByVerifiedXP(limit int) ([]models.User, error)
}

// UnlockRepository interface for unlock counts.
type UnlockRepository interface {
	UnlockedForUser(userID uint) ([]models.UserAchievement, error)
}

// Entry is a single leaderboard row.
type Entry struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	TotalXP    int    `json:"total_xp"`
	VerifiedXP int    `json:"verified_xp"`
	Level      int    `json:"level"`
	Rank       int    `json:"rank"`
}

// UserStats is the per-user progress summary.
type UserStats struct {
	UserID         uint    `json:"user_id"`
	Username       string  `json:"username"`
	TotalXP        int     `json:"total_xp"`
	VerifiedXP     int     `json:"verified_xp"`
	Level          int     `json:"level"`
	ProgressToNext float64 `json:"progress_to_next"`
	NextLevelXP    int     `json:"next_level_xp"`
	Unlocked       int     `json:"unlocked"`
	Verified       int     `json:"verified"`
}

// Service builds leaderboards and user stats.
type Service struct {
	userRepo   UserRepository
	unlockRepo UnlockRepository
	curve      *levels.Curve
	cache      cache.Cache
	log        *logger.Logger
}

// NewService creates a new leaderboard service.
func NewService(
	userRepo *repository.UserRepository,
	unlockRepo *repository.UnlockRepository,
	curve *levels.Curve,
	c cache.Cache,
	log *logger.Logger,
) *Service {
	return &Service{
		userRepo:   userRepo,
		unlockRepo: unlockRepo,
		curve:      curve,
		cache:      c,
		log:        log,
	}
}

// NewServiceWithInterfaces creates a new leaderboard service with interface
// dependencies (useful for testing).
func NewServiceWithInterfaces(
	userRepo UserRepository,
	unlockRepo UnlockRepository,
	curve *levels.Curve,
	c cache.Cache,
	log *logger.Logger,
) *Service {
	return &Service{
		userRepo:   userRepo,
		unlockRepo: unlockRepo,
		curve:      curve,
		cache:      c,
		log:        log,
	}
}

// GetLeaderboard returns the top users by total or verified XP. Results are
// cached briefly in Redis; a cache failure falls back to the store.
func (s *Service) GetLeaderboard(ctx context.Context, verified bool, limit int) ([]Entry, error) {
	key := fmt.Sprintf("leaderboard:total:%d", limit)
	if verified {
		key = fmt.Sprintf("leaderboard:verified:%d", limit)
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
			var entries []Entry
			if err := json.Unmarshal([]byte(cached), &entries); err == nil {
				return entries, nil
			}
		}
	}

	var (
		users []models.User
		err   error
	)
	if verified {
		users, err = s.userRepo.TopByVerifiedXP(limit)
	} else {
		users, err = s.userRepo.TopByTotalXP(limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(users))
	for i, u := range users {
		entries = append(entries, Entry{
			UserID:     u.ID,
			Username:   u.Username,
			TotalXP:    u.TotalXP,
			VerifiedXP: u.VerifiedXP,
			Level:      u.Level,
			Rank:       i + 1,
		})
	}

	if s.cache != nil {
		if data, err := json.Marshal(entries); err == nil {
			if err := s.cache.Set(ctx, key, string(data), cacheTTL); err != nil {
				s.log.Warn().Err(err).Msg("Failed to cache leaderboard")
			}
		}
	}

	return entries, nil
}

// GetUserStats returns a user's XP, level and progress summary.
func (s *Service) GetUserStats(ctx context.Context, userID uint) (*UserStats, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	unlocks, err := s.unlockRepo.UnlockedForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unlocks: %w", err)
	}
	verified := 0
	for _, u := range unlocks {
		if u.VerifiedAt != nil {
			verified++
		}
	}

	level := s.curve.LevelFor(user.TotalXP)
	stats := &UserStats{
		UserID:         user.ID,
		Username:       user.Username,
		TotalXP:        user.TotalXP,
		VerifiedXP:     user.VerifiedXP,
		Level:          level,
		ProgressToNext: s.curve.ProgressToNext(user.TotalXP),
		Unlocked:       len(unlocks),
		Verified:       verified,
	}
	if level < s.curve.MaxLevel() {
		stats.NextLevelXP = s.curve.ThresholdFor(level + 1)
	} else {
		stats.NextLevelXP = user.TotalXP
	}

	return stats, nil
}
