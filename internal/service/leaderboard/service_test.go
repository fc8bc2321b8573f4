package leaderboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/bchadwic/zombietracker/internal/cache"
	"github.com/bchadwic/zombietracker/internal/config"
	"github.com/bchadwic/zombietracker/internal/levels"
	"github.com/bchadwic/zombietracker/internal/models"
	"github.com/bchadwic/zombietracker/pkg/logger"
	"github.com/bchadwic/zombietracker/test/mocks"
)

type mockUserRepo struct {
	users map[uint]*models.User
	byXP  []models.User
}

func (m *mockUserRepo) GetByID(id uint) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func (m *mockUserRepo) TopByTotalXP(limit int) ([]models.User, error) {
	if limit > len(m.byXP) {
		limit = len(m.byXP)
	}
	return m.byXP[:limit], nil
}

func (m *mockUserRepo) TopByVerifiedXP(limit int) ([]models.User, error) {
	return m.TopByTotalXP(limit)
}

type mockUnlockRepo struct {
	unlocks []models.UserAchievement
}

func (m *mockUnlockRepo) UnlockedForUser(userID uint) ([]models.UserAchievement, error) {
	return m.unlocks, nil
}

func testCurve(t *testing.T) *levels.Curve {
	t.Helper()
	curve, err := levels.NewCurve(config.LevelsConfig{MaxLevel: 100, MaxObtainableXP: 250000})
	if err != nil {
		t.Fatalf("Failed to build curve: %v", err)
	}
	return curve
}

func miniredisCache(t *testing.T) cache.Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	return cache.NewRedisWithClient(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
}

func TestGetLeaderboardRanksAndCaches(t *testing.T) {
	users := &mockUserRepo{byXP: []models.User{
		{ID: 2, Username: "bob", TotalXP: 1200, Level: 6},
		{ID: 3, Username: "carol", TotalXP: 800, Level: 5},
		{ID: 1, Username: "alice", TotalXP: 500, Level: 4},
	}}
	svc := NewServiceWithInterfaces(users, &mockUnlockRepo{}, testCurve(t), miniredisCache(t), logger.NewNop())

	entries, err := svc.GetLeaderboard(context.Background(), false, 10)
	if err != nil {
		t.Fatalf("GetLeaderboard() failed: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Username != "bob" || entries[0].Rank != 1 {
		t.Errorf("Expected bob at rank 1, got %+v", entries[0])
	}
	if entries[2].Rank != 3 {
		t.Errorf("Expected last rank 3, got %d", entries[2].Rank)
	}

	// The second read is served from cache: mutating the store must not show
	// through within the TTL.
	users.byXP = nil
	cached, err := svc.GetLeaderboard(context.Background(), false, 10)
	if err != nil {
		t.Fatalf("Cached GetLeaderboard() failed: %v", err)
	}
	if len(cached) != 3 {
		t.Errorf("Expected cached 3 entries, got %d", len(cached))
	}
}

func TestGetLeaderboardKeysByVariantAndLimit(t *testing.T) {
	users := &mockUserRepo{byXP: []models.User{
		{ID: 1, Username: "alice", TotalXP: 500},
		{ID: 2, Username: "bob", TotalXP: 400},
	}}
	c := mocks.NewMockCache()
	svc := NewServiceWithInterfaces(users, &mockUnlockRepo{}, testCurve(t), c, logger.NewNop())

	if _, err := svc.GetLeaderboard(context.Background(), false, 10); err != nil {
		t.Fatalf("GetLeaderboard() failed: %v", err)
	}
	if _, err := svc.GetLeaderboard(context.Background(), true, 10); err != nil {
		t.Fatalf("GetLeaderboard(verified) failed: %v", err)
	}
	if _, err := svc.GetLeaderboard(context.Background(), false, 5); err != nil {
		t.Fatalf("GetLeaderboard(limit 5) failed: %v", err)
	}

	// Variant and limit are part of the key, so three distinct entries.
	if c.Len() != 3 {
		t.Errorf("Expected 3 cache keys, got %d", c.Len())
	}
}

func TestGetLeaderboardCacheFailureFallsBack(t *testing.T) {
	users := &mockUserRepo{byXP: []models.User{
		{ID: 1, Username: "alice", TotalXP: 500},
	}}
	c := mocks.NewMockCache()
	c.FailWith(errors.New("connection refused"))
	svc := NewServiceWithInterfaces(users, &mockUnlockRepo{}, testCurve(t), c, logger.NewNop())

	entries, err := svc.GetLeaderboard(context.Background(), false, 10)
	if err != nil {
		t.Fatalf("Expected store fallback on cache failure, got %v", err)
	}
	if len(entries) != 1 || entries[0].Username != "alice" {
		t.Errorf("Unexpected entries: %+v", entries)
	}
}

func TestGetLeaderboardWithoutCache(t *testing.T) {
	users := &mockUserRepo{byXP: []models.User{
		{ID: 1, Username: "alice", TotalXP: 500},
	}}
	svc := NewServiceWithInterfaces(users, &mockUnlockRepo{}, testCurve(t), nil, logger.NewNop())

	entries, err := svc.GetLeaderboard(context.Background(), false, 10)
	if err != nil {
		t.Fatalf("GetLeaderboard() without cache failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 entry, got %d", len(entries))
	}
}

func TestGetUserStats(t *testing.T) {
	now := time.Now()
	users := &mockUserRepo{users: map[uint]*models.User{
		7: {ID: 7, Username: "alice", TotalXP: 175, VerifiedXP: 100},
	}}
	unlocks := &mockUnlockRepo{unlocks: []models.UserAchievement{
		{AchievementID: 1, VerifiedAt: &now},
		{AchievementID: 2},
	}}
	svc := NewServiceWithInterfaces(users, unlocks, testCurve(t), nil, logger.NewNop())

	stats, err := svc.GetUserStats(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetUserStats() failed: %v", err)
	}

	// 175 XP sits halfway between the 100 and 250 thresholds.
	if stats.Level != 2 {
		t.Errorf("Expected level 2, got %d", stats.Level)
	}
	if stats.ProgressToNext != 0.5 {
		t.Errorf("Expected progress 0.5, got %f", stats.ProgressToNext)
	}
	if stats.NextLevelXP != 250 {
		t.Errorf("Expected next level at 250 XP, got %d", stats.NextLevelXP)
	}
	if stats.Unlocked != 2 || stats.Verified != 1 {
		t.Errorf("Expected 2 unlocked 1 verified, got %d/%d", stats.Unlocked, stats.Verified)
	}

	if _, err := svc.GetUserStats(context.Background(), 999); err == nil {
		t.Error("Expected error for unknown user")
	}
}
