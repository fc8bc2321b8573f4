package verification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bchadwic/zombietracker/internal/models"
	"github.com/bchadwic/zombietracker/pkg/logger"
)

type mockRunRepo struct {
	allFacts      *models.FactSet
	verifiedFacts *models.FactSet
}

func (m *mockRunRepo) FactsForUserOnMap(userID, mapID uint, verifiedOnly bool) (*models.FactSet, error) {
	if verifiedOnly {
		return m.verifiedFacts, nil
	}
	return m.allFacts, nil
}

type mockCatalogRepo struct {
	achievements []models.Achievement
}

func (m *mockCatalogRepo) ActiveForMap(mapID uint) ([]models.Achievement, error) {
	return m.achievements, nil
}

// mockUnlockRepo holds unlock rows keyed by achievement ID and tracks the
// verified XP total the way the real ledger does.
type mockUnlockRepo struct {
	unlocks map[uint]*models.UserAchievement
	rewards map[uint]int
}

func newMockUnlockRepo() *mockUnlockRepo {
	return &mockUnlockRepo{
		unlocks: make(map[uint]*models.UserAchievement),
		rewards: make(map[uint]int),
	}
}

func (m *mockUnlockRepo) addUnlock(achievementID uint, xp int, verified bool) {
	row := &models.UserAchievement{UserID: 1, AchievementID: achievementID}
	if verified {
		now := time.Now()
		row.VerifiedAt = &now
	}
	m.unlocks[achievementID] = row
	m.rewards[achievementID] = xp
}

func (m *mockUnlockRepo) UnlockedForUserOnMap(userID, mapID uint) ([]models.UserAchievement, error) {
	var out []models.UserAchievement
	for _, u := range m.unlocks {
		out = append(out, *u)
	}
	return out, nil
}

func (m *mockUnlockRepo) SetVerified(userID uint, achievementIDs []uint, verifiedAt time.Time) (int, error) {
	for _, id := range achievementIDs {
		if u, ok := m.unlocks[id]; ok {
			at := verifiedAt
			u.VerifiedAt = &at
		}
	}
	return m.verifiedXP(), nil
}

func (m *mockUnlockRepo) ClearVerified(userID uint, achievementIDs []uint) (int, error) {
	for _, id := range achievementIDs {
		if u, ok := m.unlocks[id]; ok {
			u.VerifiedAt = nil
		}
	}
	return m.verifiedXP(), nil
}

func (m *mockUnlockRepo) RecomputeVerifiedXP(userID uint) (int, error) {
	return m.verifiedXP(), nil
}

func (m *mockUnlockRepo) verifiedXP() int {
	total := 0
	for id, u := range m.unlocks {
		if u.VerifiedAt != nil {
			total += m.rewards[id]
		}
	}
	return total
}

func milestone(t *testing.T, id uint, mapID uint, slug string, round int, xp int) models.Achievement {
	t.Helper()
	raw, err := json.Marshal(models.RoundMilestoneCriteria{Round: &round})
	if err != nil {
		t.Fatalf("Failed to marshal criteria: %v", err)
	}
	return models.Achievement{
		ID:       id,
		MapID:    &mapID,
		Slug:     slug,
		Kind:     models.KindRoundMilestone,
		Criteria: raw,
		XPReward: xp,
		IsActive: true,
	}
}

func TestGrantForMapStampsOnlyVerifiedQualified(t *testing.T) {
	// One verified run to round 25, one unverified to round 60. Both
	// achievements are unlocked; only the 20-round one may be verified.
	runs := &mockRunRepo{
		allFacts: &models.FactSet{Challenges: []models.ChallengeFact{
			{ChallengeType: models.ChallengeHighestRound, RoundReached: 60},
			{ChallengeType: models.ChallengeHighestRound, RoundReached: 25},
		}},
		verifiedFacts: &models.FactSet{Challenges: []models.ChallengeFact{
			{ChallengeType: models.ChallengeHighestRound, RoundReached: 25},
		}},
	}
	catalog := &mockCatalogRepo{achievements: []models.Achievement{
		milestone(t, 1, 10, "round-20", 20, 100),
		milestone(t, 2, 10, "round-50", 50, 250),
	}}
	unlocks := newMockUnlockRepo()
	unlocks.addUnlock(1, 100, false)
	unlocks.addUnlock(2, 250, false)

	svc := NewServiceWithInterfaces(runs, catalog, unlocks, logger.NewNop())
	verifiedXP, err := svc.GrantForMap(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("GrantForMap failed: %v", err)
	}

	if verifiedXP != 100 {
		t.Errorf("Expected verified XP 100, got %d", verifiedXP)
	}
	if unlocks.unlocks[1].VerifiedAt == nil {
		t.Error("Expected achievement 1 verified")
	}
	if unlocks.unlocks[2].VerifiedAt != nil {
		t.Error("Achievement 2 must not be verified by an unverified run")
	}
}

func TestGrantForMapNeverExceedsUnlocked(t *testing.T) {
	// Achievement 2 would pass on verified facts but is not unlocked, so the
	// grant pass must leave it alone.
	runs := &mockRunRepo{
		verifiedFacts: &models.FactSet{Challenges: []models.ChallengeFact{
			{ChallengeType: models.ChallengeHighestRound, RoundReached: 55},
		}},
	}
	catalog := &mockCatalogRepo{achievements: []models.Achievement{
		milestone(t, 1, 10, "round-20", 20, 100),
		milestone(t, 2, 10, "round-50", 50, 250),
	}}
	unlocks := newMockUnlockRepo()
	unlocks.addUnlock(1, 100, false)

	svc := NewServiceWithInterfaces(runs, catalog, unlocks, logger.NewNop())
	verifiedXP, err := svc.GrantForMap(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("GrantForMap failed: %v", err)
	}

	if verifiedXP != 100 {
		t.Errorf("Expected verified XP 100, got %d", verifiedXP)
	}
	if _, ok := unlocks.unlocks[2]; ok {
		t.Error("Grant pass must not create unlock rows")
	}
}

func TestRevokeForMapClearsStaleMarkers(t *testing.T) {
	// The verified run that earned achievement 2 is gone; its marker must be
	// cleared while achievement 1 stays verified.
	runs := &mockRunRepo{
		verifiedFacts: &models.FactSet{Challenges: []models.ChallengeFact{
			{ChallengeType: models.ChallengeHighestRound, RoundReached: 25},
		}},
	}
	catalog := &mockCatalogRepo{achievements: []models.Achievement{
		milestone(t, 1, 10, "round-20", 20, 100),
		milestone(t, 2, 10, "round-50", 50, 250),
	}}
	unlocks := newMockUnlockRepo()
	unlocks.addUnlock(1, 100, true)
	unlocks.addUnlock(2, 250, true)

	svc := NewServiceWithInterfaces(runs, catalog, unlocks, logger.NewNop())
	verifiedXP, err := svc.RevokeForMap(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("RevokeForMap failed: %v", err)
	}

	if verifiedXP != 100 {
		t.Errorf("Expected verified XP 100, got %d", verifiedXP)
	}
	if unlocks.unlocks[1].VerifiedAt == nil {
		t.Error("Achievement 1 must stay verified")
	}
	if unlocks.unlocks[2].VerifiedAt != nil {
		t.Error("Achievement 2 marker must be cleared")
	}
}

func TestRevokeForMapNoChangesRecomputes(t *testing.T) {
	runs := &mockRunRepo{
		verifiedFacts: &models.FactSet{Challenges: []models.ChallengeFact{
			{ChallengeType: models.ChallengeHighestRound, RoundReached: 25},
		}},
	}
	catalog := &mockCatalogRepo{achievements: []models.Achievement{
		milestone(t, 1, 10, "round-20", 20, 100),
	}}
	unlocks := newMockUnlockRepo()
	unlocks.addUnlock(1, 100, true)

	svc := NewServiceWithInterfaces(runs, catalog, unlocks, logger.NewNop())
	verifiedXP, err := svc.RevokeForMap(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("RevokeForMap failed: %v", err)
	}
	if verifiedXP != 100 {
		t.Errorf("Expected verified XP 100 unchanged, got %d", verifiedXP)
	}
}

func TestVerifiedCascadeFollowsUnlockCascade(t *testing.T) {
	// A verified hardcore run verifies the cascaded lower tiers too.
	hardcore := models.DifficultyHardcore
	casual := models.DifficultyCasual

	hard := milestone(t, 1, 10, "round-30", 30, 200)
	hard.Difficulty = &hardcore
	easy := milestone(t, 2, 10, "round-30", 30, 50)
	easy.Difficulty = &casual

	runs := &mockRunRepo{
		verifiedFacts: &models.FactSet{Challenges: []models.ChallengeFact{
			{ChallengeType: models.ChallengeHighestRound, RoundReached: 30, Difficulty: &hardcore},
		}},
	}
	catalog := &mockCatalogRepo{achievements: []models.Achievement{hard, easy}}
	unlocks := newMockUnlockRepo()
	unlocks.addUnlock(1, 200, false)
	unlocks.addUnlock(2, 50, false)

	svc := NewServiceWithInterfaces(runs, catalog, unlocks, logger.NewNop())
	verifiedXP, err := svc.GrantForMap(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("GrantForMap failed: %v", err)
	}

	if verifiedXP != 250 {
		t.Errorf("Expected verified XP 250, got %d", verifiedXP)
	}
	if unlocks.unlocks[2].VerifiedAt == nil {
		t.Error("Cascaded casual tier should be verified alongside hardcore")
	}
}
