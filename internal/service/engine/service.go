// Package engine provides achievement evaluation and the unlock/revoke batch
// driver.
package engine

import (
	"context"
	"fmt"
	"time"

	prommetrics "github.com/bchadwic/zombietracker/internal/metrics"
	"github.com/bchadwic/zombietracker/internal/models"
	"github.com/bchadwic/zombietracker/internal/repository"
	"github.com/bchadwic/zombietracker/pkg/logger"
)

// RunRepository interface for fact snapshot queries.
type RunRepository interface {
	FactsForUserOnMap(userID, mapID uint, verifiedOnly bool) (*models.FactSet, error)
}

// CatalogRepository interface for achievement catalog queries.
type CatalogRepository interface {
	ActiveForMap(mapID uint) ([]models.Achievement, error)
}

// UnlockRepository interface for unlock records and the XP ledger.
type UnlockRepository interface {
	UnlockedForUser(userID uint) ([]models.UserAchievement, error)
	ApplyUnlockBatch(userID uint, toUnlock, toRevoke []models.Achievement) (int, error)
	RecomputeXP(userID uint) (int, error)
}

// Result is the outcome of one evaluation pass for a (user, map) pair.
type Result struct {
	Unlocked   []models.Achievement `json:"unlocked"`
	Revoked    []models.Achievement `json:"revoked"`
	NewTotalXP int                  `json:"new_total_xp"`
}

// Service drives achievement evaluation. All facts for a (user, map) pair are
// fetched once per pass and every achievement is evaluated against that
// in-memory snapshot; the predicate itself never touches the store.
type Service struct {
	runRepo     RunRepository
	catalogRepo CatalogRepository
	unlockRepo  UnlockRepository
	log         *logger.Logger
}

// NewService creates a new evaluation engine service.
func NewService(
	runRepo *repository.RunRepository,
	catalogRepo *repository.AchievementRepository,
	unlockRepo *repository.UnlockRepository,
	log *logger.Logger,
) *Service {
	return &Service{
		runRepo:     runRepo,
		catalogRepo: catalogRepo,
		unlockRepo:  unlockRepo,
		log:         log,
	}
}

// NewServiceWithInterfaces creates a new engine service with interface
// dependencies (useful for testing).
func NewServiceWithInterfaces(
	runRepo RunRepository,
	catalogRepo CatalogRepository,
	unlockRepo UnlockRepository,
	log *logger.Logger,
) *Service {
	return &Service{
		runRepo:     runRepo,
		catalogRepo: catalogRepo,
		unlockRepo:  unlockRepo,
		log:         log,
	}
}

// EvaluateMap re-evaluates every active achievement on a map for one user and
// applies the resulting unlock/revoke sets atomically. It is the single entry
// point called after any run create or delete, and it is idempotent: invoked
// twice with no intervening run changes, the second call is a no-op.
//
//nolint:revive // ctx reserved for future context-aware store clients
func (s *Service) EvaluateMap(ctx context.Context, userID, mapID uint) (*Result, error) {
	start := time.Now()

	facts, err := s.runRepo.FactsForUserOnMap(userID, mapID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch facts: %w", err)
	}

	achievements, err := s.catalogRepo.ActiveForMap(mapID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch achievements: %w", err)
	}

	unlocks, err := s.unlockRepo.UnlockedForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unlocks: %w", err)
	}
	unlocked := make(map[uint]bool, len(unlocks))
	for _, u := range unlocks {
		unlocked[u.AchievementID] = true
	}

	qualified := EffectiveQualification(achievements, facts)

	result := &Result{}
	for i := range achievements {
		a := achievements[i]
		switch {
		case qualified[a.ID] && !unlocked[a.ID]:
			result.Unlocked = append(result.Unlocked, a)
		case !qualified[a.ID] && unlocked[a.ID]:
			result.Revoked = append(result.Revoked, a)
		}
	}

	if len(result.Unlocked) == 0 && len(result.Revoked) == 0 {
		prommetrics.ObserveEvaluation(time.Since(start))
		return result, nil
	}

	newTotal, err := s.unlockRepo.ApplyUnlockBatch(userID, result.Unlocked, result.Revoked)
	if err != nil {
		return nil, fmt.Errorf("failed to apply unlock batch: %w", err)
	}
	result.NewTotalXP = newTotal

	grantedXP := 0
	for _, a := range result.Unlocked {
		grantedXP += a.XPReward
		prommetrics.RecordUnlock(a.Kind)
	}
	for _, a := range result.Revoked {
		prommetrics.RecordRevoke(a.Kind)
	}
	prommetrics.RecordXPGranted(grantedXP)
	prommetrics.ObserveEvaluation(time.Since(start))

	s.log.Info().
		Uint("user_id", userID).
		Uint("map_id", mapID).
		Int("unlocked", len(result.Unlocked)).
		Int("revoked", len(result.Revoked)).
		Int("total_xp", newTotal).
		Msg("Evaluation applied")

	return result, nil
}

// RecomputeXP rebuilds the user's XP totals and level from their unlock
// records. Full-rescan variant used by batch jobs.
//
//nolint:revive // ctx reserved for future context-aware store clients
func (s *Service) RecomputeXP(ctx context.Context, userID uint) (int, error) {
	return s.unlockRepo.RecomputeXP(userID)
}

// EffectiveQualification evaluates every achievement against the snapshot and
// then folds in the difficulty cascade: a difficulty-tagged achievement also
// qualifies when any strictly-harder sibling sharing its (map, slug) identity
// qualifies. Expressing the cascade as derived qualification keeps unlock and
// revocation decisions symmetric, so a cascaded unlock survives redundant
// re-evaluation and is revoked together with the hard-tier run that earned it.
func EffectiveQualification(achievements []models.Achievement, facts *models.FactSet) map[uint]bool {
	qualified := make(map[uint]bool, len(achievements))
	type sibling struct {
		difficulty models.Difficulty
		qualifies  bool
	}
	groups := make(map[models.IdentityKey][]sibling)

	for i := range achievements {
		a := &achievements[i]
		q := Qualifies(a, facts)
		qualified[a.ID] = q
		if key, ok := a.Identity(); ok && a.Difficulty != nil {
			groups[key] = append(groups[key], sibling{difficulty: *a.Difficulty, qualifies: q})
		}
	}

	for i := range achievements {
		a := &achievements[i]
		if qualified[a.ID] || a.Difficulty == nil {
			continue
		}
		key, ok := a.Identity()
		if !ok {
			continue
		}
		for _, sib := range groups[key] {
			if sib.difficulty > *a.Difficulty && sib.qualifies {
				qualified[a.ID] = true
				break
			}
		}
	}

	return qualified
}
