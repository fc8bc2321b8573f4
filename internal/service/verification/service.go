// Package verification maintains the verified axis of unlocked achievements:
// an unlock is marked verified only when the user's verified runs alone
// satisfy its criteria.
package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/bchadwic/zombietracker/internal/metrics"
	"github.com/bchadwic/zombietracker/internal/models"
	"github.com/bchadwic/zombietracker/internal/repository"
	"github.com/bchadwic/zombietracker/internal/service/engine"
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

// UnlockRepository interface for unlock records and verified markers.
type UnlockRepository interface {
	UnlockedForUserOnMap(userID, mapID uint) ([]models.UserAchievement, error)
	SetVerified(userID uint, achievementIDs []uint, verifiedAt time.Time) (int, error)
	ClearVerified(userID uint, achievementIDs []uint) (int, error)
	RecomputeVerifiedXP(userID uint) (int, error)
}

// Service runs the verified grant and revoke passes. Both are pure
// recomputation from current state — never incremental patching — so they
// stay correct under arbitrary edit histories.
type Service struct {
	runRepo     RunRepository
	catalogRepo CatalogRepository
	unlockRepo  UnlockRepository
	log         *logger.Logger
}

// NewService creates a new verification service.
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

// NewServiceWithInterfaces creates a new verification service with interface
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

// GrantForMap re-checks every unlocked, not-yet-verified achievement bound to
// the map against the user's verified runs only, stamps verifiedAt on those
// that pass, and returns the recomputed verified XP total. Called after a run
// on the map is marked verified.
//
//nolint:revive // ctx reserved for future context-aware store clients
func (s *Service) GrantForMap(ctx context.Context, userID, mapID uint) (int, error) {
	qualified, unlocks, err := s.verifiedQualification(userID, mapID)
	if err != nil {
		return 0, err
	}

	var grant []uint
	for _, u := range unlocks {
		if u.VerifiedAt == nil && qualified[u.AchievementID] {
			grant = append(grant, u.AchievementID)
		}
	}

	if len(grant) == 0 {
		return s.unlockRepo.RecomputeVerifiedXP(userID)
	}

	verifiedXP, err := s.unlockRepo.SetVerified(userID, grant, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to set verified markers: %w", err)
	}
	metrics.RecordVerifiedGrants(len(grant))

	s.log.Info().
		Uint("user_id", userID).
		Uint("map_id", mapID).
		Int("granted", len(grant)).
		Int("verified_xp", verifiedXP).
		Msg("Verified markers granted")

	return verifiedXP, nil
}

// RevokeForMap re-checks every currently-verified achievement bound to the
// map against the remaining verified runs, clears verifiedAt on those that no
// longer pass, and returns the recomputed verified XP total. Called after a
// verified run on the map is deleted or unverified.
//
//nolint:revive // ctx reserved for future context-aware store clients
func (s *Service) RevokeForMap(ctx context.Context, userID, mapID uint) (int, error) {
	qualified, unlocks, err := s.verifiedQualification(userID, mapID)
	if err != nil {
		return 0, err
	}

	var revoke []uint
	for _, u := range unlocks {
		if u.VerifiedAt != nil && !qualified[u.AchievementID] {
			revoke = append(revoke, u.AchievementID)
		}
	}

	if len(revoke) == 0 {
		return s.unlockRepo.RecomputeVerifiedXP(userID)
	}

	verifiedXP, err := s.unlockRepo.ClearVerified(userID, revoke)
	if err != nil {
		return 0, fmt.Errorf("failed to clear verified markers: %w", err)
	}
	metrics.RecordVerifiedRevokes(len(revoke))

	s.log.Info().
		Uint("user_id", userID).
		Uint("map_id", mapID).
		Int("revoked", len(revoke)).
		Int("verified_xp", verifiedXP).
		Msg("Verified markers revoked")

	return verifiedXP, nil
}

// RecomputeVerifiedXP rebuilds the user's verified XP total from the verified
// unlock rows. Full-rescan variant used by batch jobs.
//
//nolint:revive // ctx reserved for future context-aware store clients
func (s *Service) RecomputeVerifiedXP(ctx context.Context, userID uint) (int, error) {
	return s.unlockRepo.RecomputeVerifiedXP(userID)
}

// verifiedQualification evaluates the map's active achievements against the
// verified-only fact snapshot. Using the same predicate family (including the
// difficulty cascade) as the unlock path, restricted to a subset of facts,
// guarantees the verified check is never more permissive than the overall one.
func (s *Service) verifiedQualification(userID, mapID uint) (map[uint]bool, []models.UserAchievement, error) {
	facts, err := s.runRepo.FactsForUserOnMap(userID, mapID, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch verified facts: %w", err)
	}

	achievements, err := s.catalogRepo.ActiveForMap(mapID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch achievements: %w", err)
	}

	unlocks, err := s.unlockRepo.UnlockedForUserOnMap(userID, mapID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch unlocks: %w", err)
	}

	return engine.EffectiveQualification(achievements, facts), unlocks, nil
}
