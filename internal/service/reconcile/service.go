// Package reconcile provides the batch reconciliation jobs: full re-unlock
// after catalog changes and full XP / verified-XP recomputes. The jobs are
// orchestration only — every per-user decision is delegated to the evaluation
// engine and the XP ledger.
package reconcile

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bchadwic/zombietracker/internal/metrics"
	"github.com/bchadwic/zombietracker/internal/repository"
	"github.com/bchadwic/zombietracker/internal/service/engine"
	"github.com/bchadwic/zombietracker/internal/service/verification"
	"github.com/bchadwic/zombietracker/pkg/logger"
)

// Engine interface for per-user evaluation operations.
type Engine interface {
	EvaluateMap(ctx context.Context, userID, mapID uint) (*engine.Result, error)
	RecomputeXP(ctx context.Context, userID uint) (int, error)
}

// Verifier interface for per-user verified XP operations.
type Verifier interface {
	RecomputeVerifiedXP(ctx context.Context, userID uint) (int, error)
}

// UserRepository interface for user iteration.
type UserRepository interface {
	ListIDs() ([]uint, error)
}

// MapRepository interface for map iteration.
type MapRepository interface {
	ListIDs() ([]uint, error)
}

// Report summarizes a reconciliation run. Failed units are counted and
// logged, never propagated: one broken user must not halt the batch. A
// partially-run job is safe to re-run because each unit is idempotent.
type Report struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Service runs the reconciliation jobs. Users are processed concurrently up
// to workers at a time; all work for a single user stays on one goroutine so
// the XP ledger never sees competing writes to the same user row.
type Service struct {
	engine   Engine
	verifier Verifier
	userRepo UserRepository
	mapRepo  MapRepository
	workers  int
	log      *logger.Logger
}

// NewService creates a new reconciliation service.
func NewService(
	eng *engine.Service,
	verifier *verification.Service,
	userRepo *repository.UserRepository,
	mapRepo *repository.MapRepository,
	workers int,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(eng, verifier, userRepo, mapRepo, workers, log)
}

// NewServiceWithInterfaces creates a new reconciliation service with
// interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	eng Engine,
	verifier Verifier,
	userRepo UserRepository,
	mapRepo MapRepository,
	workers int,
	log *logger.Logger,
) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		engine:   eng,
		verifier: verifier,
		userRepo: userRepo,
		mapRepo:  mapRepo,
		workers:  workers,
		log:      log,
	}
}

// ReunlockAll re-evaluates every (user, map) pair. Run after a balance patch
// so the whole population converges on the new catalog. Deliberately a full
// O(users × maps) scan: correctness first, resumability over cleverness.
func (s *Service) ReunlockAll(ctx context.Context) (*Report, error) {
	userIDs, err := s.userRepo.ListIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	mapIDs, err := s.mapRepo.ListIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to list maps: %w", err)
	}

	var mu sync.Mutex
	report := &Report{}
	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			for _, mapID := range mapIDs {
				if _, err := s.engine.EvaluateMap(ctx, userID, mapID); err != nil {
					s.log.Error().
						Err(err).
						Uint("user_id", userID).
						Uint("map_id", mapID).
						Msg("Failed to re-evaluate map")
					mu.Lock()
					report.Failed++
					mu.Unlock()
					metrics.RecordReconcileUnit("reunlock", true)
					continue
				}
				mu.Lock()
				report.Processed++
				mu.Unlock()
				metrics.RecordReconcileUnit("reunlock", false)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info().
		Int("processed", report.Processed).
		Int("failed", report.Failed).
		Msg("Re-unlock reconciliation complete")

	return report, nil
}

// RecomputeXPAll rebuilds every user's XP total and level from their unlock
// records.
func (s *Service) RecomputeXPAll(ctx context.Context) (*Report, error) {
	return s.perUser(ctx, "recompute_xp", func(ctx context.Context, userID uint) error {
		_, err := s.engine.RecomputeXP(ctx, userID)
		return err
	})
}

// RecomputeVerifiedXPAll rebuilds every user's verified XP total.
func (s *Service) RecomputeVerifiedXPAll(ctx context.Context) (*Report, error) {
	return s.perUser(ctx, "recompute_verified_xp", func(ctx context.Context, userID uint) error {
		_, err := s.verifier.RecomputeVerifiedXP(ctx, userID)
		return err
	})
}

func (s *Service) perUser(ctx context.Context, job string, fn func(context.Context, uint) error) (*Report, error) {
	userIDs, err := s.userRepo.ListIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var mu sync.Mutex
	report := &Report{}
	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			if err := fn(ctx, userID); err != nil {
				s.log.Error().Err(err).Uint("user_id", userID).Str("job", job).Msg("Reconciliation unit failed")
				mu.Lock()
				report.Failed++
				mu.Unlock()
				metrics.RecordReconcileUnit(job, true)
				return nil
			}
			mu.Lock()
			report.Processed++
			mu.Unlock()
			metrics.RecordReconcileUnit(job, false)
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info().
		Str("job", job).
		Int("processed", report.Processed).
		Int("failed", report.Failed).
		Msg("Reconciliation complete")

	return report, nil
}
