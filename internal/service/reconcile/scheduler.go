package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bchadwic/zombietracker/internal/config"
	"github.com/bchadwic/zombietracker/pkg/logger"
)

// Scheduler runs the reconciliation jobs on cron schedules.
type Scheduler struct {
	cfg     config.ReconcileConfig
	service *Service
	log     *logger.Logger
	cron    *cron.Cron
}

// NewScheduler creates a new reconciliation scheduler.
func NewScheduler(cfg config.ReconcileConfig, service *Service, log *logger.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, service: service, log: log}
}

// Start registers the configured jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.log.Info().Msg("Reconciliation scheduler is disabled in configuration")
		return nil
	}

	location, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.cfg.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	if s.cfg.ReunlockSchedule != "" {
		_, err = s.cron.AddFunc(s.cfg.ReunlockSchedule, func() {
			if _, err := s.service.ReunlockAll(context.Background()); err != nil {
				s.log.Error().Err(err).Msg("Scheduled re-unlock failed")
			}
		})
		if err != nil {
			return fmt.Errorf("failed to register re-unlock job: %w", err)
		}
		s.log.Info().Str("schedule", s.cfg.ReunlockSchedule).Msg("Re-unlock job registered")
	}

	if s.cfg.RecomputeSchedule != "" {
		_, err = s.cron.AddFunc(s.cfg.RecomputeSchedule, func() {
			ctx := context.Background()
			if _, err := s.service.RecomputeXPAll(ctx); err != nil {
				s.log.Error().Err(err).Msg("Scheduled XP recompute failed")
			}
			if _, err := s.service.RecomputeVerifiedXPAll(ctx); err != nil {
				s.log.Error().Err(err).Msg("Scheduled verified XP recompute failed")
			}
		})
		if err != nil {
			return fmt.Errorf("failed to register recompute job: %w", err)
		}
		s.log.Info().Str("schedule", s.cfg.RecomputeSchedule).Msg("XP recompute job registered")
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop. Jobs already running finish; each unit of work is
// idempotent, so an interrupted batch is simply re-run next time.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
