// Package catalog applies achievement catalog patches. A balance patch is a
// bulk replacement of the active catalog that must never orphan historical
// unlock rows: existing rows are matched by their stable
// (map, slug, difficulty) identity and updated in place, new definitions are
// created, and unmatched active rows are deactivated rather than deleted.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bchadwic/zombietracker/internal/models"
	"github.com/bchadwic/zombietracker/internal/repository"
	"github.com/bchadwic/zombietracker/pkg/logger"
)

// AchievementRepository interface for catalog persistence.
type AchievementRepository interface {
	ActiveAll() ([]models.Achievement, error)
	FindByIdentity(mapID *uint, slug string, difficulty *models.Difficulty) (*models.Achievement, error)
	Create(a *models.Achievement) error
	Update(a *models.Achievement) error
	Deactivate(id uint) error
}

// MapRepository interface for resolving map and quest slugs.
type MapRepository interface {
	GetBySlug(slug string) (*models.Map, error)
	GetQuestBySlug(slug string) (*models.Quest, error)
}

// Definition is one achievement definition in a patch, referencing maps and
// quests by slug so patch files stay stable across environments.
type Definition struct {
	MapSlug     string                 `yaml:"map" json:"map"`
	QuestSlug   string                 `yaml:"quest" json:"quest"`
	Slug        string                 `yaml:"slug" json:"slug"`
	Name        string                 `yaml:"name" json:"name"`
	Description string                 `yaml:"description" json:"description"`
	Icon        string                 `yaml:"icon" json:"icon"`
	Kind        string                 `yaml:"kind" json:"kind"`
	Difficulty  *int                   `yaml:"difficulty" json:"difficulty"`
	XPReward    int                    `yaml:"xp_reward" json:"xp_reward"`
	Criteria    map[string]interface{} `yaml:"criteria" json:"criteria"`
}

// PatchReport summarizes what a patch changed.
type PatchReport struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Deactivated int `json:"deactivated"`
	Skipped     int `json:"skipped"`
}

// Service applies catalog patches.
type Service struct {
	achievementRepo AchievementRepository
	mapRepo         MapRepository
	log             *logger.Logger
}

// NewService creates a new catalog service.
func NewService(
	achievementRepo *repository.AchievementRepository,
	mapRepo *repository.MapRepository,
	log *logger.Logger,
) *Service {
	return &Service{
		achievementRepo: achievementRepo,
		mapRepo:         mapRepo,
		log:             log,
	}
}

// NewServiceWithInterfaces creates a new catalog service with interface
// dependencies (useful for testing).
func NewServiceWithInterfaces(
	achievementRepo AchievementRepository,
	mapRepo MapRepository,
	log *logger.Logger,
) *Service {
	return &Service{
		achievementRepo: achievementRepo,
		mapRepo:         mapRepo,
		log:             log,
	}
}

// ApplyPatch replaces the active catalog with the given definitions.
// Definitions with unknown kinds, undecodable criteria, or unresolvable
// map/quest slugs are skipped with a warning so one bad row never blocks a
// balance patch. Callers are expected to run a re-unlock reconciliation
// afterwards.
//
//nolint:revive // ctx reserved for future context-aware store clients
func (s *Service) ApplyPatch(ctx context.Context, defs []Definition) (*PatchReport, error) {
	existing, err := s.achievementRepo.ActiveAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load active catalog: %w", err)
	}

	report := &PatchReport{}
	matched := make(map[uint]bool, len(existing))

	for i := range defs {
		def := &defs[i]
		row, err := s.buildRow(def)
		if err != nil {
			s.log.Warn().Err(err).Str("slug", def.Slug).Msg("Skipping invalid definition")
			report.Skipped++
			continue
		}

		current, err := s.achievementRepo.FindByIdentity(row.MapID, row.Slug, row.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("failed to match definition %q: %w", def.Slug, err)
		}

		if current == nil {
			if err := s.achievementRepo.Create(row); err != nil {
				return nil, fmt.Errorf("failed to create achievement %q: %w", def.Slug, err)
			}
			report.Created++
			continue
		}

		matched[current.ID] = true
		current.Name = row.Name
		current.Description = row.Description
		current.Icon = row.Icon
		current.Kind = row.Kind
		current.QuestID = row.QuestID
		current.Criteria = row.Criteria
		current.XPReward = row.XPReward
		if err := s.achievementRepo.Update(current); err != nil {
			return nil, fmt.Errorf("failed to update achievement %q: %w", def.Slug, err)
		}
		report.Updated++
	}

	for i := range existing {
		if matched[existing[i].ID] {
			continue
		}
		if err := s.achievementRepo.Deactivate(existing[i].ID); err != nil {
			return nil, fmt.Errorf("failed to deactivate achievement %d: %w", existing[i].ID, err)
		}
		report.Deactivated++
	}

	s.log.Info().
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("deactivated", report.Deactivated).
		Int("skipped", report.Skipped).
		Msg("Catalog patch applied")

	return report, nil
}

// buildRow resolves a definition into an achievement row, validating the
// criteria payload at this boundary so the evaluator only ever sees the
// closed criteria set.
func (s *Service) buildRow(def *Definition) (*models.Achievement, error) {
	if def.Slug == "" {
		return nil, fmt.Errorf("definition has no slug")
	}
	if def.XPReward < 0 {
		return nil, fmt.Errorf("xp reward must be non-negative, got %d", def.XPReward)
	}

	raw, err := json.Marshal(def.Criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to encode criteria: %w", err)
	}
	if _, err := models.DecodeCriteria(def.Kind, raw); err != nil {
		return nil, err
	}

	row := &models.Achievement{
		Slug:        def.Slug,
		Name:        def.Name,
		Description: def.Description,
		Icon:        def.Icon,
		Kind:        def.Kind,
		Criteria:    raw,
		XPReward:    def.XPReward,
		IsActive:    true,
	}

	if def.Difficulty != nil {
		d := models.Difficulty(*def.Difficulty)
		if !d.Valid() {
			return nil, fmt.Errorf("invalid difficulty %d", *def.Difficulty)
		}
		row.Difficulty = &d
	}

	if def.QuestSlug != "" {
		quest, err := s.mapRepo.GetQuestBySlug(def.QuestSlug)
		if err != nil {
			return nil, fmt.Errorf("unknown quest %q: %w", def.QuestSlug, err)
		}
		row.QuestID = &quest.ID
		row.MapID = &quest.MapID
	}

	if def.MapSlug != "" {
		m, err := s.mapRepo.GetBySlug(def.MapSlug)
		if err != nil {
			return nil, fmt.Errorf("unknown map %q: %w", def.MapSlug, err)
		}
		if row.MapID != nil && *row.MapID != m.ID {
			return nil, fmt.Errorf("quest %q does not belong to map %q", def.QuestSlug, def.MapSlug)
		}
		row.MapID = &m.ID
	}

	return row, nil
}
