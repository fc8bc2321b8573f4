package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/bchadwic/zombietracker/internal/models"
)

// RunRepository handles challenge and quest run persistence and the fact
// queries consumed by the evaluation engine.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateChallengeRun logs a challenge run.
func (r *RunRepository) CreateChallengeRun(run *models.ChallengeRun) error {
	return r.db.Create(run).Error
}

// GetChallengeRun retrieves a challenge run by ID.
func (r *RunRepository) GetChallengeRun(id uint) (*models.ChallengeRun, error) {
	var run models.ChallengeRun
	if err := r.db.First(&run, id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// DeleteChallengeRun deletes a challenge run and returns the deleted row so
// the caller can re-evaluate the (user, map) pair. Deletion is the only
// retract operation; callers must never skip the re-evaluation.
func (r *RunRepository) DeleteChallengeRun(id uint) (*models.ChallengeRun, error) {
	run, err := r.GetChallengeRun(id)
	if err != nil {
		return nil, err
	}
	if err := r.db.Delete(&models.ChallengeRun{}, id).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// CreateQuestRun logs a quest run.
func (r *RunRepository) CreateQuestRun(run *models.QuestRun) error {
	return r.db.Create(run).Error
}

// GetQuestRun retrieves a quest run by ID.
func (r *RunRepository) GetQuestRun(id uint) (*models.QuestRun, error) {
	var run models.QuestRun
	if err := r.db.First(&run, id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// DeleteQuestRun deletes a quest run and returns the deleted row.
func (r *RunRepository) DeleteQuestRun(id uint) (*models.QuestRun, error) {
	run, err := r.GetQuestRun(id)
	if err != nil {
		return nil, err
	}
	if err := r.db.Delete(&models.QuestRun{}, id).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// SetChallengeRunVerified flips the verified flag on a challenge run.
func (r *RunRepository) SetChallengeRunVerified(id uint, verified bool) error {
	return r.db.Model(&models.ChallengeRun{}).
		Where("id = ?", id).
		Update("is_verified", verified).Error
}

// SetQuestRunVerified flips the verified flag on a quest run.
func (r *RunRepository) SetQuestRunVerified(id uint, verified bool) error {
	return r.db.Model(&models.QuestRun{}).
		Where("id = ?", id).
		Update("is_verified", verified).Error
}

// ListChallengeRuns returns a user's challenge runs on a map, newest first.
func (r *RunRepository) ListChallengeRuns(userID, mapID uint) ([]models.ChallengeRun, error) {
	var runs []models.ChallengeRun
	err := r.db.
		Where("user_id = ? AND map_id = ?", userID, mapID).
		Order("created_at DESC").
		Find(&runs).Error
	return runs, err
}

// FactsForUserOnMap builds the evaluation snapshot for one (user, map) pair
// in a single pass. When verifiedOnly is set, only runs flagged as verified
// contribute facts. A missing map is not an error: the snapshot simply
// carries no round cap, which makes cap criteria unsatisfiable.
func (r *RunRepository) FactsForUserOnMap(userID, mapID uint, verifiedOnly bool) (*models.FactSet, error) {
	facts := &models.FactSet{}

	var m models.Map
	err := r.db.First(&m, mapID).Error
	switch {
	case err == nil:
		facts.RoundCap = m.RoundCap
	case errors.Is(err, gorm.ErrRecordNotFound):
		// no cap available
	default:
		return nil, fmt.Errorf("failed to load map %d: %w", mapID, err)
	}

	challengeQuery := r.db.Where("user_id = ? AND map_id = ?", userID, mapID)
	questQuery := r.db.Where("user_id = ? AND map_id = ?", userID, mapID)
	if verifiedOnly {
		challengeQuery = challengeQuery.Where("is_verified = ?", true)
		questQuery = questQuery.Where("is_verified = ?", true)
	}

	var challengeRuns []models.ChallengeRun
	if err := challengeQuery.Find(&challengeRuns).Error; err != nil {
		return nil, fmt.Errorf("failed to load challenge runs: %w", err)
	}
	for _, run := range challengeRuns {
		facts.Challenges = append(facts.Challenges, models.ChallengeFact{
			ChallengeType:         run.ChallengeType,
			RoundReached:          run.RoundReached,
			Difficulty:            run.Difficulty,
			CompletionTimeSeconds: run.CompletionTimeSeconds,
		})
	}

	var questRuns []models.QuestRun
	if err := questQuery.Find(&questRuns).Error; err != nil {
		return nil, fmt.Errorf("failed to load quest runs: %w", err)
	}
	for _, run := range questRuns {
		facts.Quests = append(facts.Quests, models.QuestFact{
			QuestID:    run.QuestID,
			Round:      run.RoundCompleted,
			Difficulty: run.Difficulty,
		})
	}

	if err := r.fillAggregates(userID, verifiedOnly, facts); err != nil {
		return nil, err
	}

	return facts, nil
}

// fillAggregates computes the user-wide counters backing the maps_played and
// total_rounds achievement kinds.
func (r *RunRepository) fillAggregates(userID uint, verifiedOnly bool, facts *models.FactSet) error {
	base := r.db.Model(&models.ChallengeRun{}).Where("user_id = ?", userID)
	if verifiedOnly {
		base = base.Where("is_verified = ?", true)
	}

	var mapsPlayed int64
	if err := base.Session(&gorm.Session{}).
		Distinct("map_id").
		Count(&mapsPlayed).Error; err != nil {
		return fmt.Errorf("failed to count maps played: %w", err)
	}
	facts.MapsPlayed = int(mapsPlayed)

	var totalRounds *int
	if err := base.Session(&gorm.Session{}).
		Select("SUM(round_reached)").
		Scan(&totalRounds).Error; err != nil {
		return fmt.Errorf("failed to sum rounds: %w", err)
	}
	if totalRounds != nil {
		facts.TotalRounds = *totalRounds
	}

	return nil
}
