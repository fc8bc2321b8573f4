package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/bchadwic/zombietracker/internal/models"
)

// AchievementRepository handles the achievement catalog.
type AchievementRepository struct {
	db *DB
}

// NewAchievementRepository creates a new achievement repository.
func NewAchievementRepository(db *DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// Create creates a new achievement definition.
func (r *AchievementRepository) Create(a *models.Achievement) error {
	return r.db.Create(a).Error
}

// Update updates an existing achievement definition.
func (r *AchievementRepository) Update(a *models.Achievement) error {
	return r.db.Save(a).Error
}

// GetByID retrieves an achievement by its ID.
func (r *AchievementRepository) GetByID(id uint) (*models.Achievement, error) {
	var a models.Achievement
	if err := r.db.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ActiveForMap retrieves all active achievements bound to a map, either
// directly or through one of the map's quests, plus the map-less aggregate
// achievements which are evaluated on every pass.
func (r *AchievementRepository) ActiveForMap(mapID uint) ([]models.Achievement, error) {
	var achievements []models.Achievement
	err := r.db.
		Where("is_active = ?", true).
		Where(
			r.db.Where("map_id = ?", mapID).
				Or("quest_id IN (?)", r.db.Model(&models.Quest{}).Select("id").Where("map_id = ?", mapID)).
				Or("map_id IS NULL AND quest_id IS NULL"),
		).
		Order("id ASC").
		Find(&achievements).Error
	return achievements, err
}

// ActiveAll retrieves every active achievement.
func (r *AchievementRepository) ActiveAll() ([]models.Achievement, error) {
	var achievements []models.Achievement
	err := r.db.Where("is_active = ?", true).Order("id ASC").Find(&achievements).Error
	return achievements, err
}

// FindByIdentity retrieves the active achievement matching the stable
// (mapID, slug, difficulty) identity tuple, or nil when none exists. Balance
// patches use this to decide update-in-place vs. create vs. deactivate.
func (r *AchievementRepository) FindByIdentity(mapID *uint, slug string, difficulty *models.Difficulty) (*models.Achievement, error) {
	query := r.db.Where("is_active = ? AND slug = ?", true, slug)
	if mapID != nil {
		query = query.Where("map_id = ?", *mapID)
	} else {
		query = query.Where("map_id IS NULL")
	}
	if difficulty != nil {
		query = query.Where("difficulty = ?", *difficulty)
	} else {
		query = query.Where("difficulty IS NULL")
	}

	var a models.Achievement
	err := query.First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Deactivate soft-deletes an achievement. Historical unlock rows keep
// pointing at the row; it just stops counting toward qualification and XP.
func (r *AchievementRepository) Deactivate(id uint) error {
	return r.db.Model(&models.Achievement{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}
