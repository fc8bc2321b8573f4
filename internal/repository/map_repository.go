package repository

import (
	"github.com/bchadwic/zombietracker/internal/models"
)

// MapRepository handles map and quest catalog lookups.
type MapRepository struct {
	db *DB
}

// NewMapRepository creates a new map repository.
func NewMapRepository(db *DB) *MapRepository {
	return &MapRepository{db: db}
}

// Create creates a new map.
func (r *MapRepository) Create(m *models.Map) error {
	return r.db.Create(m).Error
}

// GetByID retrieves a map by its ID.
func (r *MapRepository) GetByID(id uint) (*models.Map, error) {
	var m models.Map
	if err := r.db.First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetBySlug retrieves a map by its slug.
func (r *MapRepository) GetBySlug(slug string) (*models.Map, error) {
	var m models.Map
	if err := r.db.Where("slug = ?", slug).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// List retrieves all maps ordered by name.
func (r *MapRepository) List() ([]models.Map, error) {
	var maps []models.Map
	err := r.db.Order("name ASC").Find(&maps).Error
	return maps, err
}

// ListIDs returns all map IDs. Used by batch reconciliation jobs.
func (r *MapRepository) ListIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Map{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

// CreateQuest creates a new quest.
func (r *MapRepository) CreateQuest(q *models.Quest) error {
	return r.db.Create(q).Error
}

// GetQuest retrieves a quest by its ID.
func (r *MapRepository) GetQuest(id uint) (*models.Quest, error) {
	var q models.Quest
	if err := r.db.First(&q, id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// GetQuestBySlug retrieves a quest by its slug.
func (r *MapRepository) GetQuestBySlug(slug string) (*models.Quest, error) {
	var q models.Quest
	if err := r.db.Where("slug = ?", slug).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// QuestsForMap retrieves all quests on a map.
func (r *MapRepository) QuestsForMap(mapID uint) ([]models.Quest, error) {
	var quests []models.Quest
	err := r.db.Where("map_id = ?", mapID).Order("name ASC").Find(&quests).Error
	return quests, err
}
