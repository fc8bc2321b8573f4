package repository

import (
	"github.com/bchadwic/zombietracker/internal/models"
)

// UserRepository handles user-related database operations.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user.
func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListIDs returns all user IDs in a stable order. Batch reconciliation jobs
// iterate this; each user's update is independently idempotent so a stopped
// job can simply be re-run.
func (r *UserRepository) ListIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.User{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

// TopByTotalXP returns the highest-XP users.
func (r *UserRepository) TopByTotalXP(limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Order("total_xp DESC, id ASC").Limit(limit).Find(&users).Error
	return users, err
}

// TopByVerifiedXP returns the highest verified-XP users.
func (r *UserRepository) TopByVerifiedXP(limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Order("verified_xp DESC, id ASC").Limit(limit).Find(&users).Error
	return users, err
}
