package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/bchadwic/zombietracker/internal/levels"
	"github.com/bchadwic/zombietracker/internal/models"
)

// UnlockRepository handles unlock records and the user XP ledger. All writes
// that touch both user_achievements and the cached user XP totals happen in a
// single transaction; partial application is a correctness bug.
type UnlockRepository struct {
	db    *DB
	curve *levels.Curve
}

// NewUnlockRepository creates a new unlock repository.
func NewUnlockRepository(db *DB, curve *levels.Curve) *UnlockRepository {
	return &UnlockRepository{db: db, curve: curve}
}

// UnlockedForUser retrieves all unlock records for a user with achievements
// preloaded.
func (r *UnlockRepository) UnlockedForUser(userID uint) ([]models.UserAchievement, error) {
	var unlocks []models.UserAchievement
	err := r.db.
		Where("user_id = ?", userID).
		Preload("Achievement").
		Order("unlocked_at DESC").
		Find(&unlocks).Error
	return unlocks, err
}

// UnlockedForUserOnMap retrieves the user's unlock records whose achievement
// is bound to the map, directly or through one of the map's quests.
func (r *UnlockRepository) UnlockedForUserOnMap(userID, mapID uint) ([]models.UserAchievement, error) {
	var unlocks []models.UserAchievement
	err := r.db.
		Joins("JOIN achievements ON achievements.id = user_achievements.achievement_id").
		Where("user_achievements.user_id = ?", userID).
		Where(
			r.db.Where("achievements.map_id = ?", mapID).
				Or("achievements.quest_id IN (?)", r.db.Model(&models.Quest{}).Select("id").Where("map_id = ?", mapID)),
		).
		Preload("Achievement").
		Find(&unlocks).Error
	return unlocks, err
}

// HasUnlocked checks whether the user has unlocked a specific achievement.
func (r *UnlockRepository) HasUnlocked(userID, achievementID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserAchievement{}).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Count(&count).Error
	return count > 0, err
}

// HoldersCount returns the number of users who have unlocked an achievement.
func (r *UnlockRepository) HoldersCount(achievementID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.UserAchievement{}).
		Where("achievement_id = ?", achievementID).
		Count(&count).Error
	return count, err
}

// ApplyUnlockBatch applies an unlock/revoke set for one user atomically:
// insert missing unlock rows, delete revoked ones, credit the signed XP sum
// once, clamp the total at zero, recompute the level once, and recompute the
// verified XP total from the surviving verified rows. XP is only counted for
// rows actually inserted or deleted, so redundant invocation is a no-op.
// Returns the user's new XP total.
func (r *UnlockRepository) ApplyUnlockBatch(userID uint, toUnlock, toRevoke []models.Achievement) (int, error) {
	var newTotal int
	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		delta := 0

		for i := range toUnlock {
			a := &toUnlock[i]
			var existing models.UserAchievement
			err := tx.Where("user_id = ? AND achievement_id = ?", userID, a.ID).
				First(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				unlock := models.UserAchievement{
					UserID:        userID,
					AchievementID: a.ID,
					UnlockedAt:    now,
				}
				if err := tx.Create(&unlock).Error; err != nil {
					return err
				}
				delta += a.XPReward
				continue
			}
			if err != nil {
				return err
			}
		}

		for i := range toRevoke {
			a := &toRevoke[i]
			res := tx.Where("user_id = ? AND achievement_id = ?", userID, a.ID).
				Delete(&models.UserAchievement{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				delta -= a.XPReward
			}
		}

		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}

		total := user.TotalXP + delta
		if total < 0 {
			// Revocation shortfall is absorbed, never surfaced as an error.
			total = 0
		}

		verified, err := sumVerifiedXP(tx, userID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"total_xp":    total,
			"verified_xp": verified,
		}
		if level := r.curve.LevelFor(total); level != user.Level {
			updates["level"] = level
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return err
		}

		newTotal = total
		return nil
	})
	return newTotal, err
}

// SetVerified stamps verifiedAt on the given unlock records and recomputes
// the user's verified XP total in the same transaction.
func (r *UnlockRepository) SetVerified(userID uint, achievementIDs []uint, verifiedAt time.Time) (int, error) {
	return r.updateVerified(userID, achievementIDs, &verifiedAt)
}

// ClearVerified clears verifiedAt on the given unlock records and recomputes
// the user's verified XP total in the same transaction.
func (r *UnlockRepository) ClearVerified(userID uint, achievementIDs []uint) (int, error) {
	return r.updateVerified(userID, achievementIDs, nil)
}

func (r *UnlockRepository) updateVerified(userID uint, achievementIDs []uint, verifiedAt *time.Time) (int, error) {
	var newVerified int
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if len(achievementIDs) > 0 {
			err := tx.Model(&models.UserAchievement{}).
				Where("user_id = ? AND achievement_id IN ?", userID, achievementIDs).
				Update("verified_at", verifiedAt).Error
			if err != nil {
				return err
			}
		}

		verified, err := sumVerifiedXP(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("verified_xp", verified).Error; err != nil {
			return err
		}

		newVerified = verified
		return nil
	})
	return newVerified, err
}

// RecomputeXP rebuilds the user's XP total, level and verified XP from the
// unlock records alone. This is the full-rescan variant used by batch jobs
// and is the correctness anchor when the cached totals are suspect.
func (r *UnlockRepository) RecomputeXP(userID uint) (int, error) {
	var newTotal int
	err := r.db.Transaction(func(tx *gorm.DB) error {
		total, err := sumUnlockedXP(tx, userID)
		if err != nil {
			return err
		}
		verified, err := sumVerifiedXP(tx, userID)
		if err != nil {
			return err
		}

		err = tx.Model(&models.User{}).Where("id = ?", userID).
			Updates(map[string]interface{}{
				"total_xp":    total,
				"verified_xp": verified,
				"level":       r.curve.LevelFor(total),
			}).Error
		if err != nil {
			return err
		}

		newTotal = total
		return nil
	})
	return newTotal, err
}

// RecomputeVerifiedXP rebuilds only the verified XP total.
func (r *UnlockRepository) RecomputeVerifiedXP(userID uint) (int, error) {
	var newVerified int
	err := r.db.Transaction(func(tx *gorm.DB) error {
		verified, err := sumVerifiedXP(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("verified_xp", verified).Error; err != nil {
			return err
		}
		newVerified = verified
		return nil
	})
	return newVerified, err
}

// sumUnlockedXP sums XP over the user's unlocked, active achievements.
func sumUnlockedXP(tx *gorm.DB, userID uint) (int, error) {
	var total *int
	err := tx.Model(&models.UserAchievement{}).
		Joins("JOIN achievements ON achievements.id = user_achievements.achievement_id").
		Where("user_achievements.user_id = ? AND achievements.is_active = ?", userID, true).
		Select("SUM(achievements.xp_reward)").
		Scan(&total).Error
	if err != nil || total == nil {
		return 0, err
	}
	return *total, nil
}

// sumVerifiedXP sums XP over the user's verified, active unlocks.
func sumVerifiedXP(tx *gorm.DB, userID uint) (int, error) {
	var total *int
	err := tx.Model(&models.UserAchievement{}).
		Joins("JOIN achievements ON achievements.id = user_achievements.achievement_id").
		Where("user_achievements.user_id = ? AND user_achievements.verified_at IS NOT NULL AND achievements.is_active = ?", userID, true).
		Select("SUM(achievements.xp_reward)").
		Scan(&total).Error
	if err != nil || total == nil {
		return 0, err
	}
	return *total, nil
}
