// Package dashboard provides REST API handlers for player progress, the XP
// leaderboard, the achievement catalog and the admin maintenance operations.
package dashboard

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bchadwic/zombietracker/internal/models"
	"github.com/bchadwic/zombietracker/internal/repository"
	"github.com/bchadwic/zombietracker/internal/service/catalog"
	"github.com/bchadwic/zombietracker/internal/service/leaderboard"
	"github.com/bchadwic/zombietracker/internal/service/reconcile"
	"github.com/bchadwic/zombietracker/pkg/logger"
)

// LeaderboardService interface for leaderboard operations.
type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, verified bool, limit int) ([]leaderboard.Entry, error)
	GetUserStats(ctx context.Context, userID uint) (*leaderboard.UserStats, error)
}

// CatalogService interface for balance patches.
type CatalogService interface {
	ApplyPatch(ctx context.Context, defs []catalog.Definition) (*catalog.PatchReport, error)
}

// ReconcileService interface for batch maintenance jobs.
type ReconcileService interface {
	ReunlockAll(ctx context.Context) (*reconcile.Report, error)
	RecomputeXPAll(ctx context.Context) (*reconcile.Report, error)
	RecomputeVerifiedXPAll(ctx context.Context) (*reconcile.Report, error)
}

// AchievementStore interface for catalog reads and the admin re-lock.
type AchievementStore interface {
	GetByID(id uint) (*models.Achievement, error)
	ActiveForMap(mapID uint) ([]models.Achievement, error)
}

// UnlockStore interface for unlock reads and the admin re-lock.
type UnlockStore interface {
	UnlockedForUser(userID uint) ([]models.UserAchievement, error)
	ApplyUnlockBatch(userID uint, toUnlock, toRevoke []models.Achievement) (int, error)
}

// Handler handles dashboard API requests.
type Handler struct {
	leaderboards LeaderboardService
	catalog      CatalogService
	reconciler   ReconcileService
	achievements AchievementStore
	unlocks      UnlockStore
	log          *logger.Logger
}

// NewHandler creates a new dashboard handler.
func NewHandler(
	leaderboards *leaderboard.Service,
	catalogService *catalog.Service,
	reconciler *reconcile.Service,
	achievements *repository.AchievementRepository,
	unlocks *repository.UnlockRepository,
	log *logger.Logger,
) *Handler {
	return &Handler{
		leaderboards: leaderboards,
		catalog:      catalogService,
		reconciler:   reconciler,
		achievements: achievements,
		unlocks:      unlocks,
		log:          log,
	}
}

// NewHandlerWithInterfaces creates a new dashboard handler with interface
// dependencies (useful for testing).
func NewHandlerWithInterfaces(
	leaderboards LeaderboardService,
	catalogService CatalogService,
	reconciler ReconcileService,
	achievements AchievementStore,
	unlocks UnlockStore,
	log *logger.Logger,
) *Handler {
	return &Handler{
		leaderboards: leaderboards,
		catalog:      catalogService,
		reconciler:   reconciler,
		achievements: achievements,
		unlocks:      unlocks,
		log:          log,
	}
}

// RegisterRoutes registers the dashboard and admin routes on a router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/leaderboard", h.GetLeaderboard)
	rg.GET("/users/:id/stats", h.GetUserStats)
	rg.GET("/users/:id/achievements", h.GetUserAchievements)
	rg.GET("/maps/:id/achievements", h.GetMapAchievements)
	rg.POST("/admin/catalog/patch", h.ApplyCatalogPatch)
	rg.POST("/admin/reconcile/reunlock", h.reconcileJob("reunlock"))
	rg.POST("/admin/reconcile/recompute-xp", h.reconcileJob("recompute_xp"))
	rg.POST("/admin/reconcile/recompute-verified-xp", h.reconcileJob("recompute_verified_xp"))
	rg.DELETE("/admin/users/:id/achievements/:achievementID", h.RelockAchievement)
}

// GetLeaderboard returns the XP leaderboard.
// GET /api/v1/leaderboard?verified=true&limit=10.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	verified := c.DefaultQuery("verified", "false") == "true"
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 100 {
		h.errorResponse(c, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}

	entries, err := h.leaderboards.GetLeaderboard(c.Request.Context(), verified, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"verified":      verified,
		"total_entries": len(entries),
	})
}

// GetUserStats returns a user's XP, level and progress summary.
// GET /api/v1/users/:id/stats.
func (h *Handler) GetUserStats(c *gin.Context) {
	userID, ok := h.parseParam(c, "id")
	if !ok {
		return
	}

	stats, err := h.leaderboards.GetUserStats(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user stats")
		h.errorResponse(c, http.StatusNotFound, "user not found")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetUserAchievements returns a user's unlock records.
// GET /api/v1/users/:id/achievements.
func (h *Handler) GetUserAchievements(c *gin.Context) {
	userID, ok := h.parseParam(c, "id")
	if !ok {
		return
	}

	unlocks, err := h.unlocks.UnlockedForUser(userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user achievements")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve achievements")
		return
	}

	c.JSON(http.StatusOK, gin.H{"achievements": unlocks, "total": len(unlocks)})
}

// GetMapAchievements returns the active achievement catalog for a map.
// GET /api/v1/maps/:id/achievements.
func (h *Handler) GetMapAchievements(c *gin.Context) {
	mapID, ok := h.parseParam(c, "id")
	if !ok {
		return
	}

	achievements, err := h.achievements.ActiveForMap(mapID)
	if err != nil {
		h.log.Error().Err(err).Uint("map_id", mapID).Msg("Failed to get map achievements")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve achievements")
		return
	}

	c.JSON(http.StatusOK, gin.H{"achievements": achievements, "total": len(achievements)})
}

type patchRequest struct {
	Achievements []catalog.Definition `json:"achievements" binding:"required"`
}

// ApplyCatalogPatch applies a balance patch and re-unlocks all users against
// the new catalog.
// POST /api/v1/admin/catalog/patch.
func (h *Handler) ApplyCatalogPatch(c *gin.Context) {
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	patch, err := h.catalog.ApplyPatch(c.Request.Context(), req.Achievements)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to apply catalog patch")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to apply patch")
		return
	}

	report, err := h.reconciler.ReunlockAll(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to re-unlock after patch")
		h.errorResponse(c, http.StatusInternalServerError, "Patch applied but re-unlock failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"patch": patch, "reunlock": report})
}

// reconcileJob runs one of the batch maintenance jobs.
func (h *Handler) reconcileJob(job string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			report *reconcile.Report
			err    error
		)
		switch job {
		case "reunlock":
			report, err = h.reconciler.ReunlockAll(c.Request.Context())
		case "recompute_xp":
			report, err = h.reconciler.RecomputeXPAll(c.Request.Context())
		default:
			report, err = h.reconciler.RecomputeVerifiedXPAll(c.Request.Context())
		}
		if err != nil {
			h.log.Error().Err(err).Str("job", job).Msg("Reconciliation job failed")
			h.errorResponse(c, http.StatusInternalServerError, "Reconciliation failed")
			return
		}

		c.JSON(http.StatusOK, report)
	}
}

// RelockAchievement is the explicit admin re-lock: it deletes the unlock row
// and decrements XP through the same transactional batch path as engine
// revocation.
// DELETE /api/v1/admin/users/:id/achievements/:achievementID.
func (h *Handler) RelockAchievement(c *gin.Context) {
	userID, ok := h.parseParam(c, "id")
	if !ok {
		return
	}
	achievementID, ok := h.parseParam(c, "achievementID")
	if !ok {
		return
	}

	achievement, err := h.achievements.GetByID(achievementID)
	if err != nil {
		h.errorResponse(c, http.StatusNotFound, "achievement not found")
		return
	}

	newTotal, err := h.unlocks.ApplyUnlockBatch(userID, nil, []models.Achievement{*achievement})
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Uint("achievement_id", achievementID).Msg("Failed to re-lock achievement")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to re-lock achievement")
		return
	}

	h.log.Info().
		Uint("user_id", userID).
		Uint("achievement_id", achievementID).
		Int("total_xp", newTotal).
		Msg("Achievement re-locked")

	c.JSON(http.StatusOK, gin.H{"total_xp": newTotal})
}

func (h *Handler) parseParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}

func (h *Handler) errorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}
