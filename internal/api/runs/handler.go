// Package runs provides REST API handlers for submitting, deleting and
// verifying runs. Every mutation funnels into the evaluation engine; a
// deleted run is the system's only retract operation and always triggers a
// revocation re-evaluation.
package runs

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bchadwic/zombietracker/internal/models"
	"github.com/bchadwic/zombietracker/internal/repository"
	"github.com/bchadwic/zombietracker/internal/service/engine"
	"github.com/bchadwic/zombietracker/internal/service/verification"
	"github.com/bchadwic/zombietracker/pkg/logger"
)

// Engine interface for evaluation operations.
type Engine interface {
	EvaluateMap(ctx context.Context, userID, mapID uint) (*engine.Result, error)
}

// Verifier interface for verified-marker passes.
type Verifier interface {
	GrantForMap(ctx context.Context, userID, mapID uint) (int, error)
	RevokeForMap(ctx context.Context, userID, mapID uint) (int, error)
}

// RunStore interface for run persistence.
type RunStore interface {
	CreateChallengeRun(run *models.ChallengeRun) error
	DeleteChallengeRun(id uint) (*models.ChallengeRun, error)
	GetChallengeRun(id uint) (*models.ChallengeRun, error)
	SetChallengeRunVerified(id uint, verified bool) error
	CreateQuestRun(run *models.QuestRun) error
	DeleteQuestRun(id uint) (*models.QuestRun, error)
	GetQuestRun(id uint) (*models.QuestRun, error)
	SetQuestRunVerified(id uint, verified bool) error
}

// Handler handles run API requests.
type Handler struct {
	runs     RunStore
	engine   Engine
	verifier Verifier
	log      *logger.Logger
}

// NewHandler creates a new runs handler.
func NewHandler(runs *repository.RunRepository, eng *engine.Service, verifier *verification.Service, log *logger.Logger) *Handler {
	return &Handler{runs: runs, engine: eng, verifier: verifier, log: log}
}

// NewHandlerWithInterfaces creates a new runs handler with interface
// dependencies (useful for testing).
func NewHandlerWithInterfaces(runs RunStore, eng Engine, verifier Verifier, log *logger.Logger) *Handler {
	return &Handler{runs: runs, engine: eng, verifier: verifier, log: log}
}

// RegisterRoutes registers the run routes on a router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/runs/challenge", h.CreateChallengeRun)
	rg.DELETE("/runs/challenge/:id", h.DeleteChallengeRun)
	rg.POST("/runs/challenge/:id/verify", h.verifyChallengeRun(true))
	rg.POST("/runs/challenge/:id/unverify", h.verifyChallengeRun(false))
	rg.POST("/runs/quest", h.CreateQuestRun)
	rg.DELETE("/runs/quest/:id", h.DeleteQuestRun)
	rg.POST("/runs/quest/:id/verify", h.verifyQuestRun(true))
	rg.POST("/runs/quest/:id/unverify", h.verifyQuestRun(false))
}

type challengeRunRequest struct {
	UserID                uint   `json:"user_id" binding:"required"`
	MapID                 uint   `json:"map_id" binding:"required"`
	ChallengeType         string `json:"challenge_type" binding:"required"`
	RoundReached          int    `json:"round_reached" binding:"required,min=1"`
	Difficulty            *int   `json:"difficulty"`
	CompletionTimeSeconds *int   `json:"completion_time_seconds"`
	ProofURL              string `json:"proof_url"`
}

// CreateChallengeRun logs a challenge run and re-evaluates the map.
// POST /api/v1/runs/challenge.
func (h *Handler) CreateChallengeRun(c *gin.Context) {
	var req challengeRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	run := &models.ChallengeRun{
		UserID:                req.UserID,
		MapID:                 req.MapID,
		ChallengeType:         req.ChallengeType,
		RoundReached:          req.RoundReached,
		CompletionTimeSeconds: req.CompletionTimeSeconds,
		ProofURL:              req.ProofURL,
	}
	if req.Difficulty != nil {
		d := models.Difficulty(*req.Difficulty)
		if !d.Valid() {
			h.errorResponse(c, http.StatusBadRequest, "invalid difficulty")
			return
		}
		run.Difficulty = &d
	}

	if err := h.runs.CreateChallengeRun(run); err != nil {
		h.log.Error().Err(err).Msg("Failed to create challenge run")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to create run")
		return
	}

	result, err := h.engine.EvaluateMap(c.Request.Context(), run.UserID, run.MapID)
	if err != nil {
		h.log.Error().Err(err).Uint("run_id", run.ID).Msg("Failed to evaluate after run creation")
		h.errorResponse(c, http.StatusInternalServerError, "Run logged but evaluation failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"run": run, "evaluation": result})
}

// DeleteChallengeRun deletes a challenge run and runs the revocation pipeline.
// DELETE /api/v1/runs/challenge/:id.
func (h *Handler) DeleteChallengeRun(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	run, err := h.runs.DeleteChallengeRun(id)
	if err != nil {
		h.notFoundOrError(c, err, "Failed to delete run")
		return
	}

	result, err := h.engine.EvaluateMap(c.Request.Context(), run.UserID, run.MapID)
	if err != nil {
		h.log.Error().Err(err).Uint("run_id", id).Msg("Failed to evaluate after run deletion")
		h.errorResponse(c, http.StatusInternalServerError, "Run deleted but evaluation failed")
		return
	}

	verifiedXP := -1
	if run.IsVerified {
		verifiedXP, err = h.verifier.RevokeForMap(c.Request.Context(), run.UserID, run.MapID)
		if err != nil {
			h.log.Error().Err(err).Uint("run_id", id).Msg("Failed verified revoke pass")
			h.errorResponse(c, http.StatusInternalServerError, "Run deleted but verified re-scan failed")
			return
		}
	}

	resp := gin.H{"evaluation": result}
	if verifiedXP >= 0 {
		resp["verified_xp"] = verifiedXP
	}
	c.JSON(http.StatusOK, resp)
}

type questRunRequest struct {
	UserID                uint   `json:"user_id" binding:"required"`
	MapID                 uint   `json:"map_id" binding:"required"`
	QuestID               uint   `json:"quest_id" binding:"required"`
	RoundCompleted        *int   `json:"round_completed"`
	Difficulty            *int   `json:"difficulty"`
	CompletionTimeSeconds *int   `json:"completion_time_seconds"`
	ProofURL              string `json:"proof_url"`
}

// CreateQuestRun logs an Easter egg completion and re-evaluates the map.
// POST /api/v1/runs/quest.
func (h *Handler) CreateQuestRun(c *gin.Context) {
	var req questRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	run := &models.QuestRun{
		UserID:                req.UserID,
		MapID:                 req.MapID,
		QuestID:               req.QuestID,
		RoundCompleted:        req.RoundCompleted,
		CompletionTimeSeconds: req.CompletionTimeSeconds,
		ProofURL:              req.ProofURL,
	}
	if req.Difficulty != nil {
		d := models.Difficulty(*req.Difficulty)
		if !d.Valid() {
			h.errorResponse(c, http.StatusBadRequest, "invalid difficulty")
			return
		}
		run.Difficulty = &d
	}

	if err := h.runs.CreateQuestRun(run); err != nil {
		h.log.Error().Err(err).Msg("Failed to create quest run")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to create run")
		return
	}

	result, err := h.engine.EvaluateMap(c.Request.Context(), run.UserID, run.MapID)
	if err != nil {
		h.log.Error().Err(err).Uint("run_id", run.ID).Msg("Failed to evaluate after quest run creation")
		h.errorResponse(c, http.StatusInternalServerError, "Run logged but evaluation failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"run": run, "evaluation": result})
}

// DeleteQuestRun deletes a quest run and runs the revocation pipeline.
// DELETE /api/v1/runs/quest/:id.
func (h *Handler) DeleteQuestRun(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	run, err := h.runs.DeleteQuestRun(id)
	if err != nil {
		h.notFoundOrError(c, err, "Failed to delete run")
		return
	}

	result, err := h.engine.EvaluateMap(c.Request.Context(), run.UserID, run.MapID)
	if err != nil {
		h.log.Error().Err(err).Uint("run_id", id).Msg("Failed to evaluate after quest run deletion")
		h.errorResponse(c, http.StatusInternalServerError, "Run deleted but evaluation failed")
		return
	}

	verifiedXP := -1
	if run.IsVerified {
		verifiedXP, err = h.verifier.RevokeForMap(c.Request.Context(), run.UserID, run.MapID)
		if err != nil {
			h.log.Error().Err(err).Uint("run_id", id).Msg("Failed verified revoke pass")
			h.errorResponse(c, http.StatusInternalServerError, "Run deleted but verified re-scan failed")
			return
		}
	}

	resp := gin.H{"evaluation": result}
	if verifiedXP >= 0 {
		resp["verified_xp"] = verifiedXP
	}
	c.JSON(http.StatusOK, resp)
}

// verifyChallengeRun flips the trust flag on a challenge run and triggers the
// matching verified pass.
func (h *Handler) verifyChallengeRun(verified bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.parseID(c)
		if !ok {
			return
		}

		run, err := h.runs.GetChallengeRun(id)
		if err != nil {
			h.notFoundOrError(c, err, "Failed to load run")
			return
		}

		if err := h.runs.SetChallengeRunVerified(id, verified); err != nil {
			h.log.Error().Err(err).Uint("run_id", id).Msg("Failed to update verified flag")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to update run")
			return
		}

		h.runVerifiedPass(c, run.UserID, run.MapID, verified)
	}
}

// verifyQuestRun flips the trust flag on a quest run and triggers the
// matching verified pass.
func (h *Handler) verifyQuestRun(verified bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.parseID(c)
		if !ok {
			return
		}

		run, err := h.runs.GetQuestRun(id)
		if err != nil {
			h.notFoundOrError(c, err, "Failed to load run")
			return
		}

		if err := h.runs.SetQuestRunVerified(id, verified); err != nil {
			h.log.Error().Err(err).Uint("run_id", id).Msg("Failed to update verified flag")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to update run")
			return
		}

		h.runVerifiedPass(c, run.UserID, run.MapID, verified)
	}
}

func (h *Handler) runVerifiedPass(c *gin.Context, userID, mapID uint, verified bool) {
	var (
		verifiedXP int
		err        error
	)
	if verified {
		verifiedXP, err = h.verifier.GrantForMap(c.Request.Context(), userID, mapID)
	} else {
		verifiedXP, err = h.verifier.RevokeForMap(c.Request.Context(), userID, mapID)
	}
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Uint("map_id", mapID).Msg("Verified pass failed")
		h.errorResponse(c, http.StatusInternalServerError, "Run updated but verified re-scan failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"verified_xp": verifiedXP})
}

func (h *Handler) parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) notFoundOrError(c *gin.Context, err error, msg string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h.errorResponse(c, http.StatusNotFound, "run not found")
		return
	}
	h.log.Error().Err(err).Msg(msg)
	h.errorResponse(c, http.StatusInternalServerError, msg)
}

func (h *Handler) errorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}
