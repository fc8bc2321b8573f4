// Command server runs the zombies run tracker API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bchadwic/zombietracker/internal/api/dashboard"
	"github.com/bchadwic/zombietracker/internal/api/runs"
	"github.com/bchadwic/zombietracker/internal/cache"
	"github.com/bchadwic/zombietracker/internal/config"
	"github.com/bchadwic/zombietracker/internal/levels"
	"github.com/bchadwic/zombietracker/internal/repository"
	"github.com/bchadwic/zombietracker/internal/service/catalog"
	"github.com/bchadwic/zombietracker/internal/service/engine"
	"github.com/bchadwic/zombietracker/internal/service/leaderboard"
	"github.com/bchadwic/zombietracker/internal/service/reconcile"
	"github.com/bchadwic/zombietracker/internal/service/verification"
	"github.com/bchadwic/zombietracker/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)

	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	curve, err := levels.NewCurve(cfg.Levels)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build level curve")
	}

	var leaderboardCache cache.Cache
	if cfg.Database.Redis.Host != "" {
		redisCache, err := cache.NewRedis(&cfg.Database.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisCache.Close()
		leaderboardCache = redisCache
	}

	// Repositories.
	runRepo := repository.NewRunRepository(db)
	mapRepo := repository.NewMapRepository(db)
	achievementRepo := repository.NewAchievementRepository(db)
	unlockRepo := repository.NewUnlockRepository(db, curve)
	userRepo := repository.NewUserRepository(db)

	// Services.
	engineService := engine.NewService(runRepo, achievementRepo, unlockRepo, log)
	verificationService := verification.NewService(runRepo, achievementRepo, unlockRepo, log)
	catalogService := catalog.NewService(achievementRepo, mapRepo, log)
	reconcileService := reconcile.NewService(engineService, verificationService, userRepo, mapRepo, cfg.Reconcile.MaxConcurrentUsers, log)
	leaderboardService := leaderboard.NewService(userRepo, unlockRepo, curve, leaderboardCache, log)

	if cfg.Catalog.SeedOnStart {
		defs, err := catalog.LoadSeedFile(cfg.Catalog.SeedFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load catalog seed file")
		}
		report, err := catalogService.ApplyPatch(context.Background(), defs)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to apply catalog seed")
		}
		log.Info().
			Int("created", report.Created).
			Int("updated", report.Updated).
			Int("deactivated", report.Deactivated).
			Msg("Catalog seeded")
	}

	scheduler := reconcile.NewScheduler(cfg.Reconcile, reconcileService, log)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start reconciliation scheduler")
	}
	defer scheduler.Stop()

	// HTTP surface.
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/api/v1")
	runs.NewHandler(runRepo, engineService, verificationService, log).RegisterRoutes(v1)
	dashboard.NewHandler(leaderboardService, catalogService, reconcileService, achievementRepo, unlockRepo, log).RegisterRoutes(v1)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("Starting server")
	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
