// Package config handles application configuration loading and validation using Viper.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Levels    LevelsConfig    `mapstructure:"levels"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig contains database connection settings for PostgreSQL and Redis.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL database connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// RedisConfig contains Redis cache connection and pool settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// LevelsConfig parameterizes the XP-to-level curve. The curve itself is built
// by the levels package; nothing outside it reads these knobs.
type LevelsConfig struct {
	MaxLevel        int   `mapstructure:"max_level"`
	MaxObtainableXP int   `mapstructure:"max_obtainable_xp"`
	EarlyThresholds []int `mapstructure:"early_thresholds"`
}

// CatalogConfig contains achievement catalog settings.
type CatalogConfig struct {
	SeedFile    string `mapstructure:"seed_file"`
	SeedOnStart bool   `mapstructure:"seed_on_start"`
}

// ReconcileConfig contains reconciliation job scheduling settings.
type ReconcileConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	ReunlockSchedule   string `mapstructure:"reunlock_schedule"`
	RecomputeSchedule  string `mapstructure:"recompute_schedule"`
	Timezone           string `mapstructure:"timezone"`
	MaxConcurrentUsers int    `mapstructure:"max_concurrent_users"`
}

// MetricsConfig contains Prometheus metrics exporter settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/zombietracker/")
	}

	// Bind specific environment variables (explicit bindings for 12-factor app compliance)
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")

	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = v.BindEnv("database.postgres.max_open_conns", "POSTGRES_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.postgres.max_idle_conns", "POSTGRES_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.postgres.conn_max_lifetime", "POSTGRES_CONN_MAX_LIFETIME")

	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")
	_ = v.BindEnv("database.redis.pool_size", "REDIS_POOL_SIZE")

	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")

	_ = v.BindEnv("catalog.seed_file", "CATALOG_SEED_FILE")
	_ = v.BindEnv("catalog.seed_on_start", "CATALOG_SEED_ON_START")

	_ = v.BindEnv("reconcile.enabled", "RECONCILE_ENABLED")
	_ = v.BindEnv("reconcile.reunlock_schedule", "RECONCILE_REUNLOCK_SCHEDULE")
	_ = v.BindEnv("reconcile.recompute_schedule", "RECONCILE_RECOMPUTE_SCHEDULE")
	_ = v.BindEnv("reconcile.timezone", "RECONCILE_TIMEZONE")

	v.SetDefault("server.port", 8080)
	v.SetDefault("levels.max_level", 100)
	v.SetDefault("levels.max_obtainable_xp", 250000)
	v.SetDefault("reconcile.timezone", "UTC")
	v.SetDefault("reconcile.max_concurrent_users", 1)
	v.SetDefault("metrics.path", "/metrics")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if c.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if c.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if c.Levels.MaxLevel < 2 {
		return fmt.Errorf("levels.max_level must be at least 2")
	}
	if c.Levels.MaxObtainableXP <= 0 {
		return fmt.Errorf("levels.max_obtainable_xp must be positive")
	}
	if c.Catalog.SeedOnStart && c.Catalog.SeedFile == "" {
		return fmt.Errorf("catalog.seed_file is required when catalog.seed_on_start is set")
	}
	return nil
}
