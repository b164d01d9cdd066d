// Package config loads service configuration from YAML with environment overrides
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"carboniq/pkg/database"
	"carboniq/pkg/logger"
)

// EnvPrefix prefixes every environment override, e.g. CARBONIQ_DATABASE_HOST
const EnvPrefix = "CARBONIQ"

// Config is the root configuration tree
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Logging  logger.Config  `mapstructure:"logging"`
	Rewards  RewardsConfig  `mapstructure:"rewards"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	HTTPPort     int           `mapstructure:"http_port"`
	TCPPort      int           `mapstructure:"tcp_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	TCPRateLimit float64       `mapstructure:"tcp_rate_limit"` // frames per second per connection
}

// StorageConfig picks the repository implementation
type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // postgres or sqlite
	SQLitePath string `mapstructure:"sqlite_path"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// Connection converts to the database package's config
func (d DatabaseConfig) Connection() database.Config {
	return database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Name,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
		Timeout:         d.Timeout,
	}
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Connection converts to the database package's redis config
func (r RedisConfig) Connection() database.RedisConfig {
	return database.RedisConfig{Addr: r.Addr, Password: r.Password, DB: r.DB}
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// RewardsConfig tunes the engine
type RewardsConfig struct {
	Workers               int           `mapstructure:"workers"`
	QueueSize             int           `mapstructure:"queue_size"`
	MaxAttempts           int           `mapstructure:"max_attempts"`
	RetryBackoff          time.Duration `mapstructure:"retry_backoff"`
	ApplyRetries          int           `mapstructure:"apply_retries"`
	ReawardGoalsPerWindow bool          `mapstructure:"goal_reaward_per_window"`
	RankRefreshInterval   time.Duration `mapstructure:"rank_refresh_interval"`
	RankStalenessBound    time.Duration `mapstructure:"rank_staleness_bound"`
	EarlyAdopterLimit     int           `mapstructure:"early_adopter_limit"`
	HistoryMaxLimit       int           `mapstructure:"history_max_limit"`
	LeaderboardMaxLimit   int           `mapstructure:"leaderboard_max_limit"`
	ProfileRecentRewards  int           `mapstructure:"profile_recent_rewards"`
}

// SetDefaults registers a default for every key, so env overrides work
// even when the YAML file omits a section.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.tcp_port", 9090)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.tcp_rate_limit", 200.0)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "./data/rewards.db")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "carboniq")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "carboniq")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)
	v.SetDefault("database.timeout", 5*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "carboniq")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "carboniq-identity")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("rewards.workers", 8)
	v.SetDefault("rewards.queue_size", 1024)
	v.SetDefault("rewards.max_attempts", 5)
	v.SetDefault("rewards.retry_backoff", 500*time.Millisecond)
	v.SetDefault("rewards.apply_retries", 3)
	v.SetDefault("rewards.goal_reaward_per_window", true)
	v.SetDefault("rewards.rank_refresh_interval", 5*time.Minute)
	v.SetDefault("rewards.rank_staleness_bound", 0)
	v.SetDefault("rewards.early_adopter_limit", 100)
	v.SetDefault("rewards.history_max_limit", 200)
	v.SetDefault("rewards.leaderboard_max_limit", 100)
	v.SetDefault("rewards.profile_recent_rewards", 10)
}

// Load reads the YAML file at path (optional when empty or missing) and
// applies CARBONIQ_* environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Rewards.RankStalenessBound <= 0 {
		cfg.Rewards.RankStalenessBound = 2 * cfg.Rewards.RankRefreshInterval
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("storage.driver must be postgres or sqlite, got %q", c.Storage.Driver)
	}
	if c.Rewards.Workers <= 0 {
		return fmt.Errorf("rewards.workers must be positive")
	}
	if c.Rewards.QueueSize <= 0 {
		return fmt.Errorf("rewards.queue_size must be positive")
	}
	if c.Rewards.MaxAttempts <= 0 {
		return fmt.Errorf("rewards.max_attempts must be positive")
	}
	if c.Rewards.RankRefreshInterval <= 0 {
		return fmt.Errorf("rewards.rank_refresh_interval must be positive")
	}
	return nil
}

// HTTPAddr is the listen address for the REST API
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

// TCPAddr is the listen address for event ingest
func (c *Config) TCPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.TCPPort)
}
