// Package config loads the bot configuration from defaults, an optional YAML
// file, a local .env file and environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultConfigPath is read when present; a missing file is not an error.
const DefaultConfigPath = "config.yaml"

// Task names understood by the scheduler.
const (
	TaskPruneRateLimits = "prune_rate_limits"
	TaskSweep           = "sweep"
	TaskSQLMaintenance  = "sql_maintenance"
)

// ErrValidation wraps every validation failure.
var ErrValidation = errors.New("validation error")

// Config holds the complete application configuration.
type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// TelegramConfig describes the bot account, its operators and its channel.
type TelegramConfig struct {
	Token         string   `mapstructure:"token"          validate:"required"`
	AdminIDs      []int64  `mapstructure:"admin_ids"`
	PrivilegedIDs []int64  `mapstructure:"privileged_ids"`
	ChannelID     string   `mapstructure:"channel_id"`
	ChannelURL    string   `mapstructure:"channel_url"    validate:"omitempty,url"`
	ChatURL       string   `mapstructure:"chat_url"       validate:"omitempty,url"`
	WebAppURL     string   `mapstructure:"webapp_url"     validate:"omitempty,url"`
	Messages      Messages `mapstructure:"messages"`
}

// Messages are the user-facing texts.
type Messages struct {
	RateLimited         string `mapstructure:"rate_limited"         validate:"required"`
	RateLimitedShort    string `mapstructure:"rate_limited_short"   validate:"required"`
	GeneralError        string `mapstructure:"general_error"        validate:"required"`
	SubscribePrompt     string `mapstructure:"subscribe_prompt"     validate:"required"`
	SubscriptionMissing string `mapstructure:"subscription_missing" validate:"required"`
	ProfileNotFound     string `mapstructure:"profile_not_found"    validate:"required"`
	Fallback            string `mapstructure:"fallback"             validate:"required"`
	BroadcastUsage      string `mapstructure:"broadcast_usage"      validate:"required"`
}

// RateLimitConfig configures the gating middleware's limiter.
type RateLimitConfig struct {
	Backend     string        `mapstructure:"backend"      validate:"oneof=memory db database sql redis"`
	MaxRequests int           `mapstructure:"max_requests" validate:"gt=0"`
	TimePeriod  time.Duration `mapstructure:"time_period"  validate:"min=1s"`
	// Retention bounds how long db entries are kept before pruning.
	Retention time.Duration `mapstructure:"retention" validate:"min=1m"`
}

// CacheConfig configures the snapshot cache.
type CacheConfig struct {
	TTL          time.Duration `mapstructure:"ttl"           validate:"min=1s"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" validate:"min=100ms"`
	// SnapshotTimeout is the deadline handlers give a snapshot read.
	SnapshotTimeout time.Duration `mapstructure:"snapshot_timeout" validate:"min=100ms"`
}

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// RedisConfig is used only by the redis rate limit backend.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// BroadcastConfig paces admin broadcasts.
type BroadcastConfig struct {
	Rate  float64 `mapstructure:"rate"  validate:"gt=0"`
	Burst int     `mapstructure:"burst" validate:"gt=0"`
}

// BreakerConfig configures circuit breakers around backends.
type BreakerConfig struct {
	MaxFailures  int           `mapstructure:"max_failures"  validate:"gt=0"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout" validate:"min=1s"`
}

// TaskConfig holds configuration for a single scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// SchedulerConfig holds scheduled task configuration keyed by task name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

var defaults = map[string]any{
	"telegram.channel_id":  "@armtemiy",
	"telegram.channel_url": "https://t.me/armtemiy",
	"telegram.chat_url":    "https://t.me/+Rh5ng2X8R1k5OTJi",
	"telegram.webapp_url":  "https://armtemiy.github.io/armtemiy-lab/",

	"telegram.messages.rate_limited":         "Слишком много запросов. Подожди немного.",
	"telegram.messages.rate_limited_short":   "Слишком много запросов.",
	"telegram.messages.general_error":        "⚠️ Сервис временно недоступен. Попробуй позже.",
	"telegram.messages.subscribe_prompt":     "👋 Привет! Чтобы пользоваться ботом, подпишись на канал.",
	"telegram.messages.subscription_missing": "❌ Подписка не найдена. Попробуй ещё раз.",
	"telegram.messages.profile_not_found":    "Профиль не найден. Нажми /start",
	"telegram.messages.fallback":             "Используй кнопки меню: 👤 Профиль или ℹ️ Инфо.",
	"telegram.messages.broadcast_usage":      "Использование: /broadcast <текст>",

	"rate_limit.backend":      "memory",
	"rate_limit.max_requests": 30,
	"rate_limit.time_period":  60 * time.Second,
	"rate_limit.retention":    24 * time.Hour,

	"cache.ttl":              300 * time.Second,
	"cache.fetch_timeout":    5 * time.Second,
	"cache.snapshot_timeout": 2 * time.Second,

	"database.url": "sqlite://bot.db",
	"redis.url":    "redis://localhost:6379/0",

	"broadcast.rate":  25.0,
	"broadcast.burst": 1,

	"breaker.max_failures":  5,
	"breaker.reset_timeout": 30 * time.Second,

	"scheduler.tasks.prune_rate_limits.enabled":  true,
	"scheduler.tasks.prune_rate_limits.schedule": "0 */10 * * * *",
	"scheduler.tasks.sweep.enabled":              true,
	"scheduler.tasks.sweep.schedule":             "30 * * * * *",
	"scheduler.tasks.sql_maintenance.enabled":    true,
	"scheduler.tasks.sql_maintenance.schedule":   "0 0 4 * * 0",

	"logger.level": "info",
	"logger.json":  false,
}

// envBindings maps config keys to environment variables; the first variable
// that is set wins.
var envBindings = map[string][]string{
	"telegram.token":          {"BOT_TOKEN"},
	"telegram.admin_ids":      {"ADMIN_IDS", "ADMIN_ID"},
	"telegram.privileged_ids": {"PRIVILEGED_IDS"},
	"telegram.channel_id":     {"CHANNEL_ID"},
	"telegram.channel_url":    {"CHANNEL_URL"},
	"telegram.chat_url":       {"CHAT_URL"},
	"telegram.webapp_url":     {"WEBAPP_URL"},

	"rate_limit.backend":      {"RATE_LIMIT_BACKEND"},
	"rate_limit.max_requests": {"RATE_LIMIT_MAX_REQUESTS"},
	"rate_limit.time_period":  {"RATE_LIMIT_TIME_PERIOD"},
	"rate_limit.retention":    {"RATE_LIMIT_RETENTION"},

	"cache.ttl":              {"CACHE_TTL"},
	"cache.fetch_timeout":    {"CACHE_FETCH_TIMEOUT"},
	"cache.snapshot_timeout": {"SNAPSHOT_TIMEOUT"},

	"database.url": {"DATABASE_URL"},
	"redis.url":    {"REDIS_URL"},

	"broadcast.rate":  {"BROADCAST_RATE"},
	"broadcast.burst": {"BROADCAST_BURST"},

	"breaker.max_failures":  {"BREAKER_MAX_FAILURES"},
	"breaker.reset_timeout": {"BREAKER_RESET"},

	"scheduler.tasks.prune_rate_limits.schedule": {"SCHEDULE_PRUNE_RATE_LIMITS"},
	"scheduler.tasks.sweep.schedule":             {"SCHEDULE_SWEEP"},
	"scheduler.tasks.sql_maintenance.schedule":   {"SCHEDULE_SQL_MAINTENANCE"},

	"logger.level": {"LOG_LEVEL"},
	"logger.json":  {"LOG_JSON"},
}

// LoadConfig reads configuration from configPath (optional), a .env file in
// the working directory (optional) and the environment, then validates it.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsDurationHook,
		idListHook,
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.RateLimit.Backend = strings.ToLower(strings.TrimSpace(cfg.RateLimit.Backend))
	cfg.Logger.Level = strings.ToLower(strings.TrimSpace(cfg.Logger.Level))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if c.RateLimit.Backend == "redis" && strings.TrimSpace(c.Redis.URL) == "" {
		return fmt.Errorf("%w: redis backend requires REDIS_URL", ErrValidation)
	}
	return nil
}

// IsAdmin reports whether userID may use the admin panel.
func (c *Config) IsAdmin(userID int64) bool {
	return slices.Contains(c.Telegram.AdminIDs, userID)
}

// Privileged returns admins and privileged users, the actors exempt from
// rate limiting.
func (c *Config) Privileged() []int64 {
	ids := make([]int64, 0, len(c.Telegram.AdminIDs)+len(c.Telegram.PrivilegedIDs))
	ids = append(ids, c.Telegram.AdminIDs...)
	for _, id := range c.Telegram.PrivilegedIDs {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}
