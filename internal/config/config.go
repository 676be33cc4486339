// Package config loads settings from .env files, the environment and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/example/wordbot/internal/database"
	"github.com/example/wordbot/internal/quiz"
	"github.com/example/wordbot/internal/scheduler"
	"github.com/example/wordbot/internal/spaced_repetition"
	"github.com/example/wordbot/pkg/models"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Session backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all configuration for the bot
type Config struct {
	Database  DatabaseConfig
	Telegram  TelegramConfig
	Timezone  string
	Location  *time.Location
	Quiz      quiz.Config
	Mastery   MasteryConfig
	Sessions  SessionConfig
	Scheduler scheduler.Config
	RateLimit RateLimitConfig
	Log       LogConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// TelegramConfig holds bot credentials
type TelegramConfig struct {
	Token        string
	AdminUserIDs []int64
}

// MasteryConfig holds the repetition policy tables
type MasteryConfig struct {
	Thresholds []int
	Intervals  []time.Duration
	DueLimit   int
}

// SessionConfig selects where live sessions are kept
type SessionConfig struct {
	Backend string
	Redis   quiz.RedisConfig
}

// RateLimitConfig bounds inbound messages per user
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// LoadOptions names extra sources; missing .env files are ignored
type LoadOptions struct {
	EnvFiles   []string
	ConfigFile string
}

// Load reads configuration from .env files, environment variables and an optional config file
func Load(opts LoadOptions) (*Config, error) {
	files := opts.EnvFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", database.DriverSQLite)
	v.SetDefault("DB_DSN", "data/wordbot.db")
	v.SetDefault("TIMEZONE", "UTC")

	q := quiz.DefaultConfig()
	v.SetDefault("WORDS_PER_QUIZ", q.WordsPerQuiz)
	v.SetDefault("BLITZ_WORDS", q.BlitzWords)
	v.SetDefault("BLITZ_BUDGET", q.BlitzBudget.String())
	v.SetDefault("BLITZ_BUDGETS", "1m,3m,5m")
	v.SetDefault("BLITZ_PROMPT_TIMEOUT", q.PromptTimeout.String())
	v.SetDefault("DIRECTION_MODE", string(q.DirectionMode))
	v.SetDefault("SESSION_RETENTION", q.Retention.String())
	v.SetDefault("SESSION_TTL", q.ActiveTTL.String())

	v.SetDefault("DUE_REVIEW_LIMIT", 20)
	v.SetDefault("MASTERY_INTERVALS", "0s,24h,72h,168h")
	v.SetDefault("MASTERY_THRESHOLDS", "2,2,2")

	v.SetDefault("SESSION_BACKEND", BackendMemory)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)

	s := scheduler.DefaultConfig()
	v.SetDefault("REMINDER_INTERVAL", s.ReminderInterval.String())
	v.SetDefault("SESSION_SWEEP_INTERVAL", s.SweepInterval.String())
	v.SetDefault("NOTIFICATION_START_HOUR", s.StartHour)
	v.SetDefault("NOTIFICATION_END_HOUR", s.EndHour)

	v.SetDefault("RATE_LIMIT_RPS", 2)
	v.SetDefault("RATE_LIMIT_BURST", 5)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

func fromViper(v *viper.Viper) (*Config, error) {
	var errs []error
	durations := func(key string) []time.Duration {
		out, err := parseDurations(stringList(v, key))
		if err != nil {
			errs = append(errs, models.NewValidationError(strings.ToLower(key), err.Error()))
		}
		return out
	}
	ints := func(key string) []int {
		var out []int
		for _, s := range stringList(v, key) {
			n, err := strconv.Atoi(s)
			if err != nil {
				errs = append(errs, models.NewValidationError(strings.ToLower(key), fmt.Sprintf("%q is not a number", s)))
				return nil
			}
			out = append(out, n)
		}
		return out
	}
	admins := func(key string) []int64 {
		var out []int64
		for _, s := range stringList(v, key) {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				errs = append(errs, models.NewValidationError(strings.ToLower(key), fmt.Sprintf("%q is not a user id", s)))
				return nil
			}
			out = append(out, n)
		}
		return out
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:    v.GetString("DB_DSN"),
		},
		Telegram: TelegramConfig{
			Token:        v.GetString("TELEGRAM_BOT_TOKEN"),
			AdminUserIDs: admins("ADMIN_USER_IDS"),
		},
		Timezone: v.GetString("TIMEZONE"),
		Quiz: quiz.Config{
			WordsPerQuiz:  v.GetInt("WORDS_PER_QUIZ"),
			BlitzWords:    v.GetInt("BLITZ_WORDS"),
			BlitzBudget:   v.GetDuration("BLITZ_BUDGET"),
			BlitzBudgets:  durations("BLITZ_BUDGETS"),
			PromptTimeout: v.GetDuration("BLITZ_PROMPT_TIMEOUT"),
			DirectionMode: quiz.DirectionMode(strings.ToLower(v.GetString("DIRECTION_MODE"))),
			Retention:     v.GetDuration("SESSION_RETENTION"),
			ActiveTTL:     v.GetDuration("SESSION_TTL"),
		},
		Mastery: MasteryConfig{
			Thresholds: ints("MASTERY_THRESHOLDS"),
			Intervals:  durations("MASTERY_INTERVALS"),
			DueLimit:   v.GetInt("DUE_REVIEW_LIMIT"),
		},
		Sessions: SessionConfig{
			Backend: strings.ToLower(v.GetString("SESSION_BACKEND")),
			Redis: quiz.RedisConfig{
				Addr:     v.GetString("REDIS_ADDR"),
				Password: v.GetString("REDIS_PASSWORD"),
				DB:       v.GetInt("REDIS_DB"),
			},
		},
		Scheduler: scheduler.Config{
			ReminderInterval: v.GetDuration("REMINDER_INTERVAL"),
			SweepInterval:    v.GetDuration("SESSION_SWEEP_INTERVAL"),
			StartHour:        v.GetInt("NOTIFICATION_START_HOUR"),
			EndHour:          v.GetInt("NOTIFICATION_END_HOUR"),
			DueLimit:         v.GetInt("DUE_REVIEW_LIMIT"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, models.NewValidationError("timezone", err.Error())
	}
	cfg.Location = loc
	cfg.Scheduler.Location = loc
	return cfg, nil
}

// stringList accepts a comma separated string or a list from a config file
func stringList(v *viper.Viper, key string) []string {
	var raw []string
	switch val := v.Get(key).(type) {
	case nil:
	case string:
		raw = strings.Split(val, ",")
	case []string:
		raw = val
	case []any:
		for _, item := range val {
			raw = append(raw, fmt.Sprint(item))
		}
	default:
		raw = []string{fmt.Sprint(val)}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDurations(values []string) ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(values))
	for _, s := range values {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Validate checks every setting that can be checked without connecting anywhere
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case database.DriverSQLite, database.DriverPostgres:
	default:
		return models.NewValidationError("db_driver", fmt.Sprintf("unsupported driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		return models.NewValidationError("db_dsn", "must be set")
	}
	if err := c.Quiz.Validate(); err != nil {
		return err
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	if c.Mastery.DueLimit <= 0 {
		return models.NewValidationError("due_review_limit", "must be positive")
	}
	switch c.Sessions.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Sessions.Redis.Addr == "" {
			return models.NewValidationError("redis_addr", "must be set for the redis backend")
		}
	default:
		return models.NewValidationError("session_backend", fmt.Sprintf("unknown backend %q", c.Sessions.Backend))
	}
	s := c.Scheduler
	switch {
	case s.ReminderInterval <= 0:
		return models.NewValidationError("reminder_interval", "must be positive")
	case s.SweepInterval <= 0:
		return models.NewValidationError("session_sweep_interval", "must be positive")
	case s.StartHour < 0 || s.StartHour > 23:
		return models.NewValidationError("notification_start_hour", "must be within 0..23")
	case s.EndHour < 0 || s.EndHour > 23:
		return models.NewValidationError("notification_end_hour", "must be within 0..23")
	}
	if c.RateLimit.RPS <= 0 {
		return models.NewValidationError("rate_limit_rps", "must be positive")
	}
	if c.RateLimit.Burst <= 0 {
		return models.NewValidationError("rate_limit_burst", "must be positive")
	}
	if _, err := c.Logger(); err != nil {
		return err
	}
	return nil
}

// RequireToken is checked only by commands that talk to Telegram
func (c *Config) RequireToken() error {
	if c.Telegram.Token == "" {
		return models.NewValidationError("telegram_bot_token", "must be set")
	}
	return nil
}

// Policy builds the repetition policy from the mastery tables
func (c *Config) Policy() (*spaced_repetition.Policy, error) {
	return spaced_repetition.NewPolicyFrom(c.Mastery.Thresholds, c.Mastery.Intervals)
}

// IsAdmin reports whether userID may run admin commands
func (c *Config) IsAdmin(userID int64) bool {
	return lo.Contains(c.Telegram.AdminUserIDs, userID)
}
