package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/wordbot/internal/quiz"
	"github.com/example/wordbot/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T) (*Config, error) {
	t.Helper()
	return Load(LoadOptions{EnvFiles: []string{filepath.Join(t.TempDir(), "missing.env")}})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, quiz.DefaultConfig(), cfg.Quiz)
	assert.Equal(t, []int{2, 2, 2}, cfg.Mastery.Thresholds)
	assert.Equal(t, []time.Duration{0, 24 * time.Hour, 72 * time.Hour, 168 * time.Hour}, cfg.Mastery.Intervals)
	assert.Equal(t, 20, cfg.Mastery.DueLimit)
	assert.Equal(t, BackendMemory, cfg.Sessions.Backend)
	assert.Equal(t, time.Hour, cfg.Scheduler.ReminderInterval)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.SweepInterval)
	assert.Equal(t, 8, cfg.Scheduler.StartHour)
	assert.Equal(t, 22, cfg.Scheduler.EndHour)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 2.0, cfg.RateLimit.RPS)
	assert.Equal(t, 5, cfg.RateLimit.Burst)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 2, 2}, policy.Thresholds)

	assert.ErrorIs(t, cfg.RequireToken(), models.ErrValidation)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("WORDS_PER_QUIZ", "5")
	t.Setenv("BLITZ_BUDGETS", "30s, 2m")
	t.Setenv("BLITZ_BUDGET", "2m")
	t.Setenv("MASTERY_THRESHOLDS", "1,3,5")
	t.Setenv("DIRECTION_MODE", "Reverse")
	t.Setenv("TIMEZONE", "Asia/Tashkent")
	t.Setenv("ADMIN_USER_IDS", "42, 7")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Quiz.WordsPerQuiz)
	assert.Equal(t, []time.Duration{30 * time.Second, 2 * time.Minute}, cfg.Quiz.BlitzBudgets)
	assert.Equal(t, 2*time.Minute, cfg.Quiz.BlitzBudget)
	assert.Equal(t, []int{1, 3, 5}, cfg.Mastery.Thresholds)
	assert.Equal(t, quiz.DirectionModeReverse, cfg.Quiz.DirectionMode)
	assert.Equal(t, "Asia/Tashkent", cfg.Location.String())
	assert.Equal(t, cfg.Location, cfg.Scheduler.Location)
	assert.True(t, cfg.IsAdmin(7))
	assert.False(t, cfg.IsAdmin(8))
	assert.NoError(t, cfg.RequireToken())

	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("RATE_LIMIT_BURST=9\nLOG_FORMAT=json\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("RATE_LIMIT_BURST")
		os.Unsetenv("LOG_FORMAT")
	})

	cfg, err := Load(LoadOptions{EnvFiles: []string{path}})
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.RateLimit.Burst)

	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wordbot.yaml")
	yaml := "blitz_words: 12\nmastery_intervals:\n  - 1m\n  - 1h\n  - 2h\n  - 3h\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(LoadOptions{
		EnvFiles:   []string{filepath.Join(t.TempDir(), "none.env")},
		ConfigFile: path,
	})
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Quiz.BlitzWords)
	assert.Equal(t, []time.Duration{time.Minute, time.Hour, 2 * time.Hour, 3 * time.Hour}, cfg.Mastery.Intervals)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		field string
	}{
		{"driver", "DB_DRIVER", "mysql", "db_driver"},
		{"shrinking intervals", "MASTERY_INTERVALS", "0s,72h,24h,168h", "mastery_intervals"},
		{"bad interval", "MASTERY_INTERVALS", "0s,soon,24h,168h", "mastery_intervals"},
		{"zero threshold", "MASTERY_THRESHOLDS", "2,0,2", "mastery_thresholds"},
		{"zero quiz size", "WORDS_PER_QUIZ", "0", "words_per_quiz"},
		{"budget not allowed", "BLITZ_BUDGET", "4m", "blitz_budget"},
		{"direction", "DIRECTION_MODE", "sideways", "direction_mode"},
		{"backend", "SESSION_BACKEND", "memcached", "session_backend"},
		{"hour", "NOTIFICATION_END_HOUR", "24", "notification_end_hour"},
		{"rate", "RATE_LIMIT_RPS", "0", "rate_limit_rps"},
		{"log level", "LOG_LEVEL", "loud", "log_level"},
		{"timezone", "TIMEZONE", "Mars/Olympus", "timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := load(t)
			require.ErrorIs(t, err, models.ErrValidation)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}
