package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/wordbot/internal/backup"
	"github.com/example/wordbot/internal/bot"
	"github.com/example/wordbot/internal/config"
	"github.com/example/wordbot/internal/mastery"
	"github.com/example/wordbot/internal/quiz"
	"github.com/example/wordbot/internal/scheduler"
	"github.com/example/wordbot/internal/stats"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot with reminders and blitz expiry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.RequireToken(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		policy, err := cfg.Policy()
		if err != nil {
			return err
		}
		tracker := mastery.NewTracker(store, policy, cfg.Mastery.DueLimit, logger)

		sessions, closeSessions, err := sessionStore(cmd, cfg, logger)
		if err != nil {
			return err
		}
		defer closeSessions()

		engine, err := quiz.NewEngine(store, tracker, sessions, cfg.Quiz, logger)
		if err != nil {
			return err
		}

		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("unable to create bot: %w", err)
		}
		logger.WithField("account", api.Self.UserName).Info("authorized on Telegram")

		b := bot.New(api, bot.Services{
			Store:  store,
			Engine: engine,
			Stats:  stats.NewService(store, tracker, cfg.Location, logger),
			Backup: backup.NewService(store, logger),
		}, bot.Config{
			AdminUserIDs:   cfg.Telegram.AdminUserIDs,
			RateLimit:      rate.Limit(cfg.RateLimit.RPS),
			Burst:          cfg.RateLimit.Burst,
			Location:       cfg.Location,
			MaxLinesPerAdd: bot.DefaultConfig().MaxLinesPerAdd,
		}, logger)

		sched := scheduler.New(store, engine, b, cfg.Scheduler, logger)
		b.SetReminders(sched)
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()

		updateConfig := tgbotapi.NewUpdate(0)
		updateConfig.Timeout = 60
		updates := api.GetUpdatesChan(updateConfig)

		logger.Info("bot started, press Ctrl+C to stop")
		b.Run(ctx, updates)
		api.StopReceivingUpdates()
		logger.Info("bot stopped")
		return nil
	},
}

func sessionStore(cmd *cobra.Command, cfg *config.Config, log logrus.FieldLogger) (quiz.SessionStore, func(), error) {
	if cfg.Sessions.Backend != config.BackendRedis {
		return quiz.NewMemoryStore(), func() {}, nil
	}
	rs := quiz.NewRedisStore(cfg.Sessions.Redis)
	if err := rs.Ping(cmd.Context()); err != nil {
		rs.Close()
		return nil, nil, err
	}
	log.WithField("addr", cfg.Sessions.Redis.Addr).Info("sessions kept in redis")
	return rs, func() { _ = rs.Close() }, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
