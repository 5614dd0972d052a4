package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"alarm_clock_bot/internal/app"
	"alarm_clock_bot/internal/infra/config"
	idb "alarm_clock_bot/internal/infra/database"
	"alarm_clock_bot/internal/infra/logger"
	"alarm_clock_bot/internal/infra/scheduler"
	"alarm_clock_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Could not load application configuration: %v", err)
	}
	log := logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"owner_id":    cfg.OwnerTelegramID,
		"timezone":    cfg.Location.String(),
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, dialect, err := idb.Open(cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	scripts, err := idb.Scripts(dialect)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not load migrations")
	}
	if err := idb.Migrate(ctx, db, dialect, scripts); err != nil {
		mainLogger.WithError(err).Fatal("Could not migrate database")
	}
	mainLogger.WithField("dialect", dialect).Info("Database connection established successfully.")

	alarmRepo := idb.NewAlarmRepository(db, dialect)

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Component("telebot").WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}
	notifier := telegram.NewAlertNotifier(telegram.NewTelebotAdapter(bot), cfg.OwnerTelegramID, log.WithField("app", "alarm_clock_bot"))

	// Timer facility and engine
	cronTimer := scheduler.NewCronTimer(cfg.Location, logger.Component("scheduler"))
	cronTimer.Start()
	registry := app.NewRegistry(cronTimer, cfg.TimerRegisterTimeout, logger.Component("app"))
	engine := app.NewEngine(alarmRepo, registry, notifier, logger.Component("app"), cfg.Location, cfg.RecoveryConcurrency)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		engine.Run(ctx, cronTimer.Fired())
	}()

	report, err := engine.RecoverAll(ctx)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not recover alarm schedule")
	}
	mainLogger.WithFields(logrus.Fields{
		"armed":  len(report.Armed),
		"failed": len(report.Failures),
	}).Info("Alarm schedule recovered")

	alarmScheduler := scheduler.NewAlarmScheduler(engine, logger.Component("scheduler"), cfg.Location, cfg.CronSpecReconcile)
	if err := alarmScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start alarm scheduler")
	}

	alarmService := app.NewAlarmService(alarmRepo, engine, cfg.OwnerTelegramID, logger.Component("app"))

	// Register Handlers
	handlerLogger := logger.Component("telegram")
	telegram.RegisterBotCommands(bot, cfg, handlerLogger)
	telegram.RegisterAlarmHandlers(ctx, bot, alarmService, cfg.OwnerTelegramID, cfg.DefaultSnoozeMinutes, handlerLogger)
	telegram.RegisterAlarmResponseHandlers(ctx, bot, engine, cfg.OwnerTelegramID, handlerLogger)
	mainLogger.Info("Command handlers registered.")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()
	mainLogger.Info("Application setup complete. Bot and scheduler are running.")

	<-ctx.Done() // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	alarmScheduler.Stop()
	cronTimer.Stop()
	<-runDone
	mainLogger.Info("Application shut down gracefully.")
}
