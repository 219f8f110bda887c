// Package main contains the entrypoint for the Armtemiy Lab Telegram bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/armtemiy/armlab-bot/internal/bot"
	"github.com/armtemiy/armlab-bot/internal/bot/handlers"
	"github.com/armtemiy/armlab-bot/internal/bot/tasks"
	"github.com/armtemiy/armlab-bot/internal/broadcast"
	"github.com/armtemiy/armlab-bot/internal/config"
	"github.com/armtemiy/armlab-bot/internal/database"
	"github.com/armtemiy/armlab-bot/internal/gate"
	"github.com/armtemiy/armlab-bot/internal/logger"
	"github.com/armtemiy/armlab-bot/internal/ratelimit"
	"github.com/armtemiy/armlab-bot/internal/resilience"
	"github.com/armtemiy/armlab-bot/internal/sanitize"
	"github.com/armtemiy/armlab-bot/internal/subscription"
	"github.com/armtemiy/armlab-bot/internal/telegram"
	"github.com/armtemiy/armlab-bot/internal/users"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes every component, blocks until shutdown and returns the
// process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	breaker := func(name string) *resilience.Guard {
		return resilience.NewGuard(resilience.Config{
			Name:         name,
			MaxFailures:  cfg.Breaker.MaxFailures,
			ResetTimeout: cfg.Breaker.ResetTimeout,
		}, log)
	}
	dbGuard := breaker("database")

	limiterDeps := ratelimit.Deps{Logger: log, Store: store, Guard: dbGuard}
	if cfg.RateLimit.Backend == ratelimit.BackendRedis {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Error("Invalid redis url", "error", err)
			return 1
		}
		rdb := redis.NewClient(opts)
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("Failed to close redis client", "error", err)
			}
		}()
		limiterDeps.Redis = rdb
		limiterDeps.Guard = breaker("redis")
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		Backend:     cfg.RateLimit.Backend,
		MaxRequests: cfg.RateLimit.MaxRequests,
		TimePeriod:  cfg.RateLimit.TimePeriod,
	}, limiterDeps)
	if err != nil {
		log.Error("Failed to create rate limiter", "error", err)
		return 1
	}

	clock := clockwork.NewRealClock()
	directory := users.NewDirectory(store, dbGuard, clock, log)
	snapshots := users.NewCache(directory, users.CacheConfig{
		TTL:          cfg.Cache.TTL,
		FetchTimeout: cfg.Cache.FetchTimeout,
		Clock:        clock,
	}, log)
	requestGate := gate.New(limiter, cfg.Privileged(), gate.Notices{
		Message:  cfg.Telegram.Messages.RateLimited,
		Callback: cfg.Telegram.Messages.RateLimitedShort,
	}, clock, log)

	hDeps := handlers.HandlerDeps{
		Logger:       log,
		Config:       cfg,
		Directory:    directory,
		Snapshots:    snapshots,
		Subscription: subscription.NewChecker(cfg.Telegram.ChannelID, log),
		Broadcaster: broadcast.New(directory, broadcast.Config{
			PerSecond: cfg.Broadcast.Rate,
			Burst:     cfg.Broadcast.Burst,
		}, log),
		Gate:      requestGate,
		Formatter: sanitize.NewTelegramPolicy(),
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Config: cfg,
		Store:  store,
		Guard:  dbGuard,
		Cache:  snapshots,
		Clock:  clock,
	}
	if windows, ok := limiter.(*ratelimit.MemoryLimiter); ok {
		tDeps.Windows = windows
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log), requestGate.Middleware()),
		tgbot.WithDefaultHandler(handlers.NewFallbackHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	if err := telegram.SetCommands(ctx, tg, handlers.PublicCommands()); err != nil {
		log.Warn("Failed to publish command menu", "error", err)
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps), clock)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, tg, sched)

	log.Info("Starting bot...",
		"rate_limit_backend", cfg.RateLimit.Backend,
		"subscription_check", hDeps.Subscription.Enabled(),
		"admins", len(cfg.Telegram.AdminIDs))
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
