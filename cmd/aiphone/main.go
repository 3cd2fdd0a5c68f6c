// Package main contains the entrypoint for the aiphone daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/redis/go-redis/v9"

	"github.com/edgard/aiphone/internal/app"
	"github.com/edgard/aiphone/internal/config"
	"github.com/edgard/aiphone/internal/database"
	"github.com/edgard/aiphone/internal/logger"
	"github.com/edgard/aiphone/internal/profile"
	"github.com/edgard/aiphone/internal/reply"
	"github.com/edgard/aiphone/internal/scheduler"
	"github.com/edgard/aiphone/internal/scheduler/tasks"
	"github.com/edgard/aiphone/internal/session"
	"github.com/edgard/aiphone/internal/status"
	"github.com/edgard/aiphone/internal/telegram"
	"github.com/edgard/aiphone/internal/web"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	backend, sqlStore, cleanup, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open profile store", "driver", cfg.Store.Driver, "error", err)
		return 1
	}
	defer cleanup()
	profiles := profile.NewStore(backend, cfg.Store.Key, log)

	completer, err := reply.NewCompleter(cfg.Reply.Provider, &http.Client{})
	if err != nil {
		log.Error("Failed to create reply backend", "error", err)
		return 1
	}
	replies := reply.NewClient(completer, cfg.Reply, log)

	sessions := session.NewManager(profiles, replies, session.WithLogger(log))

	reporter := status.New(
		status.NewHostNetwork(cfg.Status.NetClassPath),
		status.NewHostPower(cfg.Status.PowerSupplyPath),
		status.WithLocation(cfg.Location()),
		status.WithLogger(log),
	)

	server := web.NewServer(cfg.Server, sessions, reporter, profiles, log)

	tDeps := tasks.TaskDeps{
		Logger:      log,
		Store:       sqlStore,
		Status:      reporter,
		Sessions:    sessions,
		IdleTimeout: cfg.Session.IdleTimeout,
	}
	sched, err := scheduler.New(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps), cfg.Location())
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	var tg *tgbot.Bot
	if cfg.Telegram.Enabled {
		bridge := telegram.NewBridge(sessions, log)
		tg, err = telegram.NewTelegramBot(cfg.Telegram.Token, log,
			tgbot.WithMiddlewares(logger.TelegramMiddleware(log)),
			tgbot.WithDefaultHandler(bridge.DefaultHandler()),
		)
		if err != nil {
			log.Error("Failed to create Telegram bot", "error", err)
			return 1
		}
		if err := telegram.RegisterHandlers(tg, log, bridge.Handlers()); err != nil {
			log.Error("Failed to register Telegram handlers", "error", err)
			return 1
		}
	}

	log.Info("Starting aiphone...", "addr", cfg.Server.Addr, "store", cfg.Store.Driver, "provider", cfg.Reply.Provider)
	runErr := app.New(log, reporter, sessions, server, sched, tg).Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("aiphone stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("aiphone stopped gracefully.")
	return 0
}

// openBackend opens the configured profile backend. The returned SQL store is
// nil unless the sqlite driver is used.
func openBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (profile.Backend, database.Store, func(), error) {
	switch profile.Driver(cfg.Store.Driver) {
	case profile.DriverSQLite:
		db, err := database.Open(ctx, cfg.Database.Path, log)
		if err != nil {
			return nil, nil, nil, err
		}
		store := database.NewStore(db, log)
		backend, err := profile.NewBackend(profile.DriverSQLite, profile.WithSettingsStore(store))
		if err != nil {
			database.Close(db, log)
			return nil, nil, nil, err
		}
		return backend, store, func() { database.Close(db, log) }, nil

	case profile.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("Redis not reachable yet, profile loads will fail soft", "addr", cfg.Store.Redis.Addr, "error", err)
		}
		backend, err := profile.NewBackend(profile.DriverRedis, profile.WithRedisClient(client))
		if err != nil {
			_ = client.Close()
			return nil, nil, nil, err
		}
		return backend, nil, func() { _ = client.Close() }, nil

	default:
		backend, err := profile.NewBackend(profile.Driver(cfg.Store.Driver))
		if err != nil {
			return nil, nil, nil, err
		}
		log.Warn("Using in-memory profile store, configuration will not survive restarts")
		return backend, nil, func() {}, nil
	}
}
