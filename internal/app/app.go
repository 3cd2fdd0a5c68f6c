// Package app runs the daemon components and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/aiphone/internal/scheduler"
	"github.com/edgard/aiphone/internal/session"
	"github.com/edgard/aiphone/internal/status"
	"github.com/edgard/aiphone/internal/web"
)

const sessionCloseTimeout = 5 * time.Second

// App owns the running components. tgBot is nil when the Telegram bridge is
// disabled.
type App struct {
	logger    *slog.Logger
	reporter  *status.Reporter
	sessions  *session.Manager
	server    *web.Server
	scheduler *scheduler.Scheduler
	tgBot     *tgbot.Bot
}

// New creates an App.
func New(
	logger *slog.Logger,
	reporter *status.Reporter,
	sessions *session.Manager,
	server *web.Server,
	sched *scheduler.Scheduler,
	tgBot *tgbot.Bot,
) *App {
	return &App{
		logger:    logger.With("component", "app_orchestrator"),
		reporter:  reporter,
		sessions:  sessions,
		server:    server,
		scheduler: sched,
		tgBot:     tgBot,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting app orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	a.reporter.Start(gCtx)

	g.Go(func() error {
		if err := a.server.Run(gCtx); err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.logger.Info("Starting scheduler...")
		if err := a.scheduler.Start(gCtx); err != nil {
			a.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := a.scheduler.Stop(); err != nil {
			a.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if a.tgBot != nil {
		g.Go(func() error {
			a.logger.Info("Starting Telegram bot listener...")
			a.tgBot.Start(gCtx)
			a.logger.Info("Telegram bot listener stopped.")

			if gCtx.Err() == nil {
				a.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
				return fmt.Errorf("telegram listener stopped unexpectedly")
			}
			return nil
		})
	}

	err := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionCloseTimeout)
	defer cancel()
	if closeErr := a.sessions.Close(closeCtx); closeErr != nil {
		a.logger.Warn("Pending replies did not finish", "error", closeErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("App orchestrator stopped due to error", "error", err)
		return err
	}

	a.logger.Info("App orchestrator stopped gracefully.")
	return nil
}
