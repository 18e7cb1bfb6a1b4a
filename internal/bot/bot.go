// Package bot wires the Telegram listener, the task scheduler and the HTTP
// API together and manages their lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/chatguard/internal/feed"
	"github.com/edgard/chatguard/internal/httpapi"
)

// Bot represents the running application and owns its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	hub       *feed.Hub
	tgBot     *tgbot.Bot
	scheduler *Scheduler
	api       *httpapi.Server
}

// NewBot creates the orchestrator. api may be nil when the HTTP API is disabled.
func NewBot(
	logger *slog.Logger,
	hub *feed.Hub,
	tgBot *tgbot.Bot,
	scheduler *Scheduler,
	api *httpapi.Server,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		hub:       hub,
		tgBot:     tgBot,
		scheduler: scheduler,
		api:       api,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. The change feed is closed on the way out so open channel
// views terminate.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")
	defer b.hub.Close()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")
		b.tgBot.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if b.api != nil {
		g.Go(func() error {
			return b.api.Run(gCtx)
		})
	}

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
