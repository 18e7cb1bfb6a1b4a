// Package telegram creates the Telegram client and registers chatguard's
// handlers and command menu on it.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chatguard/internal/bot/handlers"
	"github.com/edgard/chatguard/internal/logger"
)

// NewTelegramBot creates a new Telegram bot instance.
func NewTelegramBot(token string, log *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	log = logger.OrDiscard(log).With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created successfully", "token_prefix", tokenPrefix(token))
	return b, nil
}

func tokenPrefix(token string) string {
	if id, _, ok := strings.Cut(token, ":"); ok {
		return id + ":..."
	}
	return "..."
}

// applyMiddleware wraps a handler with mw so the first entry is the outermost.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers command handlers with their middleware, in
// command name order.
func RegisterHandlers(b *bot.Bot, log *slog.Logger, registeredHandlers map[string]handlers.RegisteredHandler) error {
	if b == nil {
		return fmt.Errorf("bot instance cannot be nil")
	}
	log = logger.OrDiscard(log).With("component", "handler_registry")

	if len(registeredHandlers) == 0 {
		log.Warn("No handlers provided for registration.")
		return nil
	}

	names := make([]string, 0, len(registeredHandlers))
	for name := range registeredHandlers {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		regHandler := registeredHandlers[name]
		if regHandler.Handler == nil {
			log.Warn("Skipping registration for nil handler", "pattern", regHandler.Pattern)
			continue
		}

		finalHandler := applyMiddleware(regHandler.Handler, regHandler.Middleware)
		b.RegisterHandler(regHandler.HandlerType, regHandler.Pattern, regHandler.MatchType, finalHandler)
		log.Debug("Registered handler", "pattern", regHandler.Pattern, "match_type", regHandler.MatchType, "middleware_count", len(regHandler.Middleware))
	}

	log.Info("Registered Telegram handlers successfully", "count", len(registeredHandlers))
	return nil
}

var commandMenu = []models.BotCommand{
	{Command: "ban", Description: "Ban a user everywhere"},
	{Command: "unban", Description: "Lift a global ban"},
	{Command: "chanban", Description: "Ban a user in this chat"},
	{Command: "chanunban", Description: "Lift a ban in this chat"},
	{Command: "banstatus", Description: "Show a user's ban status here"},
	{Command: "purge", Description: "Delete the replied-to message"},
	{Command: "help", Description: "Show available commands"},
}

// PublishCommands sets the command menu shown by Telegram clients.
func PublishCommands(ctx context.Context, b *bot.Bot) error {
	if _, err := b.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: commandMenu}); err != nil {
		return fmt.Errorf("failed to publish bot commands: %w", err)
	}
	return nil
}
