package handlers

import (
	"log/slog"

	"github.com/edgard/chatguard/internal/config"
	"github.com/edgard/chatguard/internal/database"
	"github.com/edgard/chatguard/internal/moderation"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Store    database.Store
	Resolver *moderation.Resolver
	Gateway  *moderation.Gateway
}
