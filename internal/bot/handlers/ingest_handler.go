package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chatguard/internal/telemetry"
)

// NewIngestHandler returns the default handler. Every non-command message
// and edit passes the ban gate: messages from banned users are removed from
// the chat, everything else is recorded so channel views stay current.
func NewIngestHandler(deps HandlerDeps) bot.HandlerFunc {
	return ingestHandler{deps}.Handle
}

type ingestHandler struct {
	deps HandlerDeps
}

func (h ingestHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "ingest")

	msg, edited := update.Message, false
	if msg == nil {
		msg, edited = update.EditedMessage, true
	}
	if msg == nil {
		log.DebugContext(ctx, "Ignoring update without message", "update_id", update.ID)
		return
	}

	stored := toMessage(msg)

	if msg.From != nil && !h.deps.Config.IsAdmin(msg.From.ID) {
		res := h.deps.Resolver.Resolve(ctx, stored.AuthorID, stored.ChannelID)
		if res.Banned {
			h.block(ctx, b, msg, edited)
			return
		}
	}

	dbCtx, cancel := context.WithTimeout(ctx, h.deps.Config.Moderation.CommandTimeout)
	defer cancel()

	if msg.From != nil && !msg.From.IsBot {
		if err := h.deps.Store.UpsertMember(dbCtx, stored.AuthorID, displayName(msg.From)); err != nil {
			log.WarnContext(ctx, "Failed to record member", "user_id", stored.AuthorID, "error", err)
		}
	}

	if edited {
		found, err := h.deps.Store.UpdateMessage(dbCtx, &stored)
		if err != nil {
			log.ErrorContext(ctx, "Failed to update message", "error", err, "chat_id", msg.Chat.ID, "message_id", msg.ID)
			return
		}
		if found {
			return
		}
		// Edit of a message we never saw: store it as new.
	}
	if err := h.deps.Store.SaveMessage(dbCtx, &stored); err != nil {
		log.ErrorContext(ctx, "Failed to save message", "error", err, "chat_id", msg.Chat.ID, "message_id", msg.ID)
	}
}

// block drops a banned user's message. An edited message may already be
// stored, so it is removed from history as well.
func (h ingestHandler) block(ctx context.Context, b *bot.Bot, msg *models.Message, edited bool) {
	log := h.deps.Logger.With("handler", "ingest")
	telemetry.MessagesBlocked.Inc()
	log.InfoContext(ctx, "Blocked message from banned user", "user_id", msg.From.ID, "chat_id", msg.Chat.ID, "message_id", msg.ID)

	if edited {
		dbCtx, cancel := context.WithTimeout(ctx, h.deps.Config.Moderation.CommandTimeout)
		defer cancel()
		if _, err := h.deps.Store.DeleteMessage(dbCtx, chatKey(msg.Chat.ID), toMessage(msg).ID); err != nil {
			log.ErrorContext(ctx, "Failed to drop stored message of banned user", "error", err, "message_id", msg.ID)
		}
	}

	if !h.deps.Config.Moderation.DeleteBanned {
		return
	}
	if _, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: msg.Chat.ID, MessageID: msg.ID}); err != nil {
		log.WarnContext(ctx, "Failed to delete message from banned user", "error", err, "chat_id", msg.Chat.ID, "message_id", msg.ID)
	}
}
