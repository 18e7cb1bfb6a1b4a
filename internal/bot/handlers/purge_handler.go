package handlers

import (
	"context"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewPurgeHandler returns a handler for /purge, which removes the replied-to
// message from the chat and from the stored history.
func NewPurgeHandler(deps HandlerDeps) bot.HandlerFunc {
	return purgeHandler{deps}.Handle
}

type purgeHandler struct {
	deps HandlerDeps
}

func (h purgeHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "purge")

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	target := msg.ReplyToMessage
	if target == nil {
		reply(ctx, b, log, msg, h.deps.Config.Messages.Usage)
		return
	}

	if _, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: msg.Chat.ID, MessageID: target.ID}); err != nil {
		log.ErrorContext(ctx, "Failed to delete message in chat", "error", err, "chat_id", msg.Chat.ID, "message_id", target.ID)
		reply(ctx, b, log, msg, h.deps.Config.Messages.GeneralError)
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, h.deps.Config.Moderation.CommandTimeout)
	defer cancel()
	if _, err := h.deps.Store.DeleteMessage(cmdCtx, chatKey(msg.Chat.ID), strconv.Itoa(target.ID)); err != nil {
		log.ErrorContext(ctx, "Failed to delete stored message", "error", err, "message_id", target.ID)
	}

	log.InfoContext(ctx, "Message purged", "chat_id", msg.Chat.ID, "message_id", target.ID, "admin_user_id", msg.From.ID)
	reply(ctx, b, log, msg, h.deps.Config.Messages.Purged)
}
