package handlers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewUnbanHandler returns the /unban handler, or /chanunban when perChannel is set.
func NewUnbanHandler(deps HandlerDeps, perChannel bool) bot.HandlerFunc {
	return unbanHandler{deps: deps, perChannel: perChannel}.Handle
}

type unbanHandler struct {
	deps       HandlerDeps
	perChannel bool
}

func (h unbanHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "unban", "per_channel", h.perChannel)

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.ErrorContext(ctx, "Unban handler called with nil Message or From", "update_id", update.ID)
		return
	}

	target, _, ok := parseTarget(msg)
	if !ok {
		reply(ctx, b, log, msg, h.deps.Config.Messages.Usage)
		return
	}
	var channelID string
	if h.perChannel {
		channelID = chatKey(msg.Chat.ID)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, h.deps.Config.Moderation.CommandTimeout)
	defer cancel()

	if !h.deps.Gateway.Unban(cmdCtx, target, strconv.FormatInt(msg.From.ID, 10), channelID) {
		reply(ctx, b, log, msg, fmt.Sprintf(h.deps.Config.Messages.UnbanFailed, target))
		return
	}
	reply(ctx, b, log, msg, fmt.Sprintf(h.deps.Config.Messages.Unbanned, target, scopeLabel(channelID)))
}
