package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewBanHandler returns the /ban handler, or /chanban when perChannel is set.
func NewBanHandler(deps HandlerDeps, perChannel bool) bot.HandlerFunc {
	return banHandler{deps: deps, perChannel: perChannel}.Handle
}

type banHandler struct {
	deps       HandlerDeps
	perChannel bool
}

func (h banHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "ban", "per_channel", h.perChannel)

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.ErrorContext(ctx, "Ban handler called with nil Message or From", "update_id", update.ID)
		return
	}

	target, args, ok := parseTarget(msg)
	if !ok {
		reply(ctx, b, log, msg, h.deps.Config.Messages.Usage)
		return
	}
	reason := strings.Join(args, " ")
	if reason == "" {
		reason = h.deps.Config.Moderation.DefaultReason
	}
	var channelID string
	if h.perChannel {
		channelID = chatKey(msg.Chat.ID)
	}
	adminID := strconv.FormatInt(msg.From.ID, 10)

	cmdCtx, cancel := context.WithTimeout(ctx, h.deps.Config.Moderation.CommandTimeout)
	defer cancel()

	// Keep the admin's name current so resolutions can show who banned.
	if err := h.deps.Store.UpsertMember(cmdCtx, adminID, displayName(msg.From)); err != nil {
		log.WarnContext(ctx, "Failed to record admin display name", "admin_id", adminID, "error", err)
	}

	if err := h.deps.Gateway.Ban(cmdCtx, target, reason, adminID, channelID); err != nil {
		log.ErrorContext(ctx, "Ban command failed", "target_user_id", target, "error", err)
		reply(ctx, b, log, msg, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, b, log, msg, fmt.Sprintf(h.deps.Config.Messages.Banned, target, scopeLabel(channelID), reason))
}
