package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewBanStatusHandler returns a handler for /banstatus, which reports whether
// the target may post in the current chat.
func NewBanStatusHandler(deps HandlerDeps) bot.HandlerFunc {
	return banStatusHandler{deps}.Handle
}

type banStatusHandler struct {
	deps HandlerDeps
}

func (h banStatusHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "banstatus")

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	target, _, ok := parseTarget(msg)
	if !ok {
		reply(ctx, b, log, msg, h.deps.Config.Messages.Usage)
		return
	}

	res := h.deps.Resolver.Resolve(ctx, target, chatKey(msg.Chat.ID))
	switch {
	case res.Err != nil:
		reply(ctx, b, log, msg, fmt.Sprintf(h.deps.Config.Messages.StatusUnchecked, target))
	case !res.Banned:
		reply(ctx, b, log, msg, fmt.Sprintf(h.deps.Config.Messages.NotBanned, target))
	default:
		scope := "this chat"
		if res.Global {
			scope = "global"
		}
		text := fmt.Sprintf(h.deps.Config.Messages.Banned, target, scope, res.Reason)
		if res.AdminName != "" {
			text += "\n👮 " + res.AdminName
		}
		reply(ctx, b, log, msg, text)
	}
}
