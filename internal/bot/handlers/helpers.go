package handlers

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chatguard/internal/domain/model"
)

// withBotName substitutes the @botname placeholder once the bot identity is known.
func withBotName(text string, me *models.User) string {
	if me == nil || me.Username == "" {
		return text
	}
	return strings.ReplaceAll(text, "@botname", "@"+me.Username)
}

// parseTarget finds the user a moderation command acts on. A reply to a
// message targets its sender and leaves every argument for the caller;
// otherwise the first argument must be a numeric user id.
func parseTarget(msg *models.Message) (userID string, args []string, ok bool) {
	if msg == nil {
		return "", nil, false
	}
	fields := strings.Fields(msg.Text)
	if len(fields) > 0 {
		fields = fields[1:]
	}

	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		return strconv.FormatInt(msg.ReplyToMessage.From.ID, 10), fields, true
	}

	if len(fields) == 0 {
		return "", nil, false
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return "", nil, false
	}
	return strconv.FormatInt(id, 10), fields[1:], true
}

// displayName prefers "First Last", then @username, then the numeric id.
func displayName(u *models.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	switch {
	case name != "":
		return name
	case u.Username != "":
		return "@" + u.Username
	default:
		return strconv.FormatInt(u.ID, 10)
	}
}

// toMessage maps a Telegram message onto the stored representation.
// Messages without a sender (channel posts, service messages) keep an empty author.
func toMessage(msg *models.Message) model.Message {
	created := time.Unix(int64(msg.Date), 0).UTC()
	updated := created
	if msg.EditDate > 0 {
		updated = time.Unix(int64(msg.EditDate), 0).UTC()
	}

	body := msg.Text
	if body == "" {
		body = msg.Caption
	}

	m := model.Message{
		ID:        strconv.Itoa(msg.ID),
		ChannelID: chatKey(msg.Chat.ID),
		Body:      body,
		CreatedAt: created,
		UpdatedAt: updated,
	}
	if msg.From != nil {
		m.AuthorID = strconv.FormatInt(msg.From.ID, 10)
	}
	return m
}

func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func scopeLabel(channelID string) string {
	if channelID == "" {
		return "global"
	}
	return "this chat"
}

// reply answers msg in its chat, logging delivery failures.
func reply(ctx context.Context, b *bot.Bot, log *slog.Logger, msg *models.Message, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          msg.Chat.ID,
		Text:            text,
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", msg.Chat.ID)
	}
}
