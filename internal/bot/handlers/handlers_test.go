package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/chatguard/internal/config"
	"github.com/edgard/chatguard/internal/database"
	"github.com/edgard/chatguard/internal/logger"
	"github.com/edgard/chatguard/internal/moderation"
)

const (
	adminID = int64(1)
	chatID  = int64(-100)
)

// apiCall is one request the handlers made to the Telegram Bot API.
type apiCall struct {
	Method string
	Text   string
	MsgID  string
}

type fakeTelegram struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		_ = r.ParseForm()
	}
	method := path.Base(r.URL.Path)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Text: r.FormValue("text"), MsgID: r.FormValue("message_id")})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if method == "deleteMessage" {
		fmt.Fprint(w, `{"ok":true,"result":true}`)
		return
	}
	fmt.Fprintf(w, `{"ok":true,"result":{"message_id":1000,"date":0,"chat":{"id":%d,"type":"supergroup"}}}`, chatID)
}

func (f *fakeTelegram) byMethod(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

type harness struct {
	deps  HandlerDeps
	bot   *tgbot.Bot
	api   *fakeTelegram
	store database.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "handlers.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, nil, nil)

	api := &fakeTelegram{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := tgbot.New("123456:TEST", tgbot.WithServerURL(srv.URL), tgbot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("bot.New() error = %v", err)
	}

	cfg := &config.Config{
		Telegram: config.TelegramConfig{AdminUserIDs: []int64{adminID}},
		Moderation: config.ModerationConfig{
			DefaultReason:  "No reason provided",
			ResolveTimeout: time.Second,
			CommandTimeout: time.Second,
			DeleteBanned:   true,
		},
		Messages: config.MessagesConfig{
			Unauthorized:    "unauthorized",
			Usage:           "usage",
			Banned:          "banned %s %s %s",
			Unbanned:        "unbanned %s %s",
			UnbanFailed:     "unban failed %s",
			NotBanned:       "not banned %s",
			Purged:          "purged",
			GeneralError:    "error",
			StatusUnchecked: "unchecked %s",
		},
	}

	return &harness{
		deps: HandlerDeps{
			Logger:   logger.Discard(),
			Config:   cfg,
			Store:    store,
			Resolver: moderation.NewResolver(store, nil),
			Gateway:  moderation.NewGateway(store, nil, clockwork.NewFakeClock()),
		},
		bot:   b,
		api:   api,
		store: store,
	}
}

func (h *harness) run(handler tgbot.HandlerFunc, update *models.Update) {
	handler(context.Background(), h.bot, update)
}

func textMessage(id int, from int64, text string) *models.Message {
	return &models.Message{
		ID:   id,
		From: &models.User{ID: from, FirstName: fmt.Sprintf("user%d", from)},
		Chat: models.Chat{ID: chatID, Type: "supergroup"},
		Date: int(time.Date(2026, 5, 1, 8, 0, id, 0, time.UTC).Unix()),
		Text: text,
	}
}

func lastText(t *testing.T, api *fakeTelegram) string {
	t.Helper()
	sent := api.byMethod("sendMessage")
	if len(sent) == 0 {
		t.Fatal("no message was sent")
	}
	return sent[len(sent)-1].Text
}

func TestBanBlocksFurtherMessages(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	ingest := NewIngestHandler(h.deps)
	h.run(ingest, &models.Update{Message: textMessage(1, 42, "hello")})

	h.run(NewBanHandler(h.deps, false), &models.Update{Message: textMessage(2, adminID, "/ban 42 spamming links")})
	if got := lastText(t, h.api); got != "banned 42 global spamming links" {
		t.Errorf("ban reply = %q", got)
	}

	h.run(ingest, &models.Update{Message: textMessage(3, 42, "buy now")})

	deleted := h.api.byMethod("deleteMessage")
	if len(deleted) != 1 || deleted[0].MsgID != "3" {
		t.Fatalf("deleteMessage calls = %+v, want message 3", deleted)
	}

	msgs, err := h.store.ListMessages(ctx, "-100")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	var bodies []string
	for _, m := range msgs {
		bodies = append(bodies, m.Body)
	}
	if strings.Join(bodies, "|") != "hello" {
		t.Errorf("stored bodies = %v, want only the message from before the ban", bodies)
	}

	h.run(NewBanStatusHandler(h.deps), &models.Update{Message: textMessage(4, adminID, "/banstatus 42")})
	if got := lastText(t, h.api); !strings.HasPrefix(got, "banned 42 global spamming links") {
		t.Errorf("banstatus reply = %q", got)
	}

	h.run(NewUnbanHandler(h.deps, false), &models.Update{Message: textMessage(5, adminID, "/unban 42")})
	if got := lastText(t, h.api); got != "unbanned 42 global" {
		t.Errorf("unban reply = %q", got)
	}

	h.run(ingest, &models.Update{Message: textMessage(6, 42, "sorry")})
	if n := len(h.api.byMethod("deleteMessage")); n != 1 {
		t.Errorf("deleteMessage calls after unban = %d, want 1", n)
	}
}

func TestChannelBanByReply(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	cmd := textMessage(10, adminID, "/chanban")
	cmd.ReplyToMessage = textMessage(9, 77, "offending")
	h.run(NewBanHandler(h.deps, true), &models.Update{Message: cmd})
	if got := lastText(t, h.api); got != "banned 77 this chat No reason provided" {
		t.Errorf("chanban reply = %q", got)
	}

	res := h.deps.Resolver.Resolve(context.Background(), "77", "-100")
	if !res.Banned || res.Global || res.AdminName != "user1" {
		t.Errorf("Resolve() = %+v, want channel ban by user1", res)
	}
	if other := h.deps.Resolver.Resolve(context.Background(), "77", "-200"); other.Banned {
		t.Errorf("Resolve() in other chat = %+v, want allowed", other)
	}
}

func TestAdminOnlyRejectsOthers(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	guarded := AdminOnly(h.deps)(NewBanHandler(h.deps, false))
	h.run(guarded, &models.Update{Message: textMessage(1, 500, "/ban 42")})

	if got := lastText(t, h.api); got != "unauthorized" {
		t.Errorf("reply = %q, want unauthorized", got)
	}
	if res := h.deps.Resolver.Resolve(context.Background(), "42", ""); res.Banned {
		t.Error("non-admin managed to ban a user")
	}
}

func TestBanUsageAndEditedMessages(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	h.run(NewBanHandler(h.deps, false), &models.Update{Message: textMessage(1, adminID, "/ban")})
	if got := lastText(t, h.api); got != "usage" {
		t.Errorf("reply to bare /ban = %q, want usage", got)
	}

	ingest := NewIngestHandler(h.deps)
	h.run(ingest, &models.Update{Message: textMessage(2, 42, "teh typo")})
	edited := textMessage(2, 42, "the typo")
	edited.EditDate = edited.Date + 30
	h.run(ingest, &models.Update{EditedMessage: edited})

	msgs, err := h.store.ListMessages(ctx, "-100")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "the typo" {
		t.Errorf("messages after edit = %+v", msgs)
	}
}

func TestPurgeRemovesStoredMessage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	target := textMessage(3, 42, "remove me")
	h.run(NewIngestHandler(h.deps), &models.Update{Message: target})

	cmd := textMessage(4, adminID, "/purge")
	cmd.ReplyToMessage = target
	h.run(NewPurgeHandler(h.deps), &models.Update{Message: cmd})

	if deleted := h.api.byMethod("deleteMessage"); len(deleted) != 1 || deleted[0].MsgID != "3" {
		t.Errorf("deleteMessage calls = %+v", deleted)
	}
	msgs, err := h.store.ListMessages(ctx, "-100")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages after purge = %+v, want none", msgs)
	}
	if got := lastText(t, h.api); got != "purged" {
		t.Errorf("purge reply = %q", got)
	}
}
