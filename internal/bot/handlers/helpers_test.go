package handlers

import (
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/google/go-cmp/cmp"

	"github.com/edgard/chatguard/internal/domain/model"
)

func TestParseTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		msg      *models.Message
		wantUser string
		wantArgs []string
		wantOK   bool
	}{
		{
			name:     "numeric id with reason",
			msg:      &models.Message{Text: "/ban 42 posting spam"},
			wantUser: "42",
			wantArgs: []string{"posting", "spam"},
			wantOK:   true,
		},
		{
			name:     "numeric id only",
			msg:      &models.Message{Text: "/unban 7"},
			wantUser: "7",
			wantArgs: []string{},
			wantOK:   true,
		},
		{
			name: "reply targets original sender",
			msg: &models.Message{
				Text:           "/chanban flooding",
				ReplyToMessage: &models.Message{From: &models.User{ID: 99}},
			},
			wantUser: "99",
			wantArgs: []string{"flooding"},
			wantOK:   true,
		},
		{
			name: "reply without sender falls back to argument",
			msg: &models.Message{
				Text:           "/ban 5",
				ReplyToMessage: &models.Message{},
			},
			wantUser: "5",
			wantArgs: []string{},
			wantOK:   true,
		},
		{name: "missing argument", msg: &models.Message{Text: "/ban"}},
		{name: "non numeric", msg: &models.Message{Text: "/ban @someone"}},
		{name: "negative id", msg: &models.Message{Text: "/ban -3"}},
		{name: "nil message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, args, ok := parseTarget(tt.msg)
			if ok != tt.wantOK || user != tt.wantUser {
				t.Fatalf("parseTarget() = (%q, %v), want (%q, %v)", user, ok, tt.wantUser, tt.wantOK)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.wantArgs, args); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		user *models.User
		want string
	}{
		{&models.User{ID: 1, FirstName: "Ada", LastName: "Lovelace", Username: "ada"}, "Ada Lovelace"},
		{&models.User{ID: 2, FirstName: "Grace"}, "Grace"},
		{&models.User{ID: 3, Username: "linus"}, "@linus"},
		{&models.User{ID: 4}, "4"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := displayName(tt.user); got != tt.want {
			t.Errorf("displayName(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}

func TestToMessage(t *testing.T) {
	t.Parallel()

	date := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	got := toMessage(&models.Message{
		ID:       17,
		From:     &models.User{ID: 42},
		Chat:     models.Chat{ID: -1001},
		Date:     int(date.Unix()),
		EditDate: int(date.Add(time.Minute).Unix()),
		Caption:  "photo caption",
	})
	want := model.Message{
		ID:        "17",
		ChannelID: "-1001",
		AuthorID:  "42",
		Body:      "photo caption",
		CreatedAt: date,
		UpdatedAt: date.Add(time.Minute),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("toMessage() mismatch (-want +got):\n%s", diff)
	}

	post := toMessage(&models.Message{ID: 1, Chat: models.Chat{ID: 5}, Text: "channel post"})
	if post.HasAuthor() {
		t.Errorf("message without sender has author %q", post.AuthorID)
	}
}

func TestWithBotName(t *testing.T) {
	t.Parallel()

	if got := withBotName("I'm @botname", &models.User{Username: "guard_bot"}); got != "I'm @guard_bot" {
		t.Errorf("withBotName() = %q", got)
	}
	if got := withBotName("I'm @botname", nil); got != "I'm @botname" {
		t.Errorf("withBotName(nil) = %q", got)
	}
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()

	cmds := RegisterAllCommands(HandlerDeps{})
	public := map[string]bool{"/start": true, "/help": true}
	for _, name := range []string{"/start", "/help", "/ban", "/chanban", "/unban", "/chanunban", "/banstatus", "/purge"} {
		h, ok := cmds[name]
		if !ok {
			t.Errorf("command %s not registered", name)
			continue
		}
		if "/"+h.Pattern != name {
			t.Errorf("command %s has pattern %q", name, h.Pattern)
		}
		if gotAdmin := len(h.Middleware) > 0; gotAdmin == public[name] {
			t.Errorf("command %s admin middleware = %v", name, gotAdmin)
		}
	}
}
