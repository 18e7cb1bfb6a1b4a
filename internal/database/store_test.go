package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/edgard/chatguard/internal/domain/model"
	"github.com/edgard/chatguard/internal/feed"
)

func newTestStore(t *testing.T) (Store, *feed.Hub) {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "chatguard.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })

	hub := feed.NewHub(16, nil)
	t.Cleanup(hub.Close)
	return NewStore(db, hub, nil), hub
}

func TestBanLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newTestStore(t)

	if err := store.UpsertMember(ctx, "admin-1", "Alice"); err != nil {
		t.Fatalf("UpsertMember() error = %v", err)
	}

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	global := &model.BanRecord{UserID: "u1", Reason: "spam", AdminID: "admin-1", CreatedAt: created}
	if err := store.CreateBan(ctx, global); err != nil {
		t.Fatalf("CreateBan(global) error = %v", err)
	}
	if global.ID == 0 {
		t.Fatal("CreateBan() did not assign an ID")
	}
	local := &model.BanRecord{UserID: "u1", ChannelID: "c1", Reason: "flood", AdminID: "admin-2", CreatedAt: created}
	if err := store.CreateBan(ctx, local); err != nil {
		t.Fatalf("CreateBan(channel) error = %v", err)
	}

	got, err := store.ActiveBan(ctx, "u1", "")
	if err != nil {
		t.Fatalf("ActiveBan(global) error = %v", err)
	}
	want := &model.BanRecord{
		ID: global.ID, UserID: "u1", Reason: "spam", AdminID: "admin-1", AdminName: "Alice", CreatedAt: created,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ActiveBan(global) mismatch (-want +got):\n%s", diff)
	}

	got, err = store.ActiveBan(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("ActiveBan(channel) error = %v", err)
	}
	if got == nil || got.ChannelID != "c1" || got.Reason != "flood" || got.AdminName != "" {
		t.Errorf("ActiveBan(channel) = %+v", got)
	}

	if got, _ := store.ActiveBan(ctx, "u1", "c2"); got != nil {
		t.Errorf("ActiveBan(other channel) = %+v, want nil", got)
	}

	g, c, err := store.CountActiveBans(ctx)
	if err != nil || g != 1 || c != 1 {
		t.Errorf("CountActiveBans() = %d, %d, %v; want 1, 1, nil", g, c, err)
	}

	n, err := store.LiftBan(ctx, "u1", "admin-1", "", created.Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("LiftBan() = %d, %v; want 1, nil", n, err)
	}
	if got, _ := store.ActiveBan(ctx, "u1", ""); got != nil {
		t.Errorf("lifted ban still active: %+v", got)
	}
	if got, _ := store.ActiveBan(ctx, "u1", "c1"); got == nil {
		t.Error("lifting the global ban must not lift the channel ban")
	}

	n, err = store.LiftBan(ctx, "u1", "admin-1", "", time.Time{})
	if err != nil || n != 0 {
		t.Errorf("second LiftBan() = %d, %v; want 0, nil", n, err)
	}
}

func TestCreateBanReplacesActiveRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newTestStore(t)

	first := &model.BanRecord{UserID: "u1", Reason: "first", AdminID: "a1"}
	second := &model.BanRecord{UserID: "u1", Reason: "second", AdminID: "a2"}
	for _, b := range []*model.BanRecord{first, second} {
		if err := store.CreateBan(ctx, b); err != nil {
			t.Fatalf("CreateBan(%s) error = %v", b.Reason, err)
		}
	}

	got, err := store.ActiveBan(ctx, "u1", "")
	if err != nil {
		t.Fatalf("ActiveBan() error = %v", err)
	}
	if got == nil || got.ID != second.ID || got.Reason != "second" {
		t.Errorf("ActiveBan() = %+v, want the re-ban", got)
	}

	g, _, err := store.CountActiveBans(ctx)
	if err != nil || g != 1 {
		t.Errorf("CountActiveBans() global = %d, %v; want 1", g, err)
	}
}

func TestMessagesListOrderAndEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newTestStore(t)

	sub, err := store.Subscribe(ctx, "c1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []*model.Message{
		{ID: "m3", ChannelID: "c1", AuthorID: "u1", Body: "third", CreatedAt: base.Add(3 * time.Minute)},
		{ID: "m1", ChannelID: "c1", AuthorID: "u2", Body: "first", CreatedAt: base.Add(1 * time.Minute)},
		{ID: "m2", ChannelID: "c1", AuthorID: "", Body: "orphan", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "x1", ChannelID: "c2", AuthorID: "u1", Body: "elsewhere", CreatedAt: base},
	}
	for _, m := range msgs {
		if err := store.SaveMessage(ctx, m); err != nil {
			t.Fatalf("SaveMessage(%s) error = %v", m.ID, err)
		}
	}

	got, err := store.ListMessages(ctx, "c1")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	want := []model.Message{
		{ID: "m1", ChannelID: "c1", AuthorID: "u2", Body: "first", CreatedAt: base.Add(1 * time.Minute)},
		{ID: "m3", ChannelID: "c1", AuthorID: "u1", Body: "third", CreatedAt: base.Add(3 * time.Minute)},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(model.Message{}, "UpdatedAt")); diff != "" {
		t.Errorf("ListMessages() mismatch (-want +got):\n%s", diff)
	}

	ok, err := store.UpdateMessage(ctx, &model.Message{ID: "m1", ChannelID: "c1", AuthorID: "u2", Body: "edited"})
	if err != nil || !ok {
		t.Fatalf("UpdateMessage() = %v, %v; want true, nil", ok, err)
	}
	ok, err = store.UpdateMessage(ctx, &model.Message{ID: "nope", ChannelID: "c1", AuthorID: "u2"})
	if err != nil || ok {
		t.Errorf("UpdateMessage(unknown) = %v, %v; want false, nil", ok, err)
	}
	ok, err = store.DeleteMessage(ctx, "c1", "m3")
	if err != nil || !ok {
		t.Fatalf("DeleteMessage() = %v, %v; want true, nil", ok, err)
	}
	ok, err = store.DeleteMessage(ctx, "c1", "m3")
	if err != nil || ok {
		t.Errorf("DeleteMessage(again) = %v, %v; want false, nil", ok, err)
	}

	var types []model.EventType
	var ids []string
	for len(types) < 5 {
		select {
		case ev := <-sub.Events():
			types = append(types, ev.Type)
			ids = append(ids, ev.Message.ID)
		case <-time.After(time.Second):
			t.Fatalf("timed out after events %v", ids)
		}
	}
	wantTypes := []model.EventType{model.EventInsert, model.EventInsert, model.EventInsert, model.EventUpdate, model.EventDelete}
	if diff := cmp.Diff(wantTypes, types); diff != "" {
		t.Errorf("event types mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"m3", "m1", "m2", "m1", "m3"}, ids); diff != "" {
		t.Errorf("event ids mismatch (-want +got):\n%s", diff)
	}
}

func TestSubscribeReleasedWithContext(t *testing.T) {
	t.Parallel()
	store, hub := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := store.Subscribe(ctx, "c1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not released after context cancellation")
	}
	if n := hub.Subscribers("c1"); n != 0 {
		t.Errorf("Subscribers() = %d, want 0", n)
	}
}

func TestExtractDBNameFromPath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"./chatguard.db":                   "./chatguard.db",
		"file:/data/chat%20guard.db":       "/data/chat guard.db",
		"file:/data/chatguard.db?cache=on": "/data/chatguard.db",
	}
	for in, want := range tests {
		if got := ExtractDBNameFromPath(in); got != want {
			t.Errorf("ExtractDBNameFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewDBAppliesPragmas(t *testing.T) {
	t.Parallel()

	db, err := NewDB(filepath.Join(t.TempDir(), "pragma.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })

	var mode string
	if err := db.Get(&mode, "PRAGMA journal_mode"); err != nil {
		t.Fatalf("journal_mode error = %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var fk, timeout int
	if err := db.Get(&fk, "PRAGMA foreign_keys"); err != nil {
		t.Fatalf("foreign_keys error = %v", err)
	}
	if err := db.Get(&timeout, "PRAGMA busy_timeout"); err != nil {
		t.Fatalf("busy_timeout error = %v", err)
	}
	if fk != 1 || timeout != 5000 {
		t.Errorf("foreign_keys = %d, busy_timeout = %d, want 1 and 5000", fk, timeout)
	}
}

func TestWithPragmas(t *testing.T) {
	t.Parallel()

	const defaults = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	tests := []struct{ in, want string }{
		{in: "./chatguard.db", want: "./chatguard.db?" + defaults},
		{in: "file:/data/chatguard.db?cache=shared", want: "file:/data/chatguard.db?cache=shared&" + defaults},
		{in: "/data/chatguard.db?_pragma=foreign_keys(0)", want: "/data/chatguard.db?_pragma=foreign_keys(0)"},
	}
	for _, tt := range tests {
		if got := withPragmas(tt.in); got != tt.want {
			t.Errorf("withPragmas(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
