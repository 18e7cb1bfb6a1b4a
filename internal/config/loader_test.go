package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/edgard/chatguard/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123456:abcdef"
  admin_user_ids: [42, 43]
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want info", cfg.Logger.Level)
	}
	if cfg.Sync.FetchTimeout != 10*time.Second {
		t.Errorf("Sync.FetchTimeout = %v, want 10s", cfg.Sync.FetchTimeout)
	}
	if cfg.Moderation.DefaultReason == "" {
		t.Error("Moderation.DefaultReason should have a default")
	}
	if cfg.Moderation.BreakerFailures != 5 || cfg.Moderation.BreakerCooldown != 30*time.Second {
		t.Errorf("breaker defaults = %d/%v, want 5/30s", cfg.Moderation.BreakerFailures, cfg.Moderation.BreakerCooldown)
	}
	if !cfg.IsAdmin(43) || cfg.IsAdmin(44) {
		t.Errorf("IsAdmin() mismatch for admins %v", cfg.Telegram.AdminUserIDs)
	}
	task, ok := cfg.Scheduler.Tasks["sql_maintenance"]
	if !ok || !task.Enabled || task.Schedule == "" {
		t.Errorf("sql_maintenance task default missing: %+v", cfg.Scheduler.Tasks)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
logger:
  level: debug
  json: true
telegram:
  token: "123456:abcdef"
  admin_user_ids: [42]
sync:
  fetch_timeout: 2s
  feed_buffer: 16
`)
	t.Setenv("CHATGUARD_DATABASE_PATH", "/tmp/override.db")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Logger.Level != "debug" || !cfg.Logger.JSON {
		t.Errorf("logger overrides not applied: %+v", cfg.Logger)
	}
	if cfg.Sync.FetchTimeout != 2*time.Second || cfg.Sync.FeedBuffer != 16 {
		t.Errorf("sync overrides not applied: %+v", cfg.Sync)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := map[string]string{
		"missing token": `
telegram:
  admin_user_ids: [42]
`,
		"missing admins": `
telegram:
  token: "123456:abcdef"
`,
		"bad log level": `
logger:
  level: verbose
telegram:
  token: "123456:abcdef"
  admin_user_ids: [42]
`,
		"fetch timeout too small": `
telegram:
  token: "123456:abcdef"
  admin_user_ids: [42]
sync:
  fetch_timeout: 1ms
`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			if err == nil {
				t.Fatal("LoadConfig() expected validation error, got nil")
			}
			if code := apperrors.Code(err); code != apperrors.CodeConfig {
				t.Errorf("Code() = %q, want %q", code, apperrors.CodeConfig)
			}
		})
	}
}

func TestLoadConfigMissingFileUsesEnv(t *testing.T) {
	t.Setenv("CHATGUARD_TELEGRAM_TOKEN", "123456:abcdef")
	t.Setenv("CHATGUARD_TELEGRAM_ADMIN_USER_IDS", "7")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Telegram.Token != "123456:abcdef" {
		t.Errorf("Telegram.Token = %q", cfg.Telegram.Token)
	}
	if !cfg.IsAdmin(7) {
		t.Errorf("AdminUserIDs = %v, want [7]", cfg.Telegram.AdminUserIDs)
	}
}
