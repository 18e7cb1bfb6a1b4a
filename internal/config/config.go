// Package config manages application configuration from a YAML file,
// CHATGUARD_* environment variables and default values.
package config

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Config defines the application configuration for every chatguard component.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Sync       SyncConfig       `mapstructure:"sync"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Messages   MessagesConfig   `mapstructure:"messages"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig holds bot credentials and the users allowed to moderate.
type TelegramConfig struct {
	Token        string  `mapstructure:"token"          validate:"required"`
	AdminUserIDs []int64 `mapstructure:"admin_user_ids" validate:"required,min=1,dive,gt=0"`

	// BotInfo is filled at startup from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// ModerationConfig controls ban resolution and command handling.
type ModerationConfig struct {
	DefaultReason  string        `mapstructure:"default_reason"  validate:"required"`
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout" validate:"min=100ms,max=1m"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" validate:"min=100ms,max=1m"`

	// DeleteBanned removes messages posted by banned users from the chat.
	DeleteBanned bool `mapstructure:"delete_banned"`

	// BreakerFailures consecutive lookup failures stop ban lookups for
	// BreakerCooldown. Zero disables the breaker.
	BreakerFailures int           `mapstructure:"breaker_failures" validate:"min=0,max=1000"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" validate:"min=1s,max=1h"`
}

// SyncConfig controls channel synchronizers and the change feed.
type SyncConfig struct {
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"  validate:"min=100ms,max=5m"`
	ResyncBackoff time.Duration `mapstructure:"resync_backoff" validate:"min=10ms,max=5m"`
	FeedBuffer    int           `mapstructure:"feed_buffer"    validate:"min=1,max=65536"`
}

// HTTPConfig configures the status and streaming API. An empty Addr disables it.
type HTTPConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" validate:"min=1s"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"    validate:"min=1s"`
}

// TracingConfig enables OpenTelemetry export. An empty endpoint falls back
// to OTEL_EXPORTER_OTLP_ENDPOINT; with neither set tracing is off.
type TracingConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" validate:"required"`
}

type MessagesConfig struct {
	Welcome         string `mapstructure:"welcome"          validate:"required"`
	Help            string `mapstructure:"help"             validate:"required"`
	Unauthorized    string `mapstructure:"unauthorized"     validate:"required"`
	Usage           string `mapstructure:"usage"            validate:"required"`
	Banned          string `mapstructure:"banned"           validate:"required"`
	Unbanned        string `mapstructure:"unbanned"         validate:"required"`
	UnbanFailed     string `mapstructure:"unban_failed"     validate:"required"`
	NotBanned       string `mapstructure:"not_banned"       validate:"required"`
	Purged          string `mapstructure:"purged"           validate:"required"`
	GeneralError    string `mapstructure:"general_error"    validate:"required"`
	StatusUnchecked string `mapstructure:"status_unchecked" validate:"required"`
}

type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a registered task on a cron schedule (seconds field allowed).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// IsAdmin reports whether userID may run moderation commands.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
