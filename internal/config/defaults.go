package config

import "time"

var defaults = map[string]any{
	"logger.level": "info",
	"logger.json":  false,

	"database.path": "./chatguard.db",

	"moderation.default_reason":   "No reason provided",
	"moderation.resolve_timeout":  3 * time.Second,
	"moderation.command_timeout":  10 * time.Second,
	"moderation.delete_banned":    true,
	"moderation.breaker_failures": 5,
	"moderation.breaker_cooldown": 30 * time.Second,

	"sync.fetch_timeout":  10 * time.Second,
	"sync.resync_backoff": 2 * time.Second,
	"sync.feed_buffer":    256,

	"http.addr":                "",
	"http.read_header_timeout": 5 * time.Second,
	"http.shutdown_timeout":    10 * time.Second,

	"messages.welcome":          "👋 Hi! I'm @botname. I keep an eye on this chat and enforce bans set by the moderators.",
	"messages.help":             "Moderator commands:\n/ban <user_id> [reason] - ban everywhere\n/unban <user_id> - lift a global ban\n/chanban <user_id> [reason] - ban in this chat\n/chanunban <user_id> - lift a ban in this chat\n/banstatus <user_id> - show ban status here\n/purge - reply to a message to delete it\nAny command taking a user id also works as a reply to that user's message.",
	"messages.unauthorized":     "🚫 You are not allowed to use this command.",
	"messages.usage":            "ℹ️ Reply to a message or pass a numeric user id.",
	"messages.banned":           "🔨 User %s banned (%s): %s",
	"messages.unbanned":         "✅ User %s unbanned (%s).",
	"messages.unban_failed":     "⚠️ Could not unban user %s. Check the logs.",
	"messages.not_banned":       "✅ User %s is not banned here.",
	"messages.purged":           "🗑️ Message removed.",
	"messages.general_error":    "❌ An error occurred. Please try again later.",
	"messages.status_unchecked": "⚠️ Ban status for %s could not be checked right now.",

	"tracing.otlp_endpoint": "",
	"tracing.service_name":  "chatguard",

	"scheduler.tasks.sql_maintenance.enabled":  true,
	"scheduler.tasks.sql_maintenance.schedule": "0 0 4 * * *",
	"scheduler.tasks.ban_audit.enabled":        true,
	"scheduler.tasks.ban_audit.schedule":       "0 */15 * * * *",
}
