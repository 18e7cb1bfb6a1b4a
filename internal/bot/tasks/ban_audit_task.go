package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/chatguard/internal/telemetry"
)

const banAuditTimeout = 30 * time.Second

// newBanAuditTask counts active bans per scope and publishes them as gauges.
func newBanAuditTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "ban_audit")

	return func(ctx context.Context) error {
		auditCtx, cancel := context.WithTimeout(ctx, banAuditTimeout)
		defer cancel()

		global, channel, err := deps.Store.CountActiveBans(auditCtx)
		if err != nil {
			log.ErrorContext(ctx, "Ban audit failed", "error", err)
			return fmt.Errorf("ban audit failed: %w", err)
		}

		telemetry.ActiveBans.WithLabelValues("global").Set(float64(global))
		telemetry.ActiveBans.WithLabelValues("channel").Set(float64(channel))
		log.InfoContext(ctx, "Ban audit completed", "global", global, "channel", channel)
		return nil
	}
}
