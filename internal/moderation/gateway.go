package moderation

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"

	"github.com/edgard/chatguard/internal/domain/model"
	apperrors "github.com/edgard/chatguard/internal/errors"
	"github.com/edgard/chatguard/internal/logger"
	"github.com/edgard/chatguard/internal/telemetry"
)

// BanWriter is the mutation side of the ban store.
type BanWriter interface {
	CreateBan(ctx context.Context, ban *model.BanRecord) error
	LiftBan(ctx context.Context, userID, adminID, channelID string, at time.Time) (int64, error)
}

// Gateway validates and forwards ban commands issued by privileged actors.
// It does not deduplicate; the store decides what a repeated ban means.
type Gateway struct {
	store  BanWriter
	logger *slog.Logger
	clock  clockwork.Clock
}

// NewGateway creates a Gateway. A nil clock uses the wall clock.
func NewGateway(store BanWriter, log *slog.Logger, clock clockwork.Clock) *Gateway {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Gateway{
		store:  store,
		logger: logger.OrDiscard(log).With("component", "moderation_gateway"),
		clock:  clock,
	}
}

// Ban suspends userID, globally when channelID is empty. Missing userID,
// reason or adminID fail with a PreconditionError before the store is
// touched; store failures are returned as hard StoreErrors.
func (g *Gateway) Ban(ctx context.Context, userID, reason, adminID, channelID string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "moderation.ban",
		attribute.String("user_id", userID), attribute.String("channel_id", channelID))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := requireBan(userID, reason, adminID); err != nil {
		telemetry.ModerationCommands.WithLabelValues("ban", "precondition").Inc()
		g.logger.WarnContext(ctx, "Rejected ban command", "user_id", userID, "admin_id", adminID, "error", err)
		return err
	}

	ban := &model.BanRecord{
		UserID:    userID,
		ChannelID: channelID,
		Reason:    reason,
		AdminID:   adminID,
		CreatedAt: g.clock.Now().UTC(),
	}
	if err := g.store.CreateBan(ctx, ban); err != nil {
		telemetry.ModerationCommands.WithLabelValues("ban", "error").Inc()
		g.logger.ErrorContext(ctx, "Failed to ban user", "user_id", userID, "channel_id", channelID, "error", err)
		return apperrors.NewStoreError("failed to ban user", apperrors.Hard, err)
	}

	telemetry.ModerationCommands.WithLabelValues("ban", "ok").Inc()
	g.logger.InfoContext(ctx, "User banned",
		"user_id", userID, "channel_id", channelID, "global", channelID == "", "admin_id", adminID, "ban_id", ban.ID)
	return nil
}

// Unban lifts the active ban of userID in the given scope. It never returns
// an error: failures are logged and reported as false. Lifting a ban that
// does not exist succeeds.
func (g *Gateway) Unban(ctx context.Context, userID, adminID, channelID string) bool {
	ctx, span := telemetry.StartSpan(ctx, "moderation.unban",
		attribute.String("user_id", userID), attribute.String("channel_id", channelID))
	var spanErr error
	defer func() { telemetry.EndSpan(span, spanErr) }()

	if err := requireUnban(userID, adminID); err != nil {
		spanErr = err
		telemetry.ModerationCommands.WithLabelValues("unban", "precondition").Inc()
		g.logger.WarnContext(ctx, "Rejected unban command", "user_id", userID, "admin_id", adminID, "error", err)
		return false
	}

	n, err := g.store.LiftBan(ctx, userID, adminID, channelID, g.clock.Now().UTC())
	if err != nil {
		spanErr = apperrors.NewStoreError("failed to unban user", apperrors.Soft, err)
		telemetry.ModerationCommands.WithLabelValues("unban", "error").Inc()
		g.logger.ErrorContext(ctx, "Failed to unban user",
			"user_id", userID, "channel_id", channelID, "error", spanErr)
		return false
	}

	telemetry.ModerationCommands.WithLabelValues("unban", "ok").Inc()
	if n == 0 {
		g.logger.InfoContext(ctx, "Unban requested for user without an active ban", "user_id", userID, "channel_id", channelID)
	} else {
		g.logger.InfoContext(ctx, "User unbanned", "user_id", userID, "channel_id", channelID, "admin_id", adminID)
	}
	return true
}

func requireBan(userID, reason, adminID string) error {
	switch {
	case userID == "":
		return apperrors.NewPreconditionError("user id is required")
	case reason == "":
		return apperrors.NewPreconditionError("reason is required")
	case adminID == "":
		return apperrors.NewPreconditionError("admin id is required")
	}
	return nil
}

func requireUnban(userID, adminID string) error {
	switch {
	case userID == "":
		return apperrors.NewPreconditionError("user id is required")
	case adminID == "":
		return apperrors.NewPreconditionError("admin id is required")
	}
	return nil
}
