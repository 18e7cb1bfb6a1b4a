// Package moderation decides whether users may post and issues ban mutations.
package moderation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/edgard/chatguard/internal/domain/model"
	apperrors "github.com/edgard/chatguard/internal/errors"
	"github.com/edgard/chatguard/internal/logger"
	"github.com/edgard/chatguard/internal/resilience"
	"github.com/edgard/chatguard/internal/telemetry"
)

// BanReader is the read side of the ban store. An empty channelID selects
// the global scope; a nil record means no active ban.
type BanReader interface {
	ActiveBan(ctx context.Context, userID, channelID string) (*model.BanRecord, error)
}

// Resolver answers whether a user is currently barred from posting.
// It holds no state between calls.
type Resolver struct {
	store         BanReader
	logger        *slog.Logger
	timeout       time.Duration
	defaultReason string
	breaker       *resilience.Breaker
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithLookupTimeout bounds each store query.
func WithLookupTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.timeout = d }
}

// WithBreaker routes lookups through b so a failing store is skipped
// until it recovers. Rejected lookups fail open like any other failure.
func WithBreaker(b *resilience.Breaker) ResolverOption {
	return func(r *Resolver) { r.breaker = b }
}

// WithDefaultReason sets the reason reported for bans stored without one.
func WithDefaultReason(reason string) ResolverOption {
	return func(r *Resolver) { r.defaultReason = reason }
}

// NewResolver creates a Resolver over store. A nil logger discards output;
// lookups default to a 3s timeout and no circuit breaker.
func NewResolver(store BanReader, log *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:         store,
		logger:        logger.OrDiscard(log).With("component", "ban_resolver"),
		timeout:       3 * time.Second,
		defaultReason: "No reason provided",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the ban status of userID, optionally scoped to channelID.
// A global ban always wins and suppresses the channel lookup. Lookup failures
// fail open: the result is not banned and Err carries the diagnostic.
func (r *Resolver) Resolve(ctx context.Context, userID, channelID string) model.Resolution {
	if userID == "" {
		return model.Resolution{}
	}

	start := time.Now()
	defer telemetry.ObserveSince(telemetry.ResolveDuration, start)

	ctx, span := telemetry.StartSpan(ctx, "moderation.resolve",
		attribute.String("user_id", userID), attribute.String("channel_id", channelID))
	res := r.resolve(ctx, userID, channelID)
	span.SetAttributes(attribute.Bool("banned", res.Banned), attribute.Bool("global", res.Global))
	telemetry.EndSpan(span, res.Err)
	return res
}

func (r *Resolver) resolve(ctx context.Context, userID, channelID string) model.Resolution {
	global := r.lookup(ctx, userID, "")
	if global.Failed() {
		return r.failOpen(ctx, userID, channelID, global.Err)
	}
	if global.Value != nil {
		telemetry.Resolutions.WithLabelValues("banned_global").Inc()
		return r.resolution(global.Value, true)
	}

	if channelID == "" {
		telemetry.Resolutions.WithLabelValues("allowed").Inc()
		return model.Resolution{}
	}

	local := r.lookup(ctx, userID, channelID)
	if local.Failed() {
		return r.failOpen(ctx, userID, channelID, local.Err)
	}
	if local.Value != nil {
		telemetry.Resolutions.WithLabelValues("banned_channel").Inc()
		return r.resolution(local.Value, false)
	}

	telemetry.Resolutions.WithLabelValues("allowed").Inc()
	return model.Resolution{}
}

func (r *Resolver) lookup(ctx context.Context, userID, channelID string) apperrors.Result[*model.BanRecord] {
	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rec, err := resilience.Call(lookupCtx, r.breaker, func(ctx context.Context) (*model.BanRecord, error) {
		return r.store.ActiveBan(ctx, userID, channelID)
	})
	if err != nil {
		switch {
		case apperrors.Is(err, resilience.ErrOpen), apperrors.Is(err, resilience.ErrTooManyRequests):
			return apperrors.Fail[*model.BanRecord](apperrors.NewStoreError("ban store unavailable", apperrors.Soft, err), apperrors.Soft)
		case apperrors.Is(err, context.DeadlineExceeded):
			return apperrors.Fail[*model.BanRecord](apperrors.NewTimeoutError("ban lookup timed out", apperrors.Soft, err), apperrors.Soft)
		default:
			return apperrors.Fail[*model.BanRecord](apperrors.NewStoreError("ban lookup failed", apperrors.Soft, err), apperrors.Soft)
		}
	}
	return apperrors.OK(rec)
}

func (r *Resolver) failOpen(ctx context.Context, userID, channelID string, err error) model.Resolution {
	telemetry.Resolutions.WithLabelValues("fail_open").Inc()
	r.logger.WarnContext(ctx, "Ban status lookup failed, allowing user",
		"user_id", userID, "channel_id", channelID, "error", err)
	return model.Resolution{Err: err}
}

func (r *Resolver) resolution(rec *model.BanRecord, global bool) model.Resolution {
	reason := rec.Reason
	if reason == "" {
		reason = r.defaultReason
	}
	adminName := rec.AdminName
	if adminName == "" {
		adminName = rec.AdminID
	}
	return model.Resolution{
		Banned:    true,
		Reason:    reason,
		AdminID:   rec.AdminID,
		AdminName: adminName,
		Global:    global,
		Since:     rec.CreatedAt,
	}
}
