package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/chatguard/internal/domain/model"
	"github.com/edgard/chatguard/internal/feed"
	"github.com/edgard/chatguard/internal/logger"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// ActiveBan returns the most recent unlifted ban for userID in the given scope
	// (empty channelID = global). Returns nil, nil if none is active.
	ActiveBan(ctx context.Context, userID, channelID string) (*model.BanRecord, error)

	// CreateBan records a new active ban. An existing active ban of the same
	// scope is lifted in the same transaction.
	CreateBan(ctx context.Context, ban *model.BanRecord) error

	// LiftBan marks active bans of the given scope as lifted and reports how many were affected.
	LiftBan(ctx context.Context, userID, adminID, channelID string, at time.Time) (int64, error)

	// CountActiveBans returns the number of active global and channel-scoped bans.
	CountActiveBans(ctx context.Context) (global, channel int, err error)

	// ListMessages returns a channel's messages that have an author, oldest first.
	ListMessages(ctx context.Context, channelID string) ([]model.Message, error)

	// SaveMessage inserts a message (or refreshes a redelivered one) and publishes an insert event.
	SaveMessage(ctx context.Context, message *model.Message) error

	// UpdateMessage rewrites a stored message and publishes an update event.
	// Reports false when the message does not exist.
	UpdateMessage(ctx context.Context, message *model.Message) (bool, error)

	// DeleteMessage removes a message and publishes a delete event.
	// Reports false when the message does not exist.
	DeleteMessage(ctx context.Context, channelID, messageID string) (bool, error)

	// Subscribe attaches to the channel's change feed. The subscription is
	// released when ctx is cancelled or Close is called.
	Subscribe(ctx context.Context, channelID string) (*feed.Subscription, error)

	// UpsertMember records a user's current display name.
	UpsertMember(ctx context.Context, userID, displayName string) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	hub    *feed.Hub
	logger *slog.Logger
}

// NewStore creates a Store backed by sqlx that publishes message changes to hub.
// A nil hub gets a private one; a nil logger discards output.
func NewStore(db *sqlx.DB, hub *feed.Hub, log *slog.Logger) Store {
	log = logger.OrDiscard(log)
	if hub == nil {
		hub = feed.NewHub(256, log)
	}
	return &sqlxStore{
		db:     db,
		hub:    hub,
		logger: log.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Subscribe attaches a feed subscription for channelID.
func (s *sqlxStore) Subscribe(ctx context.Context, channelID string) (*feed.Subscription, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channel_id cannot be empty")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	sub := s.hub.SubscribeContext(ctx, channelID)

	s.logger.DebugContext(ctx, "Feed subscription opened", "channel_id", channelID, "subscription_id", sub.ID())
	return sub, nil
}

// UpsertMember records a user's current display name.
func (s *sqlxStore) UpsertMember(ctx context.Context, userID, displayName string) error {
	if userID == "" {
		return fmt.Errorf("user_id cannot be empty")
	}
	if displayName == "" {
		return nil
	}

	query := `
        INSERT INTO members (user_id, display_name, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            display_name = excluded.display_name,
            updated_at = excluded.updated_at;
    `
	if _, err := s.db.ExecContext(ctx, query, userID, displayName, time.Now().UTC()); err != nil {
		return s.opError(ctx, "upsert member", err, "user_id", userID)
	}
	return nil
}

// RunSQLMaintenance executes VACUUM and PRAGMA optimize on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM cannot run inside a transaction.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}

// opError logs err and wraps it, passing context cancellation through untouched.
func (s *sqlxStore) opError(ctx context.Context, op string, err error, attrs ...any) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation during "+op, append(attrs, "error", err)...)
		return err
	}
	s.logger.ErrorContext(ctx, "Failed to "+op, append(attrs, "error", err)...)
	return fmt.Errorf("failed to %s: %w", op, err)
}

// rollback is deferred by transactional methods; it is a no-op after Commit.
func (s *sqlxStore) rollback(ctx context.Context, tx *sqlx.Tx) {
	if tx == nil {
		return
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.WarnContext(ctx, "Error rolling back transaction", "error", err)
	}
}
