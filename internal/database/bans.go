package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/edgard/chatguard/internal/domain/model"
)

// ActiveBan returns the newest unlifted ban for userID in the given scope.
// `channel_id IS ?` matches NULL when channelID is empty.
func (s *sqlxStore) ActiveBan(ctx context.Context, userID, channelID string) (*model.BanRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id cannot be empty")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := `
        SELECT b.id, b.user_id, b.channel_id, b.reason, b.admin_id,
               COALESCE(m.display_name, '') AS admin_name,
               b.created_at, b.lifted_at, b.lifted_by
        FROM bans b
        LEFT JOIN members m ON m.user_id = b.admin_id
        WHERE b.user_id = ? AND b.channel_id IS ? AND b.lifted_at IS NULL
        ORDER BY b.created_at DESC, b.id DESC
        LIMIT 1;
    `

	var row banRow
	err := s.db.GetContext(ctx, &row, query, userID, scope(channelID))

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil

	case err != nil:
		return nil, s.opError(ctx, "get active ban", err, "user_id", userID, "channel_id", channelID)
	}

	return row.toModel(), nil
}

// CreateBan lifts any active ban of the same scope and inserts ban, atomically.
// ban.ID and ban.CreatedAt are filled in.
func (s *sqlxStore) CreateBan(ctx context.Context, ban *model.BanRecord) error {
	if ban == nil {
		return fmt.Errorf("cannot save nil ban")
	}
	if ban.UserID == "" || ban.AdminID == "" {
		return fmt.Errorf("ban must have user_id and admin_id")
	}
	if ban.CreatedAt.IsZero() {
		ban.CreatedAt = time.Now().UTC()
	}
	ban.CreatedAt = ban.CreatedAt.UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.opError(ctx, "begin ban transaction", err, "user_id", ban.UserID)
	}
	defer func() { s.rollback(ctx, tx) }()

	replaced, err := tx.ExecContext(ctx, `
        UPDATE bans SET lifted_at = ?, lifted_by = ?
        WHERE user_id = ? AND channel_id IS ? AND lifted_at IS NULL;
    `, ban.CreatedAt, ban.AdminID, ban.UserID, scope(ban.ChannelID))
	if err != nil {
		return s.opError(ctx, "lift previous ban", err, "user_id", ban.UserID, "channel_id", ban.ChannelID)
	}

	result, err := tx.ExecContext(ctx, `
        INSERT INTO bans (user_id, channel_id, reason, admin_id, created_at)
        VALUES (?, ?, ?, ?, ?);
    `, ban.UserID, scope(ban.ChannelID), ban.Reason, ban.AdminID, ban.CreatedAt)
	if err != nil {
		return s.opError(ctx, "insert ban", err, "user_id", ban.UserID, "channel_id", ban.ChannelID)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return s.opError(ctx, "get ban id", err, "user_id", ban.UserID)
	}

	if err := tx.Commit(); err != nil {
		return s.opError(ctx, "commit ban", err, "user_id", ban.UserID)
	}
	tx = nil

	ban.ID = id
	ban.LiftedAt = nil

	if n, _ := replaced.RowsAffected(); n > 0 {
		s.logger.InfoContext(ctx, "Replaced existing active ban", "user_id", ban.UserID, "channel_id", ban.ChannelID, "replaced", n)
	}
	s.logger.DebugContext(ctx, "Ban saved", "ban_id", id, "user_id", ban.UserID, "channel_id", ban.ChannelID)
	return nil
}

// LiftBan lifts active bans for userID in the given scope.
func (s *sqlxStore) LiftBan(ctx context.Context, userID, adminID, channelID string, at time.Time) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("user_id cannot be empty")
	}
	if at.IsZero() {
		at = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
        UPDATE bans SET lifted_at = ?, lifted_by = ?
        WHERE user_id = ? AND channel_id IS ? AND lifted_at IS NULL;
    `, at.UTC(), adminID, userID, scope(channelID))
	if err != nil {
		return 0, s.opError(ctx, "lift ban", err, "user_id", userID, "channel_id", channelID)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, s.opError(ctx, "count lifted bans", err, "user_id", userID)
	}
	return n, nil
}

// CountActiveBans returns the number of active global and channel-scoped bans.
func (s *sqlxStore) CountActiveBans(ctx context.Context) (int, int, error) {
	var counts struct {
		Global  int `db:"global"`
		Channel int `db:"channel"`
	}
	err := s.db.GetContext(ctx, &counts, `
        SELECT
            COALESCE(SUM(CASE WHEN channel_id IS NULL THEN 1 ELSE 0 END), 0) AS global,
            COALESCE(SUM(CASE WHEN channel_id IS NOT NULL THEN 1 ELSE 0 END), 0) AS channel
        FROM bans
        WHERE lifted_at IS NULL;
    `)
	if err != nil {
		return 0, 0, s.opError(ctx, "count active bans", err)
	}
	return counts.Global, counts.Channel, nil
}
