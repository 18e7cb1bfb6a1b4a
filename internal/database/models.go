package database

import (
	"database/sql"
	"time"

	"github.com/edgard/chatguard/internal/domain/model"
)

// messageRow mirrors the messages table.
type messageRow struct {
	ID        string    `db:"id"`
	ChannelID string    `db:"channel_id"`
	AuthorID  string    `db:"author_id"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r messageRow) toModel() model.Message {
	return model.Message{
		ID:        r.ID,
		ChannelID: r.ChannelID,
		AuthorID:  r.AuthorID,
		Body:      r.Body,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// banRow mirrors the bans table joined with the issuing admin's member row.
// A NULL channel_id is the global scope.
type banRow struct {
	ID        int64          `db:"id"`
	UserID    string         `db:"user_id"`
	ChannelID sql.NullString `db:"channel_id"`
	Reason    string         `db:"reason"`
	AdminID   string         `db:"admin_id"`
	AdminName string         `db:"admin_name"`
	CreatedAt time.Time      `db:"created_at"`
	LiftedAt  sql.NullTime   `db:"lifted_at"`
	LiftedBy  string         `db:"lifted_by"`
}

func (r banRow) toModel() *model.BanRecord {
	rec := &model.BanRecord{
		ID:        r.ID,
		UserID:    r.UserID,
		ChannelID: r.ChannelID.String,
		Reason:    r.Reason,
		AdminID:   r.AdminID,
		AdminName: r.AdminName,
		CreatedAt: r.CreatedAt.UTC(),
		LiftedBy:  r.LiftedBy,
	}
	if r.LiftedAt.Valid {
		t := r.LiftedAt.Time.UTC()
		rec.LiftedAt = &t
	}
	return rec
}

// scope converts a channel ID to its column value; empty means global (NULL).
func scope(channelID string) sql.NullString {
	return sql.NullString{String: channelID, Valid: channelID != ""}
}
