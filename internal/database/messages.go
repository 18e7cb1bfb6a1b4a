package database

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/chatguard/internal/domain/model"
)

const selectMessage = `SELECT id, channel_id, author_id, body, created_at, updated_at FROM messages`

// ListMessages returns every authored message of a channel in creation order.
// Rows without an author are never returned.
func (s *sqlxStore) ListMessages(ctx context.Context, channelID string) ([]model.Message, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channel_id cannot be empty")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var rows []messageRow
	query := selectMessage + `
        WHERE channel_id = ? AND author_id <> ''
        ORDER BY created_at ASC, rowid ASC;
    `
	if err := s.db.SelectContext(ctx, &rows, query, channelID); err != nil {
		return nil, s.opError(ctx, "list messages", err, "channel_id", channelID)
	}

	messages := make([]model.Message, 0, len(rows))
	for _, r := range rows {
		messages = append(messages, r.toModel())
	}

	s.logger.DebugContext(ctx, "Fetched channel messages", "channel_id", channelID, "count", len(messages))
	return messages, nil
}

// SaveMessage inserts message. A redelivered ID refreshes author, body and
// updated_at in place. Publishes an insert event after commit.
func (s *sqlxStore) SaveMessage(ctx context.Context, message *model.Message) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.ID == "" || message.ChannelID == "" {
		return fmt.Errorf("message must have id and channel_id")
	}

	now := time.Now().UTC()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}
	message.CreatedAt = message.CreatedAt.UTC()
	message.UpdatedAt = now

	query := `
        INSERT INTO messages (id, channel_id, author_id, body, created_at, updated_at)
        VALUES (:id, :channel_id, :author_id, :body, :created_at, :updated_at)
        ON CONFLICT(channel_id, id) DO UPDATE SET
            author_id = excluded.author_id,
            body = excluded.body,
            updated_at = excluded.updated_at;
    `
	row := messageRow{
		ID:        message.ID,
		ChannelID: message.ChannelID,
		AuthorID:  message.AuthorID,
		Body:      message.Body,
		CreatedAt: message.CreatedAt,
		UpdatedAt: message.UpdatedAt,
	}
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return s.opError(ctx, "save message", err, "channel_id", message.ChannelID, "message_id", message.ID)
	}

	s.hub.Publish(model.Event{Type: model.EventInsert, Message: *message})
	s.logger.DebugContext(ctx, "Message saved", "channel_id", message.ChannelID, "message_id", message.ID)
	return nil
}

// UpdateMessage rewrites author and body of an existing message and
// publishes the stored row as an update event.
func (s *sqlxStore) UpdateMessage(ctx context.Context, message *model.Message) (bool, error) {
	if message == nil {
		return false, fmt.Errorf("cannot update nil message")
	}
	if message.ID == "" || message.ChannelID == "" {
		return false, fmt.Errorf("message must have id and channel_id")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, s.opError(ctx, "begin message update", err, "message_id", message.ID)
	}
	defer func() { s.rollback(ctx, tx) }()

	result, err := tx.ExecContext(ctx, `
        UPDATE messages SET author_id = ?, body = ?, updated_at = ?
        WHERE channel_id = ? AND id = ?;
    `, message.AuthorID, message.Body, time.Now().UTC(), message.ChannelID, message.ID)
	if err != nil {
		return false, s.opError(ctx, "update message", err, "channel_id", message.ChannelID, "message_id", message.ID)
	}
	if n, err := result.RowsAffected(); err != nil || n == 0 {
		if err != nil {
			return false, s.opError(ctx, "count updated messages", err, "message_id", message.ID)
		}
		s.logger.DebugContext(ctx, "Update for unknown message ignored", "channel_id", message.ChannelID, "message_id", message.ID)
		return false, nil
	}

	var row messageRow
	err = tx.GetContext(ctx, &row, selectMessage+` WHERE channel_id = ? AND id = ?;`, message.ChannelID, message.ID)
	if err != nil {
		return false, s.opError(ctx, "reload updated message", err, "message_id", message.ID)
	}

	if err := tx.Commit(); err != nil {
		return false, s.opError(ctx, "commit message update", err, "message_id", message.ID)
	}
	tx = nil

	*message = row.toModel()
	s.hub.Publish(model.Event{Type: model.EventUpdate, Message: *message})
	return true, nil
}

// DeleteMessage removes a message and publishes a delete event.
func (s *sqlxStore) DeleteMessage(ctx context.Context, channelID, messageID string) (bool, error) {
	if channelID == "" || messageID == "" {
		return false, fmt.Errorf("channel_id and message id are required")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE channel_id = ? AND id = ?;`, channelID, messageID)
	if err != nil {
		return false, s.opError(ctx, "delete message", err, "channel_id", channelID, "message_id", messageID)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, s.opError(ctx, "count deleted messages", err, "message_id", messageID)
	}
	if n == 0 {
		return false, nil
	}

	s.hub.Publish(model.Event{
		Type:    model.EventDelete,
		Message: model.Message{ID: messageID, ChannelID: channelID},
	})
	return true, nil
}
