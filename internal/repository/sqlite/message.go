package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/model"
	"github.com/sakif/trading-post/internal/repository"
)

var _ repository.MessageRepository = (*DB)(nil)

func (db *DB) CreateMessage(ctx context.Context, msg *model.Message) error {
	msg.ID = xid.New().String()
	msg.CreatedAt = db.now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, item_id, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID,
		msg.SenderID,
		msg.ReceiverID,
		msg.ItemID,
		msg.Body,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating message: %w", err)
	}
	return nil
}

func (db *DB) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, sender_id, receiver_id, item_id, body, created_at
		 FROM messages WHERE id = ?`, id,
	).Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.ItemID, &m.Body, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("message", id)
		}
		return nil, fmt.Errorf("sqlite: getting message %s: %w", id, err)
	}
	return &m, nil
}

// DeleteMessage removes a message addressed to receiverID.
func (db *DB) DeleteMessage(ctx context.Context, id, receiverID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM messages WHERE id = ? AND receiver_id = ?`, id, receiverID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting message %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("message", id)
	}
	return nil
}

// MessagesForReceiver lists a user's inbox, newest first, with the item name
// and sender email joined in for display.
func (db *DB) MessagesForReceiver(ctx context.Context, receiverID string) ([]model.InboxEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT m.id, m.sender_id, m.receiver_id, m.item_id, m.body, m.created_at,
		        i.name, u.email
		 FROM messages m
		 JOIN items i ON i.id = m.item_id
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.receiver_id = ?
		 ORDER BY m.created_at DESC, m.id DESC`, receiverID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing messages for %s: %w", receiverID, err)
	}
	defer rows.Close()

	entries := []model.InboxEntry{}
	for rows.Next() {
		var e model.InboxEntry
		if err := rows.Scan(
			&e.ID, &e.SenderID, &e.ReceiverID, &e.ItemID, &e.Body, &e.CreatedAt,
			&e.ItemName, &e.SenderEmail,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning message row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating messages: %w", err)
	}
	return entries, nil
}
