package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"bookswap/internal/domain"
)

// MessageRepository implements domain.MessageRepository for PostgreSQL
type MessageRepository struct {
	db *sql.DB
	tx *TxManager
}

// NewMessageRepository creates a new PostgreSQL message repository
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db, tx: NewTxManager(db)}
}

// Create inserts a message and advances the thread's last activity marker
// in one transaction. sent_at is assigned by the database clock, with the
// seq column breaking ties, so per-thread order matches commit order.
func (r *MessageRepository) Create(ctx context.Context, message *domain.Message) error {
	err := r.tx.WithTx(ctx, func(tx *sql.Tx) error {
		insert := `
			INSERT INTO chat_messages (chat_id, sender_role, content)
			VALUES ($1, $2, $3)
			RETURNING id, sent_at
		`
		err := tx.QueryRowContext(ctx, insert,
			message.ThreadID,
			string(message.SenderRole),
			message.Content,
		).Scan(&message.ID, &message.SentAt)
		if err != nil {
			return err
		}

		touch := `UPDATE chats SET last_message_at = $2 WHERE id = $1`
		_, err = tx.ExecContext(ctx, touch, message.ThreadID, message.SentAt)
		return err
	})

	if err != nil {
		if IsForeignKeyViolation(err) {
			return domain.ErrThreadNotFound
		}
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListByThread retrieves the newest messages for a thread, returned oldest first
func (r *MessageRepository) ListByThread(ctx context.Context, threadID string, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, chat_id, sender_role, content, is_read, sent_at
		FROM chat_messages
		WHERE chat_id = $1
		ORDER BY sent_at DESC, seq DESC
		LIMIT $2
	`
	return r.queryMessages(ctx, query, threadID, limit)
}

// ListByThreadBefore retrieves messages older than the given message id
func (r *MessageRepository) ListByThreadBefore(ctx context.Context, threadID, before string, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, chat_id, sender_role, content, is_read, sent_at
		FROM chat_messages
		WHERE chat_id = $1
		  AND (sent_at, seq) < (SELECT sent_at, seq FROM chat_messages WHERE id = $2)
		ORDER BY sent_at DESC, seq DESC
		LIMIT $3
	`
	return r.queryMessages(ctx, query, threadID, before, limit)
}

func (r *MessageRepository) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		msg := &domain.Message{}
		err := rows.Scan(
			&msg.ID,
			&msg.ThreadID,
			&msg.SenderRole,
			&msg.Content,
			&msg.IsRead,
			&msg.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	// Reverse the slice to get oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkRead flags the thread's unread messages sent by the other party
func (r *MessageRepository) MarkRead(ctx context.Context, threadID string, reader domain.Role) (int64, error) {
	query := `
		UPDATE chat_messages
		SET is_read = TRUE
		WHERE chat_id = $1 AND sender_role = $2 AND NOT is_read
	`
	res, err := r.db.ExecContext(ctx, query, threadID, string(reader.Other()))
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return res.RowsAffected()
}

// CountUnread counts unread messages addressed to the user across all their threads
func (r *MessageRepository) CountUnread(ctx context.Context, userID string, role domain.Role) (int, error) {
	if !role.Valid() {
		return 0, domain.ErrInvalidInput
	}

	ownCol := "buyer_id"
	if role == domain.RoleSeller {
		ownCol = "seller_id"
	}

	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM chat_messages m
		JOIN chats c ON c.id = m.chat_id
		WHERE c.%s = $1 AND m.sender_role = $2 AND NOT m.is_read
	`, ownCol)

	var count int
	err := r.db.QueryRowContext(ctx, query, userID, string(role.Other())).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}
