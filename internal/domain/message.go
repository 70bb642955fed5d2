package domain

import (
	"context"
	"time"
)

// Message represents a single utterance within a thread.
// Messages are immutable once created except for the read flag.
type Message struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"`
	SenderRole Role      `json:"sender_role"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	SentAt     time.Time `json:"sent_at"`
}

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	Create(ctx context.Context, message *Message) error
	ListByThread(ctx context.Context, threadID string, limit int) ([]*Message, error)
	ListByThreadBefore(ctx context.Context, threadID, before string, limit int) ([]*Message, error)
	// MarkRead flags every unread message in the thread that was sent by the
	// other role. Returns the number of messages affected.
	MarkRead(ctx context.Context, threadID string, reader Role) (int64, error)
	// CountUnread counts unread messages addressed to the user across all
	// their threads.
	CountUnread(ctx context.Context, userID string, role Role) (int, error)
}
