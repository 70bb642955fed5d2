package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"bookswap/internal/domain"
)

// ThreadRepository implements domain.ThreadRepository for PostgreSQL
type ThreadRepository struct {
	db *sql.DB
}

// NewThreadRepository creates a new PostgreSQL thread repository
func NewThreadRepository(db *sql.DB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

const threadUniqueConstraint = "chats_book_seller_buyer_key"

// CreateOrGet inserts a thread for the triple, or returns the existing one.
// The uniqueness constraint serializes concurrent creation attempts: the
// losing insert surfaces as a unique violation, which is resolved by
// re-reading the surviving row.
func (r *ThreadRepository) CreateOrGet(ctx context.Context, bookID, sellerID, buyerID string) (*domain.Thread, bool, error) {
	insert := `
		INSERT INTO chats (book_id, seller_id, buyer_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, last_message_at
	`
	thread := &domain.Thread{
		BookID:   bookID,
		SellerID: sellerID,
		BuyerID:  buyerID,
	}
	err := r.db.QueryRowContext(ctx, insert, bookID, sellerID, buyerID).Scan(
		&thread.ID,
		&thread.CreatedAt,
		&thread.LastMessageAt,
	)
	if err == nil {
		return thread, true, nil
	}

	if !IsUniqueViolation(err, threadUniqueConstraint) {
		return nil, false, fmt.Errorf("failed to create thread: %w", err)
	}

	existing, err := r.getByTriple(ctx, bookID, sellerID, buyerID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read existing thread: %w", err)
	}
	return existing, false, nil
}

func (r *ThreadRepository) getByTriple(ctx context.Context, bookID, sellerID, buyerID string) (*domain.Thread, error) {
	query := `
		SELECT id, book_id, seller_id, buyer_id, created_at, last_message_at
		FROM chats
		WHERE book_id = $1 AND seller_id = $2 AND buyer_id = $3
	`
	thread := &domain.Thread{}
	err := r.db.QueryRowContext(ctx, query, bookID, sellerID, buyerID).Scan(
		&thread.ID,
		&thread.BookID,
		&thread.SellerID,
		&thread.BuyerID,
		&thread.CreatedAt,
		&thread.LastMessageAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrThreadNotFound
	}
	return thread, err
}

// GetByID retrieves a thread by ID
func (r *ThreadRepository) GetByID(ctx context.Context, id string) (*domain.Thread, error) {
	query := `
		SELECT id, book_id, seller_id, buyer_id, created_at, last_message_at
		FROM chats
		WHERE id = $1
	`
	thread := &domain.Thread{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&thread.ID,
		&thread.BookID,
		&thread.SellerID,
		&thread.BuyerID,
		&thread.CreatedAt,
		&thread.LastMessageAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrThreadNotFound
	}
	return thread, err
}

// ListForUser retrieves thread summaries for a user, newest activity first
func (r *ThreadRepository) ListForUser(ctx context.Context, userID string, role domain.Role) ([]*domain.ThreadSummary, error) {
	return r.listSummaries(ctx, userID, role, false)
}

// ListActiveForSeller retrieves the seller's threads that have at least one message
func (r *ThreadRepository) ListActiveForSeller(ctx context.Context, sellerID string) ([]*domain.ThreadSummary, error) {
	return r.listSummaries(ctx, sellerID, domain.RoleSeller, true)
}

func (r *ThreadRepository) listSummaries(ctx context.Context, userID string, role domain.Role, activeOnly bool) ([]*domain.ThreadSummary, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidInput
	}

	// Column names come from the validated role enum, never from the caller.
	ownCol, peerCol, peerTable := "buyer_id", "seller_id", "sellers"
	if role == domain.RoleSeller {
		ownCol, peerCol, peerTable = "seller_id", "buyer_id", "buyers"
	}

	activeFilter := ""
	if activeOnly {
		activeFilter = "AND EXISTS (SELECT 1 FROM chat_messages WHERE chat_id = c.id)"
	}

	query := fmt.Sprintf(`
		SELECT c.id, c.book_id, c.%[2]s AS peer_id, COALESCE(p.name, '') AS peer_name,
		       COALESCE(lm.content, '') AS last_message, c.last_message_at,
		       (SELECT COUNT(*) FROM chat_messages
		        WHERE chat_id = c.id AND sender_role = $2 AND NOT is_read) AS unread_count
		FROM chats c
		LEFT JOIN %[3]s p ON p.id = c.%[2]s
		LEFT JOIN LATERAL (
			SELECT content FROM chat_messages
			WHERE chat_id = c.id
			ORDER BY sent_at DESC, seq DESC
			LIMIT 1
		) lm ON true
		WHERE c.%[1]s = $1 %[4]s
		ORDER BY c.last_message_at DESC
	`, ownCol, peerCol, peerTable, activeFilter)

	rows, err := r.db.QueryContext(ctx, query, userID, string(role.Other()))
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer rows.Close()

	summaries := make([]*domain.ThreadSummary, 0)
	for rows.Next() {
		s := &domain.ThreadSummary{}
		err := rows.Scan(
			&s.ThreadID,
			&s.BookID,
			&s.PeerID,
			&s.PeerName,
			&s.LastMessage,
			&s.LastMessageAt,
			&s.UnreadCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}
