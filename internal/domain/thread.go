package domain

import (
	"context"
	"time"
)

// Role identifies which side of a listing a user is on
type Role string

const (
	RoleSeller Role = "seller"
	RoleBuyer  Role = "buyer"
)

// Valid reports whether the role is one of the two allowed values
func (r Role) Valid() bool {
	return r == RoleSeller || r == RoleBuyer
}

// Other returns the opposite role
func (r Role) Other() Role {
	if r == RoleSeller {
		return RoleBuyer
	}
	return RoleSeller
}

// Thread represents a conversation about one book between a seller and a buyer.
// At most one thread exists per (book, seller, buyer) triple.
type Thread struct {
	ID            string    `json:"id"`
	BookID        string    `json:"book_id"`
	SellerID      string    `json:"seller_id"`
	BuyerID       string    `json:"buyer_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// ThreadSummary is the display projection of a thread for a user's chat list
type ThreadSummary struct {
	ThreadID      string    `json:"thread_id"`
	BookID        string    `json:"book_id"`
	PeerID        string    `json:"peer_id"`
	PeerName      string    `json:"peer_name"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int       `json:"unread_count"`
}

// ThreadRepository defines the interface for thread data access
type ThreadRepository interface {
	// CreateOrGet returns the thread for the triple, creating it if absent.
	// The boolean reports whether a new thread was created. Two concurrent
	// calls for the same triple must both return the surviving thread.
	CreateOrGet(ctx context.Context, bookID, sellerID, buyerID string) (*Thread, bool, error)
	GetByID(ctx context.Context, id string) (*Thread, error)
	ListForUser(ctx context.Context, userID string, role Role) ([]*ThreadSummary, error)
	ListActiveForSeller(ctx context.Context, sellerID string) ([]*ThreadSummary, error)
}
