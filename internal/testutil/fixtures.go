package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"bookswap/internal/domain"
)

// Counter for generating unique IDs
var idCounter atomic.Int64

// nextID generates a unique ID for test fixtures
func nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, idCounter.Add(1))
}

// ThreadOptions allows customizing thread fixture creation
type ThreadOptions struct {
	ID       string
	BookID   string
	SellerID string
	BuyerID  string
}

// NewTestThread creates a test thread with sensible defaults
func NewTestThread(opts ...func(*ThreadOptions)) *domain.Thread {
	o := &ThreadOptions{
		ID:       nextID("thread"),
		BookID:   nextID("book"),
		SellerID: nextID("seller"),
		BuyerID:  nextID("buyer"),
	}
	for _, opt := range opts {
		opt(o)
	}

	now := time.Now()
	return &domain.Thread{
		ID:            o.ID,
		BookID:        o.BookID,
		SellerID:      o.SellerID,
		BuyerID:       o.BuyerID,
		CreatedAt:     now,
		LastMessageAt: now,
	}
}

func WithThreadID(id string) func(*ThreadOptions) {
	return func(o *ThreadOptions) { o.ID = id }
}

func WithParties(bookID, sellerID, buyerID string) func(*ThreadOptions) {
	return func(o *ThreadOptions) {
		o.BookID = bookID
		o.SellerID = sellerID
		o.BuyerID = buyerID
	}
}

// NewTestMessage creates a test message in the given thread
func NewTestMessage(threadID string, sender domain.Role, content string) *domain.Message {
	return &domain.Message{
		ID:         nextID("msg"),
		ThreadID:   threadID,
		SenderRole: sender,
		Content:    content,
		SentAt:     time.Now(),
	}
}
