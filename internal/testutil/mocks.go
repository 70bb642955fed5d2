// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the bookswap chat backend.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"bookswap/internal/domain"
	"bookswap/internal/messaging"
)

// Common test errors
var (
	ErrMockNotImplemented = errors.New("mock function not implemented")
	ErrMockStorage        = errors.New("mock: storage fault")
)

// MockThreadRepository implements domain.ThreadRepository for testing
type MockThreadRepository struct {
	mu sync.RWMutex

	// Function overrides - set these to customize behavior
	CreateOrGetFunc         func(ctx context.Context, bookID, sellerID, buyerID string) (*domain.Thread, bool, error)
	GetByIDFunc             func(ctx context.Context, id string) (*domain.Thread, error)
	ListForUserFunc         func(ctx context.Context, userID string, role domain.Role) ([]*domain.ThreadSummary, error)
	ListActiveForSellerFunc func(ctx context.Context, sellerID string) ([]*domain.ThreadSummary, error)

	// In-memory storage for simple tests
	Threads map[string]*domain.Thread
}

// NewMockThreadRepository creates a new MockThreadRepository with initialized maps
func NewMockThreadRepository() *MockThreadRepository {
	return &MockThreadRepository{
		Threads: make(map[string]*domain.Thread),
	}
}

func (m *MockThreadRepository) CreateOrGet(ctx context.Context, bookID, sellerID, buyerID string) (*domain.Thread, bool, error) {
	if m.CreateOrGetFunc != nil {
		return m.CreateOrGetFunc(ctx, bookID, sellerID, buyerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.Threads {
		if t.BookID == bookID && t.SellerID == sellerID && t.BuyerID == buyerID {
			return t, false, nil
		}
	}

	thread := &domain.Thread{
		ID:            nextID("thread"),
		BookID:        bookID,
		SellerID:      sellerID,
		BuyerID:       buyerID,
		CreatedAt:     time.Now(),
		LastMessageAt: time.Now(),
	}
	m.Threads[thread.ID] = thread
	return thread, true, nil
}

func (m *MockThreadRepository) GetByID(ctx context.Context, id string) (*domain.Thread, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if thread, ok := m.Threads[id]; ok {
		return thread, nil
	}
	return nil, domain.ErrThreadNotFound
}

func (m *MockThreadRepository) ListForUser(ctx context.Context, userID string, role domain.Role) ([]*domain.ThreadSummary, error) {
	if m.ListForUserFunc != nil {
		return m.ListForUserFunc(ctx, userID, role)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]*domain.ThreadSummary, 0)
	for _, t := range m.Threads {
		owner := t.BuyerID
		peer := t.SellerID
		if role == domain.RoleSeller {
			owner, peer = t.SellerID, t.BuyerID
		}
		if owner != userID {
			continue
		}
		summaries = append(summaries, &domain.ThreadSummary{
			ThreadID:      t.ID,
			BookID:        t.BookID,
			PeerID:        peer,
			LastMessageAt: t.LastMessageAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt)
	})
	return summaries, nil
}

func (m *MockThreadRepository) ListActiveForSeller(ctx context.Context, sellerID string) ([]*domain.ThreadSummary, error) {
	if m.ListActiveForSellerFunc != nil {
		return m.ListActiveForSellerFunc(ctx, sellerID)
	}
	return m.ListForUser(ctx, sellerID, domain.RoleSeller)
}

// MockMessageRepository implements domain.MessageRepository for testing
type MockMessageRepository struct {
	mu sync.RWMutex

	// Function overrides
	CreateFunc             func(ctx context.Context, message *domain.Message) error
	ListByThreadFunc       func(ctx context.Context, threadID string, limit int) ([]*domain.Message, error)
	ListByThreadBeforeFunc func(ctx context.Context, threadID, before string, limit int) ([]*domain.Message, error)
	MarkReadFunc           func(ctx context.Context, threadID string, reader domain.Role) (int64, error)
	CountUnreadFunc        func(ctx context.Context, userID string, role domain.Role) (int, error)

	// In-memory storage; threads the messages belong to, for CountUnread
	Messages []*domain.Message
	Threads  map[string]*domain.Thread
}

// NewMockMessageRepository creates a new MockMessageRepository with initialized slices
func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{
		Messages: make([]*domain.Message, 0),
		Threads:  make(map[string]*domain.Thread),
	}
}

func (m *MockMessageRepository) Create(ctx context.Context, message *domain.Message) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if message.ID == "" {
		message.ID = nextID("msg")
	}
	if message.SentAt.IsZero() {
		message.SentAt = time.Now()
	}
	m.Messages = append(m.Messages, message)
	return nil
}

func (m *MockMessageRepository) ListByThread(ctx context.Context, threadID string, limit int) ([]*domain.Message, error) {
	if m.ListByThreadFunc != nil {
		return m.ListByThreadFunc(ctx, threadID, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Message, 0)
	for _, msg := range m.Messages {
		if msg.ThreadID == threadID {
			result = append(result, msg)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

func (m *MockMessageRepository) ListByThreadBefore(ctx context.Context, threadID, before string, limit int) ([]*domain.Message, error) {
	if m.ListByThreadBeforeFunc != nil {
		return m.ListByThreadBeforeFunc(ctx, threadID, before, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Message, 0)
	for _, msg := range m.Messages {
		if msg.ThreadID != threadID {
			continue
		}
		if msg.ID == before {
			break
		}
		result = append(result, msg)
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

func (m *MockMessageRepository) MarkRead(ctx context.Context, threadID string, reader domain.Role) (int64, error) {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, threadID, reader)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	sender := reader.Other()
	for _, msg := range m.Messages {
		if msg.ThreadID == threadID && msg.SenderRole == sender && !msg.IsRead {
			msg.IsRead = true
			count++
		}
	}
	return count, nil
}

func (m *MockMessageRepository) CountUnread(ctx context.Context, userID string, role domain.Role) (int, error) {
	if m.CountUnreadFunc != nil {
		return m.CountUnreadFunc(ctx, userID, role)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	sender := role.Other()
	for _, msg := range m.Messages {
		thread, ok := m.Threads[msg.ThreadID]
		if !ok {
			continue
		}
		owner := thread.BuyerID
		if role == domain.RoleSeller {
			owner = thread.SellerID
		}
		if owner == userID && msg.SenderRole == sender && !msg.IsRead {
			count++
		}
	}
	return count, nil
}

// MockEventPublisher implements service.EventPublisher for testing
type MockEventPublisher struct {
	mu sync.RWMutex

	// Function override
	PublishMessageAppendedFunc func(ctx context.Context, event *messaging.MessageAppendedEvent) error

	// Call tracking
	Events []*messaging.MessageAppendedEvent
}

func (m *MockEventPublisher) PublishMessageAppended(ctx context.Context, event *messaging.MessageAppendedEvent) error {
	if m.PublishMessageAppendedFunc != nil {
		return m.PublishMessageAppendedFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

// Published returns a snapshot of recorded events
func (m *MockEventPublisher) Published() []*messaging.MessageAppendedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*messaging.MessageAppendedEvent, len(m.Events))
	copy(out, m.Events)
	return out
}

// MockSessionVerifier implements middleware.SessionVerifier for testing
type MockSessionVerifier struct {
	// Function override
	VerifyFunc func(ctx context.Context, token string) (string, error)

	// Token -> user id for simple tests
	Sessions map[string]string
}

func (m *MockSessionVerifier) Verify(ctx context.Context, token string) (string, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, token)
	}
	if userID, ok := m.Sessions[token]; ok {
		return userID, nil
	}
	return "", errors.New("mock: session not found")
}
