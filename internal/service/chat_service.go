package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"bookswap/internal/cache"
	"bookswap/internal/domain"
	"bookswap/internal/messaging"
	"bookswap/internal/observability"
)

const (
	messagePageSize = 50
	previewLength   = 120

	messagesTTL = time.Minute
	threadsTTL  = time.Minute
	// Unread badges refresh often; keep the validity window short.
	unreadTTL = 15 * time.Second
)

// EventPublisher emits chat events for external consumers (the email
// notification service). Publishing is best-effort: a committed append is
// never rolled back over a broker fault.
type EventPublisher interface {
	PublishMessageAppended(ctx context.Context, event *messaging.MessageAppendedEvent) error
}

// ChatService coordinates the chat system of record with its cache
// projections. The database is always written first; cache entries are
// invalidated afterwards and repopulate lazily on the next read.
type ChatService struct {
	threadRepo  domain.ThreadRepository
	messageRepo domain.MessageRepository
	cache       *cache.Cache
	events      EventPublisher
}

// NewChatService creates a chat service. events may be nil when no broker
// is configured.
func NewChatService(threadRepo domain.ThreadRepository, messageRepo domain.MessageRepository, c *cache.Cache, events EventPublisher) *ChatService {
	return &ChatService{
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		cache:       c,
		events:      events,
	}
}

// ThreadInit is the result of initializing a thread: its id and the
// current page of messages (empty for a fresh thread)
type ThreadInit struct {
	ThreadID string            `json:"chat_id"`
	Created  bool              `json:"-"`
	Messages []*domain.Message `json:"messages"`
}

// InitializeThread finds or creates the unique thread for the triple.
// Safe to call repeatedly and concurrently from both parties; every caller
// receives the same thread id.
func (s *ChatService) InitializeThread(ctx context.Context, bookID, sellerID, buyerID string) (*ThreadInit, error) {
	if bookID == "" || sellerID == "" || buyerID == "" {
		return nil, domain.ErrInvalidInput
	}

	thread, created, err := s.threadRepo.CreateOrGet(ctx, bookID, sellerID, buyerID)
	if err != nil {
		return nil, err
	}

	if created {
		observability.ThreadsCreated.Inc()
		s.invalidate(ctx,
			cache.ThreadsKey(domain.RoleSeller, sellerID),
			cache.ThreadsKey(domain.RoleBuyer, buyerID),
			cache.ActiveThreadsKey(sellerID),
		)
	}

	messages, err := s.ListMessages(ctx, thread.ID)
	if err != nil {
		return nil, err
	}

	return &ThreadInit{ThreadID: thread.ID, Created: created, Messages: messages}, nil
}

// ListMessages returns the thread's current message page, oldest first
func (s *ChatService) ListMessages(ctx context.Context, threadID string) ([]*domain.Message, error) {
	if threadID == "" {
		return nil, domain.ErrInvalidInput
	}
	return cache.Fetch(ctx, s.cache, cache.MessagesKey(threadID), messagesTTL,
		func(ctx context.Context) ([]*domain.Message, error) {
			return s.messageRepo.ListByThread(ctx, threadID, messagePageSize)
		})
}

// ListMessagesBefore returns messages older than the given message id.
// History pages are rare and not cached.
func (s *ChatService) ListMessagesBefore(ctx context.Context, threadID, before string) ([]*domain.Message, error) {
	if threadID == "" || before == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.messageRepo.ListByThreadBefore(ctx, threadID, before, messagePageSize)
}

// AppendMessage persists a message and invalidates the projections it
// staled. A cache or broker fault after the commit is logged, not returned:
// the append succeeded and the next read self-heals the cache.
func (s *ChatService) AppendMessage(ctx context.Context, threadID string, senderRole domain.Role, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if threadID == "" || content == "" || !senderRole.Valid() {
		return nil, domain.ErrInvalidInput
	}

	thread, err := s.threadRepo.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}

	message := &domain.Message{
		ThreadID:   threadID,
		SenderRole: senderRole,
		Content:    content,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}
	observability.MessagesAppended.WithLabelValues(string(senderRole)).Inc()

	recipientRole := senderRole.Other()
	recipientID := thread.BuyerID
	if recipientRole == domain.RoleSeller {
		recipientID = thread.SellerID
	}

	s.invalidate(ctx,
		cache.MessagesKey(threadID),
		cache.UnreadKey(recipientRole, recipientID),
		cache.ThreadsKey(domain.RoleSeller, thread.SellerID),
		cache.ThreadsKey(domain.RoleBuyer, thread.BuyerID),
		cache.ActiveThreadsKey(thread.SellerID),
	)

	if s.events != nil {
		event := &messaging.MessageAppendedEvent{
			ThreadID:      thread.ID,
			BookID:        thread.BookID,
			SenderRole:    senderRole,
			RecipientID:   recipientID,
			RecipientRole: recipientRole,
			Preview:       preview(content),
		}
		if err := s.events.PublishMessageAppended(ctx, event); err != nil {
			slog.Warn("failed to publish message event",
				slog.String("thread_id", thread.ID),
				slog.String("error", err.Error()))
		}
	}

	return message, nil
}

// MarkThreadRead flags the other party's messages in the thread as read.
// Returns the number of messages affected.
func (s *ChatService) MarkThreadRead(ctx context.Context, threadID string, reader domain.Role) (int64, error) {
	if threadID == "" || !reader.Valid() {
		return 0, domain.ErrInvalidInput
	}

	thread, err := s.threadRepo.GetByID(ctx, threadID)
	if err != nil {
		return 0, err
	}

	count, err := s.messageRepo.MarkRead(ctx, threadID, reader)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		readerID := thread.BuyerID
		if reader == domain.RoleSeller {
			readerID = thread.SellerID
		}
		s.invalidate(ctx,
			cache.MessagesKey(threadID),
			cache.UnreadKey(reader, readerID),
			cache.ThreadsKey(reader, readerID),
		)
	}

	return count, nil
}

// ListThreadsForUser returns the user's thread summaries, newest first
func (s *ChatService) ListThreadsForUser(ctx context.Context, userID string, role domain.Role) ([]*domain.ThreadSummary, error) {
	if userID == "" || !role.Valid() {
		return nil, domain.ErrInvalidInput
	}
	return cache.Fetch(ctx, s.cache, cache.ThreadsKey(role, userID), threadsTTL,
		func(ctx context.Context) ([]*domain.ThreadSummary, error) {
			return s.threadRepo.ListForUser(ctx, userID, role)
		})
}

// ListActiveThreadsForSeller returns the seller's threads with at least one message
func (s *ChatService) ListActiveThreadsForSeller(ctx context.Context, sellerID string) ([]*domain.ThreadSummary, error) {
	if sellerID == "" {
		return nil, domain.ErrInvalidInput
	}
	return cache.Fetch(ctx, s.cache, cache.ActiveThreadsKey(sellerID), threadsTTL,
		func(ctx context.Context) ([]*domain.ThreadSummary, error) {
			return s.threadRepo.ListActiveForSeller(ctx, sellerID)
		})
}

// GetUnreadCount returns the count of unread messages addressed to the user
func (s *ChatService) GetUnreadCount(ctx context.Context, userID string, role domain.Role) (int, error) {
	if userID == "" || !role.Valid() {
		return 0, domain.ErrInvalidInput
	}
	return cache.Fetch(ctx, s.cache, cache.UnreadKey(role, userID), unreadTTL,
		func(ctx context.Context) (int, error) {
			return s.messageRepo.CountUnread(ctx, userID, role)
		})
}

// FlushCache clears every cached projection. The store is untouched, so
// subsequent reads recompute from it.
func (s *ChatService) FlushCache(ctx context.Context) error {
	return s.cache.FlushAll(ctx)
}

func (s *ChatService) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		observability.CacheErrors.WithLabelValues("invalidate").Inc()
		slog.Warn("cache invalidation failed", slog.String("error", err.Error()))
	}
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength])
}
