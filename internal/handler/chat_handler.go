package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"bookswap/internal/domain"
	"bookswap/internal/observability"
	"bookswap/internal/service"

	"github.com/go-chi/chi/v5"
)

// ChatService is the surface of the chat subsystem consumed by HTTP handlers
type ChatService interface {
	InitializeThread(ctx context.Context, bookID, sellerID, buyerID string) (*service.ThreadInit, error)
	ListMessages(ctx context.Context, threadID string) ([]*domain.Message, error)
	ListMessagesBefore(ctx context.Context, threadID, before string) ([]*domain.Message, error)
	AppendMessage(ctx context.Context, threadID string, senderRole domain.Role, content string) (*domain.Message, error)
	MarkThreadRead(ctx context.Context, threadID string, reader domain.Role) (int64, error)
	ListThreadsForUser(ctx context.Context, userID string, role domain.Role) ([]*domain.ThreadSummary, error)
	ListActiveThreadsForSeller(ctx context.Context, sellerID string) ([]*domain.ThreadSummary, error)
	GetUnreadCount(ctx context.Context, userID string, role domain.Role) (int, error)
	FlushCache(ctx context.Context) error
}

// ChatHandler handles chat endpoints
type ChatHandler struct {
	chatService ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// InitThreadRequest represents a thread initialization request
type InitThreadRequest struct {
	BookID   string `json:"book_id"`
	SellerID string `json:"seller_id"`
	BuyerID  string `json:"buyer_id"`
}

// AppendMessageRequest represents a message append request
type AppendMessageRequest struct {
	SenderRole string `json:"sender_role"`
	Content    string `json:"content"`
}

// MarkReadRequest represents a mark-read request
type MarkReadRequest struct {
	ReaderRole string `json:"reader_role"`
}

// InitThread finds or creates the thread for a (book, seller, buyer) triple
func (h *ChatHandler) InitThread(w http.ResponseWriter, r *http.Request) {
	var req InitThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	result, err := h.chatService.InitializeThread(r.Context(), req.BookID, req.SellerID, req.BuyerID)
	if err != nil {
		h.writeError(r.Context(), w, err, "Error initializing chat")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"chat_id":  result.ThreadID,
		"messages": result.Messages,
	})
}

// GetMessages retrieves the message page for a thread
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if chatID == "" {
		http.Error(w, `{"error":"Chat ID required"}`, http.StatusBadRequest)
		return
	}

	var messages []*domain.Message
	var err error
	if before := r.URL.Query().Get("before"); before != "" {
		messages, err = h.chatService.ListMessagesBefore(r.Context(), chatID, before)
	} else {
		messages, err = h.chatService.ListMessages(r.Context(), chatID)
	}
	if err != nil {
		h.writeError(r.Context(), w, err, "Error fetching messages")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"messages": messages,
	})
}

// SendMessage appends a message to a thread
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var req AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	message, err := h.chatService.AppendMessage(r.Context(), chatID, domain.Role(req.SenderRole), req.Content)
	if err != nil {
		h.writeError(r.Context(), w, err, "Error sending message")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(message)
}

// MarkRead flags the other party's messages in a thread as read
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	count, err := h.chatService.MarkThreadRead(r.Context(), chatID, domain.Role(req.ReaderRole))
	if err != nil {
		h.writeError(r.Context(), w, err, "Error marking messages read")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"marked_read": count})
}

// GetUserThreads retrieves the chat list for a user
func (h *ChatHandler) GetUserThreads(w http.ResponseWriter, r *http.Request) {
	role := domain.Role(chi.URLParam(r, "role"))
	userID := chi.URLParam(r, "userID")

	threads, err := h.chatService.ListThreadsForUser(r.Context(), userID, role)
	if err != nil {
		h.writeError(r.Context(), w, err, "Error fetching user chats")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"threads": threads,
	})
}

// GetActiveSellerThreads retrieves the seller's threads with messages
func (h *ChatHandler) GetActiveSellerThreads(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")

	threads, err := h.chatService.ListActiveThreadsForSeller(r.Context(), sellerID)
	if err != nil {
		h.writeError(r.Context(), w, err, "Error fetching active chats")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"threads": threads,
	})
}

// GetUnreadCount retrieves the user's unread message count
func (h *ChatHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	role := domain.Role(chi.URLParam(r, "role"))
	userID := chi.URLParam(r, "userID")

	count, err := h.chatService.GetUnreadCount(r.Context(), userID, role)
	if err != nil {
		h.writeError(r.Context(), w, err, "Error getting unread counts")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"unread_count": count})
}

// ClearCache wipes every cached chat projection
func (h *ChatHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.FlushCache(r.Context()); err != nil {
		h.writeError(r.Context(), w, err, "Error clearing cache")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Cache cleared successfully"})
}

func (h *ChatHandler) writeError(ctx context.Context, w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, `{"error":"Missing required fields"}`, http.StatusBadRequest)
	case errors.Is(err, domain.ErrThreadNotFound):
		http.Error(w, `{"error":"Chat not found"}`, http.StatusNotFound)
	default:
		observability.FromContext(ctx).Error(fallback, "error", err.Error())
		http.Error(w, `{"error":"`+fallback+`"}`, http.StatusInternalServerError)
	}
}
