package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// SessionVerifier resolves a session token to a user id. Session management
// lives in the marketplace's auth service; the chat API only consumes it.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// Auth rejects requests without a valid session cookie and stores the
// resolved user id on the request context
func Auth(sessions SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("session_id")
			if err != nil {
				http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
				return
			}

			userID, err := sessions.Verify(r.Context(), cookie.Value)
			if err != nil {
				http.Error(w, `{"error":"Invalid or expired session"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
