package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotAuthenticated is returned when the auth service rejects a session.
var ErrNotAuthenticated = errors.New("not authenticated")

// HTTPVerifier resolves session tokens against the marketplace auth
// service's check-auth endpoint.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPVerifier(baseURL string) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type checkAuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId"`
}

// Verify forwards the session cookie to the auth service and returns the
// user id it resolves to.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/check-auth", nil)
	if err != nil {
		return "", fmt.Errorf("building check-auth request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: "session_id", Value: token})

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrNotAuthenticated
	}

	var body checkAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding check-auth response: %w", err)
	}
	if !body.Authenticated || body.UserID == "" {
		return "", ErrNotAuthenticated
	}
	return body.UserID, nil
}
