package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bookswap/internal/testutil"
)

func TestCORS_AllowedOrigin(t *testing.T) {
	handler := CORS([]string{"http://localhost:3000"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/chat/init", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	testutil.AssertStatusCode(t, w, http.StatusOK)
	testutil.AssertHeader(t, w, "Access-Control-Allow-Origin", "http://localhost:3000")
	testutil.AssertHeader(t, w, "Access-Control-Allow-Credentials", "true")
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	handler := CORS([]string{"http://localhost:3000"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/chat/init", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	testutil.AssertHeader(t, w, "Access-Control-Allow-Origin", "")
}

func TestCORS_Wildcard(t *testing.T) {
	handler := CORS([]string{"*"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://anywhere.example.com")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	testutil.AssertHeader(t, w, "Access-Control-Allow-Origin", "http://anywhere.example.com")
}

func TestCORS_Preflight(t *testing.T) {
	nextCalled := false
	handler := CORS([]string{"http://localhost:3000"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
		}))

	req := httptest.NewRequest(http.MethodOptions, "/api/chat/init", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	testutil.AssertStatusCode(t, w, http.StatusOK)
	testutil.AssertFalse(t, nextCalled, "preflight should short-circuit")
	testutil.AssertContains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

func TestParseOrigins(t *testing.T) {
	origins := ParseOrigins("http://localhost:3000, http://localhost:8080 ,https://bookswap.example.com")

	if len(origins) != 3 {
		t.Fatalf("expected 3 origins, got %d", len(origins))
	}
	testutil.AssertTrue(t, origins[1] == "http://localhost:8080", "origins should be trimmed")
}
