package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pratik-mahalle/muscleai/internal/auth"
	"github.com/pratik-mahalle/muscleai/internal/testutil"
)

const testSecret = "test-secret"

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := GetUserID(r)
		w.Header().Set("X-Seen-User", userID)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	valid, err := auth.MintToken("user-1", "a@example.com", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("MintToken() error = %v", err)
	}
	forged, _ := auth.MintToken("user-1", "", "other-secret", time.Hour)

	tests := []struct {
		name       string
		opts       AuthOptions
		setup      func(r *http.Request)
		wantStatus int
		wantUser   string
	}{
		{
			name:       "bearer token",
			opts:       AuthOptions{JWTSecret: testSecret},
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) },
			wantStatus: http.StatusOK,
			wantUser:   "user-1",
		},
		{
			name:       "cookie token",
			opts:       AuthOptions{JWTSecret: testSecret},
			setup:      func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "accessToken", Value: valid}) },
			wantStatus: http.StatusOK,
			wantUser:   "user-1",
		},
		{
			name:       "forged token",
			opts:       AuthOptions{JWTSecret: testSecret},
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+forged) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing credentials",
			opts:       AuthOptions{JWTSecret: testSecret},
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "trusted header",
			opts:       AuthOptions{JWTSecret: testSecret, TrustUserHeader: true},
			setup:      func(r *http.Request) { r.Header.Set(UserIDHeader, "proxy-user") },
			wantStatus: http.StatusOK,
			wantUser:   "proxy-user",
		},
		{
			name:       "untrusted header ignored",
			opts:       AuthOptions{JWTSecret: testSecret},
			setup:      func(r *http.Request) { r.Header.Set(UserIDHeader, "proxy-user") },
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil)
			tt.setup(req)
			w := httptest.NewRecorder()

			AuthMiddleware(tt.opts)(echoUser()).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("X-Seen-User"); got != tt.wantUser {
				t.Errorf("user = %q, want %q", got, tt.wantUser)
			}
		})
	}
}

func TestOptionalAuthMiddleware_InvalidTokenIsAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()

	OptionalAuthMiddleware(AuthOptions{JWTSecret: testSecret})(echoUser()).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-Seen-User"); got != "" {
		t.Errorf("user = %q, want anonymous", got)
	}
}

func TestRateLimit_SetsRetryAfter(t *testing.T) {
	handler := RateLimit(0.5, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	if got := second.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	if !rl.Allow("user:a") || !rl.Allow("user:b") {
		t.Fatal("first request per key should pass")
	}
	if rl.Allow("user:a") {
		t.Error("second immediate request for the same key should be limited")
	}
	if rl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", rl.Len())
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen != "req-123" || w.Header().Get(RequestIDHeader) != "req-123" {
		t.Errorf("request id = %q, header = %q", seen, w.Header().Get(RequestIDHeader))
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("a request id should be generated when none is sent")
	}
}

func TestRecovery(t *testing.T) {
	handler := Recovery(testutil.NewTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		strict   bool
		wantHSTS bool
	}{
		{false, false},
		{true, true},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		SecurityHeaders(tt.strict)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if w.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Error("X-Content-Type-Options not set")
		}
		if got := w.Header().Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
			t.Errorf("strict=%v: HSTS present = %v", tt.strict, got)
		}
	}
}
