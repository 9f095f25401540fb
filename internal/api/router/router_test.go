package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pratik-mahalle/muscleai/internal/api/handlers"
	"github.com/pratik-mahalle/muscleai/internal/auth"
	"github.com/pratik-mahalle/muscleai/internal/cache"
	"github.com/pratik-mahalle/muscleai/internal/config"
	"github.com/pratik-mahalle/muscleai/internal/domain/subscription"
	"github.com/pratik-mahalle/muscleai/internal/pkg/validator"
	"github.com/pratik-mahalle/muscleai/internal/ratelimit"
	"github.com/pratik-mahalle/muscleai/internal/services"
	"github.com/pratik-mahalle/muscleai/internal/testutil"
)

const testJWTSecret = "router-test-secret"

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func newTestRouter(t *testing.T, requireAuth bool) (http.Handler, *testutil.MockSubscriptionRepository) {
	t.Helper()
	log := testutil.NewTestLogger()

	cfg := &config.Config{
		Server: config.ServerConfig{
			FrontendURL:       "http://localhost:3000",
			Environment:       "test",
			RequestsPerSecond: 1000,
			Burst:             1000,
		},
		Auth: config.AuthConfig{
			JWTSecret:   testJWTSecret,
			RequireAuth: requireAuth,
		},
		Analysis: config.AnalysisConfig{
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			MaxAttempts:       1,
			MaxImageBytes:     1 << 20,
			QuotaFailOpen:     true,
		},
	}

	repo := testutil.NewMockSubscriptionRepository()
	plans := services.PlansFromConfig(config.BillingConfig{StarterQuota: 30, ProQuota: 150})
	subs := services.NewSubscriptionService(repo, plans, 0, log)
	model := testutil.NewMockVisionModel(testutil.MockVisionResponse{Text: "1. **Biceps**: 6/10"})
	analysis := services.NewAnalysisService(
		subs,
		cache.New(cache.NewMemoryStore(), 0, log),
		ratelimit.NewWindow(cfg.Analysis.RateLimitRequests, cfg.Analysis.RateLimitWindow),
		[]services.ModelStep{{Provider: "mock", Model: "vision", Client: model}},
		cfg.Analysis,
		log,
	)

	h := &Handlers{
		Health:   handlers.NewHealthHandler(okPinger{}, "test", log),
		Analysis: handlers.NewAnalysisHandler(analysis, cfg.Analysis.MaxImageBytes, log),
		Quota:    handlers.NewQuotaHandler(subs, log),
		Billing:  handlers.NewBillingHandler(services.NewBillingService(subs, cfg.Billing, log), log, validator.New()),
	}
	return New(cfg, log, h), repo
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.MintToken(userID, "", testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("MintToken() error = %v", err)
	}
	return "Bearer " + token
}

func TestRouter_Routes(t *testing.T) {
	r, repo := newTestRouter(t, false)

	now := time.Now()
	repo.Seed(&subscription.Subscription{
		UserID:       "user-1",
		PlanID:       "starter",
		Status:       subscription.StatusActive,
		MonthlyQuota: 30,
		StartedAt:    now.Add(-time.Hour),
		EndsAt:       now.Add(24 * time.Hour),
	})

	tests := []struct {
		name           string
		method         string
		path           string
		authorization  string
		expectedStatus int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"readyz", http.MethodGet, "/readyz", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"plans are public", http.MethodGet, "/api/v1/billing/plans", "", http.StatusOK},
		{"quota needs auth", http.MethodGet, "/api/v1/quota", "", http.StatusUnauthorized},
		{"quota with token", http.MethodGet, "/api/v1/quota", bearer(t, "user-1"), http.StatusOK},
		{"quota alias", http.MethodGet, "/api/quota", bearer(t, "user-1"), http.StatusOK},
		{"invalid token", http.MethodGet, "/api/v1/quota", "Bearer nope", http.StatusUnauthorized},
		{"checkout needs auth", http.MethodPost, "/api/v1/billing/checkout", "", http.StatusUnauthorized},
		{"webhook without secret", http.MethodPost, "/api/v1/webhooks/stripe", "", http.StatusServiceUnavailable},
		{"anonymous analyze reaches handler", http.MethodPost, "/api/v1/analyze", "", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/v1/nothing", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("%s %s: status = %d, want %d, body = %s", tt.method, tt.path, rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if rr.Header().Get("X-Request-ID") == "" {
				t.Error("X-Request-ID header missing")
			}
		})
	}
}

func TestRouter_RequireAuthProtectsAnalyze(t *testing.T) {
	r, _ := newTestRouter(t, true)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}
