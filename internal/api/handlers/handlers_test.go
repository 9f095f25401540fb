package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pratik-mahalle/muscleai/internal/api/middleware"
	"github.com/pratik-mahalle/muscleai/internal/cache"
	"github.com/pratik-mahalle/muscleai/internal/config"
	"github.com/pratik-mahalle/muscleai/internal/domain/subscription"
	"github.com/pratik-mahalle/muscleai/internal/ratelimit"
	"github.com/pratik-mahalle/muscleai/internal/services"
	"github.com/pratik-mahalle/muscleai/internal/testutil"
)

const bicepsAnswer = "1. **Biceps**: Development: 6/10\n* Exercises to improve:\n* Curls"

var testPlans = services.PlansFromConfig(config.BillingConfig{
	StarterQuota:   30,
	ProQuota:       150,
	StarterPriceID: "price_starter",
})

// withTrustedUser resolves X-User-ID the way a deployment behind an auth proxy does
func withTrustedUser(h http.HandlerFunc) http.Handler {
	return middleware.OptionalAuthMiddleware(middleware.AuthOptions{TrustUserHeader: true})(h)
}

func newSubscriptionService(repo subscription.Repository) *services.SubscriptionService {
	return services.NewSubscriptionService(repo, testPlans, 0, testutil.NewTestLogger())
}

func seedActive(repo *testutil.MockSubscriptionRepository, userID string, used, limit int) {
	now := time.Now()
	reset := now.Add(-time.Hour)
	repo.Seed(&subscription.Subscription{
		UserID:         userID,
		PlanID:         "starter",
		Status:         subscription.StatusActive,
		QuotaUsed:      used,
		MonthlyQuota:   limit,
		LastQuotaReset: &reset,
		StartedAt:      now.Add(-time.Hour),
		EndsAt:         now.Add(24 * time.Hour),
		CreatedAt:      now.Add(-time.Hour),
	})
}

func newAnalysisService(repo subscription.Repository, model *testutil.MockVisionModel, rateLimit int) *services.AnalysisService {
	log := testutil.NewTestLogger()
	cfg := config.AnalysisConfig{
		RateLimitRequests: rateLimit,
		RateLimitWindow:   time.Minute,
		MaxAttempts:       3,
		MaxImageBytes:     1 << 20,
		QuotaFailOpen:     true,
	}
	chain := []services.ModelStep{{Provider: "mock", Model: "vision", Prompt: "standard", Client: model}}
	return services.NewAnalysisService(
		newSubscriptionService(repo),
		cache.New(cache.NewMemoryStore(), 0, log),
		ratelimit.NewWindow(cfg.RateLimitRequests, cfg.RateLimitWindow),
		chain,
		cfg,
		log,
	).WithSleeper(func(context.Context, time.Duration) error { return nil })
}

// multipartRequest builds a POST with the given form file
func multipartRequest(t *testing.T, target, field string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		part, err := mw.CreateFormFile(field, "physique.jpg")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		part.Write(content)
	} else {
		mw.WriteField("note", "no image here")
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
