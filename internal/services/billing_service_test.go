package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/pratik-mahalle/muscleai/internal/config"
	"github.com/pratik-mahalle/muscleai/internal/domain/subscription"
	"github.com/pratik-mahalle/muscleai/internal/pkg/errors"
	"github.com/pratik-mahalle/muscleai/internal/testutil"
)

const testWebhookSecret = "whsec_test"

func newBillingFixture(t *testing.T, cfg config.BillingConfig) (*BillingService, *testutil.MockSubscriptionRepository, time.Time) {
	t.Helper()
	now := time.Now()
	repo := testutil.NewMockSubscriptionRepository()
	plans := PlansFromConfig(config.BillingConfig{
		StarterQuota:   30,
		ProQuota:       150,
		StarterPriceID: "price_starter",
	})
	subs := NewSubscriptionService(repo, plans, 30*24*time.Hour, testutil.NewTestLogger()).
		WithClock(testutil.NewFakeClock(now).Now)
	return NewBillingService(subs, cfg, testutil.NewTestLogger()), repo, now
}

func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func stripeEvent(id, eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","api_version":"2023-10-16","type":%q,"data":{"object":%s}}`,
		id, eventType, object))
}

func TestBillingService_CreateCheckout(t *testing.T) {
	service, _, _ := newBillingFixture(t, config.BillingConfig{
		StripeSecretKey: "sk_test_123",
		SuccessURL:      "https://app.example.com/success",
		CancelURL:       "https://app.example.com/cancel",
	})

	var captured *stripe.CheckoutSessionParams
	service.WithSessionCreator(func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		captured = params
		return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}, nil
	})

	sess, err := service.CreateCheckout(context.Background(), CheckoutRequest{UserID: "user-1", PlanID: "starter"})
	if err != nil {
		t.Fatalf("CreateCheckout() error = %v", err)
	}
	if sess.ID != "cs_test_1" || sess.URL == "" {
		t.Errorf("CreateCheckout() = %+v", sess)
	}

	if captured == nil {
		t.Fatal("session creator was not called")
	}
	if got := stripe.StringValue(captured.Mode); got != string(stripe.CheckoutSessionModeSubscription) {
		t.Errorf("Mode = %q, want subscription", got)
	}
	if got := stripe.StringValue(captured.ClientReferenceID); got != "user-1" {
		t.Errorf("ClientReferenceID = %q, want user-1", got)
	}
	if got := stripe.StringValue(captured.SuccessURL); got != "https://app.example.com/success" {
		t.Errorf("SuccessURL = %q", got)
	}
	if len(captured.LineItems) != 1 || stripe.StringValue(captured.LineItems[0].Price) != "price_starter" {
		t.Errorf("LineItems = %+v", captured.LineItems)
	}
	if captured.Metadata["user_id"] != "user-1" || captured.Metadata["plan_id"] != "starter" {
		t.Errorf("Metadata = %v", captured.Metadata)
	}
}

func TestBillingService_CreateCheckoutErrors(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.BillingConfig
		planID   string
		wantCode string
	}{
		{
			name:     "payments not configured",
			cfg:      config.BillingConfig{},
			planID:   "starter",
			wantCode: errors.ErrCodeServiceUnavailable,
		},
		{
			name:     "unknown plan",
			cfg:      config.BillingConfig{StripeSecretKey: "sk_test", SuccessURL: "s", CancelURL: "c"},
			planID:   "platinum",
			wantCode: errors.ErrCodeBadRequest,
		},
		{
			name:     "plan without price",
			cfg:      config.BillingConfig{StripeSecretKey: "sk_test", SuccessURL: "s", CancelURL: "c"},
			planID:   "pro",
			wantCode: errors.ErrCodeServiceUnavailable,
		},
		{
			name:     "missing redirect urls",
			cfg:      config.BillingConfig{StripeSecretKey: "sk_test"},
			planID:   "starter",
			wantCode: errors.ErrCodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _, _ := newBillingFixture(t, tt.cfg)
			service.WithSessionCreator(func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				t.Fatal("session creator should not be called")
				return nil, nil
			})

			_, err := service.CreateCheckout(context.Background(), CheckoutRequest{UserID: "user-1", PlanID: tt.planID})
			if !errors.HasCode(err, tt.wantCode) {
				t.Errorf("CreateCheckout() error = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestBillingService_WebhookRejectsBadSignature(t *testing.T) {
	service, _, _ := newBillingFixture(t, config.BillingConfig{StripeWebhookSecret: testWebhookSecret})

	payload := stripeEvent("evt_1", EventCheckoutCompleted, `{"id":"cs_1"}`)
	err := service.HandleWebhook(context.Background(), payload, signPayload(payload, "whsec_other"))
	if !errors.HasCode(err, errors.ErrCodeBadRequest) {
		t.Errorf("HandleWebhook() error = %v, want BAD_REQUEST", err)
	}
}

func TestBillingService_WebhookNotConfigured(t *testing.T) {
	service, _, _ := newBillingFixture(t, config.BillingConfig{})

	err := service.HandleWebhook(context.Background(), []byte("{}"), "t=1,v1=00")
	if !errors.HasCode(err, errors.ErrCodeServiceUnavailable) {
		t.Errorf("HandleWebhook() error = %v, want SERVICE_UNAVAILABLE", err)
	}
}

func TestBillingService_CheckoutCompletedActivates(t *testing.T) {
	service, repo, _ := newBillingFixture(t, config.BillingConfig{StripeWebhookSecret: testWebhookSecret})
	ctx := context.Background()

	payload := stripeEvent("evt_1", EventCheckoutCompleted, `{
		"id": "cs_paid",
		"object": "checkout.session",
		"payment_status": "paid",
		"client_reference_id": "user-1",
		"customer": "cus_1",
		"subscription": "sub_1",
		"metadata": {"user_id": "user-1", "plan_id": "starter"}
	}`)

	// Stripe redelivers; the second delivery must not create another subscription.
	for i := 0; i < 2; i++ {
		if err := service.HandleWebhook(ctx, payload, signPayload(payload, testWebhookSecret)); err != nil {
			t.Fatalf("HandleWebhook() delivery %d error = %v", i+1, err)
		}
	}

	if len(repo.Subscriptions) != 1 {
		t.Fatalf("subscriptions = %d, want 1", len(repo.Subscriptions))
	}
	sub, err := service.Current(ctx, "user-1")
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if sub.PlanID != "starter" || sub.MonthlyQuota != 30 || sub.QuotaUsed != 0 {
		t.Errorf("subscription = %+v", sub)
	}
	if sub.StripeCustomerID != "cus_1" || sub.StripeSubscriptionID != "sub_1" {
		t.Errorf("stripe ids = %q, %q", sub.StripeCustomerID, sub.StripeSubscriptionID)
	}
}

func TestBillingService_CheckoutUnpaidIsDeferred(t *testing.T) {
	service, repo, _ := newBillingFixture(t, config.BillingConfig{StripeWebhookSecret: testWebhookSecret})

	payload := stripeEvent("evt_2", EventCheckoutCompleted, `{
		"id": "cs_unpaid",
		"object": "checkout.session",
		"payment_status": "unpaid",
		"metadata": {"user_id": "user-1", "plan_id": "starter"}
	}`)
	if err := service.HandleWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret)); err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	if len(repo.Subscriptions) != 0 {
		t.Errorf("subscriptions = %d, want 0", len(repo.Subscriptions))
	}
}

func TestBillingService_AsyncPaymentActivates(t *testing.T) {
	service, repo, _ := newBillingFixture(t, config.BillingConfig{StripeWebhookSecret: testWebhookSecret})
	ctx := context.Background()

	session := func(status string) string {
		return fmt.Sprintf(`{
			"id": "cs_async",
			"object": "checkout.session",
			"payment_status": %q,
			"customer": "cus_async",
			"subscription": "sub_async",
			"metadata": {"user_id": "user-1", "plan_id": "pro"}
		}`, status)
	}

	deliveries := [][]byte{
		stripeEvent("evt_6", EventCheckoutCompleted, session("unpaid")),
		stripeEvent("evt_7", EventCheckoutAsyncSucceeded, session("paid")),
		stripeEvent("evt_7", EventCheckoutAsyncSucceeded, session("paid")),
	}
	for i, payload := range deliveries {
		if err := service.HandleWebhook(ctx, payload, signPayload(payload, testWebhookSecret)); err != nil {
			t.Fatalf("HandleWebhook() delivery %d error = %v", i+1, err)
		}
		if i == 0 && len(repo.Subscriptions) != 0 {
			t.Fatalf("subscriptions after unpaid checkout = %d, want 0", len(repo.Subscriptions))
		}
	}

	if len(repo.Subscriptions) != 1 {
		t.Fatalf("subscriptions = %d, want 1", len(repo.Subscriptions))
	}
	sub, err := service.Current(ctx, "user-1")
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if sub.PlanID != "pro" || sub.MonthlyQuota != 150 || sub.StripeSubscriptionID != "sub_async" {
		t.Errorf("subscription = %+v", sub)
	}
}

func TestBillingService_InvoicePaidRenews(t *testing.T) {
	service, repo, now := newBillingFixture(t, config.BillingConfig{StripeWebhookSecret: testWebhookSecret})

	endsAt := now.Add(time.Hour)
	id := repo.Seed(&subscription.Subscription{
		UserID:               "user-1",
		PlanID:               "starter",
		Status:               subscription.StatusActive,
		MonthlyQuota:         30,
		StartedAt:            now.Add(-29 * 24 * time.Hour),
		EndsAt:               endsAt,
		StripeSubscriptionID: "sub_renew",
	})

	payload := stripeEvent("evt_3", EventInvoicePaid, `{"id":"in_1","object":"invoice","subscription":"sub_renew"}`)
	if err := service.HandleWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret)); err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}

	want := endsAt.Add(30 * 24 * time.Hour)
	if got := repo.Get(id).EndsAt; !got.Equal(want) {
		t.Errorf("EndsAt = %v, want %v", got, want)
	}
}

func TestBillingService_SubscriptionDeletedCancels(t *testing.T) {
	service, repo, now := newBillingFixture(t, config.BillingConfig{StripeWebhookSecret: testWebhookSecret})

	id := repo.Seed(&subscription.Subscription{
		UserID:               "user-1",
		PlanID:               "starter",
		Status:               subscription.StatusActive,
		MonthlyQuota:         30,
		StartedAt:            now.Add(-time.Hour),
		EndsAt:               now.Add(24 * time.Hour),
		StripeSubscriptionID: "sub_gone",
	})

	payload := stripeEvent("evt_4", EventSubscriptionDeleted, `{"id":"sub_gone","object":"subscription"}`)
	if err := service.HandleWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret)); err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}

	if got := repo.Get(id).Status; got != subscription.StatusCancelled {
		t.Errorf("Status = %s, want %s", got, subscription.StatusCancelled)
	}
}

func TestBillingService_IgnoresOtherEvents(t *testing.T) {
	service, repo, _ := newBillingFixture(t, config.BillingConfig{StripeWebhookSecret: testWebhookSecret})

	payload := stripeEvent("evt_5", "customer.created", `{"id":"cus_1","object":"customer"}`)
	if err := service.HandleWebhook(context.Background(), payload, signPayload(payload, testWebhookSecret)); err != nil {
		t.Errorf("HandleWebhook() error = %v", err)
	}
	if len(repo.Subscriptions) != 0 {
		t.Errorf("subscriptions = %d, want 0", len(repo.Subscriptions))
	}
}
