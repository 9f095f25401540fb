package services

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/pratik-mahalle/muscleai/internal/config"
	"github.com/pratik-mahalle/muscleai/internal/domain/subscription"
	"github.com/pratik-mahalle/muscleai/internal/pkg/errors"
	"github.com/pratik-mahalle/muscleai/internal/pkg/logger"
	"github.com/pratik-mahalle/muscleai/internal/testutil"
)

var testPlans = PlansFromConfig(config.BillingConfig{StarterQuota: 30, ProQuota: 150})

func newSubscriptionService(repo subscription.Repository, clock *testutil.FakeClock) *SubscriptionService {
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	return NewSubscriptionService(repo, testPlans, 30*24*time.Hour, log).WithClock(clock.Now)
}

func seedSubscription(repo *testutil.MockSubscriptionRepository, userID string, used, limit int, lastReset, now time.Time) string {
	return repo.Seed(&subscription.Subscription{
		UserID:         userID,
		PlanID:         "starter",
		Status:         subscription.StatusActive,
		QuotaUsed:      used,
		MonthlyQuota:   limit,
		LastQuotaReset: &lastReset,
		StartedAt:      now.Add(-time.Hour),
		EndsAt:         now.Add(20 * 24 * time.Hour),
		CreatedAt:      now.Add(-time.Hour),
	})
}

func TestSubscriptionService_CheckAndConsume(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		used        int
		limit       int
		lastReset   time.Time
		wantAllowed bool
		wantUsed    int
	}{
		{name: "consumes a unit", used: 0, limit: 3, lastReset: now.Add(-time.Hour), wantAllowed: true, wantUsed: 1},
		{name: "denies at limit", used: 3, limit: 3, lastReset: now.Add(-time.Hour), wantAllowed: false, wantUsed: 3},
		{name: "resets after thirty days", used: 3, limit: 3, lastReset: now.Add(-30 * 24 * time.Hour), wantAllowed: true, wantUsed: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := testutil.NewMockSubscriptionRepository()
			id := seedSubscription(repo, "user-1", tt.used, tt.limit, tt.lastReset, now)
			service := newSubscriptionService(repo, testutil.NewFakeClock(now))

			status, err := service.CheckAndConsume(context.Background(), "user-1")
			if err != nil {
				t.Fatalf("CheckAndConsume() error = %v", err)
			}
			if status.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", status.Allowed, tt.wantAllowed)
			}
			if got := repo.Get(id).QuotaUsed; got != tt.wantUsed {
				t.Errorf("stored QuotaUsed = %d, want %d", got, tt.wantUsed)
			}
		})
	}
}

func TestSubscriptionService_CheckAndConsumeConcurrent(t *testing.T) {
	now := time.Now()
	repo := testutil.NewMockSubscriptionRepository()
	seedSubscription(repo, "user-1", 9, 10, now.Add(-time.Hour), now)
	service := newSubscriptionService(repo, testutil.NewFakeClock(now))

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := service.CheckAndConsume(context.Background(), "user-1")
			if err != nil {
				t.Errorf("CheckAndConsume() error = %v", err)
				return
			}
			if status.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 1 {
		t.Errorf("allowed = %d, want 1", allowed)
	}
}

func TestSubscriptionService_PeekQuotaDoesNotMutate(t *testing.T) {
	now := time.Now()
	repo := testutil.NewMockSubscriptionRepository()
	stale := now.Add(-45 * 24 * time.Hour)
	id := seedSubscription(repo, "user-1", 7, 10, stale, now)
	service := newSubscriptionService(repo, testutil.NewFakeClock(now))

	for i := 0; i < 3; i++ {
		status, err := service.PeekQuota(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("PeekQuota() error = %v", err)
		}
		if status.Used != 0 || status.Remaining != 10 {
			t.Errorf("PeekQuota() = %+v, want used 0 remaining 10", status)
		}
	}

	stored := repo.Get(id)
	if stored.QuotaUsed != 7 || !stored.LastQuotaReset.Equal(stale) {
		t.Errorf("PeekQuota() mutated the record: %+v", stored)
	}
	if repo.MutateCalls != 0 {
		t.Errorf("PeekQuota() made %d ledger writes", repo.MutateCalls)
	}
}

func TestSubscriptionService_Errors(t *testing.T) {
	now := time.Now()

	t.Run("no subscription", func(t *testing.T) {
		service := newSubscriptionService(testutil.NewMockSubscriptionRepository(), testutil.NewFakeClock(now))
		_, err := service.CheckAndConsume(context.Background(), "user-1")
		if !errors.HasCode(err, errors.ErrCodeNoActiveSubscription) {
			t.Errorf("error = %v, want NO_ACTIVE_SUBSCRIPTION", err)
		}
	})

	t.Run("ledger failure", func(t *testing.T) {
		repo := testutil.NewMockSubscriptionRepository()
		repo.LedgerError = errors.DatabaseError("boom", stderrors.New("connection refused"))
		service := newSubscriptionService(repo, testutil.NewFakeClock(now))

		_, err := service.CheckAndConsume(context.Background(), "user-1")
		if !errors.HasCode(err, errors.ErrCodeLedgerUnavailable) {
			t.Errorf("error = %v, want LEDGER_UNAVAILABLE", err)
		}
	})
}

func TestSubscriptionService_Release(t *testing.T) {
	now := time.Now()
	repo := testutil.NewMockSubscriptionRepository()
	id := seedSubscription(repo, "user-1", 2, 10, now.Add(-time.Hour), now)
	service := newSubscriptionService(repo, testutil.NewFakeClock(now))

	if err := service.Release(context.Background(), "user-1"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if got := repo.Get(id).QuotaUsed; got != 1 {
		t.Errorf("QuotaUsed = %d, want 1", got)
	}
}

func TestSubscriptionService_ActivateFromPayment(t *testing.T) {
	now := time.Now()
	clock := testutil.NewFakeClock(now)

	t.Run("creates subscription and is idempotent", func(t *testing.T) {
		repo := testutil.NewMockSubscriptionRepository()
		service := newSubscriptionService(repo, clock)
		evt := subscription.PaymentEvent{SessionID: "cs_1", UserID: "user-1", PlanID: "pro"}

		sub, err := service.ActivateFromPayment(context.Background(), evt)
		if err != nil {
			t.Fatalf("ActivateFromPayment() error = %v", err)
		}
		if sub.MonthlyQuota != 150 || sub.QuotaUsed != 0 || sub.LastQuotaReset == nil {
			t.Errorf("new subscription = %+v", sub)
		}

		again, err := service.ActivateFromPayment(context.Background(), evt)
		if err != nil {
			t.Fatalf("replayed ActivateFromPayment() error = %v", err)
		}
		if again.ID != sub.ID || !again.EndsAt.Equal(sub.EndsAt) {
			t.Errorf("replay changed subscription: %+v vs %+v", again, sub)
		}
		if len(repo.Subscriptions) != 1 {
			t.Errorf("subscriptions = %d, want 1", len(repo.Subscriptions))
		}
	})

	t.Run("extends same plan", func(t *testing.T) {
		repo := testutil.NewMockSubscriptionRepository()
		id := seedSubscription(repo, "user-1", 4, 30, now.Add(-time.Hour), now)
		before := repo.Get(id).EndsAt
		service := newSubscriptionService(repo, clock)

		sub, err := service.ActivateFromPayment(context.Background(), subscription.PaymentEvent{
			SessionID: "cs_2", UserID: "user-1", PlanID: "starter", StripeSubscriptionID: "sub_9",
		})
		if err != nil {
			t.Fatalf("ActivateFromPayment() error = %v", err)
		}
		if sub.ID != id {
			t.Errorf("expected extension of %s, got %s", id, sub.ID)
		}
		stored := repo.Get(id)
		if !stored.EndsAt.Equal(before.Add(30 * 24 * time.Hour)) {
			t.Errorf("EndsAt = %v, want %v", stored.EndsAt, before.Add(30*24*time.Hour))
		}
		if stored.QuotaUsed != 4 {
			t.Errorf("extension changed QuotaUsed to %d", stored.QuotaUsed)
		}
	})

	t.Run("plan change supersedes", func(t *testing.T) {
		repo := testutil.NewMockSubscriptionRepository()
		oldID := seedSubscription(repo, "user-1", 4, 30, now.Add(-time.Hour), now)
		service := newSubscriptionService(repo, clock)

		sub, err := service.ActivateFromPayment(context.Background(), subscription.PaymentEvent{
			SessionID: "cs_3", UserID: "user-1", PlanID: "pro",
		})
		if err != nil {
			t.Fatalf("ActivateFromPayment() error = %v", err)
		}
		if sub.ID == oldID {
			t.Fatal("plan change should create a new record")
		}
		if repo.Get(oldID).Status != subscription.StatusExpired {
			t.Errorf("old subscription status = %s, want expired", repo.Get(oldID).Status)
		}
	})

	t.Run("unknown plan", func(t *testing.T) {
		service := newSubscriptionService(testutil.NewMockSubscriptionRepository(), clock)
		_, err := service.ActivateFromPayment(context.Background(), subscription.PaymentEvent{
			SessionID: "cs_4", UserID: "user-1", PlanID: "platinum",
		})
		if !errors.HasCode(err, errors.ErrCodeBadRequest) {
			t.Errorf("error = %v, want BAD_REQUEST", err)
		}
	})
}

func TestSubscriptionService_RenewAndCancel(t *testing.T) {
	now := time.Now()
	repo := testutil.NewMockSubscriptionRepository()
	id := repo.Seed(&subscription.Subscription{
		UserID:               "user-1",
		PlanID:               "starter",
		Status:               subscription.StatusActive,
		MonthlyQuota:         30,
		StartedAt:            now.Add(-29 * 24 * time.Hour),
		EndsAt:               now.Add(24 * time.Hour),
		StripeSubscriptionID: "sub_1",
	})
	service := newSubscriptionService(repo, testutil.NewFakeClock(now))

	if err := service.RenewFromInvoice(context.Background(), "sub_1"); err != nil {
		t.Fatalf("RenewFromInvoice() error = %v", err)
	}
	renewed := repo.Get(id).EndsAt
	if !renewed.Equal(now.Add(31 * 24 * time.Hour)) {
		t.Errorf("EndsAt = %v, want %v", renewed, now.Add(31*24*time.Hour))
	}

	// Redelivery of the same invoice leaves the end date alone.
	if err := service.RenewFromInvoice(context.Background(), "sub_1"); err != nil {
		t.Fatalf("RenewFromInvoice() replay error = %v", err)
	}
	if !repo.Get(id).EndsAt.Equal(renewed) {
		t.Error("RenewFromInvoice() replay extended again")
	}

	if err := service.RenewFromInvoice(context.Background(), "sub_unknown"); err != nil {
		t.Errorf("RenewFromInvoice(unknown) error = %v, want nil", err)
	}

	if err := service.CancelByStripeID(context.Background(), "sub_1"); err != nil {
		t.Fatalf("CancelByStripeID() error = %v", err)
	}
	if repo.Get(id).Status != subscription.StatusCancelled {
		t.Errorf("Status = %s, want cancelled", repo.Get(id).Status)
	}
}

func TestSubscriptionService_ExpireLapsed(t *testing.T) {
	now := time.Now()
	repo := testutil.NewMockSubscriptionRepository()
	repo.Seed(&subscription.Subscription{UserID: "a", Status: subscription.StatusActive, MonthlyQuota: 1, EndsAt: now.Add(-time.Minute)})
	repo.Seed(&subscription.Subscription{UserID: "b", Status: subscription.StatusActive, MonthlyQuota: 1, EndsAt: now.Add(time.Hour)})
	service := newSubscriptionService(repo, testutil.NewFakeClock(now))

	n, err := service.ExpireLapsed(context.Background())
	if err != nil {
		t.Fatalf("ExpireLapsed() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ExpireLapsed() = %d, want 1", n)
	}
}
