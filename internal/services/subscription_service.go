package services

import (
	"context"
	"time"

	"github.com/pratik-mahalle/muscleai/internal/config"
	"github.com/pratik-mahalle/muscleai/internal/domain/subscription"
	"github.com/pratik-mahalle/muscleai/internal/pkg/errors"
	"github.com/pratik-mahalle/muscleai/internal/pkg/logger"
	"github.com/pratik-mahalle/muscleai/internal/pkg/metrics"
)

var _ subscription.Service = (*SubscriptionService)(nil)

// SubscriptionService implements subscription.Service
type SubscriptionService struct {
	repo   subscription.Repository
	plans  []subscription.Plan
	period time.Duration
	logger *logger.Logger
	now    func() time.Time
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(repo subscription.Repository, plans []subscription.Plan, period time.Duration, log *logger.Logger) *SubscriptionService {
	if period <= 0 {
		period = subscription.QuotaPeriod
	}
	return &SubscriptionService{
		repo:   repo,
		plans:  plans,
		period: period,
		logger: log,
		now:    time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *SubscriptionService) WithClock(now func() time.Time) *SubscriptionService {
	s.now = now
	return s
}

// PlansFromConfig builds the plan catalog
func PlansFromConfig(cfg config.BillingConfig) []subscription.Plan {
	return []subscription.Plan{
		{
			ID:            "starter",
			Name:          "Starter",
			Description:   "For occasional check-ins on your progress",
			MonthlyQuota:  cfg.StarterQuota,
			PriceCents:    999,
			Currency:      "USD",
			Interval:      "month",
			Features:      []string{"Muscle development ratings", "Exercise suggestions", "Email support"},
			StripePriceID: cfg.StarterPriceID,
		},
		{
			ID:            "pro",
			Name:          "Pro",
			Description:   "For athletes tracking every training block",
			MonthlyQuota:  cfg.ProQuota,
			PriceCents:    2499,
			Currency:      "USD",
			Interval:      "month",
			Features:      []string{"Everything in Starter", "Higher monthly analysis quota", "Priority processing"},
			StripePriceID: cfg.ProPriceID,
		},
	}
}

// CheckAndConsume applies the lazy reset, checks the limit and takes one unit in a single atomic step
func (s *SubscriptionService) CheckAndConsume(ctx context.Context, userID string) (*subscription.QuotaStatus, error) {
	if userID == "" {
		return nil, errors.NoActiveSubscription()
	}

	now := s.now()
	var status subscription.QuotaStatus
	_, err := s.repo.MutateActive(ctx, userID, now, func(sub *subscription.Subscription) (bool, error) {
		var changed bool
		status, changed = sub.Consume(now)
		return changed, nil
	})
	if err != nil {
		return nil, s.ledgerError(err, userID)
	}

	metrics.RecordQuotaDecision(status.Allowed)
	if !status.Allowed {
		s.logger.WithFields(map[string]interface{}{
			"user_id": userID,
			"used":    status.Used,
			"limit":   status.Limit,
		}).Info("Quota exhausted")
	}

	return &status, nil
}

// PeekQuota returns the quota with any due reset applied to a copy. Nothing is written.
func (s *SubscriptionService) PeekQuota(ctx context.Context, userID string) (*subscription.QuotaStatus, error) {
	if userID == "" {
		return nil, errors.NoActiveSubscription()
	}

	now := s.now()
	sub, err := s.repo.GetActiveByUser(ctx, userID, now)
	if err != nil {
		return nil, s.ledgerError(err, userID)
	}

	status := sub.Peek(now)
	return &status, nil
}

// Release gives back a unit taken by CheckAndConsume
func (s *SubscriptionService) Release(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	_, err := s.repo.MutateActive(ctx, userID, s.now(), func(sub *subscription.Subscription) (bool, error) {
		return sub.Release(), nil
	})
	if err != nil {
		return s.ledgerError(err, userID)
	}

	s.logger.WithFields(map[string]interface{}{"user_id": userID}).Info("Quota unit released")
	return nil
}

// Current returns the user's active subscription
func (s *SubscriptionService) Current(ctx context.Context, userID string) (*subscription.Subscription, error) {
	return s.repo.GetActiveByUser(ctx, userID, s.now())
}

// Plans returns the plan catalog
func (s *SubscriptionService) Plans() []subscription.Plan {
	return s.plans
}

// Plan looks up a plan by ID
func (s *SubscriptionService) Plan(id string) (subscription.Plan, bool) {
	for _, p := range s.plans {
		if p.ID == id {
			return p, true
		}
	}
	return subscription.Plan{}, false
}

// ActivateFromPayment creates or extends the user's subscription for a completed checkout.
// The checkout session ID is claimed first so redelivered events change nothing.
func (s *SubscriptionService) ActivateFromPayment(ctx context.Context, evt subscription.PaymentEvent) (*subscription.Subscription, error) {
	if evt.UserID == "" || evt.SessionID == "" {
		return nil, errors.BadRequest("Payment event is missing the user or session")
	}
	plan, ok := s.Plan(evt.PlanID)
	if !ok {
		return nil, errors.BadRequest("Unknown plan: " + evt.PlanID)
	}

	now := s.now()
	claimed, err := s.repo.ClaimPayment(ctx, evt.SessionID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		s.logger.WithFields(map[string]interface{}{"session_id": evt.SessionID}).Info("Payment already processed")
		return s.repo.GetActiveByUser(ctx, evt.UserID, now)
	}

	sub, err := s.applyPayment(ctx, evt, plan, now)
	if err != nil {
		if unclaimErr := s.repo.UnclaimPayment(ctx, evt.SessionID); unclaimErr != nil {
			s.logger.ErrorWithErr(unclaimErr, "Failed to release payment claim")
		}
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":         sub.UserID,
		"subscription_id": sub.ID,
		"plan_id":         sub.PlanID,
		"ends_at":         sub.EndsAt,
	}).Info("Subscription activated")

	return sub, nil
}

func (s *SubscriptionService) applyPayment(ctx context.Context, evt subscription.PaymentEvent, plan subscription.Plan, now time.Time) (*subscription.Subscription, error) {
	current, err := s.repo.GetActiveByUser(ctx, evt.UserID, now)
	if err != nil && !errors.HasCode(err, errors.ErrCodeNoActiveSubscription) {
		return nil, err
	}

	// Same plan: extend the running subscription and keep its usage counter.
	if current != nil && current.PlanID == plan.ID {
		current.EndsAt = current.EndsAt.Add(s.period)
		if evt.StripeCustomerID != "" {
			current.StripeCustomerID = evt.StripeCustomerID
		}
		if evt.StripeSubscriptionID != "" {
			current.StripeSubscriptionID = evt.StripeSubscriptionID
		}
		if err := s.repo.Update(ctx, current); err != nil {
			return nil, err
		}
		return current, nil
	}

	reset := now
	sub := &subscription.Subscription{
		UserID:               evt.UserID,
		PlanID:               plan.ID,
		Status:               subscription.StatusActive,
		QuotaUsed:            0,
		MonthlyQuota:         plan.MonthlyQuota,
		LastQuotaReset:       &reset,
		StartedAt:            now,
		EndsAt:               now.Add(s.period),
		StripeCustomerID:     evt.StripeCustomerID,
		StripeSubscriptionID: evt.StripeSubscriptionID,
		StripeSessionID:      evt.SessionID,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	if err := s.repo.SupersedeActive(ctx, evt.UserID, sub.ID, now); err != nil {
		return nil, err
	}
	return sub, nil
}

// RenewFromInvoice pushes the end date of a Stripe-backed subscription out by one period
func (s *SubscriptionService) RenewFromInvoice(ctx context.Context, stripeSubscriptionID string) error {
	sub, err := s.repo.GetByStripeSubscription(ctx, stripeSubscriptionID)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			// First invoice arrives before checkout completes; activation covers it.
			return nil
		}
		return err
	}

	now := s.now()
	// Already covered for more than a day: this invoice was applied before.
	if sub.Status == subscription.StatusActive && sub.EndsAt.After(now.Add(s.period-24*time.Hour)) {
		return nil
	}

	base := sub.EndsAt
	if base.Before(now) {
		base = now
	}
	sub.EndsAt = base.Add(s.period)
	sub.Status = subscription.StatusActive

	if err := s.repo.Update(ctx, sub); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"subscription_id": sub.ID,
		"ends_at":         sub.EndsAt,
	}).Info("Subscription renewed")
	return nil
}

// Cancel cancels the user's active subscription
func (s *SubscriptionService) Cancel(ctx context.Context, userID string) (*subscription.Subscription, error) {
	sub, err := s.repo.GetActiveByUser(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	sub.Status = subscription.StatusCancelled
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":         userID,
		"subscription_id": sub.ID,
	}).Info("Subscription cancelled")
	return sub, nil
}

// CancelByStripeID cancels the subscription tied to a Stripe subscription
func (s *SubscriptionService) CancelByStripeID(ctx context.Context, stripeSubscriptionID string) error {
	sub, err := s.repo.GetByStripeSubscription(ctx, stripeSubscriptionID)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return nil
		}
		return err
	}
	if sub.Status == subscription.StatusCancelled {
		return nil
	}
	sub.Status = subscription.StatusCancelled
	return s.repo.Update(ctx, sub)
}

// ExpireLapsed moves subscriptions past their end date to expired
func (s *SubscriptionService) ExpireLapsed(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireLapsed(ctx, s.now())
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to expire lapsed subscriptions")
		return 0, err
	}
	if n > 0 {
		s.logger.WithFields(map[string]interface{}{"count": n}).Info("Expired lapsed subscriptions")
	}
	return n, nil
}

// ledgerError keeps the no-subscription case and reports everything else as the ledger being unavailable
func (s *SubscriptionService) ledgerError(err error, userID string) error {
	if errors.HasCode(err, errors.ErrCodeNoActiveSubscription) {
		return err
	}
	s.logger.WithFields(map[string]interface{}{"user_id": userID}).ErrorWithErr(err, "Quota ledger failure")
	return errors.LedgerUnavailable(err)
}
