package subscription

import "context"

// Service defines the quota ledger and subscription lifecycle
type Service interface {
	// CheckAndConsume atomically applies the lazy reset, checks the limit and takes one unit
	CheckAndConsume(ctx context.Context, userID string) (*QuotaStatus, error)

	// PeekQuota reports the quota as it would look after a reset, without persisting anything
	PeekQuota(ctx context.Context, userID string) (*QuotaStatus, error)

	// Release refunds one unit taken by CheckAndConsume
	Release(ctx context.Context, userID string) error

	// Current returns the user's active subscription
	Current(ctx context.Context, userID string) (*Subscription, error)

	// Plans returns the plan catalog
	Plans() []Plan

	// Plan looks up a plan by ID
	Plan(id string) (Plan, bool)

	// ActivateFromPayment creates or extends a subscription after a completed checkout.
	// Replaying the same session is a no-op.
	ActivateFromPayment(ctx context.Context, evt PaymentEvent) (*Subscription, error)

	// RenewFromInvoice extends the subscription tied to a Stripe subscription by one period
	RenewFromInvoice(ctx context.Context, stripeSubscriptionID string) error

	// Cancel cancels the user's active subscription
	Cancel(ctx context.Context, userID string) (*Subscription, error)

	// CancelByStripeID cancels the subscription tied to a Stripe subscription
	CancelByStripeID(ctx context.Context, stripeSubscriptionID string) error

	// ExpireLapsed moves subscriptions past their end date to expired
	ExpireLapsed(ctx context.Context) (int64, error)
}
