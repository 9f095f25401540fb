package subscription

import (
	"context"
	"time"
)

// MutateFunc changes a subscription loaded inside a ledger transaction.
// It returns true when the record must be written back.
type MutateFunc func(s *Subscription) (bool, error)

// Repository defines the interface for subscription data access
type Repository interface {
	// Create inserts a new subscription
	Create(ctx context.Context, s *Subscription) error

	// GetActiveByUser returns the most recently created active subscription whose end date is after now
	GetActiveByUser(ctx context.Context, userID string, now time.Time) (*Subscription, error)

	// GetByStripeSubscription retrieves a subscription by its Stripe subscription ID
	GetByStripeSubscription(ctx context.Context, stripeSubscriptionID string) (*Subscription, error)

	// Update writes plan and lifecycle columns; the usage counter is left alone
	Update(ctx context.Context, s *Subscription) error

	// MutateActive loads the user's active subscription and applies fn atomically.
	// Concurrent calls for the same row are serialized; calls for different rows are not.
	MutateActive(ctx context.Context, userID string, now time.Time, fn MutateFunc) (*Subscription, error)

	// SupersedeActive marks every other active subscription of the user as expired
	SupersedeActive(ctx context.Context, userID, keepID string, now time.Time) error

	// ClaimPayment records a payment event key. It returns false when the key was already recorded.
	ClaimPayment(ctx context.Context, key string, now time.Time) (bool, error)

	// UnclaimPayment removes a claim so a failed event can be redelivered
	UnclaimPayment(ctx context.Context, key string) error

	// ExpireLapsed marks active subscriptions past their end date as expired
	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)
}
