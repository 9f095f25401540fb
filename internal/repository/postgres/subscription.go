package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/muscleai/internal/domain/subscription"
	"github.com/pratik-mahalle/muscleai/internal/pkg/errors"
)

// maxLedgerRetries bounds compare-and-set retries when a concurrent writer wins
const maxLedgerRetries = 5

// ErrLedgerConflict is returned when every compare-and-set attempt lost a race
var ErrLedgerConflict = stderrors.New("subscription ledger: too many concurrent updates")

const subscriptionColumns = `id, user_id, plan_id, status, quota_used, monthly_quota, last_quota_reset,
	started_at, ends_at, stripe_customer_id, stripe_subscription_id, stripe_session_id, created_at, updated_at`

// SubscriptionRepository implements subscription.Repository
type SubscriptionRepository struct {
	db     *sql.DB
	driver string
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *sql.DB, driver string) subscription.Repository {
	return &SubscriptionRepository{db: db, driver: driver}
}

func (r *SubscriptionRepository) q(query string) string {
	return Rebind(r.driver, query)
}

// Create inserts a new subscription
func (r *SubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	now := time.Now()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = now
	s.UpdatedAt = now

	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.q(query),
		s.ID, s.UserID, s.PlanID, s.Status, s.QuotaUsed, s.MonthlyQuota, unixOrZero(s.LastQuotaReset),
		s.StartedAt.Unix(), s.EndsAt.Unix(), s.StripeCustomerID, s.StripeSubscriptionID,
		nullString(s.StripeSessionID), now.Unix(), now.Unix(),
	)
	if err != nil {
		return errors.DatabaseError("Failed to create subscription", err)
	}

	return nil
}

// GetActiveByUser returns the newest active, unexpired subscription for the user
func (r *SubscriptionRepository) GetActiveByUser(ctx context.Context, userID string, now time.Time) (*subscription.Subscription, error) {
	row := r.db.QueryRowContext(ctx, r.q(r.activeQuery(false)), userID, subscription.StatusActive, now.Unix())
	s, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, errors.NoActiveSubscription()
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get subscription", err)
	}
	return s, nil
}

// GetByStripeSubscription retrieves the newest subscription with the given Stripe subscription ID
func (r *SubscriptionRepository) GetByStripeSubscription(ctx context.Context, stripeSubscriptionID string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE stripe_subscription_id = ?
		ORDER BY created_at DESC LIMIT 1`

	s, err := scanSubscription(r.db.QueryRowContext(ctx, r.q(query), stripeSubscriptionID))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Subscription")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get subscription", err)
	}
	return s, nil
}

// Update writes the plan and lifecycle columns. The usage counter is only
// written through MutateActive.
func (r *SubscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	s.UpdatedAt = time.Now()

	query := `
		UPDATE subscriptions
		SET plan_id = ?, status = ?, monthly_quota = ?, started_at = ?, ends_at = ?,
			stripe_customer_id = ?, stripe_subscription_id = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.q(query),
		s.PlanID, s.Status, s.MonthlyQuota, s.StartedAt.Unix(), s.EndsAt.Unix(),
		s.StripeCustomerID, s.StripeSubscriptionID, s.UpdatedAt.Unix(), s.ID,
	)
	if err != nil {
		return errors.DatabaseError("Failed to update subscription", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("Failed to get affected rows", err)
	}
	if rows == 0 {
		return errors.NotFound("Subscription")
	}

	return nil
}

// MutateActive runs fn against the user's active subscription inside a transaction.
// On postgres the row is locked with FOR UPDATE; on every driver the write is
// guarded by the counter values that were read, and a lost race is retried.
func (r *SubscriptionRepository) MutateActive(ctx context.Context, userID string, now time.Time, fn subscription.MutateFunc) (*subscription.Subscription, error) {
	for attempt := 0; attempt < maxLedgerRetries; attempt++ {
		s, retry, err := r.mutateOnce(ctx, userID, now, fn)
		if err != nil {
			return nil, err
		}
		if !retry {
			return s, nil
		}
	}
	return nil, errors.DatabaseError("Failed to update subscription ledger", ErrLedgerConflict)
}

func (r *SubscriptionRepository) mutateOnce(ctx context.Context, userID string, now time.Time, fn subscription.MutateFunc) (*subscription.Subscription, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, errors.DatabaseError("Failed to begin ledger transaction", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, r.q(r.activeQuery(true)), userID, subscription.StatusActive, now.Unix())
	s, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, false, errors.NoActiveSubscription()
	}
	if err != nil {
		return nil, false, errors.DatabaseError("Failed to load subscription", err)
	}

	prevUsed := s.QuotaUsed
	prevReset := unixOrZero(s.LastQuotaReset)

	changed, err := fn(s)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return s, false, nil
	}

	s.UpdatedAt = now
	result, err := tx.ExecContext(ctx, r.q(`
		UPDATE subscriptions
		SET quota_used = ?, last_quota_reset = ?, updated_at = ?
		WHERE id = ? AND quota_used = ? AND last_quota_reset = ?
	`), s.QuotaUsed, unixOrZero(s.LastQuotaReset), now.Unix(), s.ID, prevUsed, prevReset)
	if err != nil {
		return nil, false, errors.DatabaseError("Failed to update subscription ledger", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, errors.DatabaseError("Failed to get affected rows", err)
	}
	if rows == 0 {
		return nil, true, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, false, errors.DatabaseError("Failed to commit ledger transaction", err)
	}
	return s, false, nil
}

// SupersedeActive expires every other active subscription of the user
func (r *SubscriptionRepository) SupersedeActive(ctx context.Context, userID, keepID string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, r.q(`
		UPDATE subscriptions SET status = ?, updated_at = ?
		WHERE user_id = ? AND status = ? AND id <> ?
	`), subscription.StatusExpired, now.Unix(), userID, subscription.StatusActive, keepID)
	if err != nil {
		return errors.DatabaseError("Failed to supersede subscriptions", err)
	}
	return nil
}

// ClaimPayment inserts the event key, reporting false when it already exists
func (r *SubscriptionRepository) ClaimPayment(ctx context.Context, key string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO payment_events (event_key, created_at) VALUES (?, ?)
		ON CONFLICT (event_key) DO NOTHING
	`), key, now.Unix())
	if err != nil {
		return false, errors.DatabaseError("Failed to record payment event", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.DatabaseError("Failed to get affected rows", err)
	}
	return rows == 1, nil
}

// UnclaimPayment deletes an event key
func (r *SubscriptionRepository) UnclaimPayment(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, r.q(`DELETE FROM payment_events WHERE event_key = ?`), key); err != nil {
		return errors.DatabaseError("Failed to remove payment event", err)
	}
	return nil
}

// ExpireLapsed marks active subscriptions past their end date as expired
func (r *SubscriptionRepository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.q(`
		UPDATE subscriptions SET status = ?, updated_at = ?
		WHERE status = ? AND ends_at <= ?
	`), subscription.StatusExpired, now.Unix(), subscription.StatusActive, now.Unix())
	if err != nil {
		return 0, errors.DatabaseError("Failed to expire subscriptions", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.DatabaseError("Failed to count expired subscriptions", err)
	}
	return n, nil
}

func (r *SubscriptionRepository) activeQuery(lock bool) string {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE user_id = ? AND status = ? AND ends_at > ?
		ORDER BY created_at DESC, ends_at DESC
		LIMIT 1`
	if lock && r.driver != "sqlite" {
		query += ` FOR UPDATE`
	}
	return query
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*subscription.Subscription, error) {
	var s subscription.Subscription
	var lastReset, startedAt, endsAt, createdAt, updatedAt int64
	var sessionID sql.NullString

	err := row.Scan(
		&s.ID, &s.UserID, &s.PlanID, &s.Status, &s.QuotaUsed, &s.MonthlyQuota, &lastReset,
		&startedAt, &endsAt, &s.StripeCustomerID, &s.StripeSubscriptionID, &sessionID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastReset > 0 {
		t := time.Unix(lastReset, 0)
		s.LastQuotaReset = &t
	}
	if sessionID.Valid {
		s.StripeSessionID = sessionID.String
	}
	s.StartedAt = time.Unix(startedAt, 0)
	s.EndsAt = time.Unix(endsAt, 0)
	s.CreatedAt = time.Unix(createdAt, 0)
	s.UpdatedAt = time.Unix(updatedAt, 0)

	return &s, nil
}

func unixOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
