package subscription

import "time"

// QuotaPeriod is the length of one quota cycle. Resets are lazy: they happen
// on the first ledger access after the period has elapsed.
const QuotaPeriod = 30 * 24 * time.Hour

// Subscription statuses
const (
	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// Subscription is a user's paid plan together with its monthly usage counter
type Subscription struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id"`
	PlanID               string     `json:"plan_id"`
	Status               string     `json:"status"`
	QuotaUsed            int        `json:"quota_used"`
	MonthlyQuota         int        `json:"monthly_quota"`
	LastQuotaReset       *time.Time `json:"last_quota_reset,omitempty"`
	StartedAt            time.Time  `json:"started_at"`
	EndsAt               time.Time  `json:"ends_at"`
	StripeCustomerID     string     `json:"-"`
	StripeSubscriptionID string     `json:"-"`
	StripeSessionID      string     `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// QuotaStatus is the caller-facing view of the ledger
type QuotaStatus struct {
	Allowed   bool      `json:"allowed"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetDate"`
}

// Plan is an entry of the static plan catalog
type Plan struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	MonthlyQuota  int      `json:"monthly_quota"`
	PriceCents    int64    `json:"price_cents"`
	Currency      string   `json:"currency"`
	Interval      string   `json:"interval"`
	Features      []string `json:"features"`
	StripePriceID string   `json:"-"`
}

// PaymentEvent is a completed checkout as reported by the payment provider
type PaymentEvent struct {
	SessionID            string
	UserID               string
	PlanID               string
	StripeCustomerID     string
	StripeSubscriptionID string
}

// IsActive reports whether the subscription is active and not past its end date
func (s *Subscription) IsActive(now time.Time) bool {
	return s.Status == StatusActive && s.EndsAt.After(now)
}

// ResetIfElapsed zeroes the counter when no reset has been recorded or a full
// period has passed since the last one. It returns true when it changed anything.
func (s *Subscription) ResetIfElapsed(now time.Time) bool {
	if s.LastQuotaReset != nil && now.Sub(*s.LastQuotaReset) < QuotaPeriod {
		return false
	}
	reset := now
	s.QuotaUsed = 0
	s.LastQuotaReset = &reset
	return true
}

// NextReset returns when the current period ends
func (s *Subscription) NextReset(now time.Time) time.Time {
	if s.LastQuotaReset == nil {
		return now.Add(QuotaPeriod)
	}
	return s.LastQuotaReset.Add(QuotaPeriod)
}

// Consume applies the reset rule, then takes one unit if any remain.
// The returned bool reports whether the record was modified.
func (s *Subscription) Consume(now time.Time) (QuotaStatus, bool) {
	changed := s.ResetIfElapsed(now)
	if s.QuotaUsed >= s.MonthlyQuota {
		return s.status(false, now), changed
	}
	s.QuotaUsed++
	return s.status(true, now), true
}

// Release gives back one unit. It never drops below zero.
func (s *Subscription) Release() bool {
	if s.QuotaUsed == 0 {
		return false
	}
	s.QuotaUsed--
	return true
}

// Peek computes the status as if a reset had been applied, without touching s
func (s *Subscription) Peek(now time.Time) QuotaStatus {
	snapshot := *s
	snapshot.ResetIfElapsed(now)
	return snapshot.status(snapshot.QuotaUsed < snapshot.MonthlyQuota, now)
}

func (s *Subscription) status(allowed bool, now time.Time) QuotaStatus {
	remaining := s.MonthlyQuota - s.QuotaUsed
	if remaining < 0 {
		remaining = 0
	}
	return QuotaStatus{
		Allowed:   allowed,
		Used:      s.QuotaUsed,
		Limit:     s.MonthlyQuota,
		Remaining: remaining,
		ResetAt:   s.NextReset(now),
	}
}
