package dto

import (
	"time"

	"github.com/pratik-mahalle/muscleai/internal/domain/subscription"
)

// PlanDTO represents a subscription plan
type PlanDTO struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Price        float64  `json:"price"`
	Currency     string   `json:"currency"`
	Interval     string   `json:"interval"` // month
	MonthlyQuota int      `json:"monthlyQuota"`
	Features     []string `json:"features"`
	IsPopular    bool     `json:"isPopular"`
	IsCurrent    bool     `json:"isCurrent"`
}

// PlanFromDomain converts a catalog plan
func PlanFromDomain(p subscription.Plan, currentPlanID string) PlanDTO {
	return PlanDTO{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        float64(p.PriceCents) / 100,
		Currency:     p.Currency,
		Interval:     p.Interval,
		MonthlyQuota: p.MonthlyQuota,
		Features:     p.Features,
		IsPopular:    p.ID == "pro",
		IsCurrent:    p.ID == currentPlanID,
	}
}

// SubscriptionDTO represents the caller's subscription
type SubscriptionDTO struct {
	ID        string    `json:"id"`
	PlanID    string    `json:"planId"`
	Status    string    `json:"status"` // active, cancelled, expired
	StartedAt time.Time `json:"startedAt"`
	EndsAt    time.Time `json:"endsAt"`
	Quota     *QuotaDTO `json:"quota,omitempty"`
}

// SubscriptionFromDomain converts a subscription, attaching its quota as of now
func SubscriptionFromDomain(s *subscription.Subscription, now time.Time) SubscriptionDTO {
	out := SubscriptionDTO{
		ID:        s.ID,
		PlanID:    s.PlanID,
		Status:    s.Status,
		StartedAt: s.StartedAt,
		EndsAt:    s.EndsAt,
	}
	if s.Status == subscription.StatusActive {
		status := s.Peek(now)
		out.Quota = QuotaFromStatus(&status)
	}
	return out
}

// CheckoutRequest starts a Stripe Checkout for a plan
type CheckoutRequest struct {
	PlanID     string `json:"planId" validate:"required,plan_id"`
	SuccessURL string `json:"successUrl,omitempty" validate:"omitempty,url"`
	CancelURL  string `json:"cancelUrl,omitempty" validate:"omitempty,url"`
}

// CheckoutResponse carries the hosted checkout page
type CheckoutResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
