package client

import "time"

// Quota is the caller's usage for the current period
type Quota struct {
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetDate time.Time `json:"resetDate"`
}

// MuscleRating is one rated muscle group
type MuscleRating struct {
	Name      string   `json:"name"`
	Rating    int      `json:"rating"`
	Exercises []string `json:"exercises"`
}

// Report is the structured form of an analysis
type Report struct {
	Muscles    []MuscleRating `json:"muscles"`
	NotVisible []string       `json:"notVisible"`
	Strategy   string         `json:"strategy,omitempty"`
	Fallback   bool           `json:"fallback"`
}

// Analysis is the result of POST /api/v1/analyze
type Analysis struct {
	Analysis string  `json:"analysis"`
	Cached   bool    `json:"cached"`
	Report   *Report `json:"report"`
	Model    string  `json:"model,omitempty"`
	Attempts int     `json:"attempts,omitempty"`
	Quota    *Quota  `json:"quota,omitempty"`
}

// Plan is a subscription plan from the catalog
type Plan struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Price        float64  `json:"price"`
	Currency     string   `json:"currency"`
	Interval     string   `json:"interval"`
	MonthlyQuota int      `json:"monthlyQuota"`
	Features     []string `json:"features"`
	IsPopular    bool     `json:"isPopular"`
	IsCurrent    bool     `json:"isCurrent"`
}

// Subscription is the caller's subscription
type Subscription struct {
	ID        string    `json:"id"`
	PlanID    string    `json:"planId"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	EndsAt    time.Time `json:"endsAt"`
	Quota     *Quota    `json:"quota,omitempty"`
}

// CheckoutRequest starts a hosted checkout for a plan
type CheckoutRequest struct {
	PlanID     string `json:"planId"`
	SuccessURL string `json:"successUrl,omitempty"`
	CancelURL  string `json:"cancelUrl,omitempty"`
}

// CheckoutSession is the hosted checkout page to redirect to
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
