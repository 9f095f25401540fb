package client

import (
	"context"
	"net/http"
)

// BillingService handles plan and subscription API calls
type BillingService struct {
	client *Client
}

// Billing returns the billing service
func (c *Client) Billing() *BillingService {
	return &BillingService{client: c}
}

// Plans lists the plan catalog
func (s *BillingService) Plans(ctx context.Context) ([]Plan, error) {
	var plans []Plan
	if err := s.client.doEnvelope(ctx, http.MethodGet, "/api/v1/billing/plans", nil, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// Subscription returns the caller's active subscription
func (s *BillingService) Subscription(ctx context.Context) (*Subscription, error) {
	var sub Subscription
	if err := s.client.doEnvelope(ctx, http.MethodGet, "/api/v1/billing/subscription", nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Checkout starts a hosted checkout for a plan
func (s *BillingService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	var sess CheckoutSession
	if err := s.client.doEnvelope(ctx, http.MethodPost, "/api/v1/billing/checkout", req, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Cancel cancels the caller's active subscription
func (s *BillingService) Cancel(ctx context.Context) (*Subscription, error) {
	var sub Subscription
	if err := s.client.doEnvelope(ctx, http.MethodPost, "/api/v1/billing/cancel", nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}
