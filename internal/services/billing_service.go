package services

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/pratik-mahalle/muscleai/internal/config"
	"github.com/pratik-mahalle/muscleai/internal/domain/subscription"
	"github.com/pratik-mahalle/muscleai/internal/pkg/errors"
	"github.com/pratik-mahalle/muscleai/internal/pkg/logger"
	"github.com/pratik-mahalle/muscleai/internal/pkg/metrics"
)

// Stripe events the billing service acts on
const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
	EventInvoicePaid            = "invoice.paid"
	EventSubscriptionDeleted    = "customer.subscription.deleted"
)

// CheckoutRequest starts a Stripe Checkout for a plan
type CheckoutRequest struct {
	UserID     string
	PlanID     string
	Email      string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the created session the client redirects to
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// BillingService connects Stripe Checkout and webhooks to the subscription ledger
type BillingService struct {
	subs       subscription.Service
	cfg        config.BillingConfig
	logger     *logger.Logger
	newSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewBillingService creates a new billing service
func NewBillingService(subs subscription.Service, cfg config.BillingConfig, log *logger.Logger) *BillingService {
	if cfg.StripeSecretKey != "" {
		stripe.Key = cfg.StripeSecretKey
	}
	return &BillingService{
		subs:       subs,
		cfg:        cfg,
		logger:     log,
		newSession: session.New,
	}
}

// WithSessionCreator replaces the Stripe session call. Used by tests.
func (s *BillingService) WithSessionCreator(fn func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)) *BillingService {
	s.newSession = fn
	return s
}

// Plans returns the plan catalog
func (s *BillingService) Plans() []subscription.Plan {
	return s.subs.Plans()
}

// Current returns the caller's active subscription
func (s *BillingService) Current(ctx context.Context, userID string) (*subscription.Subscription, error) {
	return s.subs.Current(ctx, userID)
}

// Cancel cancels the caller's subscription locally. The Stripe side is
// cancelled through the customer portal and confirmed by webhook.
func (s *BillingService) Cancel(ctx context.Context, userID string) (*subscription.Subscription, error) {
	return s.subs.Cancel(ctx, userID)
}

// CreateCheckout creates a subscription-mode Checkout Session for the plan
func (s *BillingService) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if s.cfg.StripeSecretKey == "" {
		return nil, errors.ServiceUnavailable("Payments are not configured")
	}

	plan, ok := s.subs.Plan(req.PlanID)
	if !ok {
		return nil, errors.BadRequest("Unknown plan: " + req.PlanID)
	}
	if plan.StripePriceID == "" {
		return nil, errors.ServiceUnavailable("Plan " + plan.ID + " is not available for purchase")
	}

	successURL := firstNonEmpty(req.SuccessURL, s.cfg.SuccessURL)
	cancelURL := firstNonEmpty(req.CancelURL, s.cfg.CancelURL)
	if successURL == "" || cancelURL == "" {
		return nil, errors.BadRequest("successUrl and cancelUrl are required")
	}

	metadata := map[string]string{
		"user_id": req.UserID,
		"plan_id": plan.ID,
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(req.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Context = ctx

	sess, err := s.newSession(params)
	if err != nil {
		var stripeErr *stripe.Error
		if stderrors.As(err, &stripeErr) {
			s.logger.WithFields(map[string]interface{}{
				"type":  stripeErr.Type,
				"code":  stripeErr.Code,
				"param": stripeErr.Param,
			}).ErrorWithErr(err, "Stripe rejected checkout session")
		}
		return nil, errors.ProviderAPIError("stripe", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":    req.UserID,
		"plan_id":    plan.ID,
		"session_id": sess.ID,
	}).Info("Checkout session created")

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// HandleWebhook verifies and applies a Stripe event
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.cfg.StripeWebhookSecret == "" {
		return errors.ServiceUnavailable("Payments are not configured")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		metrics.RecordWebhookEvent("unknown", "invalid_signature")
		return errors.BadRequest("Invalid webhook signature")
	}

	eventType := string(event.Type)
	log := s.logger.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": eventType,
	})

	switch eventType {
	case EventCheckoutCompleted, EventCheckoutAsyncSucceeded:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			metrics.RecordWebhookEvent(eventType, "invalid_payload")
			return errors.BadRequest("Invalid checkout session payload")
		}
		err = s.checkoutCompleted(ctx, &sess)

	case EventInvoicePaid:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			metrics.RecordWebhookEvent(eventType, "invalid_payload")
			return errors.BadRequest("Invalid invoice payload")
		}
		if inv.Subscription != nil && inv.Subscription.ID != "" {
			err = s.subs.RenewFromInvoice(ctx, inv.Subscription.ID)
		}

	case EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			metrics.RecordWebhookEvent(eventType, "invalid_payload")
			return errors.BadRequest("Invalid subscription payload")
		}
		err = s.subs.CancelByStripeID(ctx, sub.ID)

	default:
		metrics.RecordWebhookEvent(eventType, "ignored")
		log.Debug("Ignoring Stripe event")
		return nil
	}

	if err != nil {
		metrics.RecordWebhookEvent(eventType, "error")
		log.ErrorWithErr(err, "Failed to apply Stripe event")
		return err
	}

	metrics.RecordWebhookEvent(eventType, "processed")
	log.Info("Stripe event processed")
	return nil
}

func (s *BillingService) checkoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		s.logger.WithFields(map[string]interface{}{
			"session_id":     sess.ID,
			"payment_status": sess.PaymentStatus,
		}).Info("Checkout completed without payment, waiting for " + EventCheckoutAsyncSucceeded)
		return nil
	}

	evt := subscription.PaymentEvent{
		SessionID: sess.ID,
		UserID:    firstNonEmpty(sess.Metadata["user_id"], sess.ClientReferenceID),
		PlanID:    sess.Metadata["plan_id"],
	}
	if sess.Customer != nil {
		evt.StripeCustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		evt.StripeSubscriptionID = sess.Subscription.ID
	}

	_, err := s.subs.ActivateFromPayment(ctx, evt)
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
