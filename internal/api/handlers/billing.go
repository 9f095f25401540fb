package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pratik-mahalle/muscleai/internal/api/dto"
	"github.com/pratik-mahalle/muscleai/internal/api/middleware"
	"github.com/pratik-mahalle/muscleai/internal/pkg/errors"
	"github.com/pratik-mahalle/muscleai/internal/pkg/logger"
	"github.com/pratik-mahalle/muscleai/internal/pkg/utils"
	"github.com/pratik-mahalle/muscleai/internal/pkg/validator"
	"github.com/pratik-mahalle/muscleai/internal/services"
)

// maxWebhookBytes bounds a Stripe event body
const maxWebhookBytes = 64 << 10

// BillingHandler handles billing and subscription related API endpoints
type BillingHandler struct {
	billing   Billing
	logger    *logger.Logger
	validator *validator.Validator
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(billing Billing, log *logger.Logger, val *validator.Validator) *BillingHandler {
	return &BillingHandler{
		billing:   billing,
		logger:    log,
		validator: val,
	}
}

// ListPlans returns available subscription plans
// @Summary List subscription plans
// @Description Get a list of available subscription plans. The caller's plan is flagged when authenticated.
// @Tags Billing
// @Produce json
// @Success 200 {array} dto.PlanDTO "List of plans"
// @Router /billing/plans [get]
func (h *BillingHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	var currentPlan string
	if userID, ok := middleware.GetUserID(r); ok {
		if sub, err := h.billing.Current(r.Context(), userID); err == nil {
			currentPlan = sub.PlanID
		}
	}

	catalog := h.billing.Plans()
	plans := make([]dto.PlanDTO, 0, len(catalog))
	for _, p := range catalog {
		plans = append(plans, dto.PlanFromDomain(p, currentPlan))
	}

	utils.WriteSuccess(w, http.StatusOK, plans)
}

// GetSubscription returns the caller's active subscription
// @Summary Get subscription
// @Description Get the caller's active subscription and its quota
// @Tags Billing
// @Produce json
// @Success 200 {object} dto.SubscriptionDTO "Subscription"
// @Failure 403 {object} utils.ErrorResponse "No active subscription"
// @Security BearerAuth
// @Router /billing/subscription [get]
func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	sub, err := h.billing.Current(r.Context(), userID)
	if err != nil {
		writeError(w, err, h.logger, "Failed to load subscription")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.SubscriptionFromDomain(sub, time.Now()))
}

// CreateCheckoutSession creates a checkout session for a plan
// @Summary Create checkout session
// @Description Create a Stripe Checkout session for the selected plan
// @Tags Billing
// @Accept json
// @Produce json
// @Param request body dto.CheckoutRequest true "Plan to purchase"
// @Success 200 {object} dto.CheckoutResponse "Checkout session"
// @Failure 400 {object} utils.ErrorResponse "Invalid request"
// @Failure 503 {object} utils.ErrorResponse "Payments not configured"
// @Security BearerAuth
// @Router /billing/checkout [post]
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}

	if errs := h.validator.Validate(req); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return
	}

	email, _ := middleware.GetUserEmail(r)
	sess, err := h.billing.CreateCheckout(r.Context(), services.CheckoutRequest{
		UserID:     userID,
		PlanID:     req.PlanID,
		Email:      email,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		writeError(w, err, h.logger, "Failed to create checkout session")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.CheckoutResponse{ID: sess.ID, URL: sess.URL})
}

// CancelSubscription cancels the caller's subscription
// @Summary Cancel subscription
// @Description Cancel the caller's active subscription. Remaining quota is forfeited.
// @Tags Billing
// @Produce json
// @Success 200 {object} dto.SubscriptionDTO "Cancelled subscription"
// @Failure 403 {object} utils.ErrorResponse "No active subscription"
// @Security BearerAuth
// @Router /billing/cancel [post]
func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	sub, err := h.billing.Cancel(r.Context(), userID)
	if err != nil {
		writeError(w, err, h.logger, "Failed to cancel subscription")
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, "Subscription cancelled", dto.SubscriptionFromDomain(sub, time.Now()))
}

// StripeWebhook applies a signed Stripe event
// @Summary Stripe webhook
// @Description Receives Stripe events. The Stripe-Signature header is verified against the signing secret.
// @Tags Billing
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool "Event received"
// @Failure 400 {object} utils.ErrorResponse "Invalid signature or payload"
// @Router /webhooks/stripe [post]
func (h *BillingHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		utils.WriteError(w, errors.BadRequest("Could not read webhook body"))
		return
	}

	if err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, err, h.logger, "Failed to handle Stripe webhook")
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
