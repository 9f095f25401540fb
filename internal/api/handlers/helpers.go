package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/pratik-mahalle/muscleai/internal/api/dto"
	"github.com/pratik-mahalle/muscleai/internal/api/middleware"
	"github.com/pratik-mahalle/muscleai/internal/domain/subscription"
	"github.com/pratik-mahalle/muscleai/internal/pkg/errors"
	"github.com/pratik-mahalle/muscleai/internal/pkg/logger"
	"github.com/pratik-mahalle/muscleai/internal/pkg/utils"
	"github.com/pratik-mahalle/muscleai/internal/services"
)

// Analyzer runs an upload through the analysis pipeline
type Analyzer interface {
	Analyze(ctx context.Context, in services.AnalyzeInput) (*services.AnalysisResult, error)
}

// QuotaReader reads the caller's quota without consuming it
type QuotaReader interface {
	PeekQuota(ctx context.Context, userID string) (*subscription.QuotaStatus, error)
}

// Billing is the checkout and webhook surface of the billing service
type Billing interface {
	Plans() []subscription.Plan
	Current(ctx context.Context, userID string) (*subscription.Subscription, error)
	CreateCheckout(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error)
	Cancel(ctx context.Context, userID string) (*subscription.Subscription, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// toAppError keeps typed errors and hides everything else behind a 500
func toAppError(err error, log *logger.Logger, msg string) *errors.AppError {
	if appErr, ok := errors.As(err); ok {
		if appErr.StatusCode >= http.StatusInternalServerError {
			log.ErrorWithErr(err, msg)
		}
		return appErr
	}
	log.ErrorWithErr(err, msg)
	return errors.Internal(msg, err)
}

// writeError renders an error in the standard envelope
func writeError(w http.ResponseWriter, err error, log *logger.Logger, msg string) {
	utils.WriteError(w, toAppError(err, log, msg))
}

// writeClientError renders the flat error body used by the analyze and quota endpoints
func writeClientError(w http.ResponseWriter, err error, log *logger.Logger, msg string) {
	appErr := toAppError(err, log, msg)
	body := dto.NewAnalysisError(appErr)
	if body.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	}
	utils.WriteJSON(w, appErr.StatusCode, body)
}

// requireUser returns the caller's ID or writes a 401
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		utils.WriteError(w, errors.Unauthorized("Authentication required"))
		return "", false
	}
	return userID, true
}
