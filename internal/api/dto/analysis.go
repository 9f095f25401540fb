package dto

import (
	"time"

	"github.com/pratik-mahalle/muscleai/internal/analyzer"
	"github.com/pratik-mahalle/muscleai/internal/domain/subscription"
	"github.com/pratik-mahalle/muscleai/internal/pkg/errors"
)

// QuotaDTO is the caller's usage for the current period
type QuotaDTO struct {
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetDate time.Time `json:"resetDate"`
}

// QuotaFromStatus converts a ledger status. Returns nil for nil input.
func QuotaFromStatus(s *subscription.QuotaStatus) *QuotaDTO {
	if s == nil {
		return nil
	}
	return &QuotaDTO{
		Used:      s.Used,
		Limit:     s.Limit,
		Remaining: s.Remaining,
		ResetDate: s.ResetAt,
	}
}

// AnalysisResponse is returned by POST /analyze
type AnalysisResponse struct {
	Analysis string           `json:"analysis"`
	Cached   bool             `json:"cached"`
	Report   *analyzer.Report `json:"report"`
	Model    string           `json:"model,omitempty"`
	Attempts int              `json:"attempts,omitempty"`
	Quota    *QuotaDTO        `json:"quota,omitempty"`
}

// AnalysisErrorResponse is the error body of POST /analyze
type AnalysisErrorResponse struct {
	Error           string    `json:"error"`
	Code            string    `json:"code"`
	RequiresUpgrade bool      `json:"requiresUpgrade,omitempty"`
	Quota           *QuotaDTO `json:"quota,omitempty"`
	RetryAfter      int       `json:"retryAfter,omitempty"`
}

// NewAnalysisError builds the error body from an AppError, lifting the
// quota and retry hints out of its details
func NewAnalysisError(err *errors.AppError) AnalysisErrorResponse {
	resp := AnalysisErrorResponse{
		Error: err.Message,
		Code:  err.Code,
	}

	switch d := err.Details.(type) {
	case *subscription.QuotaStatus:
		resp.Quota = QuotaFromStatus(d)
	case subscription.QuotaStatus:
		resp.Quota = QuotaFromStatus(&d)
	case map[string]interface{}:
		if v, ok := d["retryAfter"].(int); ok {
			resp.RetryAfter = v
		}
	}

	switch err.Code {
	case errors.ErrCodeQuotaExceeded, errors.ErrCodeNoActiveSubscription:
		resp.RequiresUpgrade = true
	}

	return resp
}
