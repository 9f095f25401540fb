package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Error codes returned by the analysis endpoints
const (
	CodeQuotaExceeded        = "QUOTA_EXCEEDED"
	CodeNoActiveSubscription = "NO_ACTIVE_SUBSCRIPTION"
	CodeTooManyRequests      = "TOO_MANY_REQUESTS"
	CodeImageQualityTooLow   = "IMAGE_QUALITY_TOO_LOW"
	CodeModelUnavailable     = "MODEL_UNAVAILABLE"
	CodeLedgerUnavailable    = "LEDGER_UNAVAILABLE"
)

// APIError represents an error returned by the API
type APIError struct {
	StatusCode      int                    `json:"-"`
	Code            string                 `json:"code"`
	Message         string                 `json:"message"`
	Details         map[string]interface{} `json:"details,omitempty"`
	RequiresUpgrade bool                   `json:"requiresUpgrade,omitempty"`
	Quota           *Quota                 `json:"quota,omitempty"`
	RetryAfter      int                    `json:"retryAfter,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("API error: %s (status: %d)", e.Message, e.StatusCode)
}

// IsNotFound returns true if the error is a 404 not found error
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsUnauthorized returns true if the error is a 401 unauthorized error
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsForbidden returns true if the error is a 403 forbidden error
func (e *APIError) IsForbidden() bool {
	return e.StatusCode == http.StatusForbidden
}

// IsValidationError returns true if the error is a 400 validation error
func (e *APIError) IsValidationError() bool {
	return e.StatusCode == http.StatusBadRequest
}

// IsServerError returns true if the error is a 5xx server error
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsQuotaExceeded reports whether the monthly analysis quota is used up
func (e *APIError) IsQuotaExceeded() bool {
	return e.Code == CodeQuotaExceeded
}

// IsRateLimited reports whether the caller hit the per-user analysis rate limit
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// parseAPIError reads either error shape the server sends: the flat
// {"error": "...", "code": "..."} body of the analysis endpoints or the
// {"success": false, "error": {"code", "message"}} envelope of the rest.
func parseAPIError(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var raw struct {
		Error           json.RawMessage `json:"error"`
		Code            string          `json:"code"`
		RequiresUpgrade bool            `json:"requiresUpgrade"`
		Quota           *Quota          `json:"quota"`
		RetryAfter      int             `json:"retryAfter"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || len(raw.Error) == 0 {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		apiErr.RetryAfter = retryAfterHeader(resp)
		return apiErr
	}

	var msg string
	if err := json.Unmarshal(raw.Error, &msg); err == nil {
		apiErr.Message = msg
		apiErr.Code = raw.Code
		apiErr.RequiresUpgrade = raw.RequiresUpgrade
		apiErr.Quota = raw.Quota
		apiErr.RetryAfter = raw.RetryAfter
	} else {
		var detail struct {
			Code    string                 `json:"code"`
			Message string                 `json:"message"`
			Details map[string]interface{} `json:"details"`
		}
		if err := json.Unmarshal(raw.Error, &detail); err != nil {
			return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
		}
		apiErr.Code = detail.Code
		apiErr.Message = detail.Message
		apiErr.Details = detail.Details
	}

	if apiErr.RetryAfter == 0 {
		apiErr.RetryAfter = retryAfterHeader(resp)
	}
	return apiErr
}

func retryAfterHeader(resp *http.Response) int {
	n, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
