package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with additional context
type AppError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	StatusCode int         `json:"-"`
	Internal   error       `json:"-"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Common error codes
const (
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeDatabase           = "DATABASE_ERROR"
	ErrCodeProviderAPI        = "PROVIDER_API_ERROR"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	// Analysis and quota codes
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeTooManyRequests      = "TOO_MANY_REQUESTS"
	ErrCodeQuotaExceeded        = "QUOTA_EXCEEDED"
	ErrCodeNoActiveSubscription = "NO_ACTIVE_SUBSCRIPTION"
	ErrCodeLedgerUnavailable    = "LEDGER_UNAVAILABLE"
	ErrCodeImageQualityTooLow   = "IMAGE_QUALITY_TOO_LOW"
	ErrCodeModelUnavailable     = "MODEL_UNAVAILABLE"
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with an AppError
func Wrap(err error, code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   err,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// As extracts an *AppError from an error chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an AppError with the given code
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// Common error constructors

// Internal creates an internal server error
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message, http.StatusInternalServerError)
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return New(ErrCodeBadRequest, message, http.StatusBadRequest)
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// ValidationError creates a validation error
func ValidationError(message string, details interface{}) *AppError {
	return New(ErrCodeValidation, message, http.StatusBadRequest).WithDetails(details)
}

// DatabaseError creates a database error
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, ErrCodeDatabase, message, http.StatusInternalServerError)
}

// ProviderAPIError creates an upstream API error
func ProviderAPIError(provider string, err error) *AppError {
	return Wrap(err, ErrCodeProviderAPI,
		fmt.Sprintf("Failed to communicate with %s API", provider),
		http.StatusBadGateway)
}

// RateLimited creates a rate limited error
func RateLimited(message string) *AppError {
	return New(ErrCodeRateLimited, message, http.StatusTooManyRequests)
}

// ServiceUnavailable creates a service unavailable error
func ServiceUnavailable(message string) *AppError {
	return New(ErrCodeServiceUnavailable, message, http.StatusServiceUnavailable)
}

// InvalidInput is returned when an upload is missing or malformed
func InvalidInput(message string) *AppError {
	return New(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

// TooManyRequests carries a retry hint in seconds
func TooManyRequests(retryAfterSeconds int) *AppError {
	return New(ErrCodeTooManyRequests, "Too many requests. Please try again later.", http.StatusTooManyRequests).
		WithDetails(map[string]interface{}{"retryAfter": retryAfterSeconds})
}

// QuotaExceeded is returned when the monthly analysis quota is used up.
// details is typically the caller's quota status.
func QuotaExceeded(details interface{}) *AppError {
	return New(ErrCodeQuotaExceeded, "Monthly analysis quota exceeded", http.StatusForbidden).
		WithDetails(details)
}

// NoActiveSubscription is returned when the caller has no active, unexpired subscription
func NoActiveSubscription() *AppError {
	return New(ErrCodeNoActiveSubscription, "An active subscription is required", http.StatusForbidden)
}

// LedgerUnavailable wraps a quota persistence failure
func LedgerUnavailable(err error) *AppError {
	return Wrap(err, ErrCodeLedgerUnavailable, "Quota service unavailable", http.StatusServiceUnavailable)
}

// ImageQualityTooLow is returned when the model reports an unusable photo
func ImageQualityTooLow() *AppError {
	return New(ErrCodeImageQualityTooLow,
		"Image quality is too low for analysis. Please upload a clearer, well-lit photo.",
		http.StatusBadRequest)
}

// ModelUnavailable is returned when every model attempt failed
func ModelUnavailable(err error) *AppError {
	return Wrap(err, ErrCodeModelUnavailable, "Analysis service is temporarily unavailable", http.StatusInternalServerError)
}
