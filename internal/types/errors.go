package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// Handlers and services MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidField  ErrorCode = "validation_invalid_field"
	ErrCodeValidationInvalidAmount ErrorCode = "validation_invalid_amount"
	ErrCodeValidationBodyTooLarge  ErrorCode = "validation_body_too_large"

	// Pricing configuration states. These are resolved locally into service
	// statuses for the UI and are never surfaced as error toasts, but they
	// still need codes for the cases where an API caller forces a purchase
	// against a broken path.
	ErrCodePricingNotConfigured ErrorCode = "pricing_not_configured"
	ErrCodePricingInvalidConfig ErrorCode = "pricing_invalid_configuration"

	// Purchase / settlement
	ErrCodePurchaseInvalidAmount  ErrorCode = "purchase_invalid_amount"
	ErrCodePurchaseServiceBlocked ErrorCode = "purchase_service_blocked"
	ErrCodeGatewaySessionFailure  ErrorCode = "gateway_session_failure"
	ErrCodeVendingFailure         ErrorCode = "vending_failure"
	ErrCodeSequencerDegraded      ErrorCode = "sequencer_degraded"

	// Signature verification (401)
	ErrCodeAuthSignatureMissing ErrorCode = "auth_signature_missing"
	ErrCodeAuthSignatureInvalid ErrorCode = "auth_signature_invalid"

	// Not Found (404)
	ErrCodeNotFoundCustomer ErrorCode = "not_found_customer"
	ErrCodeNotFoundService  ErrorCode = "not_found_service"
	ErrCodeNotFoundOrder    ErrorCode = "not_found_order"
	ErrCodeNotFoundVendor   ErrorCode = "not_found_vendor"

	// Conflict (409)
	ErrCodeConflictOrderState     ErrorCode = "conflict_order_state"
	ErrCodeConflictPointsBalance  ErrorCode = "conflict_points_balance"
	ErrCodeConflictConcurrent     ErrorCode = "conflict_concurrent_modification"
	ErrCodeConflictVendorHandling ErrorCode = "conflict_vendor_not_authorized"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamGateway     ErrorCode = "upstream_gateway_unavailable"
	ErrCodeUpstreamVending     ErrorCode = "upstream_vending_unavailable"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case c == ErrCodePricingNotConfigured:
		return http.StatusUnprocessableEntity // 422
	case c == ErrCodePricingInvalidConfig, c == ErrCodePurchaseServiceBlocked:
		return http.StatusUnprocessableEntity // 422
	case c == ErrCodePurchaseInvalidAmount:
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case c == ErrCodeGatewaySessionFailure, c == ErrCodeVendingFailure:
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the
// platform. All domain and handler errors should be expressed as AppError to
// enable consistent error formatting, HTTP status mapping, and error chain
// support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
// This is useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error. This is the standard constructor for domain
// errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
