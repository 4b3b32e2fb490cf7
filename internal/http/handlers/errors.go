// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// These symbolic constants give clients a stable, machine-readable error
// taxonomy that supplements human-readable messages. Codes are lowercase
// snake_case; generic codes mirror HTTP status semantics, domain-specific
// codes carry gateway pipeline outcomes that status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeFeatureNotAvailable = "feature_not_available"
	ErrCodeQuotaExceeded       = "quota_exceeded"
	ErrCodeInvalidModelOutput  = "invalid_model_output"
	ErrCodeEmptyModelResponse  = "empty_model_response"
	ErrCodeModelTimeout        = "model_timeout"
	ErrCodeModelFailed         = "model_failed"
	ErrCodeStoreUnavailable    = "store_unavailable"
)
