// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all
// endpoints: a structured error envelope, consistent JSON serialization, and
// the mapping from service-layer errors to HTTP responses.
//
// Conventions:
//   - All error responses return an ErrorResponse with a stable `code`.
//   - `fail()` centralizes error logging and formatting; 5xx responses are
//     logged with request context.
//   - `failErr()` translates service/pipeline errors into status+code pairs
//     so every handler maps errors identically.
//
// Example error response:
//
//	HTTP/1.1 429 Too Many Requests
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "quota_exceeded",
//	  "message": "daily quota exceeded for suggest_recipes: 5/5"
//	}
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pantryplan/ai-gateway/internal/http/middleware"
	"github.com/pantryplan/ai-gateway/internal/llm"
	"github.com/pantryplan/ai-gateway/internal/repo"
	"github.com/pantryplan/ai-gateway/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code"`
	// Human-readable message (safe to show to users)
	Message string `json:"message"`
	// Quota denials carry today's counter and the plan limit (0 = unlimited)
	Current *int `json:"current,omitempty"`
	Limit   *int `json:"limit,omitempty"`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(), used by router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps a service-layer error onto the HTTP taxonomy. Every handler
// funnels pipeline errors through here so status/code pairs stay consistent.
func failErr(c *gin.Context, err error) {
	var feature *services.FeatureNotAvailableError
	var quota *services.QuotaExceededError

	switch {
	case errors.As(err, &feature):
		fail(c, http.StatusForbidden, ErrCodeFeatureNotAvailable, feature.Error())
	case errors.As(err, &quota):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
			RequestID: c.Writer.Header().Get("X-Request-ID"),
			Code:      ErrCodeQuotaExceeded,
			Message:   quota.Error(),
			Current:   &quota.Current,
			Limit:     &quota.Limit,
		})
	case errors.Is(err, llm.ErrEmptyResponse):
		fail(c, http.StatusBadGateway, ErrCodeEmptyModelResponse, "model returned an empty response")
	case errors.Is(err, llm.ErrInvalidModelOutput):
		fail(c, http.StatusBadGateway, ErrCodeInvalidModelOutput, "model returned invalid structured output")
	case errors.Is(err, services.ErrStoreUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "storage temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusGatewayTimeout, ErrCodeModelTimeout, "model call timed out")
	case errors.Is(err, repo.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "resource not found")
	default:
		fail(c, http.StatusBadGateway, ErrCodeModelFailed, err.Error())
	}
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
