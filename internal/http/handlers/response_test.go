package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/pantryplan/ai-gateway/internal/domain"
	"github.com/pantryplan/ai-gateway/internal/llm"
	"github.com/pantryplan/ai-gateway/internal/services"
)

func testCtx(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestFail_WritesEnvelope(t *testing.T) {
	c, w := testCtx(t)
	c.Writer.Header().Set("X-Request-ID", "rid-1")

	fail(c, http.StatusNotFound, ErrCodeNotFound, "missing")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{`"rid-1"`, `"not_found"`, `"missing"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("body %s missing %s", body, want)
		}
	}
}

func TestFailErr_Mapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&services.FeatureNotAvailableError{Feature: domain.FeatureSuggestRecipes}, http.StatusForbidden, ErrCodeFeatureNotAvailable},
		{&services.QuotaExceededError{Action: domain.ActionSuggestRecipes, Current: 5, Limit: 5}, http.StatusTooManyRequests, ErrCodeQuotaExceeded},
		{llm.ErrEmptyResponse, http.StatusBadGateway, ErrCodeEmptyModelResponse},
		{llm.ErrInvalidModelOutput, http.StatusBadGateway, ErrCodeInvalidModelOutput},
		{services.ErrStoreUnavailable, http.StatusServiceUnavailable, ErrCodeStoreUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, ErrCodeModelTimeout},
		{errors.New("boom"), http.StatusBadGateway, ErrCodeModelFailed},
	}
	for _, tc := range cases {
		c, w := testCtx(t)
		failErr(c, tc.err)
		if w.Code != tc.status {
			t.Errorf("%v: status = %d, want %d", tc.err, w.Code, tc.status)
		}
		if !strings.Contains(w.Body.String(), `"`+tc.code+`"`) {
			t.Errorf("%v: body %s missing code %s", tc.err, w.Body.String(), tc.code)
		}
	}
}

func TestFailErr_QuotaCarriesCounter(t *testing.T) {
	c, w := testCtx(t)
	failErr(c, &services.QuotaExceededError{Action: domain.ActionSuggestRecipes, Current: 5, Limit: 5})

	body := w.Body.String()
	for _, want := range []string{`"current":5`, `"limit":5`} {
		if !strings.Contains(body, want) {
			t.Fatalf("body %s missing %s", body, want)
		}
	}
}

func TestUserID_Fallbacks(t *testing.T) {
	// Context value wins.
	c, _ := testCtx(t)
	c.Set("userID", "ctx-user")
	if got := userID(c); got != "ctx-user" {
		t.Fatalf("userID = %q", got)
	}

	// Header next.
	c2, _ := testCtx(t)
	c2.Request.Header.Set("X-User-ID", " header-user ")
	if got := userID(c2); got != "header-user" {
		t.Fatalf("userID = %q", got)
	}

	// Demo fallback last.
	c3, _ := testCtx(t)
	if got := userID(c3); got != "demo-user" {
		t.Fatalf("userID = %q", got)
	}
}

func TestAtoiDefault(t *testing.T) {
	if atoiDefault("42", 1) != 42 || atoiDefault("", 7) != 7 || atoiDefault("x", 9) != 9 {
		t.Fatalf("atoiDefault misbehaves")
	}
}

func TestStreamErrCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&services.QuotaExceededError{}, ErrCodeQuotaExceeded},
		{&services.FeatureNotAvailableError{}, ErrCodeFeatureNotAvailable},
		{llm.ErrEmptyResponse, ErrCodeEmptyModelResponse},
		{llm.ErrInvalidModelOutput, ErrCodeInvalidModelOutput},
		{services.ErrStoreUnavailable, ErrCodeStoreUnavailable},
		{errors.New("boom"), ErrCodeModelFailed},
	}
	for _, tc := range cases {
		if got := streamErrCode(tc.err); got != tc.want {
			t.Errorf("streamErrCode(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
