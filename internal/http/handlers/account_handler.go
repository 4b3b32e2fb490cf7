// Account endpoint handlers.
//
// This file exposes the read-side and admin endpoints:
//   - GET  /usage               (today's counters vs. plan limits)
//   - GET  /subscription        (current subscription and plan)
//   - GET  /plans               (plan catalog)
//   - GET  /audit               (paginated invocation history)
//   - POST /admin/sweep-trials  (run the trial-expiry sweep now)
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pantryplan/ai-gateway/internal/domain"
	"github.com/pantryplan/ai-gateway/internal/repo"
)

// SubscriptionResponse is the public view of a subscription.
type SubscriptionResponse struct {
	Status             domain.SubscriptionStatus `json:"status"`
	Plan               domain.Plan               `json:"plan"`
	TrialEndsAt        *time.Time                `json:"trial_ends_at,omitempty"`
	CurrentPeriodStart time.Time                 `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time                `json:"current_period_end,omitempty"`
}

// SweepResponse reports how many trials one sweep demoted.
type SweepResponse struct {
	Expired int64 `json:"expired"`
}

// atoiDefault parses s as an int, returning def on empty or invalid input.
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// GetUsage handles GET /usage. The subscription is created lazily here too,
// so a brand-new user sees their trial limits rather than a 404.
func (h *Handlers) GetUsage(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	sub, err := h.Subs.GetOrCreate(ctx, uid)
	if err != nil {
		failErr(c, err)
		return
	}
	summary, err := h.Quota.Summary(ctx, uid, sub.Plan)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, summary)
}

// GetSubscription handles GET /subscription.
func (h *Handlers) GetSubscription(c *gin.Context) {
	sub, err := h.Subs.GetOrCreate(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SubscriptionResponse{
		Status:             sub.Status,
		Plan:               sub.Plan,
		TrialEndsAt:        sub.TrialEndsAt,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
	})
}

// ListPlans handles GET /plans.
func (h *Handlers) ListPlans(c *gin.Context) {
	plans, err := repo.ListPlans(c.Request.Context(), h.Subs.DB)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"plans": plans})
}

// ListAudit handles GET /audit with ?page= and ?page_size= query params.
func (h *Handlers) ListAudit(c *gin.Context) {
	page := atoiDefault(c.Query("page"), 1)
	pageSize := atoiDefault(c.Query("page_size"), 20)

	result, err := h.Audit.List(c.Request.Context(), userID(c), page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

// SweepTrials handles POST /admin/sweep-trials: runs one sweep immediately.
// The periodic sweeper keeps running regardless; this exists for operations
// and tests.
func (h *Handlers) SweepTrials(c *gin.Context) {
	n, err := h.Subs.SweepExpiredTrials(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SweepResponse{Expired: n})
}
