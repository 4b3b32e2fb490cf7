// Package services defines the business logic of the AI gateway: plan and
// quota gating, the cached single-flight model pipeline, and the audit sink.
// This file centralizes service-level error values so they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/pantryplan/ai-gateway/internal/domain"
)

// ErrStoreUnavailable wraps durable-store failures on quota/subscription
// paths. These are fatal for the specific operation: silently allowing
// unlimited usage when the ledger is down would defeat the quota's purpose.
var ErrStoreUnavailable = errors.New("durable store unavailable")

// FeatureNotAvailableError is the plan-gate denial: the user's current plan
// does not include the feature. It is a policy decision, not a bug.
type FeatureNotAvailableError struct {
	Feature domain.Feature
}

func (e *FeatureNotAvailableError) Error() string {
	return fmt.Sprintf("feature %q not available on current plan", e.Feature)
}

// QuotaExceededError is the rate-gate denial, carrying the current count and
// limit for client display.
type QuotaExceededError struct {
	Action  domain.Action
	Current int
	Limit   int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily quota exceeded for %s: %d/%d", e.Action, e.Current, e.Limit)
}
