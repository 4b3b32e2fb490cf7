// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Subscription model and the trial-expiry sweep.
//
// Error semantics:
//   - When a subscription is not found, functions return ErrNotFound
//     (alias of gorm.ErrRecordNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pantryplan/ai-gateway/internal/domain"
)

// GetSubscriptionByUser fetches a user's subscription with its plan
// preloaded, or ErrNotFound if the user has none yet.
func GetSubscriptionByUser(ctx context.Context, db *gorm.DB, userID string) (*domain.Subscription, error) {
	var s domain.Subscription
	err := db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ?", userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateTrialSubscription inserts a trial subscription on the given plan,
// ending at now+trialDuration. The subscription ID is a random UUID.
func CreateTrialSubscription(ctx context.Context, db *gorm.DB, userID, planID string, now time.Time, trialDuration time.Duration) (*domain.Subscription, error) {
	ends := now.Add(trialDuration)
	s := &domain.Subscription{
		ID:                 uuid.NewString(),
		UserID:             userID,
		PlanID:             planID,
		Status:             domain.StatusTrial,
		TrialEndsAt:        &ends,
		CurrentPeriodStart: now,
		CreatedAt:          now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// SweepExpiredTrials demotes every trial whose trial_ends_at has passed:
// status becomes expired, the plan is reassigned to freePlanID, and the
// current period end is cleared. A single UPDATE keeps the sweep atomic and
// idempotent: rows already expired/active/cancelled never match the WHERE
// clause, so running it twice is a no-op the second time.
func SweepExpiredTrials(ctx context.Context, db *gorm.DB, freePlanID string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("status = ? AND trial_ends_at < ?", domain.StatusTrial, now).
		Updates(map[string]any{
			"status":             domain.StatusExpired,
			"plan_id":            freePlanID,
			"current_period_end": nil,
			"updated_at":         now,
		})
	return res.RowsAffected, res.Error
}
