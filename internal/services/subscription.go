// Package services – SubscriptionService
//
// Subscription lifecycle: lazy trial creation on first AI-gated use, plan
// lookups for gating, and the periodic trial-expiry sweep.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pantryplan/ai-gateway/internal/clock"
	"github.com/pantryplan/ai-gateway/internal/domain"
	"github.com/pantryplan/ai-gateway/internal/repo"
)

// SubscriptionService owns subscription rows and the plan catalog view.
type SubscriptionService struct {
	DB    *gorm.DB
	Clock clock.Clock

	// TrialDuration is how long a newly created trial runs.
	TrialDuration time.Duration
	// TrialPlan is the tier new trials start on.
	TrialPlan domain.PlanType
}

// GetOrCreate returns the user's subscription, creating a trial on the
// configured tier when the user has none. The returned subscription always
// has its Plan preloaded.
//
// Concurrent first calls for the same user are resolved by the unique index
// on user_id: the loser of the insert race re-reads the winner's row.
func (s *SubscriptionService) GetOrCreate(ctx context.Context, userID string) (*domain.Subscription, error) {
	tr := otel.Tracer("services/SubscriptionService")
	ctx, span := tr.Start(ctx, "GetOrCreate",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	sub, err := repo.GetSubscriptionByUser(ctx, s.DB, userID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	plan, err := repo.GetPlanByType(ctx, s.DB, s.TrialPlan)
	if err != nil {
		return nil, fmt.Errorf("%w: trial plan %q: %v", ErrStoreUnavailable, s.TrialPlan, err)
	}

	now := s.Clock.Now().UTC()
	created, err := repo.CreateTrialSubscription(ctx, s.DB, userID, plan.ID, now, s.TrialDuration)
	if err != nil {
		// Likely lost an insert race on user_id; the winner's row is
		// authoritative either way.
		if sub, rerr := repo.GetSubscriptionByUser(ctx, s.DB, userID); rerr == nil {
			return sub, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	created.Plan = *plan

	log.Info().
		Str("user_id", userID).
		Str("plan", string(plan.Type)).
		Time("trial_ends_at", *created.TrialEndsAt).
		Msg("trial subscription created")
	span.SetAttributes(attribute.Bool("created", true))
	return created, nil
}

// Get returns the user's subscription with its plan, or repo.ErrNotFound.
func (s *SubscriptionService) Get(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := repo.GetSubscriptionByUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return sub, nil
}

// CheckFeature reports whether the user's plan enables the feature, lazily
// creating a trial subscription the same way GetOrCreate does.
func (s *SubscriptionService) CheckFeature(ctx context.Context, userID string, feature domain.Feature) (bool, error) {
	sub, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}
	return sub.Plan.FeatureEnabled(feature), nil
}

// SweepExpiredTrials demotes every trial past its end date to expired on the
// free plan and returns how many rows changed. Idempotent: a second run over
// the same state changes nothing.
func (s *SubscriptionService) SweepExpiredTrials(ctx context.Context) (int64, error) {
	tr := otel.Tracer("services/SubscriptionService")
	ctx, span := tr.Start(ctx, "SweepExpiredTrials")
	defer span.End()

	free, err := repo.GetPlanByType(ctx, s.DB, domain.PlanFree)
	if err != nil {
		return 0, fmt.Errorf("%w: free plan: %v", ErrStoreUnavailable, err)
	}

	n, err := repo.SweepExpiredTrials(ctx, s.DB, free.ID, s.Clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n > 0 {
		log.Info().Int64("expired", n).Msg("trial sweep demoted subscriptions")
	}
	span.SetAttributes(attribute.Int64("expired", n))
	return n, nil
}

// StartSweeper runs the trial sweep on a fixed interval until ctx is
// cancelled. Sweep errors are logged and the ticker keeps going; a transient
// DB failure must not kill the lifecycle loop.
func (s *SubscriptionService) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepExpiredTrials(ctx); err != nil {
					log.Error().Err(err).Msg("trial sweep failed")
				}
			}
		}
	}()
}
