// Package services – QuotaService
//
// Per-user, per-action daily counters gating quota-limited operations.
// "Today" is the UTC calendar date taken from the injected clock: quota
// resets at the midnight boundary, not 24 hours after first use.
package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pantryplan/ai-gateway/internal/clock"
	"github.com/pantryplan/ai-gateway/internal/domain"
	"github.com/pantryplan/ai-gateway/internal/repo"
)

// usageDateLayout is the ledger's calendar-date key format.
const usageDateLayout = "2006-01-02"

// QuotaService owns the usage ledger.
type QuotaService struct {
	DB    *gorm.DB
	Clock clock.Clock
}

// ActionUsage pairs today's count with the plan limit for one action.
type ActionUsage struct {
	Action domain.Action `json:"action"`
	Used   int           `json:"used"`
	Limit  int           `json:"limit"` // 0 = unlimited
}

// UsageSummary is the read-only view for presentation layers.
type UsageSummary struct {
	Date    string        `json:"date"`
	Actions []ActionUsage `json:"actions"`
}

// CheckAndIncrement applies one unit of use against today's counter.
// limit 0 means unlimited: always allowed, still counted for reporting.
// Once committed, the increment is never rolled back; a later pipeline
// failure still consumes quota.
func (s *QuotaService) CheckAndIncrement(ctx context.Context, userID string, action domain.Action, limit int) (allowed bool, current int, err error) {
	tr := otel.Tracer("services/QuotaService")
	ctx, span := tr.Start(ctx, "CheckAndIncrement",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("action", string(action)),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	date := s.Clock.Now().UTC().Format(usageDateLayout)
	allowed, current, err = repo.CheckAndIncrementUsage(ctx, s.DB, userID, action, date, limit)
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	span.SetAttributes(attribute.Bool("allowed", allowed), attribute.Int("current", current))
	return allowed, current, nil
}

// Summary returns today's counters for every known action alongside the
// plan's limits, including actions the user has not touched yet (count 0).
func (s *QuotaService) Summary(ctx context.Context, userID string, plan domain.Plan) (*UsageSummary, error) {
	tr := otel.Tracer("services/QuotaService")
	ctx, span := tr.Start(ctx, "Summary",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	date := s.Clock.Now().UTC().Format(usageDateLayout)
	records, err := repo.ListUsageForDate(ctx, s.DB, userID, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	counts := make(map[domain.Action]int, len(records))
	for _, r := range records {
		counts[r.Action] = r.Count
	}

	actions := []domain.Action{
		domain.ActionSuggestRecipes,
		domain.ActionCategorizeItems,
		domain.ActionImportRecipe,
	}
	out := &UsageSummary{Date: date}
	for _, a := range actions {
		out.Actions = append(out.Actions, ActionUsage{
			Action: a,
			Used:   counts[a],
			Limit:  plan.DailyLimit(a),
		})
	}
	return out, nil
}
