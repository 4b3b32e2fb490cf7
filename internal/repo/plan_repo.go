// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Plan
// catalog: idempotent seeding and read-only lookups.
//
// Plans are immutable at runtime. SeedPlans inserts missing tiers and leaves
// existing rows untouched, so it is safe to run on every startup.
package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pantryplan/ai-gateway/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service
// layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// DefaultPlans returns the built-in plan catalog.
//
// Limits follow the product tiers: free keeps AI features off, pro carries
// daily caps, family is uncapped (0 = unlimited).
func DefaultPlans() []domain.Plan {
	return []domain.Plan{
		{
			Type: domain.PlanFree,
		},
		{
			Type:                         domain.PlanPro,
			CanSuggestRecipes:            true,
			CanCategorizeItems:           true,
			CanImportRecipes:             true,
			MaxRecipeSuggestionsPerDay:   5,
			MaxItemCategorizationsPerDay: 50,
			MaxRecipeImportsPerDay:       10,
		},
		{
			Type:               domain.PlanFamily,
			CanSuggestRecipes:  true,
			CanCategorizeItems: true,
			CanImportRecipes:   true,
			// 0 = unlimited across the board
		},
	}
}

// SeedPlans inserts any missing plan rows. Existing rows are never updated;
// the catalog is append-only by tier.
func SeedPlans(ctx context.Context, db *gorm.DB, plans []domain.Plan) error {
	for i := range plans {
		p := plans[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		err := db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "type"}},
				DoNothing: true,
			}).
			Create(&p).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// GetPlanByType fetches a plan by tier. Returns ErrNotFound when the tier is
// not seeded.
func GetPlanByType(ctx context.Context, db *gorm.DB, t domain.PlanType) (*domain.Plan, error) {
	var p domain.Plan
	err := db.WithContext(ctx).Where("type = ?", t).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPlan fetches a plan by ID. Returns ErrNotFound when missing.
func GetPlan(ctx context.Context, db *gorm.DB, id string) (*domain.Plan, error) {
	var p domain.Plan
	err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlans returns the full catalog ordered by tier name.
func ListPlans(ctx context.Context, db *gorm.DB) ([]domain.Plan, error) {
	var out []domain.Plan
	err := db.WithContext(ctx).Order("type asc").Find(&out).Error
	return out, err
}
