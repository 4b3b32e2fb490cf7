package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pantryplan/ai-gateway/internal/domain"
)

func TestCreateTrialSubscription_SetsLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := SeedPlans(ctx, db, DefaultPlans()); err != nil {
		t.Fatalf("seed plans: %v", err)
	}
	pro, err := GetPlanByType(ctx, db, domain.PlanPro)
	if err != nil {
		t.Fatalf("pro plan: %v", err)
	}

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	sub, err := CreateTrialSubscription(ctx, db, "u1", pro.ID, now, 14*24*time.Hour)
	if err != nil {
		t.Fatalf("CreateTrialSubscription error: %v", err)
	}
	if sub.Status != domain.StatusTrial {
		t.Fatalf("status = %s, want trial", sub.Status)
	}
	if sub.TrialEndsAt == nil || !sub.TrialEndsAt.Equal(now.Add(14*24*time.Hour)) {
		t.Fatalf("unexpected trial end: %v", sub.TrialEndsAt)
	}

	got, err := GetSubscriptionByUser(ctx, db, "u1")
	if err != nil {
		t.Fatalf("GetSubscriptionByUser error: %v", err)
	}
	if got.Plan.Type != domain.PlanPro {
		t.Fatalf("plan not preloaded: %+v", got.Plan)
	}
}

func TestGetSubscriptionByUser_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := GetSubscriptionByUser(context.Background(), db, "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSweepExpiredTrials(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := SeedPlans(ctx, db, DefaultPlans()); err != nil {
		t.Fatalf("seed plans: %v", err)
	}
	free, _ := GetPlanByType(ctx, db, domain.PlanFree)
	pro, _ := GetPlanByType(ctx, db, domain.PlanPro)

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// One expired trial, one still running, one active subscription.
	if _, err := CreateTrialSubscription(ctx, db, "expired-user", pro.ID, now.Add(-30*24*time.Hour), 14*24*time.Hour); err != nil {
		t.Fatalf("seed expired trial: %v", err)
	}
	if _, err := CreateTrialSubscription(ctx, db, "running-user", pro.ID, now.Add(-24*time.Hour), 14*24*time.Hour); err != nil {
		t.Fatalf("seed running trial: %v", err)
	}
	active, err := CreateTrialSubscription(ctx, db, "active-user", pro.ID, now.Add(-60*24*time.Hour), 14*24*time.Hour)
	if err != nil {
		t.Fatalf("seed active: %v", err)
	}
	if err := db.Model(&domain.Subscription{}).Where("id = ?", active.ID).
		Update("status", domain.StatusActive).Error; err != nil {
		t.Fatalf("promote active: %v", err)
	}

	n, err := SweepExpiredTrials(ctx, db, free.ID, now)
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 demotion, got %d", n)
	}

	demoted, _ := GetSubscriptionByUser(ctx, db, "expired-user")
	if demoted.Status != domain.StatusExpired || demoted.PlanID != free.ID {
		t.Fatalf("demoted row wrong: status=%s plan=%s", demoted.Status, demoted.PlanID)
	}
	running, _ := GetSubscriptionByUser(ctx, db, "running-user")
	if running.Status != domain.StatusTrial {
		t.Fatalf("running trial touched: %s", running.Status)
	}
	kept, _ := GetSubscriptionByUser(ctx, db, "active-user")
	if kept.Status != domain.StatusActive {
		t.Fatalf("active subscription touched: %s", kept.Status)
	}

	// Idempotent: a second sweep changes nothing.
	n, err = SweepExpiredTrials(ctx, db, free.ID, now)
	if err != nil || n != 0 {
		t.Fatalf("second sweep: n=%d err=%v", n, err)
	}
}
