package repo

import (
	"context"
	"testing"
	"time"

	"github.com/pantryplan/ai-gateway/internal/domain"
)

func TestCreateAuditEntry_AssignsIDAndTimestamp(t *testing.T) {
	db := newTestDB(t)

	e := &domain.AuditEntry{
		UserID:  "u1",
		Action:  domain.ActionSuggestRecipes,
		Input:   "prompt",
		Success: true,
	}
	if err := CreateAuditEntry(context.Background(), db, e); err != nil {
		t.Fatalf("CreateAuditEntry error: %v", err)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("id/timestamp not assigned: %+v", e)
	}
}

func TestListAuditPage_MostRecentFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		e := &domain.AuditEntry{
			UserID:    "u1",
			Action:    domain.ActionSuggestRecipes,
			Input:     "p",
			Success:   true,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := CreateAuditEntry(ctx, db, e); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
	// Another user's entries must not leak in.
	_ = CreateAuditEntry(ctx, db, &domain.AuditEntry{
		UserID: "u2", Action: domain.ActionImportRecipe, Input: "x", Success: false,
	})

	total, err := CountAuditEntries(ctx, db, "u1")
	if err != nil || total != 5 {
		t.Fatalf("count = %d (%v), want 5", total, err)
	}

	page, err := ListAuditPage(ctx, db, "u1", 0, 3)
	if err != nil {
		t.Fatalf("ListAuditPage error: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected page of 3, got %d", len(page))
	}
	if !page[0].CreatedAt.After(page[1].CreatedAt) {
		t.Fatalf("entries not sorted most recent first")
	}

	rest, err := ListAuditPage(ctx, db, "u1", 3, 3)
	if err != nil || len(rest) != 2 {
		t.Fatalf("second page: len=%d err=%v", len(rest), err)
	}
}
