// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the append-only audit log of gateway
// invocations.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pantryplan/ai-gateway/internal/domain"
)

// CreateAuditEntry inserts one audit row. The entry ID and CreatedAt are
// assigned here when unset.
func CreateAuditEntry(ctx context.Context, db *gorm.DB, e *domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(e).Error
}

// CountAuditEntries returns the total audit rows for a user.
func CountAuditEntries(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.AuditEntry{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListAuditPage returns a page of a user's audit entries, most recent first.
// The caller computes offset and limit (e.g., (page-1)*pageSize).
func ListAuditPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
