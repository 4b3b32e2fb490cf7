// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the usage ledger: per-user,
// per-action, per-day counters with atomic check-and-increment semantics.
//
// Concurrency note: the increment is a single conditional UPDATE judged by
// RowsAffected, so two concurrent requests for the same (user, action, date)
// cannot both pass a limit of N at count N-1; the storage engine serializes
// the updates. Read-modify-write in application code would undercount
// denials under concurrent load; do not "simplify" this to a Get+Save.
package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pantryplan/ai-gateway/internal/domain"
)

// CheckAndIncrementUsage applies one unit of use against the daily counter
// for (userID, action, date). A limit of 0 means unlimited: the call is
// always allowed and the counter still increments for reporting.
//
// It returns whether the call is allowed and the counter value after the
// attempt (the pre-denial value when not allowed).
func CheckAndIncrementUsage(ctx context.Context, db *gorm.DB, userID string, action domain.Action, date string, limit int) (allowed bool, current int, err error) {
	// Lazily create today's row. ON CONFLICT DO NOTHING keeps this safe
	// under concurrent first-of-the-day requests.
	rec := domain.UsageRecord{
		ID:     uuid.NewString(),
		UserID: userID,
		Action: action,
		Date:   date,
		Count:  0,
	}
	err = db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "action"}, {Name: "date"}},
			DoNothing: true,
		}).
		Create(&rec).Error
	if err != nil {
		return false, 0, err
	}

	// Atomic conditional increment.
	q := db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("user_id = ? AND action = ? AND date = ?", userID, action, date)
	if limit > 0 {
		q = q.Where("count < ?", limit)
	}
	res := q.Update("count", gorm.Expr("count + 1"))
	if res.Error != nil {
		return false, 0, res.Error
	}
	allowed = res.RowsAffected > 0

	current, err = GetUsageCount(ctx, db, userID, action, date)
	if err != nil {
		return false, 0, err
	}
	return allowed, current, nil
}

// GetUsageCount returns today's counter for (userID, action, date), or 0
// when no record exists yet.
func GetUsageCount(ctx context.Context, db *gorm.DB, userID string, action domain.Action, date string) (int, error) {
	var rec domain.UsageRecord
	err := db.WithContext(ctx).
		Where("user_id = ? AND action = ? AND date = ?", userID, action, date).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Count, nil
}

// ListUsageForDate returns all of a user's counters for one calendar date.
func ListUsageForDate(ctx context.Context, db *gorm.DB, userID, date string) ([]domain.UsageRecord, error) {
	var out []domain.UsageRecord
	err := db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		Order("action asc").
		Find(&out).Error
	return out, err
}
