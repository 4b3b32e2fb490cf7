// Package services – AuditService
//
// Append-only record of gateway invocations. Writing an audit row is
// best-effort: a failure here is logged and swallowed so it can never fail
// the user-facing call it describes.
package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/rs/zerolog/log"

	"github.com/pantryplan/ai-gateway/internal/domain"
	"github.com/pantryplan/ai-gateway/internal/repo"
)

// AuditService owns the audit log.
type AuditService struct {
	DB *gorm.DB
}

// AuditPage is one page of a user's audit history, most recent first.
type AuditPage struct {
	Entries  []domain.AuditEntry `json:"entries"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// Record appends one entry. Errors are logged, never returned.
func (s *AuditService) Record(ctx context.Context, e *domain.AuditEntry) {
	if err := repo.CreateAuditEntry(ctx, s.DB, e); err != nil {
		log.Error().
			Err(err).
			Str("user_id", e.UserID).
			Str("action", string(e.Action)).
			Msg("audit write failed")
	}
}

// List returns one page of a user's audit entries. page starts at 1;
// out-of-range values are clamped.
func (s *AuditService) List(ctx context.Context, userID string, page, pageSize int) (*AuditPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	total, err := repo.CountAuditEntries(ctx, s.DB, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	entries, err := repo.ListAuditPage(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return &AuditPage{
		Entries:  entries,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}
