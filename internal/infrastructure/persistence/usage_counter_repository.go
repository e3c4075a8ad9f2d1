package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitekit/backend/internal/domain/billing"
	"github.com/sitekit/backend/internal/infrastructure/persistence/models"
)

// GormUsageCounterRepository implements billing.UsageCounterRepository using GORM
type GormUsageCounterRepository struct {
	db *gorm.DB
}

// NewGormUsageCounterRepository creates a new GormUsageCounterRepository
func NewGormUsageCounterRepository(db *gorm.DB) *GormUsageCounterRepository {
	return &GormUsageCounterRepository{db: db}
}

// GetCount returns the current count for a counter key. Counter rows are
// created lazily, so a missing row reads as zero usage.
func (r *GormUsageCounterRepository) GetCount(ctx context.Context, key billing.CounterKey) (int64, error) {
	var model models.UsageCounterModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND project_id = ? AND quota_key = ? AND period_end = ?",
			key.UserID, key.ProjectID, key.QuotaKey.String(), key.PeriodEnd).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return model.Count, nil
}

// Increment atomically adds one to the counter and returns the new count.
// The upsert creates the row at one on first use; on conflict the database
// serializes the `count + 1` update, so concurrent commits each observe a
// distinct post-increment value and none are lost.
func (r *GormUsageCounterRepository) Increment(ctx context.Context, key billing.CounterKey) (int64, error) {
	now := time.Now().UTC()
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO usage_counters (id, created_at, updated_at, user_id, project_id, quota_key, period_end, count)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT (user_id, project_id, quota_key, period_end)
		DO UPDATE SET count = usage_counters.count + 1, updated_at = ?
		RETURNING count`,
		uuid.New(), now, now, key.UserID, key.ProjectID, key.QuotaKey.String(), key.PeriodEnd, now,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// FindByUserAndPeriod returns all counters for a user in the given period
func (r *GormUsageCounterRepository) FindByUserAndPeriod(ctx context.Context, userID uuid.UUID, periodEnd time.Time) ([]*billing.UsageCounter, error) {
	var rows []models.UsageCounterModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND period_end = ?", userID, periodEnd).
		Order("quota_key, project_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counters := make([]*billing.UsageCounter, 0, len(rows))
	for i := range rows {
		counters = append(counters, rows[i].ToDomain())
	}
	return counters, nil
}

// Ensure GormUsageCounterRepository implements UsageCounterRepository
var _ billing.UsageCounterRepository = (*GormUsageCounterRepository)(nil)
