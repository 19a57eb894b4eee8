package offline

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/masad-stock/skillbridge-sub000/internal/pkg/errors"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

type QueueRepo interface {
	Enqueue(ctx context.Context, tx *gorm.DB, item *types.QueueItem) error
	Get(ctx context.Context, tx *gorm.DB, id uint64) (*types.QueueItem, error)
	// PendingDue returns pending items whose backoff window has elapsed,
	// ordered priority descending then timestamp ascending.
	PendingDue(ctx context.Context, tx *gorm.DB, now time.Time) ([]*types.QueueItem, error)
	Update(ctx context.Context, tx *gorm.DB, item *types.QueueItem) error
	Delete(ctx context.Context, tx *gorm.DB, id uint64) error
	// ResetFailed moves every failed item back to pending with a fresh retry
	// budget; returns the number of items reset.
	ResetFailed(ctx context.Context, tx *gorm.DB) (int64, error)
	All(ctx context.Context, tx *gorm.DB) ([]*types.QueueItem, error)
	CountByStatus(ctx context.Context, tx *gorm.DB) (map[string]int64, error)
	CountByType(ctx context.Context, tx *gorm.DB) (map[types.QueueItemType]int64, error)
}

type queueRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQueueRepo(db *gorm.DB, baseLog *logger.Logger) QueueRepo {
	repoLog := baseLog.With("repo", "QueueRepo")
	return &queueRepo{db: db, log: repoLog}
}

func (r *queueRepo) Enqueue(ctx context.Context, tx *gorm.DB, item *types.QueueItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if item == nil || item.Type == "" {
		return pkgerrors.ErrInvalidArgument
	}

	if err := transaction.WithContext(ctx).Create(item).Error; err != nil {
		return err
	}
	return nil
}

func (r *queueRepo) Get(ctx context.Context, tx *gorm.DB, id uint64) (*types.QueueItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var item types.QueueItem
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *queueRepo) PendingDue(ctx context.Context, tx *gorm.DB, now time.Time) ([]*types.QueueItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var items []*types.QueueItem
	if err := transaction.WithContext(ctx).
		Where("status = ?", types.QueueStatusPending).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", now).
		Order("priority DESC").
		Order("timestamp ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *queueRepo) Update(ctx context.Context, tx *gorm.DB, item *types.QueueItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if item == nil || item.ID == 0 {
		return pkgerrors.ErrInvalidArgument
	}
	return transaction.WithContext(ctx).Save(item).Error
}

func (r *queueRepo) Delete(ctx context.Context, tx *gorm.DB, id uint64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.QueueItem{}).Error
}

func (r *queueRepo) ResetFailed(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	result := transaction.WithContext(ctx).
		Model(&types.QueueItem{}).
		Where("status = ?", types.QueueStatusFailed).
		Updates(map[string]interface{}{
			"status":        types.QueueStatusPending,
			"retry_count":   0,
			"error":         "",
			"next_retry_at": nil,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *queueRepo) All(ctx context.Context, tx *gorm.DB) ([]*types.QueueItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var items []*types.QueueItem
	if err := transaction.WithContext(ctx).
		Order("priority DESC").
		Order("timestamp ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *queueRepo) CountByStatus(ctx context.Context, tx *gorm.DB) (map[string]int64, error) {
	return r.countBy(ctx, tx, "status")
}

func (r *queueRepo) CountByType(ctx context.Context, tx *gorm.DB) (map[types.QueueItemType]int64, error) {
	rows, err := r.countBy(ctx, tx, "type")
	if err != nil {
		return nil, err
	}
	out := make(map[types.QueueItemType]int64, len(rows))
	for k, v := range rows {
		out[types.QueueItemType(k)] = v
	}
	return out, nil
}

func (r *queueRepo) countBy(ctx context.Context, tx *gorm.DB, column string) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	type row struct {
		Key   string
		Count int64
	}
	var rows []row
	if err := transaction.WithContext(ctx).
		Model(&types.QueueItem{}).
		Select(column+" AS key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, rw := range rows {
		out[rw.Key] = rw.Count
	}
	return out, nil
}
