package offline

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pkgerrors "github.com/masad-stock/skillbridge-sub000/internal/pkg/errors"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

// BusinessRecordFilter narrows List; zero values mean "no constraint".
type BusinessRecordFilter struct {
	Type      string
	StartDate time.Time
	EndDate   time.Time
}

type BusinessRepo interface {
	Save(ctx context.Context, tx *gorm.DB, record *types.BusinessRecord) error
	Get(ctx context.Context, tx *gorm.DB, id string) (*types.BusinessRecord, error)
	List(ctx context.Context, tx *gorm.DB, filter BusinessRecordFilter) ([]*types.BusinessRecord, error)
	MarkSynced(ctx context.Context, tx *gorm.DB, id string) error
	Clear(ctx context.Context, tx *gorm.DB) error
}

type businessRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBusinessRepo(db *gorm.DB, baseLog *logger.Logger) BusinessRepo {
	repoLog := baseLog.With("repo", "BusinessRepo")
	return &businessRepo{db: db, log: repoLog}
}

func (r *businessRepo) Save(ctx context.Context, tx *gorm.DB, record *types.BusinessRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if record == nil || record.ID == "" {
		return pkgerrors.ErrInvalidArgument
	}
	if record.Date.IsZero() {
		record.Date = time.Now().UTC()
	}
	if record.SyncStatus == "" {
		record.SyncStatus = types.SyncStatusPending
	}

	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(record).Error; err != nil {
		return err
	}
	return nil
}

func (r *businessRepo) Get(ctx context.Context, tx *gorm.DB, id string) (*types.BusinessRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var record types.BusinessRecord
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *businessRepo) List(ctx context.Context, tx *gorm.DB, filter BusinessRecordFilter) ([]*types.BusinessRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).
		Model(&types.BusinessRecord{}).
		Order("date ASC")
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if !filter.StartDate.IsZero() {
		q = q.Where("date >= ?", filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		q = q.Where("date <= ?", filter.EndDate)
	}

	var results []*types.BusinessRecord
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *businessRepo) MarkSynced(ctx context.Context, tx *gorm.DB, id string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.BusinessRecord{}).
		Where("id = ?", id).
		Update("sync_status", types.SyncStatusSynced).Error
}

func (r *businessRepo) Clear(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("1 = 1").
		Delete(&types.BusinessRecord{}).Error
}
