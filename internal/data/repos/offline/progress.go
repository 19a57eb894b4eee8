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

type ProgressRepo interface {
	Save(ctx context.Context, tx *gorm.DB, record *types.ProgressRecord) error
	Get(ctx context.Context, tx *gorm.DB, learnerID string) (*types.ProgressRecord, error)
	ListBySyncStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.ProgressRecord, error)
	MarkSynced(ctx context.Context, tx *gorm.DB, learnerID string) error
	Clear(ctx context.Context, tx *gorm.DB) error
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	repoLog := baseLog.With("repo", "ProgressRepo")
	return &progressRepo{db: db, log: repoLog}
}

// Save upserts by learner id. Every local write re-stamps LastUpdated and
// flags the record pending; only a successful sync flips it back.
func (r *progressRepo) Save(ctx context.Context, tx *gorm.DB, record *types.ProgressRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if record == nil || record.LearnerID == "" {
		return pkgerrors.ErrInvalidArgument
	}

	record.LastUpdated = time.Now().UTC()
	record.SyncStatus = types.SyncStatusPending

	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "learner_id"}},
			UpdateAll: true,
		}).
		Create(record).Error; err != nil {
		return err
	}
	return nil
}

func (r *progressRepo) Get(ctx context.Context, tx *gorm.DB, learnerID string) (*types.ProgressRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var record types.ProgressRecord
	if err := transaction.WithContext(ctx).
		Where("learner_id = ?", learnerID).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *progressRepo) ListBySyncStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.ProgressRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ProgressRecord
	if err := transaction.WithContext(ctx).
		Where("sync_status = ?", status).
		Order("last_updated ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *progressRepo) MarkSynced(ctx context.Context, tx *gorm.DB, learnerID string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.ProgressRecord{}).
		Where("learner_id = ?", learnerID).
		Update("sync_status", types.SyncStatusSynced).Error
}

func (r *progressRepo) Clear(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("1 = 1").
		Delete(&types.ProgressRecord{}).Error
}
