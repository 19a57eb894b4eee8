package offline

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pkgerrors "github.com/masad-stock/skillbridge-sub000/internal/pkg/errors"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

type AssessmentRepo interface {
	Save(ctx context.Context, tx *gorm.DB, record *types.AssessmentRecord) error
	Get(ctx context.Context, tx *gorm.DB, id string) (*types.AssessmentRecord, error)
	// Latest returns the most recently completed assessment without scanning
	// the full table (completed_at is indexed).
	Latest(ctx context.Context, tx *gorm.DB) (*types.AssessmentRecord, error)
	// InProgress returns the learner's open assessment, if any: the record
	// that answer checkpoints are being written to.
	InProgress(ctx context.Context, tx *gorm.DB, learnerID string) (*types.AssessmentRecord, error)
	MarkSynced(ctx context.Context, tx *gorm.DB, id string) error
	Clear(ctx context.Context, tx *gorm.DB) error
}

type assessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentRepo {
	repoLog := baseLog.With("repo", "AssessmentRepo")
	return &assessmentRepo{db: db, log: repoLog}
}

func (r *assessmentRepo) Save(ctx context.Context, tx *gorm.DB, record *types.AssessmentRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if record == nil || record.ID == "" {
		return pkgerrors.ErrInvalidArgument
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

func (r *assessmentRepo) Get(ctx context.Context, tx *gorm.DB, id string) (*types.AssessmentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var record types.AssessmentRecord
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

func (r *assessmentRepo) Latest(ctx context.Context, tx *gorm.DB) (*types.AssessmentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var record types.AssessmentRecord
	if err := transaction.WithContext(ctx).
		Where("completed_at IS NOT NULL").
		Order("completed_at DESC").
		Limit(1).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *assessmentRepo) InProgress(ctx context.Context, tx *gorm.DB, learnerID string) (*types.AssessmentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var record types.AssessmentRecord
	if err := transaction.WithContext(ctx).
		Where("learner_id = ? AND completed_at IS NULL", learnerID).
		Order("started_at DESC").
		Limit(1).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *assessmentRepo) MarkSynced(ctx context.Context, tx *gorm.DB, id string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.AssessmentRecord{}).
		Where("id = ?", id).
		Update("sync_status", types.SyncStatusSynced).Error
}

func (r *assessmentRepo) Clear(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("1 = 1").
		Delete(&types.AssessmentRecord{}).Error
}
