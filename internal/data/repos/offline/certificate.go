package offline

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pkgerrors "github.com/masad-stock/skillbridge-sub000/internal/pkg/errors"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

type CertificateRepo interface {
	Save(ctx context.Context, tx *gorm.DB, cert *types.Certificate) error
	Get(ctx context.Context, tx *gorm.DB, id string) (*types.Certificate, error)
	GetByVerificationCode(ctx context.Context, tx *gorm.DB, code string) (*types.Certificate, error)
	ListByLearner(ctx context.Context, tx *gorm.DB, learnerID string) ([]*types.Certificate, error)
	// MarkSynced flips syncStatus to synced and Verified to true in one write;
	// it is the only path that sets Verified.
	MarkSynced(ctx context.Context, tx *gorm.DB, id string) error
	MarkFailed(ctx context.Context, tx *gorm.DB, id string) error
	Delete(ctx context.Context, tx *gorm.DB, id string) error
	TotalDocumentBytes(ctx context.Context, tx *gorm.DB) (int64, error)
	Clear(ctx context.Context, tx *gorm.DB) error
}

type certificateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCertificateRepo(db *gorm.DB, baseLog *logger.Logger) CertificateRepo {
	repoLog := baseLog.With("repo", "CertificateRepo")
	return &certificateRepo{db: db, log: repoLog}
}

// Save upserts by certificate id, but a verification-code collision with a
// different certificate is a hard error: the unique index is the global
// uniqueness guarantee and must never be silently papered over.
func (r *certificateRepo) Save(ctx context.Context, tx *gorm.DB, cert *types.Certificate) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if cert == nil || cert.ID == "" || cert.VerificationCode == "" {
		return pkgerrors.ErrInvalidArgument
	}

	err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(cert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint") {
			return pkgerrors.ErrDuplicateVerificationCode
		}
		return err
	}
	return nil
}

func (r *certificateRepo) Get(ctx context.Context, tx *gorm.DB, id string) (*types.Certificate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var cert types.Certificate
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&cert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &cert, nil
}

func (r *certificateRepo) GetByVerificationCode(ctx context.Context, tx *gorm.DB, code string) (*types.Certificate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var cert types.Certificate
	if err := transaction.WithContext(ctx).
		Where("verification_code = ?", code).
		First(&cert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &cert, nil
}

func (r *certificateRepo) ListByLearner(ctx context.Context, tx *gorm.DB, learnerID string) ([]*types.Certificate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Certificate
	if err := transaction.WithContext(ctx).
		Where("learner_id = ?", learnerID).
		Order("generated_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *certificateRepo) MarkSynced(ctx context.Context, tx *gorm.DB, id string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	now := time.Now().UTC()
	return transaction.WithContext(ctx).
		Model(&types.Certificate{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_status": types.SyncStatusSynced,
			"verified":    true,
			"synced_at":   now,
		}).Error
}

func (r *certificateRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.Certificate{}).
		Where("id = ?", id).
		Update("sync_status", types.SyncStatusFailed).Error
}

func (r *certificateRepo) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Certificate{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrNotFound
	}
	return nil
}

func (r *certificateRepo) TotalDocumentBytes(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var total int64
	if err := transaction.WithContext(ctx).
		Model(&types.Certificate{}).
		Select("COALESCE(SUM(LENGTH(document)), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *certificateRepo) Clear(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("1 = 1").
		Delete(&types.Certificate{}).Error
}
