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

type CourseRepo interface {
	Save(ctx context.Context, tx *gorm.DB, bundle *types.CourseBundle) error
	Get(ctx context.Context, tx *gorm.DB, courseID string) (*types.CourseBundle, error)
	Delete(ctx context.Context, tx *gorm.DB, courseID string) error
	List(ctx context.Context, tx *gorm.DB) ([]types.CourseSummary, error)
	ListByCategory(ctx context.Context, tx *gorm.DB, category string) ([]types.CourseSummary, error)
	TotalSizeBytes(ctx context.Context, tx *gorm.DB) (int64, error)
	Clear(ctx context.Context, tx *gorm.DB) error
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	repoLog := baseLog.With("repo", "CourseRepo")
	return &courseRepo{db: db, log: repoLog}
}

func (r *courseRepo) Save(ctx context.Context, tx *gorm.DB, bundle *types.CourseBundle) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if bundle == nil || bundle.ID == "" {
		return pkgerrors.ErrInvalidArgument
	}

	// Re-downloads overwrite the existing bundle wholesale.
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(bundle).Error; err != nil {
		return err
	}
	return nil
}

func (r *courseRepo) Get(ctx context.Context, tx *gorm.DB, courseID string) (*types.CourseBundle, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var bundle types.CourseBundle
	if err := transaction.WithContext(ctx).
		Where("id = ?", courseID).
		First(&bundle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &bundle, nil
}

func (r *courseRepo) Delete(ctx context.Context, tx *gorm.DB, courseID string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Where("id = ?", courseID).
		Delete(&types.CourseBundle{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrNotFound
	}
	return nil
}

func (r *courseRepo) List(ctx context.Context, tx *gorm.DB) ([]types.CourseSummary, error) {
	return r.listWhere(ctx, tx, "", nil)
}

func (r *courseRepo) ListByCategory(ctx context.Context, tx *gorm.DB, category string) ([]types.CourseSummary, error) {
	return r.listWhere(ctx, tx, "category = ?", []interface{}{category})
}

func (r *courseRepo) listWhere(ctx context.Context, tx *gorm.DB, cond string, args []interface{}) ([]types.CourseSummary, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).
		Model(&types.CourseBundle{}).
		Select("id", "title", "category", "downloaded_at", "size_bytes").
		Order("downloaded_at DESC")
	if cond != "" {
		q = q.Where(cond, args...)
	}

	var results []types.CourseSummary
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseRepo) TotalSizeBytes(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var total int64
	if err := transaction.WithContext(ctx).
		Model(&types.CourseBundle{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *courseRepo) Clear(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("1 = 1").
		Delete(&types.CourseBundle{}).Error
}
