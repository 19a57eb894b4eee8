package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/masad-stock/skillbridge-sub000/internal/data/db"
	offline "github.com/masad-stock/skillbridge-sub000/internal/data/repos/offline"
	pkgerrors "github.com/masad-stock/skillbridge-sub000/internal/pkg/errors"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

// ClearSelector names the record kinds a clear operation removes. Courses
// default to cleared; progress is only ever cleared with the explicit flag.
type ClearSelector struct {
	Courses         *bool
	Assessments     bool
	BusinessRecords bool
	Certificates    bool
	// Progress data requires separate, explicit opt-in.
	Progress bool
}

func (s ClearSelector) clearCourses() bool {
	return s.Courses == nil || *s.Courses
}

// StorageUsage reports local footprint against the configured quota.
// All fields degrade to zero when the underlying queries fail.
type StorageUsage struct {
	DatabaseBytes    int64   `json:"database_bytes"`
	QuotaBytes       int64   `json:"quota_bytes"`
	UsedPercent      float64 `json:"used_percent"`
	CourseBytes      int64   `json:"course_bytes"`
	CertificateBytes int64   `json:"certificate_bytes"`
	CourseCount      int     `json:"course_count"`
}

// StorageService is the local-store facade: learner progress and business
// record writes (both feeding the sync queue), course listing, selective
// clearing, and usage reporting.
type StorageService interface {
	SaveProgress(ctx context.Context, record *types.ProgressRecord) error
	Progress(ctx context.Context, learnerID string) (*types.ProgressRecord, error)
	SaveBusinessRecord(ctx context.Context, record *types.BusinessRecord) error
	BusinessRecords(ctx context.Context, filter offline.BusinessRecordFilter) ([]*types.BusinessRecord, error)
	Courses(ctx context.Context) ([]types.CourseSummary, error)
	CoursesByCategory(ctx context.Context, category string) ([]types.CourseSummary, error)
	Course(ctx context.Context, courseID string) (*types.CourseBundle, error)
	DeleteCourse(ctx context.Context, courseID string) error
	DeleteCertificate(ctx context.Context, id string) error
	Clear(ctx context.Context, selector ClearSelector) error
	Usage(ctx context.Context) StorageUsage
}

type storageService struct {
	db  *gorm.DB
	log *logger.Logger

	sqlite     *db.SQLiteService
	quotaBytes int64

	courses      offline.CourseRepo
	progress     offline.ProgressRepo
	assessments  offline.AssessmentRepo
	business     offline.BusinessRepo
	certificates offline.CertificateRepo
	queue        SyncQueueService
}

func NewStorageService(
	sqlite *db.SQLiteService,
	baseLog *logger.Logger,
	quotaBytes int64,
	courses offline.CourseRepo,
	progress offline.ProgressRepo,
	assessments offline.AssessmentRepo,
	business offline.BusinessRepo,
	certificates offline.CertificateRepo,
	queue SyncQueueService,
) StorageService {
	return &storageService{
		db:           sqlite.DB(),
		log:          baseLog.With("service", "storage"),
		sqlite:       sqlite,
		quotaBytes:   quotaBytes,
		courses:      courses,
		progress:     progress,
		assessments:  assessments,
		business:     business,
		certificates: certificates,
		queue:        queue,
	}
}

func (s *storageService) SaveProgress(ctx context.Context, record *types.ProgressRecord) error {
	if record == nil || record.LearnerID == "" {
		return fmt.Errorf("%w: learner id required", pkgerrors.ErrInvalidArgument)
	}
	if err := s.progress.Save(ctx, nil, record); err != nil {
		return err
	}
	payload := progressSyncPayload{
		LearnerID:   record.LearnerID,
		Modules:     record.Modules,
		LastUpdated: record.LastUpdated,
	}
	if _, err := s.queue.Enqueue(ctx, types.QueueTypeProgress, payload); err != nil {
		// The record is durable; the next save queues it again.
		s.log.Warn("progress could not be queued for sync", "learner_id", record.LearnerID, "error", err)
	}
	return nil
}

func (s *storageService) Progress(ctx context.Context, learnerID string) (*types.ProgressRecord, error) {
	return s.progress.Get(ctx, nil, learnerID)
}

func (s *storageService) SaveBusinessRecord(ctx context.Context, record *types.BusinessRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record required", pkgerrors.ErrInvalidArgument)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if err := s.business.Save(ctx, nil, record); err != nil {
		return err
	}
	payload := businessSyncPayload{
		RecordID: record.ID,
		Type:     record.Type,
		Date:     record.Date,
		Payload:  json.RawMessage(record.Payload),
	}
	if _, err := s.queue.Enqueue(ctx, types.QueueTypeBusiness, payload); err != nil {
		s.log.Warn("business record could not be queued for sync", "record_id", record.ID, "error", err)
	}
	return nil
}

func (s *storageService) BusinessRecords(ctx context.Context, filter offline.BusinessRecordFilter) ([]*types.BusinessRecord, error) {
	return s.business.List(ctx, nil, filter)
}

func (s *storageService) Courses(ctx context.Context) ([]types.CourseSummary, error) {
	return s.courses.List(ctx, nil)
}

func (s *storageService) CoursesByCategory(ctx context.Context, category string) ([]types.CourseSummary, error) {
	return s.courses.ListByCategory(ctx, nil, category)
}

func (s *storageService) Course(ctx context.Context, courseID string) (*types.CourseBundle, error) {
	return s.courses.Get(ctx, nil, courseID)
}

func (s *storageService) DeleteCourse(ctx context.Context, courseID string) error {
	return s.courses.Delete(ctx, nil, courseID)
}

func (s *storageService) DeleteCertificate(ctx context.Context, id string) error {
	return s.certificates.Delete(ctx, nil, id)
}

// Clear removes exactly the selected record kinds in one transaction.
func (s *storageService) Clear(ctx context.Context, selector ClearSelector) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if selector.clearCourses() {
			if err := s.courses.Clear(ctx, tx); err != nil {
				return err
			}
		}
		if selector.Assessments {
			if err := s.assessments.Clear(ctx, tx); err != nil {
				return err
			}
		}
		if selector.BusinessRecords {
			if err := s.business.Clear(ctx, tx); err != nil {
				return err
			}
		}
		if selector.Certificates {
			if err := s.certificates.Clear(ctx, tx); err != nil {
				return err
			}
		}
		if selector.Progress {
			if err := s.progress.Clear(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear storage: %w", err)
	}
	s.log.Info("storage cleared",
		"courses", selector.clearCourses(), "assessments", selector.Assessments,
		"business_records", selector.BusinessRecords, "certificates", selector.Certificates,
		"progress", selector.Progress)
	return nil
}

// Usage never fails; unreadable figures report as zero.
func (s *storageService) Usage(ctx context.Context) StorageUsage {
	usage := StorageUsage{QuotaBytes: s.quotaBytes}
	usage.DatabaseBytes = s.sqlite.SizeBytes()
	if usage.QuotaBytes > 0 {
		usage.UsedPercent = float64(usage.DatabaseBytes) / float64(usage.QuotaBytes) * 100
	}
	if n, err := s.courses.TotalSizeBytes(ctx, nil); err == nil {
		usage.CourseBytes = n
	} else {
		s.log.Warn("course size query failed", "error", err)
	}
	if n, err := s.certificates.TotalDocumentBytes(ctx, nil); err == nil {
		usage.CertificateBytes = n
	} else {
		s.log.Warn("certificate size query failed", "error", err)
	}
	if summaries, err := s.courses.List(ctx, nil); err == nil {
		usage.CourseCount = len(summaries)
	}
	return usage
}
