package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/masad-stock/skillbridge-sub000/internal/data/db"
	offline "github.com/masad-stock/skillbridge-sub000/internal/data/repos/offline"
	"github.com/masad-stock/skillbridge-sub000/internal/data/repos/testutil"
	events "github.com/masad-stock/skillbridge-sub000/internal/events"
	pkgerrors "github.com/masad-stock/skillbridge-sub000/internal/pkg/errors"
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

type storageFixture struct {
	service      StorageService
	queue        SyncQueueService
	courses      offline.CourseRepo
	certificates offline.CertificateRepo
	assessments  offline.AssessmentRepo
}

func newStorageFixture(t *testing.T, quotaBytes int64) *storageFixture {
	t.Helper()
	log := testutil.Logger(t)
	sqlite, err := db.OpenSQLite(filepath.Join(t.TempDir(), "offline.db"), log)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := sqlite.AutoMigrateAll(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })

	gdb := sqlite.DB()
	courses := offline.NewCourseRepo(gdb, log)
	progress := offline.NewProgressRepo(gdb, log)
	assessments := offline.NewAssessmentRepo(gdb, log)
	business := offline.NewBusinessRepo(gdb, log)
	certificates := offline.NewCertificateRepo(gdb, log)
	queueRepo := offline.NewQueueRepo(gdb, log)
	bus := events.NewBus(log)
	queue := NewSyncQueueService(gdb, log, SyncQueueConfig{}, newFakeSyncClient(), bus,
		queueRepo, progress, assessments, certificates, business)

	return &storageFixture{
		service: NewStorageService(sqlite, log, quotaBytes,
			courses, progress, assessments, business, certificates, queue),
		queue:        queue,
		courses:      courses,
		certificates: certificates,
		assessments:  assessments,
	}
}

func (f *storageFixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	bundle := &types.CourseBundle{
		ID: "mobile-basics", Title: "Mobile Phone Basics", Category: "basic_digital",
		SizeBytes: 1000, DownloadedAt: time.Now().UTC(), SyncStatus: types.SyncStatusSynced,
	}
	if err := f.courses.Save(ctx, nil, bundle); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	cert := &types.Certificate{
		ID: "cert-1", LearnerID: "learner-1", CourseID: "mobile-basics",
		LearnerName: "Wanjiku Kamau", CourseName: "Mobile Phone Basics",
		CompletionDate: time.Now().UTC(), VerificationCode: "SB-SEED-1",
		Document: []byte{0x89, 'P', 'N', 'G'}, GeneratedAt: time.Now().UTC(),
		SyncStatus: types.SyncStatusPending,
	}
	if err := f.certificates.Save(ctx, nil, cert); err != nil {
		t.Fatalf("seed certificate: %v", err)
	}
	record := &types.AssessmentRecord{
		ID: "assess-1", LearnerID: "learner-1",
		StartedAt: time.Now().UTC(), SyncStatus: types.SyncStatusPending,
	}
	if err := f.assessments.Save(ctx, nil, record); err != nil {
		t.Fatalf("seed assessment: %v", err)
	}
	if err := f.service.SaveProgress(ctx, &types.ProgressRecord{
		LearnerID: "learner-1",
		Modules:   map[string]types.ModuleProgress{"mobile-basics/m1": {CourseID: "mobile-basics", ModuleID: "m1", Completed: true}},
	}); err != nil {
		t.Fatalf("seed progress: %v", err)
	}
	if err := f.service.SaveBusinessRecord(ctx, &types.BusinessRecord{
		Type: "sale", Date: time.Now().UTC(),
		Payload: datatypes.JSON([]byte(`{"amount":1500}`)),
	}); err != nil {
		t.Fatalf("seed business record: %v", err)
	}
}

func TestSaveProgressEnqueuesSync(t *testing.T) {
	f := newStorageFixture(t, 0)
	ctx := context.Background()

	err := f.service.SaveProgress(ctx, &types.ProgressRecord{
		LearnerID: "learner-1",
		Modules:   map[string]types.ModuleProgress{"c/m": {CourseID: "c", ModuleID: "m", Position: 3}},
	})
	if err != nil {
		t.Fatalf("save progress: %v", err)
	}

	stored, err := f.service.Progress(ctx, "learner-1")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if stored.Modules["c/m"].Position != 3 {
		t.Fatalf("stored progress: %+v", stored.Modules)
	}

	status, err := f.queue.Status(ctx)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if status.ByType[types.QueueTypeProgress] != 1 {
		t.Fatalf("queued progress items: want=1 got=%d", status.ByType[types.QueueTypeProgress])
	}
}

func TestSaveProgressRequiresLearner(t *testing.T) {
	f := newStorageFixture(t, 0)

	if err := f.service.SaveProgress(context.Background(), &types.ProgressRecord{}); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument got %v", err)
	}
}

func TestSaveBusinessRecordAssignsIDAndEnqueues(t *testing.T) {
	f := newStorageFixture(t, 0)
	ctx := context.Background()

	record := &types.BusinessRecord{Type: "expense", Payload: datatypes.JSON([]byte(`{"amount":200}`))}
	if err := f.service.SaveBusinessRecord(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}
	if record.ID == "" {
		t.Fatalf("id not assigned")
	}

	records, err := f.service.BusinessRecords(ctx, offline.BusinessRecordFilter{Type: "expense"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].ID != record.ID {
		t.Fatalf("list: %d records", len(records))
	}

	status, err := f.queue.Status(ctx)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if status.ByType[types.QueueTypeBusiness] != 1 {
		t.Fatalf("queued business items: want=1 got=%d", status.ByType[types.QueueTypeBusiness])
	}
}

func TestClearDefaultsToCoursesOnly(t *testing.T) {
	f := newStorageFixture(t, 0)
	f.seed(t)
	ctx := context.Background()

	if err := f.service.Clear(ctx, ClearSelector{}); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if _, err := f.service.Course(ctx, "mobile-basics"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("course survived default clear: %v", err)
	}
	// Everything else needs an explicit flag.
	if _, err := f.certificates.Get(ctx, nil, "cert-1"); err != nil {
		t.Fatalf("certificate removed by default clear: %v", err)
	}
	if _, err := f.assessments.Get(ctx, nil, "assess-1"); err != nil {
		t.Fatalf("assessment removed by default clear: %v", err)
	}
	if _, err := f.service.Progress(ctx, "learner-1"); err != nil {
		t.Fatalf("progress removed by default clear: %v", err)
	}
}

func TestClearPreservesCoursesWhenOptedOut(t *testing.T) {
	f := newStorageFixture(t, 0)
	f.seed(t)
	ctx := context.Background()

	keep := false
	err := f.service.Clear(ctx, ClearSelector{
		Courses:         &keep,
		Assessments:     true,
		BusinessRecords: true,
		Certificates:    true,
	})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}

	if _, err := f.service.Course(ctx, "mobile-basics"); err != nil {
		t.Fatalf("course removed despite opt-out: %v", err)
	}
	if _, err := f.certificates.Get(ctx, nil, "cert-1"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("certificate survived: %v", err)
	}
	if _, err := f.assessments.Get(ctx, nil, "assess-1"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("assessment survived: %v", err)
	}
	records, err := f.service.BusinessRecords(ctx, offline.BusinessRecordFilter{})
	if err != nil {
		t.Fatalf("list business records: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("business records survived: %d", len(records))
	}
	// Progress was not explicitly opted in, so it stays.
	if _, err := f.service.Progress(ctx, "learner-1"); err != nil {
		t.Fatalf("progress removed without explicit opt-in: %v", err)
	}
}

func TestClearProgressRequiresExplicitFlag(t *testing.T) {
	f := newStorageFixture(t, 0)
	f.seed(t)
	ctx := context.Background()

	if err := f.service.Clear(ctx, ClearSelector{Progress: true}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := f.service.Progress(ctx, "learner-1"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("progress survived explicit clear: %v", err)
	}
}

func TestDeleteCourse(t *testing.T) {
	f := newStorageFixture(t, 0)
	f.seed(t)
	ctx := context.Background()

	if err := f.service.DeleteCourse(ctx, "mobile-basics"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.service.Course(ctx, "mobile-basics"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("course survived delete: %v", err)
	}
	if err := f.service.DeleteCourse(ctx, "mobile-basics"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("want ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteCertificate(t *testing.T) {
	f := newStorageFixture(t, 0)
	f.seed(t)
	ctx := context.Background()

	if err := f.service.DeleteCertificate(ctx, "cert-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.certificates.Get(ctx, nil, "cert-1"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("certificate survived delete: %v", err)
	}
}

func TestUsageReportsQuotaAndBreakdown(t *testing.T) {
	f := newStorageFixture(t, 10*1024*1024)
	f.seed(t)
	ctx := context.Background()

	usage := f.service.Usage(ctx)
	if usage.QuotaBytes != 10*1024*1024 {
		t.Fatalf("quota: %d", usage.QuotaBytes)
	}
	wantPercent := float64(usage.DatabaseBytes) / float64(usage.QuotaBytes) * 100
	if usage.UsedPercent != wantPercent {
		t.Fatalf("used percent: want=%v got=%v", wantPercent, usage.UsedPercent)
	}
	if usage.CourseBytes != 1000 {
		t.Fatalf("course bytes: want=1000 got=%d", usage.CourseBytes)
	}
	if usage.CertificateBytes != 4 {
		t.Fatalf("certificate bytes: want=4 got=%d", usage.CertificateBytes)
	}
	if usage.CourseCount != 1 {
		t.Fatalf("course count: want=1 got=%d", usage.CourseCount)
	}
}
