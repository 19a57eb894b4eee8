package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	offline "github.com/masad-stock/skillbridge-sub000/internal/data/repos/offline"
	"github.com/masad-stock/skillbridge-sub000/internal/data/repos/testutil"
	events "github.com/masad-stock/skillbridge-sub000/internal/events"
	pkgerrors "github.com/masad-stock/skillbridge-sub000/internal/pkg/errors"
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

// fakeSyncClient records calls and fails on demand, globally via err or for
// a single item type via errs.
type fakeSyncClient struct {
	mu      sync.Mutex
	calls   map[types.QueueItemType]int
	err     error
	errs    map[types.QueueItemType]error
	blockCh chan struct{}
}

func newFakeSyncClient() *fakeSyncClient {
	return &fakeSyncClient{
		calls: map[types.QueueItemType]int{},
		errs:  map[types.QueueItemType]error{},
	}
}

func (f *fakeSyncClient) record(itemType types.QueueItemType) error {
	f.mu.Lock()
	blockCh := f.blockCh
	f.mu.Unlock()
	if blockCh != nil {
		<-blockCh
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[itemType]++
	if err, ok := f.errs[itemType]; ok {
		return err
	}
	return f.err
}

func (f *fakeSyncClient) callCount(itemType types.QueueItemType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[itemType]
}

func (f *fakeSyncClient) SyncProgress(ctx context.Context, payload json.RawMessage) error {
	return f.record(types.QueueTypeProgress)
}
func (f *fakeSyncClient) SyncAssessment(ctx context.Context, payload json.RawMessage) error {
	return f.record(types.QueueTypeAssessment)
}
func (f *fakeSyncClient) SyncCertificate(ctx context.Context, payload json.RawMessage) error {
	return f.record(types.QueueTypeCertificate)
}
func (f *fakeSyncClient) SyncBusinessRecord(ctx context.Context, payload json.RawMessage) error {
	return f.record(types.QueueTypeBusiness)
}

type queueFixture struct {
	db           *gorm.DB
	client       *fakeSyncClient
	service      SyncQueueService
	bus          *events.Bus
	queue        offline.QueueRepo
	progress     offline.ProgressRepo
	assessments  offline.AssessmentRepo
	certificates offline.CertificateRepo
	business     offline.BusinessRepo
}

func newQueueFixture(t *testing.T, cfg SyncQueueConfig) *queueFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	client := newFakeSyncClient()
	bus := events.NewBus(log)

	f := &queueFixture{
		db:           db,
		client:       client,
		bus:          bus,
		queue:        offline.NewQueueRepo(db, log),
		progress:     offline.NewProgressRepo(db, log),
		assessments:  offline.NewAssessmentRepo(db, log),
		certificates: offline.NewCertificateRepo(db, log),
		business:     offline.NewBusinessRepo(db, log),
	}
	f.service = NewSyncQueueService(db, log, cfg, client, bus,
		f.queue, f.progress, f.assessments, f.certificates, f.business)
	return f
}

func TestEnqueueAssignsTypePriority(t *testing.T) {
	f := newQueueFixture(t, SyncQueueConfig{})
	ctx := context.Background()

	cases := []struct {
		itemType types.QueueItemType
		want     int
	}{
		{types.QueueTypeAssessment, 10},
		{types.QueueTypeCertificate, 9},
		{types.QueueTypeProgress, 5},
		{types.QueueTypeBusiness, 3},
	}
	for _, tc := range cases {
		item, err := f.service.Enqueue(ctx, tc.itemType, map[string]string{"k": "v"})
		if err != nil {
			t.Fatalf("enqueue %s: %v", tc.itemType, err)
		}
		if item.Priority != tc.want {
			t.Fatalf("priority for %s: want=%d got=%d", tc.itemType, tc.want, item.Priority)
		}
		if item.Status != types.QueueStatusPending || item.RetryCount != 0 {
			t.Fatalf("fresh item state: %+v", item)
		}
	}
}

func TestDrainSuccessRemovesItemAndMarksSource(t *testing.T) {
	f := newQueueFixture(t, SyncQueueConfig{})
	ctx := context.Background()

	cert := &types.Certificate{
		ID: "cert-1", LearnerID: "l", CourseID: "c", LearnerName: "A", CourseName: "B",
		VerificationCode: "SB-T-1", GeneratedAt: time.Now().UTC(), SyncStatus: types.SyncStatusPending,
	}
	if err := f.certificates.Save(ctx, nil, cert); err != nil {
		t.Fatalf("save certificate: %v", err)
	}
	if _, err := f.service.Enqueue(ctx, types.QueueTypeCertificate, certificateSyncPayload{CertificateID: "cert-1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	result, err := f.service.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Total != 1 || result.Successful != 1 || result.Failed != 0 {
		t.Fatalf("drain result: %+v", result)
	}

	remaining, err := f.queue.All(ctx, nil)
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("queue not empty after success: %+v", remaining)
	}

	got, err := f.certificates.Get(ctx, nil, "cert-1")
	if err != nil {
		t.Fatalf("get certificate: %v", err)
	}
	if !got.Verified || got.SyncStatus != types.SyncStatusSynced {
		t.Fatalf("certificate after sync: verified=%v status=%q", got.Verified, got.SyncStatus)
	}
}

func TestDrainFailureSchedulesBackoff(t *testing.T) {
	f := newQueueFixture(t, SyncQueueConfig{InitialBackoff: time.Minute})
	f.client.err = errors.New("server unavailable")
	ctx := context.Background()

	item, err := f.service.Enqueue(ctx, types.QueueTypeProgress, progressSyncPayload{LearnerID: "l"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	result, err := f.service.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Failed != 1 || result.Successful != 0 {
		t.Fatalf("drain result: %+v", result)
	}

	got, err := f.queue.Get(ctx, nil, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.RetryCount != 1 || got.Status != types.QueueStatusPending {
		t.Fatalf("retry state: count=%d status=%q", got.RetryCount, got.Status)
	}
	if got.NextRetryAt == nil || got.NextRetryAt.Before(time.Now().UTC().Add(30*time.Second)) {
		t.Fatalf("next retry not pushed out: %v", got.NextRetryAt)
	}
	if got.Error == "" {
		t.Fatalf("error not recorded")
	}

	// The item is backing off, so a second drain must skip it entirely.
	result, err = f.service.Drain(ctx)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if result.Total != 0 {
		t.Fatalf("second drain picked up backing-off item: %+v", result)
	}
}

func TestDrainExhaustedRetriesParkAsFailed(t *testing.T) {
	f := newQueueFixture(t, SyncQueueConfig{MaxRetries: 1})
	f.client.err = errors.New("still failing")
	ctx := context.Background()

	item, err := f.service.Enqueue(ctx, types.QueueTypeBusiness, businessSyncPayload{RecordID: "r"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := f.service.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	got, err := f.queue.Get(ctx, nil, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != types.QueueStatusFailed || got.NextRetryAt != nil {
		t.Fatalf("exhausted item: status=%q nextRetryAt=%v", got.Status, got.NextRetryAt)
	}
}

func TestDrainExhaustedCertificateMarksSourceFailed(t *testing.T) {
	f := newQueueFixture(t, SyncQueueConfig{MaxRetries: 1})
	f.client.err = errors.New("still failing")
	ctx := context.Background()

	cert := &types.Certificate{
		ID: "cert-1", LearnerID: "l", CourseID: "c", LearnerName: "A", CourseName: "B",
		VerificationCode: "SB-T-1", GeneratedAt: time.Now().UTC(), SyncStatus: types.SyncStatusPending,
	}
	if err := f.certificates.Save(ctx, nil, cert); err != nil {
		t.Fatalf("save certificate: %v", err)
	}
	item, err := f.service.Enqueue(ctx, types.QueueTypeCertificate, certificateSyncPayload{CertificateID: "cert-1"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := f.service.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	gotItem, err := f.queue.Get(ctx, nil, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if gotItem.Status != types.QueueStatusFailed {
		t.Fatalf("exhausted item status: %q", gotItem.Status)
	}

	got, err := f.certificates.Get(ctx, nil, "cert-1")
	if err != nil {
		t.Fatalf("get certificate: %v", err)
	}
	if got.SyncStatus != types.SyncStatusFailed {
		t.Fatalf("certificate sync status: want=%q got=%q", types.SyncStatusFailed, got.SyncStatus)
	}
	if got.Verified {
		t.Fatalf("certificate verified despite failed sync")
	}
}

func TestDrainPartialFailurePublishesCompleted(t *testing.T) {
	f := newQueueFixture(t, SyncQueueConfig{})
	f.client.errs[types.QueueTypeProgress] = errors.New("server unavailable")
	ctx := context.Background()

	var completed []DrainResult
	var failed int
	f.bus.Subscribe(events.TopicSyncCompleted, func(evt events.Event) {
		completed = append(completed, evt.Payload.(DrainResult))
	})
	f.bus.Subscribe(events.TopicSyncFailed, func(events.Event) {
		failed++
	})

	if _, err := f.service.Enqueue(ctx, types.QueueTypeProgress, progressSyncPayload{LearnerID: "l"}); err != nil {
		t.Fatalf("enqueue progress: %v", err)
	}
	if _, err := f.service.Enqueue(ctx, types.QueueTypeBusiness, businessSyncPayload{RecordID: "r"}); err != nil {
		t.Fatalf("enqueue business: %v", err)
	}

	result, err := f.service.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Total != 2 || result.Successful != 1 || result.Failed != 1 {
		t.Fatalf("drain result: %+v", result)
	}

	if len(completed) != 1 {
		t.Fatalf("completed events: want=1 got=%d", len(completed))
	}
	if completed[0].Total != 2 || completed[0].Successful != 1 || completed[0].Failed != 1 {
		t.Fatalf("completed payload: %+v", completed[0])
	}
	if failed != 0 {
		t.Fatalf("failed events on a finished pass: %d", failed)
	}
}

func TestRetryFailedThenDrainSucceeds(t *testing.T) {
	f := newQueueFixture(t, SyncQueueConfig{MaxRetries: 1})
	f.client.err = errors.New("flaky")
	ctx := context.Background()

	if _, err := f.service.Enqueue(ctx, types.QueueTypeProgress, progressSyncPayload{LearnerID: "l"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := f.service.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	n, err := f.service.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("reset count: want=1 got=%d", n)
	}

	f.client.err = nil
	result, err := f.service.Drain(ctx)
	if err != nil {
		t.Fatalf("drain after reset: %v", err)
	}
	if result.Successful != 1 {
		t.Fatalf("drain after reset: %+v", result)
	}
}

func TestDrainSingleFlight(t *testing.T) {
	f := newQueueFixture(t, SyncQueueConfig{})
	ctx := context.Background()

	f.client.blockCh = make(chan struct{})
	if _, err := f.service.Enqueue(ctx, types.QueueTypeProgress, progressSyncPayload{LearnerID: "l"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.service.Drain(ctx)
		firstDone <- err
	}()

	// Wait until the first drain is holding the flag.
	deadline := time.Now().Add(2 * time.Second)
	for {
		status, err := f.service.Status(ctx)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if status.Draining {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("first drain never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := f.service.Drain(ctx); !errors.Is(err, pkgerrors.ErrDrainActive) {
		t.Fatalf("want ErrDrainActive got %v", err)
	}

	close(f.client.blockCh)
	if err := <-firstDone; err != nil {
		t.Fatalf("first drain: %v", err)
	}

	status, err := f.service.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Draining || status.LastDrain == nil {
		t.Fatalf("post-drain status: %+v", status)
	}
}

func TestStatusCounts(t *testing.T) {
	f := newQueueFixture(t, SyncQueueConfig{})
	ctx := context.Background()

	if _, err := f.service.Enqueue(ctx, types.QueueTypeAssessment, map[string]string{}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := f.service.Enqueue(ctx, types.QueueTypeProgress, map[string]string{}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	status, err := f.service.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Total != 2 || status.Pending != 2 || status.Failed != 0 {
		t.Fatalf("status: %+v", status)
	}
	if status.ByType[types.QueueTypeAssessment] != 1 || status.ByType[types.QueueTypeProgress] != 1 {
		t.Fatalf("by type: %+v", status.ByType)
	}
}
