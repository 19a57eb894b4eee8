package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	remote "github.com/masad-stock/skillbridge-sub000/internal/clients/remote"
	offline "github.com/masad-stock/skillbridge-sub000/internal/data/repos/offline"
	events "github.com/masad-stock/skillbridge-sub000/internal/events"
	pkgerrors "github.com/masad-stock/skillbridge-sub000/internal/pkg/errors"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

// SyncQueueConfig tunes the drain loop. Zero values fall back to the
// defaults below.
type SyncQueueConfig struct {
	BatchSize      int
	MaxRetries     int
	InitialBackoff time.Duration
	ItemTimeout    time.Duration
}

const (
	defaultBatchSize      = 10
	defaultMaxRetries     = 5
	defaultInitialBackoff = time.Second
	defaultItemTimeout    = 30 * time.Second
)

func (c SyncQueueConfig) withDefaults() SyncQueueConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = defaultItemTimeout
	}
	return c
}

// DrainError describes one item that failed during a drain pass.
type DrainError struct {
	ItemID  uint64
	Type    types.QueueItemType
	Message string
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Total      int
	Successful int
	Failed     int
	Errors     []DrainError
}

// QueueStatus is a point-in-time view of the queue.
type QueueStatus struct {
	Total     int64
	Pending   int64
	Failed    int64
	Draining  bool
	LastDrain *time.Time
	ByType    map[types.QueueItemType]int64
}

type SyncQueueService interface {
	Enqueue(ctx context.Context, itemType types.QueueItemType, payload any) (*types.QueueItem, error)
	Drain(ctx context.Context) (*DrainResult, error)
	RetryFailed(ctx context.Context) (int64, error)
	Status(ctx context.Context) (*QueueStatus, error)
}

type syncQueueService struct {
	db     *gorm.DB
	log    *logger.Logger
	cfg    SyncQueueConfig
	client remote.SyncClient
	bus    *events.Bus

	queue        offline.QueueRepo
	progress     offline.ProgressRepo
	assessments  offline.AssessmentRepo
	certificates offline.CertificateRepo
	business     offline.BusinessRepo

	mu        sync.Mutex
	draining  bool
	lastDrain *time.Time
}

func NewSyncQueueService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg SyncQueueConfig,
	client remote.SyncClient,
	bus *events.Bus,
	queue offline.QueueRepo,
	progress offline.ProgressRepo,
	assessments offline.AssessmentRepo,
	certificates offline.CertificateRepo,
	business offline.BusinessRepo,
) SyncQueueService {
	return &syncQueueService{
		db:           db,
		log:          baseLog.With("service", "sync_queue"),
		cfg:          cfg.withDefaults(),
		client:       client,
		bus:          bus,
		queue:        queue,
		progress:     progress,
		assessments:  assessments,
		certificates: certificates,
		business:     business,
	}
}

// priorityFor maps an item type to its queue priority. Higher drains first.
func priorityFor(itemType types.QueueItemType) int {
	switch itemType {
	case types.QueueTypeAssessment:
		return 10
	case types.QueueTypeCertificate:
		return 9
	case types.QueueTypeProgress:
		return 5
	case types.QueueTypeBusiness:
		return 3
	default:
		return 1
	}
}

func (s *syncQueueService) Enqueue(ctx context.Context, itemType types.QueueItemType, payload any) (*types.QueueItem, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal queue payload: %w", err)
	}
	item := &types.QueueItem{
		Type:       itemType,
		Data:       datatypes.JSON(raw),
		Timestamp:  time.Now().UTC(),
		Priority:   priorityFor(itemType),
		MaxRetries: s.cfg.MaxRetries,
		Status:     types.QueueStatusPending,
	}
	if err := s.queue.Enqueue(ctx, nil, item); err != nil {
		return nil, err
	}
	s.log.Debug("queued item for sync", "id", item.ID, "type", item.Type, "priority", item.Priority)
	s.bus.Publish(events.Event{Topic: events.TopicSyncItemQueued, Payload: item.ID})
	return item, nil
}

func (s *syncQueueService) Drain(ctx context.Context) (*DrainResult, error) {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return nil, pkgerrors.ErrDrainActive
	}
	s.draining = true
	s.mu.Unlock()
	defer func() {
		now := time.Now().UTC()
		s.mu.Lock()
		s.draining = false
		s.lastDrain = &now
		s.mu.Unlock()
	}()

	items, err := s.queue.PendingDue(ctx, nil, time.Now().UTC())
	if err != nil {
		s.bus.Publish(events.Event{Topic: events.TopicSyncFailed, Payload: err.Error()})
		return nil, err
	}
	result := &DrainResult{Total: len(items)}
	if len(items) == 0 {
		return result, nil
	}

	s.log.Info("draining sync queue", "items", len(items))
	s.bus.Publish(events.Event{Topic: events.TopicSyncStarted, Payload: len(items)})

	var resMu sync.Mutex
	for start := 0; start < len(items); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(items) {
			end = len(items)
		}
		g, gctx := errgroup.WithContext(ctx)
		for _, item := range items[start:end] {
			item := item
			g.Go(func() error {
				itemCtx, cancel := context.WithTimeout(gctx, s.cfg.ItemTimeout)
				err := s.processItem(itemCtx, item)
				cancel()
				resMu.Lock()
				if err != nil {
					result.Failed++
					result.Errors = append(result.Errors, DrainError{ItemID: item.ID, Type: item.Type, Message: err.Error()})
				} else {
					result.Successful++
				}
				resMu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return result, err
		}
		if ctx.Err() != nil {
			break
		}
	}

	s.log.Info("sync queue drained", "total", result.Total, "successful", result.Successful, "failed", result.Failed)
	// A pass that ran to the end is completed even when some items failed;
	// the failed topic is reserved for a drain that could not run at all.
	s.bus.Publish(events.Event{Topic: events.TopicSyncCompleted, Payload: *result})
	return result, nil
}

func (s *syncQueueService) processItem(ctx context.Context, item *types.QueueItem) error {
	if err := s.dispatch(ctx, item); err != nil {
		s.recordFailure(ctx, item, err)
		return err
	}
	if err := s.queue.Delete(ctx, nil, item.ID); err != nil {
		s.log.Warn("synced item could not be removed from queue", "id", item.ID, "error", err)
	}
	s.markSourceSynced(ctx, item)
	return nil
}

func (s *syncQueueService) dispatch(ctx context.Context, item *types.QueueItem) error {
	raw := json.RawMessage(item.Data)
	switch item.Type {
	case types.QueueTypeProgress:
		return s.client.SyncProgress(ctx, raw)
	case types.QueueTypeAssessment:
		return s.client.SyncAssessment(ctx, raw)
	case types.QueueTypeCertificate:
		return s.client.SyncCertificate(ctx, raw)
	case types.QueueTypeBusiness:
		return s.client.SyncBusinessRecord(ctx, raw)
	default:
		return fmt.Errorf("%w: unknown queue item type %q", pkgerrors.ErrInvalidArgument, item.Type)
	}
}

// recordFailure bumps the retry count and schedules the next attempt with
// exponential backoff, or parks the item as failed once retries run out.
func (s *syncQueueService) recordFailure(ctx context.Context, item *types.QueueItem, cause error) {
	item.RetryCount++
	item.Error = cause.Error()
	if item.RetryCount >= item.MaxRetries {
		item.Status = types.QueueStatusFailed
		item.NextRetryAt = nil
		s.log.Warn("queue item exhausted retries", "id", item.ID, "type", item.Type, "error", cause)
		s.markSourceFailed(ctx, item)
	} else {
		backoff := s.cfg.InitialBackoff * (1 << (item.RetryCount - 1))
		next := time.Now().UTC().Add(backoff)
		item.NextRetryAt = &next
		s.log.Debug("queue item scheduled for retry", "id", item.ID, "retry", item.RetryCount, "backoff", backoff)
	}
	if err := s.queue.Update(ctx, nil, item); err != nil {
		s.log.Error("failed to persist queue item retry state", "id", item.ID, "error", err)
	}
}

// markSourceFailed downgrades the originating record once its queue item has
// exhausted retries. Certificates are the only kind tracking a failed sync
// state; everything else stays pending for a later RetryFailed pass.
func (s *syncQueueService) markSourceFailed(ctx context.Context, item *types.QueueItem) {
	if item.Type != types.QueueTypeCertificate {
		return
	}
	var keys syncPayloadKeys
	if err := json.Unmarshal(item.Data, &keys); err != nil || keys.CertificateID == "" {
		return
	}
	if err := s.certificates.MarkFailed(ctx, nil, keys.CertificateID); err != nil {
		s.log.Warn("could not mark certificate sync failed", "id", item.ID, "certificate_id", keys.CertificateID, "error", err)
	}
}

// markSourceSynced flips the originating record to synced. Failures here are
// logged only; the remote already has the data.
func (s *syncQueueService) markSourceSynced(ctx context.Context, item *types.QueueItem) {
	var keys syncPayloadKeys
	if err := json.Unmarshal(item.Data, &keys); err != nil {
		s.log.Warn("could not decode synced payload keys", "id", item.ID, "error", err)
		return
	}
	var err error
	switch item.Type {
	case types.QueueTypeProgress:
		if keys.LearnerID != "" {
			err = s.progress.MarkSynced(ctx, nil, keys.LearnerID)
		}
	case types.QueueTypeAssessment:
		if keys.AssessmentID != "" {
			err = s.assessments.MarkSynced(ctx, nil, keys.AssessmentID)
		}
	case types.QueueTypeCertificate:
		if keys.CertificateID != "" {
			err = s.certificates.MarkSynced(ctx, nil, keys.CertificateID)
		}
	case types.QueueTypeBusiness:
		if keys.RecordID != "" {
			err = s.business.MarkSynced(ctx, nil, keys.RecordID)
		}
	}
	if err != nil {
		s.log.Warn("could not mark source record synced", "id", item.ID, "type", item.Type, "error", err)
	}
}

func (s *syncQueueService) RetryFailed(ctx context.Context) (int64, error) {
	n, err := s.queue.ResetFailed(ctx, nil)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("failed queue items reset for retry", "count", n)
	}
	return n, nil
}

func (s *syncQueueService) Status(ctx context.Context) (*QueueStatus, error) {
	byStatus, err := s.queue.CountByStatus(ctx, nil)
	if err != nil {
		return nil, err
	}
	byType, err := s.queue.CountByType(ctx, nil)
	if err != nil {
		return nil, err
	}
	status := &QueueStatus{
		Pending: byStatus[types.QueueStatusPending],
		Failed:  byStatus[types.QueueStatusFailed],
		ByType:  byType,
	}
	status.Total = status.Pending + status.Failed
	s.mu.Lock()
	status.Draining = s.draining
	status.LastDrain = s.lastDrain
	s.mu.Unlock()
	return status, nil
}
