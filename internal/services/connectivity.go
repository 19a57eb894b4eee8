package services

import (
	"context"
	"errors"
	"sync"

	pkgerrors "github.com/masad-stock/skillbridge-sub000/internal/pkg/errors"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
)

// ConnectivityMonitor tracks online state reported by the host application
// and kicks off a queue drain on each offline-to-online transition.
type ConnectivityMonitor struct {
	log   *logger.Logger
	queue SyncQueueService

	mu     sync.Mutex
	online bool
	wg     sync.WaitGroup
}

func NewConnectivityMonitor(baseLog *logger.Logger, queue SyncQueueService) *ConnectivityMonitor {
	return &ConnectivityMonitor{
		log:   baseLog.With("service", "connectivity"),
		queue: queue,
	}
}

func (m *ConnectivityMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records the new state. Coming back online triggers an
// asynchronous drain; a drain already in flight is left alone.
func (m *ConnectivityMonitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	m.mu.Unlock()

	if online == wasOnline {
		return
	}
	if !online {
		m.log.Info("connectivity lost")
		return
	}
	m.log.Info("connectivity restored, draining sync queue")
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if _, err := m.queue.Drain(ctx); err != nil && !errors.Is(err, pkgerrors.ErrDrainActive) {
			m.log.Warn("drain after reconnect failed", "error", err)
		}
	}()
}

// TriggerSync drains the queue on demand. Fails fast while offline.
func (m *ConnectivityMonitor) TriggerSync(ctx context.Context) (*DrainResult, error) {
	if !m.Online() {
		return nil, pkgerrors.ErrOffline
	}
	return m.queue.Drain(ctx)
}

// Wait blocks until any reconnect-triggered drain has finished. Used on
// shutdown so an in-flight drain is not abandoned mid-item.
func (m *ConnectivityMonitor) Wait() {
	m.wg.Wait()
}
