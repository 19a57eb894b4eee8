package events

import (
	"sync"

	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
)

type Topic string

const (
	TopicSyncStarted    Topic = "sync.started"
	TopicSyncItemQueued Topic = "sync.item_queued"
	TopicSyncCompleted  Topic = "sync.completed"
	TopicSyncFailed     Topic = "sync.failed"

	TopicDownloadStarted   Topic = "download.started"
	TopicDownloadProgress  Topic = "download.progress"
	TopicDownloadPaused    Topic = "download.paused"
	TopicDownloadResumed   Topic = "download.resumed"
	TopicDownloadCompleted Topic = "download.completed"
	TopicDownloadFailed    Topic = "download.failed"
	TopicDownloadCancelled Topic = "download.cancelled"
)

type Event struct {
	Topic   Topic
	Payload any
}

type Handler func(Event)

// Bus is an in-process typed publish/subscribe hub. A panicking subscriber is
// recovered and logged; it never interrupts the publisher or the remaining
// subscribers.
type Bus struct {
	mu   sync.RWMutex
	log  *logger.Logger
	seq  int64
	subs map[Topic]map[int64]Handler
}

func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		log:  log.With("component", "EventBus"),
		subs: make(map[Topic]map[int64]Handler),
	}
}

func (b *Bus) Subscribe(topic Topic, h Handler) int64 {
	if h == nil {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	id := b.seq
	handlers, ok := b.subs[topic]
	if !ok {
		handlers = make(map[int64]Handler)
		b.subs[topic] = handlers
	}
	handlers[id] = h
	return id
}

func (b *Bus) Unsubscribe(topic Topic, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.subs[topic]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(b.subs, topic)
		}
	}
}

func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[evt.Topic]))
	for _, h := range b.subs[evt.Topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(evt, h)
	}
}

func (b *Bus) dispatch(evt Event, h Handler) {
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Error("Event listener panicked", "topic", string(evt.Topic), "panic", rec)
		}
	}()
	h(evt)
}
