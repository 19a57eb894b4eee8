package types

import (
	"time"

	"gorm.io/datatypes"
)

type QueueItemType string

const (
	QueueTypeProgress    QueueItemType = "progress"
	QueueTypeAssessment  QueueItemType = "assessment"
	QueueTypeCertificate QueueItemType = "certificate"
	QueueTypeBusiness    QueueItemType = "business"
)

const (
	QueueStatusPending = "pending"
	QueueStatusFailed  = "failed"
)

// QueueItem is one durable outbound mutation awaiting server acknowledgment.
// It leaves the table only when its sync call has returned success; exhausting
// MaxRetries parks it as failed until an explicit retry request.
type QueueItem struct {
	ID          uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Type        QueueItemType  `gorm:"index;not null" json:"type"`
	Data        datatypes.JSON `json:"data"`
	Timestamp   time.Time      `gorm:"index" json:"timestamp"`
	Priority    int            `gorm:"index;not null" json:"priority"`
	RetryCount  int            `gorm:"not null;default:0" json:"retry_count"`
	MaxRetries  int            `gorm:"not null" json:"max_retries"`
	Status      string         `gorm:"index;not null;default:'pending'" json:"status"`
	NextRetryAt *time.Time     `json:"next_retry_at,omitempty"`
	Error       string         `json:"error,omitempty"`
}

func (QueueItem) TableName() string { return "sync_queue" }
