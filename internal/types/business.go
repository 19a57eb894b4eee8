package types

import (
	"time"

	"gorm.io/datatypes"
)

// BusinessRecord carries arbitrary domain payloads (sales, inventory,
// customer notes) that the learner captured offline.
type BusinessRecord struct {
	ID         string         `gorm:"primaryKey" json:"id"`
	Type       string         `gorm:"index;not null" json:"type"`
	Date       time.Time      `gorm:"index" json:"date"`
	Payload    datatypes.JSON `json:"payload"`
	SyncStatus string         `gorm:"index;not null;default:'pending'" json:"sync_status"`
}

func (BusinessRecord) TableName() string { return "business_record" }
