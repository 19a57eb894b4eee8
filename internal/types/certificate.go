package types

import "time"

// Certificate is a locally rendered completion credential. Verified only ever
// flips to true through a successful sync round trip; until then the learner
// holds a usable but unverified document.
type Certificate struct {
	ID               string     `gorm:"primaryKey" json:"id"`
	LearnerID        string     `gorm:"index" json:"learner_id"`
	CourseID         string     `gorm:"index" json:"course_id"`
	LearnerName      string     `gorm:"not null" json:"learner_name"`
	CourseName       string     `gorm:"not null" json:"course_name"`
	CompletionDate   time.Time  `json:"completion_date"`
	SkillsAcquired   []string   `gorm:"serializer:json" json:"skills_acquired,omitempty"`
	VerificationCode string     `gorm:"uniqueIndex;not null" json:"verification_code"`
	Document         []byte     `json:"document"`
	GeneratedAt      time.Time  `gorm:"index" json:"generated_at"`
	SyncStatus       string     `gorm:"index;not null;default:'pending'" json:"sync_status"`
	SyncedAt         *time.Time `json:"synced_at,omitempty"`
	Verified         bool       `gorm:"not null;default:false" json:"verified"`
}

func (Certificate) TableName() string { return "certificate" }
