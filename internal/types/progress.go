package types

import "time"

type ModuleProgress struct {
	CourseID         string `json:"course_id"`
	ModuleID         string `json:"module_id"`
	Completed        bool   `json:"completed"`
	Position         int    `json:"position"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
}

// ProgressRecord is keyed by learner, one row per learner holding the full
// per-module map. It is mutated continuously while learning and is the one
// record kind ClearStorage refuses to touch without an explicit opt-in.
type ProgressRecord struct {
	LearnerID   string                    `gorm:"primaryKey;column:learner_id" json:"learner_id"`
	Modules     map[string]ModuleProgress `gorm:"serializer:json" json:"modules"`
	LastUpdated time.Time                 `gorm:"index" json:"last_updated"`
	SyncStatus  string                    `gorm:"index;not null;default:'pending'" json:"sync_status"`
}

func (ProgressRecord) TableName() string { return "progress_record" }
