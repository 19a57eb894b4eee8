package types

import (
	"time"
)

// SyncStatus values shared by all locally persisted record kinds.
const (
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
	SyncStatusFailed  = "failed"
)

type VideoMetadata struct {
	URL             string `json:"url"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Thumbnail       string `json:"thumbnail,omitempty"`
}

type ImageAsset struct {
	URL          string `json:"url"`
	ContentType  string `json:"content_type"`
	Data         []byte `json:"data"`
	OriginalSize int64  `json:"original_size"`
	Size         int64  `json:"size"`
	Optimized    bool   `json:"optimized"`
}

type CourseModule struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	TextContent string       `json:"text_content"`
	Transcript  string       `json:"transcript,omitempty"`
	Video       *VideoMetadata `json:"video,omitempty"`
	Images      []ImageAsset `json:"images,omitempty"`
}

// CourseBundle is the fully materialized offline copy of a course. Courses are
// read-only from the server, so the bundle is always stored as synced and only
// replaced by a re-download.
type CourseBundle struct {
	ID              string          `gorm:"primaryKey" json:"id"`
	Title           string          `gorm:"not null" json:"title"`
	Category        string          `gorm:"index" json:"category"`
	Modules         []CourseModule  `gorm:"serializer:json" json:"modules"`
	SizeBytes       int64           `gorm:"not null;default:0" json:"size_bytes"`
	DownloadedAt    time.Time       `gorm:"index" json:"downloaded_at"`
	DownloadOptions DownloadOptions `gorm:"serializer:json" json:"download_options"`
	SyncStatus      string          `gorm:"index;not null;default:'synced'" json:"sync_status"`
}

func (CourseBundle) TableName() string { return "course_bundle" }

// CourseSummary is the listing projection used by storage screens; it never
// loads module content or image bytes.
type CourseSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	DownloadedAt time.Time `json:"downloaded_at"`
	SizeBytes    int64     `json:"size_bytes"`
}
