package types

import "time"

type ImageQuality string

const (
	QualityLow    ImageQuality = "low"
	QualityMedium ImageQuality = "medium"
	QualityHigh   ImageQuality = "high"
)

type DownloadOptions struct {
	TextOnly     bool         `json:"text_only"`
	ImageQuality ImageQuality `json:"image_quality"`
}

type DownloadStatus string

const (
	DownloadDownloading DownloadStatus = "downloading"
	DownloadPaused      DownloadStatus = "paused"
	DownloadCompleted   DownloadStatus = "completed"
	DownloadFailed      DownloadStatus = "failed"
	DownloadCancelled   DownloadStatus = "cancelled"
)

// DownloadState is transient, never persisted. Progress is monotonically
// non-decreasing while Status is downloading and capped at 99 until the
// bundle is durably saved.
type DownloadState struct {
	CourseID        string          `json:"course_id"`
	Status          DownloadStatus  `json:"status"`
	Progress        float64         `json:"progress"`
	TotalBytes      int64           `json:"total_bytes"`
	DownloadedBytes int64           `json:"downloaded_bytes"`
	StartedAt       time.Time       `json:"started_at"`
	PausedAt        *time.Time      `json:"paused_at,omitempty"`
	ResumedAt       *time.Time      `json:"resumed_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	Options         DownloadOptions `json:"options"`
	Error           string          `json:"error,omitempty"`
}

// Clone returns a copy safe to hand to event listeners while the download
// loop keeps mutating the original.
func (d *DownloadState) Clone() *DownloadState {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
