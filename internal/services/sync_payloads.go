package services

import (
	"encoding/json"
	"time"

	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

// Payload shapes for the per-type sync endpoints. Each carries the local
// record's key so a successful sync can flip that record to synced.

type progressSyncPayload struct {
	LearnerID   string                          `json:"learner_id"`
	Modules     map[string]types.ModuleProgress `json:"modules"`
	LastUpdated time.Time                       `json:"last_updated"`
}

type assessmentSyncPayload struct {
	AssessmentID string                     `json:"assessment_id"`
	LearnerID    string                     `json:"learner_id"`
	Responses    []types.AssessmentResponse `json:"responses"`
	Results      *types.AssessmentResults   `json:"results"`
	CompletedAt  time.Time                  `json:"completed_at"`
}

type certificateSyncPayload struct {
	CertificateID    string    `json:"certificate_id"`
	LearnerID        string    `json:"learner_id"`
	LearnerName      string    `json:"learner_name"`
	CourseID         string    `json:"course_id"`
	CourseName       string    `json:"course_name"`
	CompletionDate   time.Time `json:"completion_date"`
	SkillsAcquired   []string  `json:"skills_acquired,omitempty"`
	VerificationCode string    `json:"verification_code"`
	DocumentBase64   string    `json:"document_base64"`
	GeneratedAt      time.Time `json:"generated_at"`
}

type businessSyncPayload struct {
	RecordID string          `json:"record_id"`
	Type     string          `json:"type"`
	Date     time.Time       `json:"date"`
	Payload  json.RawMessage `json:"payload"`
}

// syncPayloadKeys is the minimal projection the drain loop needs to reconcile
// local record state after a successful sync.
type syncPayloadKeys struct {
	LearnerID     string `json:"learner_id"`
	AssessmentID  string `json:"assessment_id"`
	CertificateID string `json:"certificate_id"`
	RecordID      string `json:"record_id"`
}
