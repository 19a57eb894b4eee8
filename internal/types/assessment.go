package types

import "time"

type SkillCategory string

const (
	CategoryBasicDigital        SkillCategory = "basic_digital"
	CategoryBusinessAutomation  SkillCategory = "business_automation"
	CategoryECommerce           SkillCategory = "e_commerce"
	CategoryDigitalMarketing    SkillCategory = "digital_marketing"
	CategoryFinancialManagement SkillCategory = "financial_management"
	CategoryCommunication       SkillCategory = "communication"
)

func SkillCategories() []SkillCategory {
	return []SkillCategory{
		CategoryBasicDigital,
		CategoryBusinessAutomation,
		CategoryECommerce,
		CategoryDigitalMarketing,
		CategoryFinancialManagement,
		CategoryCommunication,
	}
}

// CompetencyLevel is the ordinal skill tier derived from assessment scoring.
type CompetencyLevel int

const (
	LevelBeginner CompetencyLevel = iota + 1
	LevelIntermediate
	LevelAdvanced
	LevelExpert
)

func (l CompetencyLevel) String() string {
	switch l {
	case LevelBeginner:
		return "Beginner"
	case LevelIntermediate:
		return "Intermediate"
	case LevelAdvanced:
		return "Advanced"
	case LevelExpert:
		return "Expert"
	default:
		return "Unknown"
	}
}

type AssessmentResponse struct {
	QuestionID int       `json:"question_id"`
	Answer     string    `json:"answer"`
	Value      int       `json:"value"`
	Correct    bool      `json:"correct"`
	Timestamp  time.Time `json:"timestamp"`
}

type AssessmentResults struct {
	OverallScore    int                               `json:"overall_score"`
	OverallLevel    CompetencyLevel                   `json:"overall_level"`
	SkillLevels     map[SkillCategory]CompetencyLevel `json:"skill_levels"`
	Recommendations []string                          `json:"recommendations"`
	TotalQuestions  int                               `json:"total_questions"`
	CorrectAnswers  int                               `json:"correct_answers"`
}

// AssessmentRecord persists both in-progress state (CompletedAt nil, Results
// nil) and the submitted outcome. Checkpointing after every answer is what
// lets a restarted process resume the same assessment.
type AssessmentRecord struct {
	ID          string               `gorm:"primaryKey" json:"id"`
	LearnerID   string               `gorm:"index" json:"learner_id"`
	Responses   []AssessmentResponse `gorm:"serializer:json" json:"responses"`
	Results     *AssessmentResults   `gorm:"serializer:json" json:"results,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `gorm:"index" json:"completed_at,omitempty"`
	SyncStatus  string               `gorm:"index;not null;default:'pending'" json:"sync_status"`
}

func (AssessmentRecord) TableName() string { return "assessment_record" }
